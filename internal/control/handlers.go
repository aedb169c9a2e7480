package control

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"requestinvoice/internal/models"
)

// SetupRoutes registers the admin API on router. Every route requires the
// shared secret as a bearer token.
func SetupRoutes(router *mux.Router, controller *Controller, secret string) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(secretAuthMiddleware(secret))

	handle := func(w http.ResponseWriter, r *http.Request) {
		command := mux.Vars(r)["command"]
		if command == "" {
			command = r.URL.Query().Get("command")
		}
		cmd := Normalize(command)
		result := controller.Execute(cmd)

		writeJSON(w, http.StatusOK, &models.ControlResponse{
			Command: cmd,
			Result:  result,
			Running: controller.Running(),
			Port:    controller.Port(),
			At:      time.Now().UTC(),
		})
	}

	api.HandleFunc("/invoiceserver", handle).Methods("POST")
	api.HandleFunc("/invoiceserver/{command}", handle).Methods("POST")
}

// secretAuthMiddleware rejects requests whose bearer token is not the secret.
func secretAuthMiddleware(secret string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSON(w, http.StatusUnauthorized,
					models.NewErrorResponse("Authorization required", models.ErrorCodeUnauthorized))
				return
			}
			const prefix = "Bearer "
			if !strings.HasPrefix(authHeader, prefix) {
				writeJSON(w, http.StatusUnauthorized,
					models.NewErrorResponse("Invalid authorization format", models.ErrorCodeUnauthorized))
				return
			}
			token := authHeader[len(prefix):]
			if secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				slog.Warn("Rejected admin request", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
				writeJSON(w, http.StatusUnauthorized,
					models.NewErrorResponse("Invalid secret", models.ErrorCodeUnauthorized))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Error encoding JSON response", "error", err)
	}
}
