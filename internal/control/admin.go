package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/gorilla/mux"

	"requestinvoice/internal/models"
)

// AdminServer serves the control API and, when given a handler, metrics on
// a listener separate from the gateway.
type AdminServer struct {
	server *http.Server
	ln     net.Listener
	done   chan struct{}
}

// NewAdminServer builds the admin router. metrics may be nil.
func NewAdminServer(addr string, controller *Controller, secret string, metricsPath string, metrics http.Handler) *AdminServer {
	router := mux.NewRouter()
	SetupRoutes(router, controller, secret)
	if metrics != nil {
		router.Handle(metricsPath, metrics).Methods("GET")
	}
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Not found", models.ErrorCodeNotFound))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, models.NewErrorResponse("Method not allowed", models.ErrorCodeInvalidRequest))
	})

	return &AdminServer{
		server: &http.Server{
			Addr:     addr,
			Handler:  router,
			ErrorLog: slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
		},
		done: make(chan struct{}),
	}
}

// Start binds the admin address and serves in the background.
func (a *AdminServer) Start() error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind admin server on %s: %w", a.server.Addr, err)
	}
	a.ln = ln

	go func() {
		defer close(a.done)
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Admin server failed", "error", err)
		}
	}()

	slog.Info("Starting admin server", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (a *AdminServer) Addr() net.Addr {
	if a.ln == nil {
		return nil
	}
	return a.ln.Addr()
}

// Shutdown gracefully stops the admin server.
func (a *AdminServer) Shutdown(ctx context.Context) error {
	if a.ln == nil {
		return nil
	}
	err := a.server.Shutdown(ctx)
	<-a.done
	return err
}
