package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"

	"requestinvoice/internal/invoice"
	"requestinvoice/internal/models"
)

// Handlers contains HTTP handlers for the invoice gateway
type Handlers struct {
	invoiceService invoice.ServiceInterface
	version        string
	startedAt      time.Time
}

// NewHandlers creates a new handlers instance
func NewHandlers(invoiceService invoice.ServiceInterface, version string) *Handlers {
	return &Handlers{
		invoiceService: invoiceService,
		version:        version,
		startedAt:      time.Now(),
	}
}

// InvoiceByPath issues an invoice for a whole-unit amount
// GET /invoice/{amount}/{description}
func (h *Handlers) InvoiceByPath(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	// The router matches on the encoded path so that an escaped "/" stays
	// inside the description segment.
	description, err := url.PathUnescape(vars["description"])
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, "description is not validly escaped")
		return
	}
	amount, err := url.PathUnescape(vars["amount"])
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidAmount, "amount is not validly escaped")
		return
	}

	inv, err := h.invoiceService.CreateInvoice(r.Context(), amount, description)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, inv)
}

// PayRequest issues an invoice for an amount in the smallest unit
// GET /payRequest?amount=...&comment=...
func (h *Handlers) PayRequest(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	response, err := h.invoiceService.CreatePayRequest(r.Context(), query.Get("amount"), query.Get("comment"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// HealthCheck reports liveness of the listener
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = h.version
	response.Uptime = time.Since(h.startedAt).Round(time.Second).String()
	response.AddComponent("api", models.StatusHealthy, "API is operational")

	h.writeJSONResponse(w, http.StatusOK, response)
}

// writeServiceError maps service errors onto their HTTP status and code
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	var serviceErr *invoice.ServiceError
	if errors.As(err, &serviceErr) {
		// Wrapped causes (node errors, parse details) stay in the log.
		h.writeErrorResponse(w, serviceErr.StatusCode, serviceErr.Code, serviceErr.Message)
		return
	}

	slog.Error("Unexpected service error", "error", err)
	h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Internal server error")
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(w, statusCode, data)
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	writeJSON(w, statusCode, models.NewErrorResponse(message, errorCode))
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; nothing more can be sent.
		slog.Error("Error encoding JSON response", "error", err)
	}
}
