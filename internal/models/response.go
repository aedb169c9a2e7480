// Package models - API response types and error handling.
// This file defines the outgoing response structures of the gateway and the
// admin API.
//
// Response Design Principles:
// - Invoice responses mirror what the node returned
// - Error bodies share one structure with a machine-readable code
// - RFC3339 timestamps for international compatibility
package models

import (
	"time"
)

// PayRequestResponse is the reduced shape served by the query-form endpoint.
// Only the payment request is exposed; Routes is always an empty list.
type PayRequestResponse struct {
	PR     string        `json:"pr"`
	Routes []interface{} `json:"routes"`
}

// NewPayRequestResponse builds the reduced response from a node invoice.
func NewPayRequestResponse(inv *Invoice) *PayRequestResponse {
	return &PayRequestResponse{
		PR:     inv.Bolt11,
		Routes: []interface{}{},
	}
}

// ControlResponse reports the outcome of a lifecycle command.
type ControlResponse struct {
	Command string    `json:"command"`
	Result  string    `json:"result"`
	Running bool      `json:"running"`
	Port    int       `json:"port"`
	At      time.Time `json:"at"`
}

// ErrorResponse provides structured error information.
//
// Error Categories:
// - Invalid amount: the amount is missing, negative or not an integer
// - Rate limited: the client exceeded one of its quotas
// - Upstream failure: the node refused or could not be reached
// - Internal errors: panics recovered by middleware
type ErrorResponse struct {
	Error     string            `json:"error"`             // Error type (always "error")
	Message   string            `json:"message"`           // Human-readable error description
	Code      string            `json:"code,omitempty"`    // Machine-readable error code
	Details   map[string]string `json:"details,omitempty"` // Field-specific error details
	Timestamp time.Time         `json:"timestamp"`         // Error occurrence time
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

type ComponentHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Health Status Constants
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

// Standard HTTP Error Codes
//
// Error Code Strategy:
// - Upper-case with underscores for consistency
// - Maps to standard HTTP status codes
// - Machine-readable for client error handling
const (
	ErrorCodeInvalidAmount   = "INVALID_AMOUNT"   // 400: Amount missing or not a non-negative integer
	ErrorCodeNotFound        = "NOT_FOUND"        // 404: Unknown route
	ErrorCodeInvalidRequest  = "INVALID_REQUEST"  // 400/405: Malformed request
	ErrorCodeRateLimited     = "RATE_LIMITED"     // 429: Quota exceeded
	ErrorCodeUpstreamFailure = "UPSTREAM_FAILURE" // 502: Node error or unreachable
	ErrorCodeInternalError   = "INTERNAL_ERROR"   // 500: Server-side error
	ErrorCodeUnauthorized    = "UNAUTHORIZED"     // 401: Admin authentication required
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

// WithDetail attaches a field-specific detail to the error.
func (e *ErrorResponse) WithDetail(field, detail string) *ErrorResponse {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[field] = detail
	return e
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}
