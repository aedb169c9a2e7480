package invoice

import (
	"fmt"
	"net/http"

	"requestinvoice/internal/models"
)

// ServiceError represents errors from the invoice service with HTTP context
type ServiceError struct {
	Code       string
	Message    string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Error constructors for common service errors

func NewInvalidAmountError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeInvalidAmount,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

func NewUpstreamError(err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeUpstreamFailure,
		Message:    "failed to create invoice",
		StatusCode: http.StatusBadGateway,
		Err:        err,
	}
}
