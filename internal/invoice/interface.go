package invoice

import (
	"context"

	"requestinvoice/internal/models"
)

// Invoicer is the node collaborator that turns a request into an invoice.
type Invoicer interface {
	Invoice(ctx context.Context, req models.InvoiceRequest) (*models.Invoice, error)
}

// ServiceInterface defines the gateway operations exposed over HTTP
type ServiceInterface interface {
	// CreateInvoice issues an invoice for an amount given in whole units
	CreateInvoice(ctx context.Context, amount, description string) (*models.Invoice, error)

	// CreatePayRequest issues an invoice for an amount given in the smallest unit
	CreatePayRequest(ctx context.Context, amount, comment string) (*models.PayRequestResponse, error)
}

// Ensure Service implements ServiceInterface
var _ ServiceInterface = (*Service)(nil)
