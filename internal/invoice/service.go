// Package invoice normalises the two public request shapes into a single
// invoice-creation call against the node.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"requestinvoice/internal/models"
)

// LabelFunc mints the unique label attached to every invoice.
type LabelFunc func() string

// NewLabelGenerator returns a LabelFunc producing prefix followed by a random UUID.
func NewLabelGenerator(prefix string) LabelFunc {
	return func() string {
		return prefix + uuid.NewString()
	}
}

// Option configures a Service.
type Option func(*Service)

// WithAmountMultiplier sets the factor applied to whole-unit amounts.
func WithAmountMultiplier(m uint64) Option {
	return func(s *Service) {
		s.multiplier = m
	}
}

// WithMaxCommentLength sets how many characters of a pay-request comment are kept.
func WithMaxCommentLength(n int) Option {
	return func(s *Service) {
		s.maxComment = n
	}
}

// WithLabelFunc replaces the label generator.
func WithLabelFunc(fn LabelFunc) Option {
	return func(s *Service) {
		s.label = fn
	}
}

// Service handles request validation and normalisation
type Service struct {
	node       Invoicer
	label      LabelFunc
	multiplier uint64
	maxComment int
}

// NewService creates a new invoice service backed by the given node
func NewService(node Invoicer, opts ...Option) *Service {
	s := &Service{
		node:       node,
		label:      NewLabelGenerator("ln-getinvoice-"),
		multiplier: 1000,
		maxComment: 640,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServiceFromConfig creates a service using the invoice section of the config
func NewServiceFromConfig(node Invoicer, cfg models.InvoiceConfig) *Service {
	return NewService(node,
		WithLabelFunc(NewLabelGenerator(cfg.LabelPrefix)),
		WithAmountMultiplier(cfg.AmountMultiplier),
		WithMaxCommentLength(cfg.MaxCommentLength),
	)
}

// CreateInvoice issues an invoice for amount whole units with the description
// passed through verbatim.
func (s *Service) CreateInvoice(ctx context.Context, amount, description string) (*models.Invoice, error) {
	units, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}
	if s.multiplier != 0 && units > math.MaxUint64/s.multiplier {
		return nil, NewInvalidAmountError(fmt.Sprintf("amount %s is too large", amount), nil)
	}

	return s.issue(ctx, models.InvoiceRequest{
		AmountMsat:  units * s.multiplier,
		Label:       s.label(),
		Description: description,
	})
}

// CreatePayRequest issues an invoice for amount in the smallest unit and
// returns it in pay-request form. A missing comment becomes an empty
// description; a long one is cut to the configured number of characters.
func (s *Service) CreatePayRequest(ctx context.Context, amount, comment string) (*models.PayRequestResponse, error) {
	// Surrounding whitespace is tolerated in the query form only.
	msat, err := parseAmount(strings.TrimSpace(amount))
	if err != nil {
		return nil, err
	}

	inv, err := s.issue(ctx, models.InvoiceRequest{
		AmountMsat:  msat,
		Label:       s.label(),
		Description: truncate(comment, s.maxComment),
	})
	if err != nil {
		return nil, err
	}
	return models.NewPayRequestResponse(inv), nil
}

func (s *Service) issue(ctx context.Context, req models.InvoiceRequest) (*models.Invoice, error) {
	inv, err := s.node.Invoice(ctx, req)
	if err != nil {
		slog.Error("Node failed to create invoice",
			"label", req.Label,
			"amount_msat", req.AmountMsat,
			"error", err,
		)
		return nil, NewUpstreamError(err)
	}
	if inv == nil {
		return nil, NewUpstreamError(errors.New("node returned no invoice"))
	}

	slog.Debug("Invoice created", "label", req.Label, "amount_msat", req.AmountMsat)
	return inv, nil
}

func parseAmount(amount string) (uint64, error) {
	if amount == "" {
		return 0, NewInvalidAmountError("amount is required", nil)
	}
	// ParseUint accepts neither signs nor fractions.
	v, err := strconv.ParseUint(amount, 10, 64)
	if err != nil {
		return 0, NewInvalidAmountError(fmt.Sprintf("amount %q is not a non-negative integer", amount), err)
	}
	return v, nil
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
