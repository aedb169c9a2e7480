package invoice

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"requestinvoice/internal/models"
)

// MockInvoicer implements the Invoicer interface for testing
type MockInvoicer struct {
	mock.Mock
}

func (m *MockInvoicer) Invoice(ctx context.Context, req models.InvoiceRequest) (*models.Invoice, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func fixedLabel() string { return "ln-getinvoice-fixed" }

func TestNewService(t *testing.T) {
	node := &MockInvoicer{}
	service := NewService(node)

	assert.NotNil(t, service)
	assert.Equal(t, uint64(1000), service.multiplier)
	assert.Equal(t, 640, service.maxComment)
	assert.True(t, strings.HasPrefix(service.label(), "ln-getinvoice-"))
}

func TestNewServiceFromConfig(t *testing.T) {
	cfg := models.InvoiceConfig{LabelPrefix: "shop-", AmountMultiplier: 10, MaxCommentLength: 5}
	service := NewServiceFromConfig(&MockInvoicer{}, cfg)

	assert.Equal(t, uint64(10), service.multiplier)
	assert.Equal(t, 5, service.maxComment)
	assert.True(t, strings.HasPrefix(service.label(), "shop-"))
}

func TestService_CreateInvoice(t *testing.T) {
	node := &MockInvoicer{}
	service := NewService(node, WithLabelFunc(fixedLabel))

	expected := &models.Invoice{Bolt11: "lnbc50n1p", PaymentHash: "hash"}
	node.On("Invoice", mock.Anything, models.InvoiceRequest{
		AmountMsat:  5000,
		Label:       "ln-getinvoice-fixed",
		Description: "coffee",
	}).Return(expected, nil)

	inv, err := service.CreateInvoice(context.Background(), "5", "coffee")

	require.NoError(t, err)
	assert.Equal(t, expected, inv)
	node.AssertExpectations(t)
}

func TestService_CreateInvoice_DescriptionVerbatim(t *testing.T) {
	node := &MockInvoicer{}
	service := NewService(node, WithLabelFunc(fixedLabel))

	description := "two coffees / one tea & ☕"
	node.On("Invoice", mock.Anything, mock.MatchedBy(func(req models.InvoiceRequest) bool {
		return req.Description == description && req.AmountMsat == 0
	})).Return(&models.Invoice{Bolt11: "lnbc1"}, nil)

	_, err := service.CreateInvoice(context.Background(), "0", description)

	require.NoError(t, err)
	node.AssertExpectations(t)
}

func TestService_CreateInvoice_InvalidAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount string
	}{
		{name: "negative", amount: "-1"},
		{name: "non numeric", amount: "abc"},
		{name: "fraction", amount: "1.5"},
		{name: "empty", amount: ""},
		{name: "signed", amount: "+5"},
		{name: "exceeds uint64", amount: "18446744073709551616"},
		{name: "overflows multiplier", amount: "18446744073709552"},
		{name: "leading space", amount: " 5"},
		{name: "trailing newline", amount: "5\n"},
		{name: "blank", amount: "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := &MockInvoicer{}
			service := NewService(node)

			inv, err := service.CreateInvoice(context.Background(), tt.amount, "desc")

			assert.Nil(t, inv)
			var serviceErr *ServiceError
			require.True(t, errors.As(err, &serviceErr))
			assert.Equal(t, models.ErrorCodeInvalidAmount, serviceErr.Code)
			assert.Equal(t, http.StatusBadRequest, serviceErr.StatusCode)
			node.AssertNotCalled(t, "Invoice", mock.Anything, mock.Anything)
		})
	}
}

func TestService_CreateInvoice_UpstreamFailure(t *testing.T) {
	node := &MockInvoicer{}
	service := NewService(node)

	upstream := errors.New("connection refused")
	node.On("Invoice", mock.Anything, mock.Anything).Return(nil, upstream)

	inv, err := service.CreateInvoice(context.Background(), "5", "coffee")

	assert.Nil(t, inv)
	var serviceErr *ServiceError
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, models.ErrorCodeUpstreamFailure, serviceErr.Code)
	assert.Equal(t, http.StatusBadGateway, serviceErr.StatusCode)
	assert.ErrorIs(t, err, upstream)
}

func TestService_CreatePayRequest(t *testing.T) {
	node := &MockInvoicer{}
	service := NewService(node, WithLabelFunc(fixedLabel))

	node.On("Invoice", mock.Anything, models.InvoiceRequest{
		AmountMsat:  21000,
		Label:       "ln-getinvoice-fixed",
		Description: "thanks",
	}).Return(&models.Invoice{Bolt11: "lnbc210n1p"}, nil)

	resp, err := service.CreatePayRequest(context.Background(), "21000", "thanks")

	require.NoError(t, err)
	assert.Equal(t, "lnbc210n1p", resp.PR)
	assert.NotNil(t, resp.Routes)
	assert.Empty(t, resp.Routes)
	node.AssertExpectations(t)
}

func TestService_CreatePayRequest_PaddedAmount(t *testing.T) {
	node := &MockInvoicer{}
	service := NewService(node, WithLabelFunc(fixedLabel))

	node.On("Invoice", mock.Anything, models.InvoiceRequest{
		AmountMsat:  21000,
		Label:       "ln-getinvoice-fixed",
		Description: "",
	}).Return(&models.Invoice{Bolt11: "lnbc210n1p"}, nil)

	resp, err := service.CreatePayRequest(context.Background(), " 21000 ", "")

	require.NoError(t, err)
	assert.Equal(t, "lnbc210n1p", resp.PR)
	node.AssertExpectations(t)
}

func TestService_CreatePayRequest_MissingComment(t *testing.T) {
	node := &MockInvoicer{}
	service := NewService(node, WithLabelFunc(fixedLabel))

	node.On("Invoice", mock.Anything, models.InvoiceRequest{
		AmountMsat:  1000,
		Label:       "ln-getinvoice-fixed",
		Description: "",
	}).Return(&models.Invoice{Bolt11: "lnbc1"}, nil)

	_, err := service.CreatePayRequest(context.Background(), "1000", "")

	require.NoError(t, err)
	node.AssertExpectations(t)
}

func TestService_CreatePayRequest_TruncatesComment(t *testing.T) {
	node := &MockInvoicer{}
	service := NewService(node)

	var got models.InvoiceRequest
	node.On("Invoice", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(models.InvoiceRequest) }).
		Return(&models.Invoice{Bolt11: "lnbc1"}, nil)

	comment := strings.Repeat("x", 1000)
	_, err := service.CreatePayRequest(context.Background(), "1000", comment)

	require.NoError(t, err)
	assert.Equal(t, comment[:640], got.Description)
	assert.Equal(t, uint64(1000), got.AmountMsat)
}

func TestService_CreatePayRequest_TruncatesByCharacter(t *testing.T) {
	node := &MockInvoicer{}
	service := NewService(node, WithMaxCommentLength(3))

	var got models.InvoiceRequest
	node.On("Invoice", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(models.InvoiceRequest) }).
		Return(&models.Invoice{Bolt11: "lnbc1"}, nil)

	_, err := service.CreatePayRequest(context.Background(), "1", "⚡⚡⚡⚡⚡")

	require.NoError(t, err)
	assert.Equal(t, "⚡⚡⚡", got.Description)
}

func TestService_CreatePayRequest_InvalidAmount(t *testing.T) {
	for _, amount := range []string{"", "-1", "abc"} {
		node := &MockInvoicer{}
		service := NewService(node)

		resp, err := service.CreatePayRequest(context.Background(), amount, "hi")

		assert.Nil(t, resp)
		var serviceErr *ServiceError
		require.True(t, errors.As(err, &serviceErr), "amount %q", amount)
		assert.Equal(t, models.ErrorCodeInvalidAmount, serviceErr.Code)
		node.AssertNotCalled(t, "Invoice", mock.Anything, mock.Anything)
	}
}

func TestService_CreatePayRequest_UpstreamFailure(t *testing.T) {
	node := &MockInvoicer{}
	service := NewService(node)
	node.On("Invoice", mock.Anything, mock.Anything).Return(nil, errors.New("node down"))

	resp, err := service.CreatePayRequest(context.Background(), "1000", "")

	assert.Nil(t, resp)
	var serviceErr *ServiceError
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, http.StatusBadGateway, serviceErr.StatusCode)
}

func TestService_LabelsUnique(t *testing.T) {
	node := &MockInvoicer{}
	service := NewService(node)

	var mu sync.Mutex
	labels := make(map[string]bool)
	node.On("Invoice", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			mu.Lock()
			labels[args.Get(1).(models.InvoiceRequest).Label] = true
			mu.Unlock()
		}).
		Return(&models.Invoice{Bolt11: "lnbc1"}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.CreateInvoice(context.Background(), "1", "d")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, labels, 100)
	for label := range labels {
		assert.True(t, strings.HasPrefix(label, "ln-getinvoice-"))
	}
}

func TestServiceError(t *testing.T) {
	inner := errors.New("boom")
	err := NewUpstreamError(inner)

	assert.Equal(t, "failed to create invoice: boom", err.Error())
	assert.Equal(t, inner, err.Unwrap())

	plain := NewInvalidAmountError("amount is required", nil)
	assert.Equal(t, "amount is required", plain.Error())
}
