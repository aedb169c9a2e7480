package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"requestinvoice/internal/invoice"
	"requestinvoice/internal/models"
)

// InstrumentedInvoicer wraps the node collaborator with OpenTelemetry
// tracing and metrics instrumentation.
type InstrumentedInvoicer struct {
	inner    invoice.Invoicer
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

var _ invoice.Invoicer = (*InstrumentedInvoicer)(nil)

// NewInstrumentedInvoicer creates a wrapper that records a trace span, a
// latency histogram sample and, on failure, an error count for every node call.
func NewInstrumentedInvoicer(inner invoice.Invoicer) (*InstrumentedInvoicer, error) {
	tracer := otel.Tracer("requestinvoice/node")
	meter := otel.Meter("requestinvoice/node")

	duration, err := meter.Float64Histogram(
		"node.rpc.duration",
		metric.WithDescription("Duration of node RPC calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"node.rpc.errors",
		metric.WithDescription("Number of failed node RPC calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedInvoicer{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

// Invoice forwards to the wrapped invoicer.
func (i *InstrumentedInvoicer) Invoice(ctx context.Context, req models.InvoiceRequest) (*models.Invoice, error) {
	ctx, span := i.tracer.Start(ctx, "node.invoice",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.method", "invoice"),
			attribute.String("invoice.label", req.Label),
			attribute.Int64("invoice.amount_msat", int64(req.AmountMsat)),
		),
	)
	defer span.End()

	start := time.Now()
	inv, err := i.inner.Invoice(ctx, req)

	attrs := metric.WithAttributes(attribute.String("method", "invoice"))
	i.duration.Record(ctx, time.Since(start).Seconds(), attrs)

	if err != nil {
		i.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return inv, nil
}
