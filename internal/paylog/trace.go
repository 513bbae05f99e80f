package paylog

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// NewEntry builds an Entry with trace identifiers extracted from the active
// OpenTelemetry span in ctx. If no span is active (unit tests, background
// work without tracing) both trace fields stay empty.
func NewEntry(ctx context.Context, gatewayRef, orderID string, typ EventType, detail string) *Entry {
	e := &Entry{
		GatewayRef: gatewayRef,
		OrderID:    orderID,
		Type:       typ,
		Detail:     detail,
		RecordedAt: time.Now().UTC(),
	}

	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.IsValid() {
		e.TraceID = sc.TraceID().String()
		e.SpanID = sc.SpanID().String()
	}
	return e
}
