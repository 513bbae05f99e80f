// Package paylog defines the domain types for the payment event log.
//
// The payment event log is a durable, append-only audit trail of everything
// the payment pipeline observed: intents created, webhook verdicts, captures
// and order finalizations. It serves two purposes:
//
//  1. Operational visibility: "payment failed" webhooks create no order, but
//     the event still needs to be findable when the buyer calls support.
//
//  2. Reconciliation: when a charge succeeded but the order write failed,
//     the log row (correlated with the trace via trace_id) is the starting
//     point for manual recovery.
package paylog

import "time"

// EventType classifies a payment pipeline event.
type EventType string

const (
	EventIntentCreated    EventType = "INTENT_CREATED"
	EventOrderCreated     EventType = "WALLET_ORDER_CREATED"
	EventCaptureCompleted EventType = "CAPTURE_COMPLETED"
	EventWebhookVerified  EventType = "WEBHOOK_VERIFIED"
	EventWebhookRejected  EventType = "WEBHOOK_REJECTED"
	EventWebhookIgnored   EventType = "WEBHOOK_IGNORED"
	// EventWebhookUnverified marks events accepted in the degraded
	// no-signing-secret mode. They are recorded, never acted on.
	EventWebhookUnverified EventType = "WEBHOOK_UNVERIFIED"
	EventPaymentFailed     EventType = "PAYMENT_FAILED"
	EventOrderFinalized    EventType = "ORDER_FINALIZED"
	EventRecordingFailed   EventType = "ORDER_RECORDING_FAILED"
)

// Entry is a single row in the payment_events table.
type Entry struct {
	// GatewayRef is the provider's charge reference (intent id or wallet
	// order id). May be empty for events that carry no reference.
	GatewayRef string

	// OrderID is the shop's idempotency key when known at event time.
	OrderID string

	// Type is the event classification.
	Type EventType

	// Detail is free-form context: the webhook event type, an error string,
	// the captured amount. Kept short; this is an audit row, not a payload dump.
	Detail string

	// TraceID is the W3C trace ID extracted from the OpenTelemetry span that
	// was active when this entry was written, so an audit row can be joined
	// with the full distributed trace.
	TraceID string

	// SpanID pinpoints the exact span within the trace.
	SpanID string

	// RecordedAt is the wall-clock time of this entry.
	RecordedAt time.Time
}
