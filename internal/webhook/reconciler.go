package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jcmexdev/gameshop/internal/identity"
	"github.com/jcmexdev/gameshop/internal/orders"
	"github.com/jcmexdev/gameshop/internal/paylog"
	"github.com/jcmexdev/gameshop/internal/payment"
)

// ErrSecretUnconfigured is returned in the fail-closed default when no
// signing secret is configured: events cannot be authenticated, so they are
// not accepted at all.
var ErrSecretUnconfigured = errors.New("webhook: signing secret not configured")

// SessionFinalizer finalizes the checkout session a verified event points
// at. Implemented by checkout.Orchestrator.
type SessionFinalizer interface {
	FinalizeFromWebhook(ctx context.Context, sessionID, gatewayRef string) error
}

// Event is the envelope the gateway delivers.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID           string `json:"id"`
			Amount       int64  `json:"amount"`
			Currency     string `json:"currency"`
			ReceiptEmail string `json:"receipt_email"`
			Metadata     struct {
				OrderID    string `json:"order_id"`
				CheckoutID string `json:"checkout_id"`
				Items      string `json:"items"`
			} `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// Reconciler independently confirms gateway-asserted payment outcomes.
// A verified success finalizes the order through the same idempotent store
// the client path uses — whichever path writes first wins, the other is a
// no-op. The client path never needs to have run at all (browser closed
// right after paying).
type Reconciler struct {
	secret string
	// allowUnverified enables the degraded mode used before a signing
	// secret is provisioned: deliveries are acknowledged and recorded for
	// visibility but NEVER finalize anything.
	allowUnverified bool

	sessions SessionFinalizer
	orders   *orders.Service
	audit    paylog.Repository
	now      func() time.Time
}

// NewReconciler wires the reconciler. audit may be paylog.Nop{}.
func NewReconciler(secret string, allowUnverified bool, sessions SessionFinalizer, orderSvc *orders.Service, audit paylog.Repository) *Reconciler {
	if audit == nil {
		audit = paylog.Nop{}
	}
	return &Reconciler{
		secret:          secret,
		allowUnverified: allowUnverified,
		sessions:        sessions,
		orders:          orderSvc,
		audit:           audit,
		now:             time.Now,
	}
}

// Configured reports whether a signing secret is present.
func (r *Reconciler) Configured() bool { return r.secret != "" }

// Handle verifies and processes one delivery. A nil error means the event
// was recognized-and-processed or recognized-and-ignored and the gateway
// should be told {received:true} so it stops retrying. Signature failures
// return ErrSignatureInvalid and the event is discarded unprocessed.
func (r *Reconciler) Handle(ctx context.Context, payload []byte, sigHeader string) error {
	if r.secret == "" {
		if !r.allowUnverified {
			r.record(ctx, "", "", paylog.EventWebhookRejected, "no signing secret configured")
			return ErrSecretUnconfigured
		}
		// Degraded mode: explicit, loud, and observe-only.
		slog.WarnContext(ctx, "webhook accepted WITHOUT signature verification; delivery recorded but not processed")
		r.record(ctx, "", "", paylog.EventWebhookUnverified, eventTypeOf(payload))
		return nil
	}

	if err := VerifySignature(payload, sigHeader, r.secret, r.now()); err != nil {
		slog.WarnContext(ctx, "webhook signature rejected", "error", err)
		r.record(ctx, "", "", paylog.EventWebhookRejected, err.Error())
		return err
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("%w: unparseable payload", ErrSignatureInvalid)
	}

	obj := event.Data.Object
	switch event.Type {
	case "payment_intent.succeeded":
		r.record(ctx, obj.ID, obj.Metadata.OrderID, paylog.EventWebhookVerified, event.Type)
		return r.finalize(ctx, &event)

	case "payment_intent.payment_failed":
		// No order; recorded for operational visibility only.
		slog.InfoContext(ctx, "gateway reported payment failure", "ref", obj.ID)
		r.record(ctx, obj.ID, obj.Metadata.OrderID, paylog.EventPaymentFailed, event.Type)
		return nil

	default:
		// Acknowledge so the gateway stops retrying, otherwise ignore.
		slog.DebugContext(ctx, "webhook event ignored", "type", event.Type)
		r.record(ctx, obj.ID, "", paylog.EventWebhookIgnored, event.Type)
		return nil
	}
}

// finalize writes the order for a verified success. Preferred path: resolve
// the checkout session named in the metadata and finalize it with full cart
// fidelity. Fallback (session expired or never existed): reconstruct what
// the event itself carries and write that — a sparse record beats losing a
// confirmed charge.
func (r *Reconciler) finalize(ctx context.Context, event *Event) error {
	obj := event.Data.Object

	if obj.Metadata.CheckoutID != "" && r.sessions != nil {
		err := r.sessions.FinalizeFromWebhook(ctx, obj.Metadata.CheckoutID, obj.ID)
		if err == nil {
			return nil
		}
		slog.WarnContext(ctx, "webhook session finalization failed, falling back to event data",
			"checkout_id", obj.Metadata.CheckoutID, "error", err)
	}

	if obj.Metadata.OrderID == "" {
		// Nothing to key the order on; the verified event stays in the
		// audit log for manual reconciliation.
		slog.ErrorContext(ctx, "verified payment event carries no order id", "ref", obj.ID)
		return nil
	}

	var names []string
	_ = json.Unmarshal([]byte(obj.Metadata.Items), &names)
	items := make([]orders.LineItem, 0, len(names))
	for _, name := range names {
		items = append(items, orders.LineItem{Name: name, Quantity: 1})
	}

	order := &orders.Order{
		OrderID:       obj.Metadata.OrderID,
		BuyerEmail:    obj.ReceiptEmail,
		TransactionID: obj.ID,
		Method:        payment.MethodCard,
		Items:         items,
		Total:         obj.Amount,
		Currency:      obj.Currency,
	}
	buyer := &identity.Identity{Email: obj.ReceiptEmail}

	if _, _, err := r.orders.Finalize(ctx, order, buyer); err != nil {
		r.record(ctx, obj.ID, order.OrderID, paylog.EventRecordingFailed, err.Error())
		// The delivery is acknowledged anyway: retrying the webhook will
		// not fix a persistent store failure, and the audit row plus the
		// gateway's own record are the recovery path.
		slog.ErrorContext(ctx, "webhook order recording failed", "order_id", order.OrderID, "error", err)
	}
	return nil
}

func (r *Reconciler) record(ctx context.Context, ref, orderID string, typ paylog.EventType, detail string) {
	entry := paylog.NewEntry(ctx, ref, orderID, typ, detail)
	if err := r.audit.Record(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "payment audit write failed", "type", typ, "error", err)
	}
}

// eventTypeOf extracts just the type field for audit purposes without
// trusting anything else in an unverified payload.
func eventTypeOf(payload []byte) string {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return "unparseable"
	}
	return probe.Type
}
