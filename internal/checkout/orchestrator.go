package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jcmexdev/gameshop/internal/identity"
	"github.com/jcmexdev/gameshop/internal/money"
	"github.com/jcmexdev/gameshop/internal/orders"
	"github.com/jcmexdev/gameshop/internal/paylog"
	"github.com/jcmexdev/gameshop/internal/payment"
)

// Orchestrator drives checkout sessions through the state machine. It is
// stateless between calls; everything lives in the Store.
type Orchestrator struct {
	gateways map[payment.Method]payment.Gateway
	sessions Store
	orders   *orders.Service
	audit    paylog.Repository
}

// NewOrchestrator wires the orchestrator. audit may be paylog.Nop{}.
func NewOrchestrator(
	gateways map[payment.Method]payment.Gateway,
	sessions Store,
	orderSvc *orders.Service,
	audit paylog.Repository,
) *Orchestrator {
	if audit == nil {
		audit = paylog.Nop{}
	}
	return &Orchestrator{
		gateways: gateways,
		sessions: sessions,
		orders:   orderSvc,
		audit:    audit,
	}
}

// Begin snapshots the cart and opens a session in SELECTING_METHOD.
// The buyer must already be resolved: callers seeing ErrNoIdentity send the
// browser to the identity provider and call Begin again after login — the
// cart survives because it lives in the client's persisted store, not here.
func (o *Orchestrator) Begin(ctx context.Context, buyer *identity.Identity, cart []orders.LineItem, currency string) (*Session, error) {
	if buyer == nil || buyer.ID == "" {
		return nil, ErrNoIdentity
	}
	if len(cart) == 0 {
		return nil, ErrEmptyCart
	}
	for _, item := range cart {
		if item.UnitPrice <= 0 || item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line %q has non-positive price or quantity", money.ErrInvalidAmount, item.Name)
		}
	}

	now := time.Now().UTC()
	session := &Session{
		ID:         uuid.NewString(),
		BuyerID:    buyer.ID,
		BuyerEmail: buyer.Email,
		Cart:       cart,
		Currency:   money.New(0, currency).Currency,
		State:      StateSelectingMethod,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := o.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "checkout session opened",
		"session_id", session.ID, "buyer_id", buyer.ID, "total", session.Total())
	return session, nil
}

// SelectMethod creates a gateway charge for the chosen method and moves the
// session to AWAITING_GATEWAY. The terms acknowledgement gates the
// transition. Selecting while an attempt is already live replaces it: the
// old gateway reference is abandoned, so a buyer switching methods can never
// end up with two confirmable charges.
func (o *Orchestrator) SelectMethod(ctx context.Context, sessionID string, method payment.Method, termsAccepted bool) (*Session, error) {
	session, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !termsAccepted {
		return nil, ErrTermsNotAccepted
	}
	gw, ok := o.gateways[method]
	if !ok || !method.Valid() {
		return nil, ErrUnknownMethod
	}

	// Re-selecting from AWAITING_GATEWAY is the "change payment method"
	// path: fall back to SELECTING_METHOD first, discarding the live attempt.
	if session.State == StateAwaitingGateway {
		if err := session.transition(StateSelectingMethod); err != nil {
			return nil, err
		}
		session.Attempt = nil
	}
	if session.State != StateSelectingMethod {
		return nil, ErrIllegalTransition
	}

	// One order id per session, fixed at the first attempt. It rides along
	// in gateway metadata so the webhook path finalizes under the same key.
	if session.OrderID == "" {
		session.OrderID = orders.NewOrderID()
	}

	amount := money.New(session.Total(), session.Currency)
	names := make([]string, 0, len(session.Cart))
	for _, item := range session.Cart {
		names = append(names, item.Name)
	}

	charge, err := gw.CreateCharge(ctx, amount, payment.Metadata{
		OrderID:       session.OrderID,
		BuyerEmail:    session.BuyerEmail,
		ItemNames:     names,
		CheckoutRefID: session.ID,
	})
	if err != nil {
		return nil, err
	}

	session.Attempt = &PaymentAttempt{
		Method:       method,
		GatewayRef:   charge.Ref,
		ClientSecret: charge.ClientSecret,
		Status:       charge.Status,
	}
	if err := session.transition(StateAwaitingGateway); err != nil {
		return nil, err
	}
	if err := o.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	eventType := paylog.EventIntentCreated
	if method == payment.MethodPayPal {
		eventType = paylog.EventOrderCreated
	}
	o.record(ctx, charge.Ref, session.OrderID, eventType, string(method)+" "+amount.String())

	return session, nil
}

// Confirm asks the gateway for a definitive outcome of the live attempt:
// status resolution for the intent gateway, capture for the redirect wallet.
//
// Outcomes:
//   - success: the session finalizes (order written, cart cleared).
//   - requires_action: the session stays suspended in AWAITING_GATEWAY; the
//     client performs the step-up redirect and later calls ResumeFromRedirect.
//   - rejection: the attempt is marked failed but the session stays in
//     AWAITING_GATEWAY so the buyer can retry with another method — no money
//     moved, retrying is safe.
//   - ambiguous: nothing changes; the outcome must be resolved by a status
//     re-query before any new attempt, to avoid a double charge.
func (o *Orchestrator) Confirm(ctx context.Context, sessionID string) (*Session, error) {
	session, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.State == StateComplete {
		// Already finalized (e.g. webhook raced us); idempotent success.
		return session, nil
	}
	if session.State != StateAwaitingGateway || session.Attempt == nil {
		return nil, ErrNoLiveAttempt
	}

	gw := o.gateways[session.Attempt.Method]
	result, err := gw.FinalizeCharge(ctx, session.Attempt.GatewayRef)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrGatewayRejected):
			session.Attempt.Status = payment.StatusFailed
			session.UpdatedAt = time.Now().UTC()
			if saveErr := o.sessions.Save(ctx, session); saveErr != nil {
				return nil, saveErr
			}
			o.record(ctx, session.Attempt.GatewayRef, session.OrderID, paylog.EventPaymentFailed, err.Error())
			return session, err
		case errors.Is(err, payment.ErrGatewayAmbiguous):
			// Unknown outcome: leave the attempt live and untouched. The
			// caller must re-query status, never re-charge.
			return session, err
		default:
			return session, err
		}
	}

	switch result.Status {
	case payment.StatusSucceeded:
		if session.Attempt.Method == payment.MethodPayPal {
			o.record(ctx, session.Attempt.GatewayRef, session.OrderID, paylog.EventCaptureCompleted, "payer="+result.PayerEmail)
		}
		session.PayerEmail = result.PayerEmail
		return o.finalize(ctx, session)
	case payment.StatusRequiresAction:
		session.Attempt.Status = payment.StatusRequiresAction
		session.UpdatedAt = time.Now().UTC()
		if err := o.sessions.Save(ctx, session); err != nil {
			return nil, err
		}
		return session, nil
	case payment.StatusFailed:
		session.Attempt.Status = payment.StatusFailed
		session.UpdatedAt = time.Now().UTC()
		if err := o.sessions.Save(ctx, session); err != nil {
			return nil, err
		}
		o.record(ctx, session.Attempt.GatewayRef, session.OrderID, paylog.EventPaymentFailed, "gateway reported failure")
		return session, payment.ErrGatewayRejected
	default:
		return session, fmt.Errorf("%w: %q", payment.ErrUnexpectedStatus, result.Status)
	}
}

// ResumeFromRedirect resolves the session after the browser returns from a
// step-up redirect. The query string the browser carried is only used as a
// consistency check against the live attempt; the actual outcome comes from
// re-querying the gateway, so edited URLs cannot fake a success.
func (o *Orchestrator) ResumeFromRedirect(ctx context.Context, sessionID, returnedRef string) (*Session, error) {
	session, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.State == StateComplete {
		return session, nil
	}
	if session.State != StateAwaitingGateway || session.Attempt == nil {
		return nil, ErrNoLiveAttempt
	}
	if returnedRef != "" && returnedRef != session.Attempt.GatewayRef {
		return nil, ErrRefMismatch
	}

	gw := o.gateways[session.Attempt.Method]
	status, err := gw.ChargeStatus(ctx, session.Attempt.GatewayRef)
	if err != nil {
		if errors.Is(err, payment.ErrGatewayRejected) {
			session.Attempt.Status = payment.StatusFailed
			session.UpdatedAt = time.Now().UTC()
			if saveErr := o.sessions.Save(ctx, session); saveErr != nil {
				return nil, saveErr
			}
			o.record(ctx, session.Attempt.GatewayRef, session.OrderID, paylog.EventPaymentFailed, err.Error())
		}
		return session, err
	}

	switch status {
	case payment.StatusSucceeded:
		return o.finalize(ctx, session)
	case payment.StatusFailed:
		session.Attempt.Status = payment.StatusFailed
		session.UpdatedAt = time.Now().UTC()
		if err := o.sessions.Save(ctx, session); err != nil {
			return nil, err
		}
		o.record(ctx, session.Attempt.GatewayRef, session.OrderID, paylog.EventPaymentFailed, "failed after step-up redirect")
		return session, payment.ErrGatewayRejected
	default:
		// Still pending at the gateway; keep the suspension.
		session.Attempt.Status = status
		session.UpdatedAt = time.Now().UTC()
		if err := o.sessions.Save(ctx, session); err != nil {
			return nil, err
		}
		return session, nil
	}
}

// Cancel abandons the session before any definitive success. The cart is
// left untouched and any gateway-side charge simply expires on its own.
func (o *Orchestrator) Cancel(ctx context.Context, sessionID string) (*Session, error) {
	session, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.transition(StateCancelled); err != nil {
		return nil, err
	}
	session.Attempt = nil
	if err := o.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "checkout cancelled", "session_id", session.ID)
	return session, nil
}

// Get loads a session.
func (o *Orchestrator) Get(ctx context.Context, sessionID string) (*Session, error) {
	return o.sessions.Get(ctx, sessionID)
}

// FinalizeFromWebhook finalizes the session a verified gateway event points
// at. Called by the webhook reconciler when the client path may never run
// (browser closed right after paying). Already-complete sessions are a
// no-op; a reference mismatch means the event belongs to an abandoned
// attempt and is refused.
func (o *Orchestrator) FinalizeFromWebhook(ctx context.Context, sessionID, gatewayRef string) error {
	session, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.State == StateComplete {
		return nil
	}
	if session.Attempt == nil {
		return ErrNoLiveAttempt
	}
	if gatewayRef != "" && gatewayRef != session.Attempt.GatewayRef {
		return ErrRefMismatch
	}
	_, err = o.finalize(ctx, session)
	return err
}

// finalize is the single place a session turns a gateway success into a
// durable order. The FINALIZING transition guards against a second trigger
// within this session; across sessions and across the webhook path the order
// store's idempotent insert is the real synchronization point.
func (o *Orchestrator) finalize(ctx context.Context, session *Session) (*Session, error) {
	if err := session.transition(StateFinalizing); err != nil {
		return nil, err
	}
	if err := o.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	order := &orders.Order{
		OrderID:       session.OrderID,
		BuyerID:       session.BuyerID,
		BuyerEmail:    session.BuyerEmail,
		TransactionID: session.Attempt.GatewayRef,
		Method:        session.Attempt.Method,
		Items:         session.Cart,
		Total:         session.Total(),
		Currency:      session.Currency,
	}
	buyer := &identity.Identity{ID: session.BuyerID, Email: session.BuyerEmail}

	stored, created, err := o.orders.Finalize(ctx, order, buyer)
	if err != nil {
		// The charge has already succeeded; this is NOT a payment failure
		// and must never be presented as one.
		session.FailureReason = "payment captured, order recording failed — contact support"
		if terr := session.transition(StateFailed); terr == nil {
			_ = o.sessions.Save(ctx, session)
		}
		o.record(ctx, order.TransactionID, order.OrderID, paylog.EventRecordingFailed, err.Error())
		return session, err
	}

	// Cart is cleared exactly once, atomically with the session completing.
	session.Cart = nil
	session.Attempt.Status = payment.StatusSucceeded
	if err := session.transition(StateComplete); err != nil {
		return nil, err
	}
	if err := o.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	o.record(ctx, stored.TransactionID, stored.OrderID, paylog.EventOrderFinalized,
		fmt.Sprintf("created=%t method=%s total=%s", created, stored.Method, stored.Amount()))
	slog.InfoContext(ctx, "checkout complete",
		"session_id", session.ID, "order_id", stored.OrderID, "created", created)
	return session, nil
}

// record writes an audit entry; audit failures are logged and dropped.
func (o *Orchestrator) record(ctx context.Context, ref, orderID string, typ paylog.EventType, detail string) {
	entry := paylog.NewEntry(ctx, ref, orderID, typ, detail)
	if err := o.audit.Record(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "payment audit write failed", "type", typ, "ref", ref, "error", err)
	}
}
