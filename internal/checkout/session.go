// Package checkout drives a checkout session from a cart snapshot to a
// terminal outcome: at most one finalized order per session, and no silent
// loss of a charge that actually succeeded at the gateway.
//
// Session state is persisted through the Store on every transition so the
// flow survives a step-up-authentication full-page redirect; the in-memory
// orchestrator holds nothing between calls.
package checkout

import (
	"errors"
	"time"

	"github.com/jcmexdev/gameshop/internal/orders"
	"github.com/jcmexdev/gameshop/internal/payment"
)

// State is the checkout session lifecycle state.
type State string

const (
	// StateSelectingMethod: cart snapshotted, buyer resolved, waiting for an
	// explicit payment method choice and terms acknowledgement.
	StateSelectingMethod State = "SELECTING_METHOD"
	// StateAwaitingGateway: a live PaymentAttempt exists; waiting for the
	// gateway to report a definitive outcome.
	StateAwaitingGateway State = "AWAITING_GATEWAY"
	// StateFinalizing: first definitive gateway success observed; writing
	// the order.
	StateFinalizing State = "FINALIZING"
	StateComplete   State = "COMPLETE"
	StateFailed     State = "FAILED"
	StateCancelled  State = "CANCELLED"
)

// IsTerminal reports whether no further transitions are allowed.
func (s State) IsTerminal() bool {
	return s == StateComplete || s == StateFailed || s == StateCancelled
}

// legalTransitions encodes the state machine. Anything absent is illegal.
var legalTransitions = map[State][]State{
	StateSelectingMethod: {StateAwaitingGateway, StateCancelled},
	StateAwaitingGateway: {StateSelectingMethod, StateFinalizing, StateCancelled},
	StateFinalizing:      {StateComplete, StateFailed},
}

// CanTransition reports whether moving from s to next is legal.
func (s State) CanTransition(next State) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

var (
	ErrEmptyCart         = errors.New("checkout: cart is empty")
	ErrNoIdentity        = errors.New("checkout: buyer identity not resolved")
	ErrTermsNotAccepted  = errors.New("checkout: terms must be acknowledged")
	ErrUnknownMethod     = errors.New("checkout: unknown payment method")
	ErrNoLiveAttempt     = errors.New("checkout: no live payment attempt")
	ErrIllegalTransition = errors.New("checkout: illegal state transition")
	ErrSessionNotFound   = errors.New("checkout: session not found")
	// ErrRefMismatch means the redirect return named a gateway reference
	// that is not this session's live attempt — tampered or stale.
	ErrRefMismatch = errors.New("checkout: gateway reference does not match live attempt")
)

// PaymentAttempt is the ephemeral record of one in-flight charge. At most
// one attempt is live per session; selecting a method again replaces it and
// the prior gateway reference is simply abandoned (gateways expire
// unconfirmed charges on their own schedule).
type PaymentAttempt struct {
	Method       payment.Method `json:"method"`
	GatewayRef   string         `json:"gateway_ref"`
	ClientSecret string         `json:"client_secret,omitempty"`
	Status       payment.Status `json:"status"`
}

// Session is the persisted checkout state.
type Session struct {
	ID         string `json:"id"`
	BuyerID    string `json:"buyer_id"`
	BuyerEmail string `json:"buyer_email"`

	// Cart is the snapshot taken at Begin. Prices here are purchase-time
	// prices in minor units; later catalog changes do not touch them.
	Cart     []orders.LineItem `json:"cart"`
	Currency string            `json:"currency"`

	State State `json:"state"`
	// OrderID is generated when the first attempt is created and reused for
	// every attempt of this session: it is the idempotency key both the
	// client path and the webhook path finalize under.
	OrderID string          `json:"order_id,omitempty"`
	Attempt *PaymentAttempt `json:"attempt,omitempty"`

	// PayerEmail is reported by redirect wallets on capture.
	PayerEmail string `json:"payer_email,omitempty"`
	// FailureReason distinguishes "payment failed, retry is safe" from
	// "payment captured but recording failed, do NOT retry".
	FailureReason string `json:"failure_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Total sums the cart in minor units.
func (s *Session) Total() int64 {
	var total int64
	for _, item := range s.Cart {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

// transition moves the session to next or fails with ErrIllegalTransition.
func (s *Session) transition(next State) error {
	if !s.State.CanTransition(next) {
		return ErrIllegalTransition
	}
	s.State = next
	s.UpdatedAt = time.Now().UTC()
	return nil
}
