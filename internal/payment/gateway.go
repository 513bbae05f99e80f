// Package payment defines the uniform contract both payment providers are
// adapted to: create a charge, finalize it (confirm or capture, depending on
// the provider), and report its terminal status out-of-band.
package payment

import (
	"context"
	"errors"

	"github.com/jcmexdev/gameshop/internal/money"
)

// Method tags which gateway variant a charge went through.
type Method string

const (
	// MethodCard is the intent-based card/wallet gateway (Apple/Google Pay
	// ride on the same intent).
	MethodCard Method = "card"
	// MethodPayPal is the redirect-wallet gateway with a create-then-capture flow.
	MethodPayPal Method = "paypal"
)

// Valid reports whether m names a known gateway variant.
func (m Method) Valid() bool {
	return m == MethodCard || m == MethodPayPal
}

// Status is the normalised lifecycle state of a charge across both providers.
// Provider responses are mapped onto this set exhaustively; anything a
// provider returns that does not map is ErrUnexpectedStatus, never success.
type Status string

const (
	StatusCreated        Status = "created"
	StatusRequiresAction Status = "requires_action"
	StatusSucceeded      Status = "succeeded"
	StatusFailed         Status = "failed"
)

var (
	// ErrGatewayUnavailable means the provider credential/config is missing;
	// the gateway cannot be used at all.
	ErrGatewayUnavailable = errors.New("payment: gateway not configured")

	// ErrGatewayRejected is a definitive provider-side refusal (card declined,
	// insufficient funds). No charge occurred; retrying with another method is safe.
	ErrGatewayRejected = errors.New("payment: gateway rejected the charge")

	// ErrGatewayError is a network or provider fault. Retryable.
	ErrGatewayError = errors.New("payment: gateway error")

	// ErrGatewayAmbiguous means the charge outcome is unknown (network failure
	// mid-confirmation, provider still processing). The charge must NOT be
	// retried before the status is resolved via ChargeStatus.
	ErrGatewayAmbiguous = errors.New("payment: charge outcome unknown")

	// ErrUnexpectedStatus means the provider returned neither success nor a
	// recognized failure. Must never be treated as success.
	ErrUnexpectedStatus = errors.New("payment: unexpected gateway status")
)

// Metadata travels with the charge to the provider and comes back on webhooks.
// OrderID is the idempotency key both finalization paths share.
type Metadata struct {
	OrderID       string
	BuyerEmail    string
	ItemNames     []string
	CheckoutRefID string
}

// Charge is the gateway-issued handle for a pending payment.
type Charge struct {
	// Ref is the provider's opaque reference (intent id or order id).
	Ref string
	// ClientSecret is handed to the intent-based provider's browser SDK to
	// mount the confirmation surface. Empty for redirect wallets.
	ClientSecret string
	Status       Status
	Amount       money.Amount
}

// ConfirmResult is the outcome of FinalizeCharge.
type ConfirmResult struct {
	Status Status
	// PayerEmail is reported by redirect wallets on capture; may be empty.
	PayerEmail string
}

// Gateway is the polymorphic provider contract.
type Gateway interface {
	// CreateCharge opens a charge for the given amount.
	// Fails with money.ErrInvalidAmount before any provider call if the
	// amount is not positive, and ErrGatewayUnavailable if unconfigured.
	CreateCharge(ctx context.Context, amount money.Amount, meta Metadata) (*Charge, error)

	// FinalizeCharge drives the charge to a terminal state: confirmation for
	// intent gateways (may report StatusRequiresAction, a suspension), capture
	// for redirect wallets. Only StatusSucceeded is success.
	FinalizeCharge(ctx context.Context, ref string) (*ConfirmResult, error)

	// ChargeStatus re-resolves the charge state directly from the provider.
	// This is the trusted path after a step-up redirect: the browser's query
	// string is never believed.
	ChargeStatus(ctx context.Context, ref string) (Status, error)
}
