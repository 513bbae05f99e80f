// Package stripe adapts the intent-based card/wallet provider to the
// payment.Gateway contract. The browser SDK confirms the intent with the
// client secret; this side only creates intents and resolves their status
// directly against the provider API, which is the only status source the
// orchestrator trusts after a 3-D Secure redirect.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jcmexdev/gameshop/internal/money"
	"github.com/jcmexdev/gameshop/internal/payment"
)

const defaultBaseURL = "https://api.stripe.com"

// maxMetadataItems caps how many item names are stamped into intent metadata.
const maxMetadataItems = 5

// Gateway is the intent-based payment.Gateway implementation.
type Gateway struct {
	secretKey string
	baseURL   string
	http      *http.Client
}

// Option customises the Gateway.
type Option func(*Gateway)

// WithBaseURL points the gateway at a different API host (tests).
func WithBaseURL(u string) Option {
	return func(g *Gateway) { g.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.http = c }
}

// New builds the gateway. An empty secret key is allowed; every call will
// then fail with payment.ErrGatewayUnavailable so the rest of the system can
// boot without card payments configured.
func New(secretKey string, opts ...Option) *Gateway {
	g := &Gateway{
		secretKey: secretKey,
		baseURL:   defaultBaseURL,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Configured reports whether a secret key is present (health endpoint flag).
func (g *Gateway) Configured() bool { return g.secretKey != "" }

// intent is the subset of the provider's PaymentIntent object we read.
type intent struct {
	ID               string `json:"id"`
	ClientSecret     string `json:"client_secret"`
	Status           string `json:"status"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateCharge creates a PaymentIntent scoped to the cart total.
func (g *Gateway) CreateCharge(ctx context.Context, amount money.Amount, meta payment.Metadata) (*payment.Charge, error) {
	if err := amount.Validate(); err != nil {
		return nil, err
	}
	if !g.Configured() {
		return nil, payment.ErrGatewayUnavailable
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount.Minor, 10))
	form.Set("currency", amount.Currency)
	form.Set("automatic_payment_methods[enabled]", "true")
	if meta.BuyerEmail != "" {
		form.Set("receipt_email", meta.BuyerEmail)
	}
	form.Set("metadata[shop]", "gameshop")
	form.Set("metadata[order_id]", meta.OrderID)
	if meta.CheckoutRefID != "" {
		form.Set("metadata[checkout_id]", meta.CheckoutRefID)
	}
	names := meta.ItemNames
	if len(names) > maxMetadataItems {
		names = names[:maxMetadataItems]
	}
	if b, err := json.Marshal(names); err == nil {
		form.Set("metadata[items]", string(b))
	}

	var pi intent
	if err := g.do(ctx, http.MethodPost, "/v1/payment_intents", form, &pi); err != nil {
		return nil, err
	}

	return &payment.Charge{
		Ref:          pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       payment.StatusCreated,
		Amount:       amount,
	}, nil
}

// FinalizeCharge resolves the intent's state. The actual confirmation is
// performed by the provider's browser SDK; from the server's perspective
// "finalize" means fetching the authoritative status.
func (g *Gateway) FinalizeCharge(ctx context.Context, ref string) (*payment.ConfirmResult, error) {
	status, err := g.ChargeStatus(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &payment.ConfirmResult{Status: status}, nil
}

// ChargeStatus retrieves the intent and maps its provider status onto the
// normalised set. Unknown provider statuses are ErrUnexpectedStatus.
func (g *Gateway) ChargeStatus(ctx context.Context, ref string) (payment.Status, error) {
	if !g.Configured() {
		return "", payment.ErrGatewayUnavailable
	}
	if ref == "" {
		return "", fmt.Errorf("%w: empty intent reference", payment.ErrGatewayError)
	}

	var pi intent
	if err := g.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(ref), nil, &pi); err != nil {
		return "", err
	}

	switch pi.Status {
	case "succeeded":
		return payment.StatusSucceeded, nil
	case "requires_action", "requires_confirmation":
		return payment.StatusRequiresAction, nil
	case "requires_payment_method":
		// The intent bounces back here after a decline. With an attached
		// payment error it is a definitive rejection; without one the intent
		// is simply unconfirmed yet.
		if pi.LastPaymentError != nil {
			return "", fmt.Errorf("%w: %s", payment.ErrGatewayRejected, pi.LastPaymentError.Message)
		}
		return payment.StatusCreated, nil
	case "processing":
		return "", payment.ErrGatewayAmbiguous
	case "canceled":
		return payment.StatusFailed, nil
	default:
		return "", fmt.Errorf("%w: %q", payment.ErrUnexpectedStatus, pi.Status)
	}
}

func (g *Gateway) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", payment.ErrGatewayError, err)
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", payment.ErrGatewayError, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", payment.ErrGatewayError, err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		_ = json.Unmarshal(raw, &apiErr)
		if apiErr.Error.Type == "card_error" {
			return fmt.Errorf("%w: %s", payment.ErrGatewayRejected, apiErr.Error.Message)
		}
		return fmt.Errorf("%w: HTTP %d: %s", payment.ErrGatewayError, resp.StatusCode, apiErr.Error.Message)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", payment.ErrGatewayError, err)
	}
	return nil
}

var _ payment.Gateway = (*Gateway)(nil)
