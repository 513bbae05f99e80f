// Package paypal adapts the redirect-wallet provider to the payment.Gateway
// contract: create an order, let the buyer approve it in the provider's UI,
// then capture it server-side. Only a capture reporting COMPLETED is success;
// "approved but not captured" never finalizes anything.
package paypal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jcmexdev/gameshop/internal/money"
	"github.com/jcmexdev/gameshop/internal/payment"
)

const (
	sandboxBaseURL    = "https://api-m.sandbox.paypal.com"
	productionBaseURL = "https://api-m.paypal.com"

	// tokenExpirySlack forces a refresh this long before the provider says
	// the token expires, so in-flight requests never race the expiry.
	tokenExpirySlack = time.Minute
)

// Config carries the provider credentials and environment selection.
type Config struct {
	ClientID     string
	ClientSecret string
	// Live selects the production API host; default is sandbox.
	Live bool
	// ReturnURL / CancelURL are where the provider sends the buyer back.
	ReturnURL string
	CancelURL string
	// BaseURL overrides the API host (tests).
	BaseURL string
}

// Gateway is the redirect-wallet payment.Gateway implementation.
type Gateway struct {
	cfg     Config
	baseURL string
	http    *http.Client

	mu      sync.Mutex
	token   string
	tokenAt time.Time // expiry deadline of the cached token
}

// New builds the gateway. Missing credentials are allowed; every call then
// fails with payment.ErrGatewayUnavailable.
func New(cfg Config) *Gateway {
	base := cfg.BaseURL
	if base == "" {
		if cfg.Live {
			base = productionBaseURL
		} else {
			base = sandboxBaseURL
		}
	}
	return &Gateway{
		cfg:     cfg,
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: 20 * time.Second},
	}
}

// Configured reports whether credentials are present (health endpoint flag).
func (g *Gateway) Configured() bool {
	return g.cfg.ClientID != "" && g.cfg.ClientSecret != ""
}

// accessToken returns a cached OAuth token, fetching a fresh one when the
// cached token is absent or within the expiry slack.
func (g *Gateway) accessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.token != "" && time.Until(g.tokenAt) > tokenExpirySlack {
		return g.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/v1/oauth2/token", strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", payment.ErrGatewayError, err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(g.cfg.ClientID + ":" + g.cfg.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request: %v", payment.ErrGatewayError, err)
	}
	defer resp.Body.Close()

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.AccessToken == "" {
		return "", fmt.Errorf("%w: token response missing access_token", payment.ErrGatewayError)
	}

	g.token = body.AccessToken
	g.tokenAt = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return g.token, nil
}

// CreateCharge creates a provider order in CAPTURE intent mode.
func (g *Gateway) CreateCharge(ctx context.Context, amount money.Amount, meta payment.Metadata) (*payment.Charge, error) {
	if err := amount.Validate(); err != nil {
		return nil, err
	}
	if !g.Configured() {
		return nil, payment.ErrGatewayUnavailable
	}

	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	reqBody := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": meta.OrderID,
			"description":  "gameshop — gaming account",
			"amount": map[string]string{
				"currency_code": strings.ToUpper(amount.Currency),
				"value":         amount.Decimal(),
			},
		}},
		"application_context": map[string]string{
			"brand_name":          "gameshop",
			"landing_page":        "LOGIN",
			"user_action":         "PAY_NOW",
			"shipping_preference": "NO_SHIPPING",
			"return_url":          g.cfg.ReturnURL,
			"cancel_url":          g.cfg.CancelURL,
		},
	}

	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	headers := map[string]string{
		"Authorization": "Bearer " + token,
		// Provider-side request idempotency: retried creates reuse the order.
		"PayPal-Request-Id": "gameshop-" + uuid.NewString(),
	}
	if err := g.doJSON(ctx, http.MethodPost, "/v2/checkout/orders", headers, reqBody, &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, fmt.Errorf("%w: order creation returned no id", payment.ErrUnexpectedStatus)
	}

	return &payment.Charge{
		Ref:    created.ID,
		Status: payment.StatusCreated,
		Amount: amount,
	}, nil
}

// FinalizeCharge captures a buyer-approved order. Anything other than the
// provider's COMPLETED sentinel is not success.
func (g *Gateway) FinalizeCharge(ctx context.Context, ref string) (*payment.ConfirmResult, error) {
	if !g.Configured() {
		return nil, payment.ErrGatewayUnavailable
	}
	if ref == "" {
		return nil, fmt.Errorf("%w: empty order reference", payment.ErrGatewayError)
	}

	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var captured struct {
		Status string `json:"status"`
		Payer  *struct {
			EmailAddress string `json:"email_address"`
		} `json:"payer"`
	}
	headers := map[string]string{"Authorization": "Bearer " + token}
	path := "/v2/checkout/orders/" + url.PathEscape(ref) + "/capture"
	if err := g.doJSON(ctx, http.MethodPost, path, headers, nil, &captured); err != nil {
		return nil, err
	}

	if captured.Status != "COMPLETED" {
		return nil, fmt.Errorf("%w: capture returned %q", payment.ErrUnexpectedStatus, captured.Status)
	}

	res := &payment.ConfirmResult{Status: payment.StatusSucceeded}
	if captured.Payer != nil {
		res.PayerEmail = captured.Payer.EmailAddress
	}
	return res, nil
}

// ChargeStatus reads the order state without capturing it.
func (g *Gateway) ChargeStatus(ctx context.Context, ref string) (payment.Status, error) {
	if !g.Configured() {
		return "", payment.ErrGatewayUnavailable
	}
	token, err := g.accessToken(ctx)
	if err != nil {
		return "", err
	}

	var ord struct {
		Status string `json:"status"`
	}
	headers := map[string]string{"Authorization": "Bearer " + token}
	if err := g.doJSON(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(ref), headers, nil, &ord); err != nil {
		return "", err
	}

	switch ord.Status {
	case "COMPLETED":
		return payment.StatusSucceeded, nil
	case "CREATED", "SAVED", "PAYER_ACTION_REQUIRED":
		return payment.StatusCreated, nil
	case "APPROVED":
		// Approved is not captured; the charge has not happened yet.
		return payment.StatusRequiresAction, nil
	case "VOIDED":
		return payment.StatusFailed, nil
	default:
		return "", fmt.Errorf("%w: %q", payment.ErrUnexpectedStatus, ord.Status)
	}
}

func (g *Gateway) doJSON(ctx context.Context, method, path string, headers map[string]string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", payment.ErrGatewayError, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", payment.ErrGatewayError, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
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
	if resp.StatusCode == http.StatusUnprocessableEntity {
		return fmt.Errorf("%w: HTTP 422: %s", payment.ErrGatewayRejected, truncate(raw))
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: HTTP %d: %s", payment.ErrGatewayError, resp.StatusCode, truncate(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", payment.ErrGatewayError, err)
	}
	return nil
}

func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

var _ payment.Gateway = (*Gateway)(nil)
