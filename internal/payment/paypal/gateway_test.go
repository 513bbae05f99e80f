package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/gameshop/internal/money"
	"github.com/jcmexdev/gameshop/internal/payment"
)

// providerStub fakes the wallet API: OAuth token endpoint plus a scripted
// orders handler.
func providerStub(t *testing.T, tokenCalls *atomic.Int32, orders http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		if tokenCalls != nil {
			tokenCalls.Add(1)
		}
		require.NotEmpty(t, r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok_1", "expires_in": 3600})
	})
	mux.HandleFunc("/v2/checkout/orders/", orders)
	mux.HandleFunc("/v2/checkout/orders", orders)
	return httptest.NewServer(mux)
}

func testConfig(baseURL string) Config {
	return Config{
		ClientID:     "client",
		ClientSecret: "secret",
		ReturnURL:    "https://shop.example.com/checkout/return",
		CancelURL:    "https://shop.example.com/checkout",
		BaseURL:      baseURL,
	}
}

func TestUnconfiguredGateway(t *testing.T) {
	g := New(Config{})
	assert.False(t, g.Configured())

	_, err := g.CreateCharge(context.Background(), money.New(4700, "usd"), payment.Metadata{})
	assert.ErrorIs(t, err, payment.ErrGatewayUnavailable)

	_, err = g.FinalizeCharge(context.Background(), "ord_1")
	assert.ErrorIs(t, err, payment.ErrGatewayUnavailable)
}

func TestCreateCharge(t *testing.T) {
	srv := providerStub(t, nil, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.NotEmpty(t, r.Header.Get("PayPal-Request-Id"))
		require.Equal(t, "Bearer tok_1", r.Header.Get("Authorization"))

		var body struct {
			Intent        string `json:"intent"`
			PurchaseUnits []struct {
				ReferenceID string `json:"reference_id"`
				Amount      struct {
					CurrencyCode string `json:"currency_code"`
					Value        string `json:"value"`
				} `json:"amount"`
			} `json:"purchase_units"`
			ApplicationContext map[string]string `json:"application_context"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CAPTURE", body.Intent)
		require.Len(t, body.PurchaseUnits, 1)
		assert.Equal(t, "ORD-AB12CD", body.PurchaseUnits[0].ReferenceID)
		// Minor units rendered as a decimal string only at the provider edge.
		assert.Equal(t, "USD", body.PurchaseUnits[0].Amount.CurrencyCode)
		assert.Equal(t, "47.00", body.PurchaseUnits[0].Amount.Value)
		assert.Equal(t, "NO_SHIPPING", body.ApplicationContext["shipping_preference"])

		_ = json.NewEncoder(w).Encode(map[string]string{"id": "ord_1", "status": "CREATED"})
	})
	defer srv.Close()

	g := New(testConfig(srv.URL))
	charge, err := g.CreateCharge(context.Background(), money.New(4700, "usd"), payment.Metadata{OrderID: "ORD-AB12CD"})
	require.NoError(t, err)
	assert.Equal(t, "ord_1", charge.Ref)
	assert.Equal(t, payment.StatusCreated, charge.Status)
	assert.Empty(t, charge.ClientSecret)
}

func TestAccessTokenIsCached(t *testing.T) {
	var tokenCalls atomic.Int32
	srv := providerStub(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "ord_1", "status": "CREATED"})
	})
	defer srv.Close()

	g := New(testConfig(srv.URL))
	for range 3 {
		_, err := g.CreateCharge(context.Background(), money.New(4700, "usd"), payment.Metadata{})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), tokenCalls.Load())
}

func TestFinalizeChargeCompleted(t *testing.T) {
	srv := providerStub(t, nil, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/checkout/orders/ord_1/capture", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "COMPLETED",
			"payer":  map[string]string{"email_address": "payer@example.com"},
		})
	})
	defer srv.Close()

	g := New(testConfig(srv.URL))
	res, err := g.FinalizeCharge(context.Background(), "ord_1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSucceeded, res.Status)
	assert.Equal(t, "payer@example.com", res.PayerEmail)
}

func TestFinalizeChargeNonCompletedIsNeverSuccess(t *testing.T) {
	for _, status := range []string{"APPROVED", "PENDING", "SAVED", ""} {
		srv := providerStub(t, nil, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
		})

		g := New(testConfig(srv.URL))
		_, err := g.FinalizeCharge(context.Background(), "ord_1")
		assert.ErrorIs(t, err, payment.ErrUnexpectedStatus, "status %q", status)
		srv.Close()
	}
}

func TestFinalizeChargeRejected(t *testing.T) {
	srv := providerStub(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"INSTRUMENT_DECLINED"}]}`))
	})
	defer srv.Close()

	g := New(testConfig(srv.URL))
	_, err := g.FinalizeCharge(context.Background(), "ord_1")
	assert.ErrorIs(t, err, payment.ErrGatewayRejected)
}

func TestChargeStatusMapping(t *testing.T) {
	tests := []struct {
		provider string
		want     payment.Status
		wantErr  error
	}{
		{provider: "COMPLETED", want: payment.StatusSucceeded},
		{provider: "CREATED", want: payment.StatusCreated},
		{provider: "SAVED", want: payment.StatusCreated},
		{provider: "PAYER_ACTION_REQUIRED", want: payment.StatusCreated},
		{provider: "APPROVED", want: payment.StatusRequiresAction},
		{provider: "VOIDED", want: payment.StatusFailed},
		{provider: "SOMETHING_NEW", wantErr: payment.ErrUnexpectedStatus},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			srv := providerStub(t, nil, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, http.MethodGet, r.Method)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": tt.provider})
			})
			defer srv.Close()

			g := New(testConfig(srv.URL))
			status, err := g.ChargeStatus(context.Background(), "ord_1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}
