package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/gameshop/internal/money"
	"github.com/jcmexdev/gameshop/internal/payment"
)

func TestCreateChargeValidatesAmountBeforeAnyCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer srv.Close()

	g := New("sk_test_123", WithBaseURL(srv.URL))
	_, err := g.CreateCharge(context.Background(), money.New(0, "usd"), payment.Metadata{})
	assert.ErrorIs(t, err, money.ErrInvalidAmount)
	assert.False(t, called, "no provider call may happen for an invalid amount")
}

func TestCreateChargeUnconfigured(t *testing.T) {
	g := New("")
	assert.False(t, g.Configured())

	_, err := g.CreateCharge(context.Background(), money.New(4700, "usd"), payment.Metadata{})
	assert.ErrorIs(t, err, payment.ErrGatewayUnavailable)
}

func TestCreateCharge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/payment_intents", r.URL.Path)
		require.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "4700", r.PostForm.Get("amount"))
		assert.Equal(t, "usd", r.PostForm.Get("currency"))
		assert.Equal(t, "true", r.PostForm.Get("automatic_payment_methods[enabled]"))
		assert.Equal(t, "buyer@example.com", r.PostForm.Get("receipt_email"))
		assert.Equal(t, "ORD-AB12CD", r.PostForm.Get("metadata[order_id]"))
		assert.Equal(t, "sess-1", r.PostForm.Get("metadata[checkout_id]"))

		var names []string
		require.NoError(t, json.Unmarshal([]byte(r.PostForm.Get("metadata[items]")), &names))
		assert.Equal(t, []string{"Account A"}, names)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "pi_1",
			"client_secret": "pi_1_secret",
			"status":        "requires_payment_method",
		})
	}))
	defer srv.Close()

	g := New("sk_test_123", WithBaseURL(srv.URL))
	charge, err := g.CreateCharge(context.Background(), money.New(4700, "usd"), payment.Metadata{
		OrderID:       "ORD-AB12CD",
		BuyerEmail:    "buyer@example.com",
		ItemNames:     []string{"Account A"},
		CheckoutRefID: "sess-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_1", charge.Ref)
	assert.Equal(t, "pi_1_secret", charge.ClientSecret)
	assert.Equal(t, payment.StatusCreated, charge.Status)
}

func TestCreateChargeCapsMetadataItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		var names []string
		require.NoError(t, json.Unmarshal([]byte(r.PostForm.Get("metadata[items]")), &names))
		assert.Len(t, names, maxMetadataItems)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "pi_1", "client_secret": "s"})
	}))
	defer srv.Close()

	many := make([]string, 9)
	for i := range many {
		many[i] = fmt.Sprintf("Account %d", i)
	}

	g := New("sk_test_123", WithBaseURL(srv.URL))
	_, err := g.CreateCharge(context.Background(), money.New(4700, "usd"), payment.Metadata{ItemNames: many})
	require.NoError(t, err)
}

func TestCreateChargeCardError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"type": "card_error", "code": "card_declined", "message": "Your card was declined."},
		})
	}))
	defer srv.Close()

	g := New("sk_test_123", WithBaseURL(srv.URL))
	_, err := g.CreateCharge(context.Background(), money.New(4700, "usd"), payment.Metadata{})
	assert.ErrorIs(t, err, payment.ErrGatewayRejected)
}

func TestChargeStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		response   map[string]any
		wantStatus payment.Status
		wantErr    error
	}{
		{
			name:       "succeeded",
			response:   map[string]any{"status": "succeeded"},
			wantStatus: payment.StatusSucceeded,
		},
		{
			name:       "requires_action",
			response:   map[string]any{"status": "requires_action"},
			wantStatus: payment.StatusRequiresAction,
		},
		{
			name:       "requires_confirmation",
			response:   map[string]any{"status": "requires_confirmation"},
			wantStatus: payment.StatusRequiresAction,
		},
		{
			name:       "unconfirmed yet",
			response:   map[string]any{"status": "requires_payment_method"},
			wantStatus: payment.StatusCreated,
		},
		{
			name: "declined and bounced back",
			response: map[string]any{
				"status":             "requires_payment_method",
				"last_payment_error": map[string]string{"message": "card declined"},
			},
			wantErr: payment.ErrGatewayRejected,
		},
		{
			name:     "processing is ambiguous",
			response: map[string]any{"status": "processing"},
			wantErr:  payment.ErrGatewayAmbiguous,
		},
		{
			name:       "canceled",
			response:   map[string]any{"status": "canceled"},
			wantStatus: payment.StatusFailed,
		},
		{
			name:     "unknown status is never success",
			response: map[string]any{"status": "something_new"},
			wantErr:  payment.ErrUnexpectedStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/v1/payment_intents/pi_1", r.URL.Path)
				_ = json.NewEncoder(w).Encode(tt.response)
			}))
			defer srv.Close()

			g := New("sk_test_123", WithBaseURL(srv.URL))
			status, err := g.ChargeStatus(context.Background(), "pi_1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestChargeStatusEmptyRef(t *testing.T) {
	g := New("sk_test_123")
	_, err := g.ChargeStatus(context.Background(), "")
	assert.ErrorIs(t, err, payment.ErrGatewayError)
}

func TestGatewayErrorOnServerFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := New("sk_test_123", WithBaseURL(srv.URL))
	_, err := g.ChargeStatus(context.Background(), "pi_1")
	assert.ErrorIs(t, err, payment.ErrGatewayError)
}
