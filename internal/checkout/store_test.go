package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/gameshop/internal/orders"
	"github.com/jcmexdev/gameshop/internal/payment"
	"github.com/jcmexdev/gameshop/internal/pkg/cache"
)

func sampleSession() *Session {
	now := time.Now().UTC().Truncate(time.Second)
	return &Session{
		ID:         "sess-1",
		BuyerID:    "buyer-1",
		BuyerEmail: "buyer@example.com",
		Cart:       []orders.LineItem{{Name: "Account A", UnitPrice: 4700, Quantity: 1}},
		Currency:   "usd",
		State:      StateAwaitingGateway,
		OrderID:    "ORD-AB12CD",
		Attempt: &PaymentAttempt{
			Method:       payment.MethodCard,
			GatewayRef:   "pi_1",
			ClientSecret: "pi_1_secret",
			Status:       payment.StatusCreated,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisStore(cache.NewRedisCache(mr.Addr(), "gameshop"))
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	want := sampleSession()
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, want.State, got.State)
	assert.Equal(t, want.OrderID, got.OrderID)
	require.NotNil(t, got.Attempt)
	assert.Equal(t, want.Attempt.GatewayRef, got.Attempt.GatewayRef)
	assert.Equal(t, want.Cart, got.Cart)

	require.NoError(t, store.Clear(ctx, "sess-1"))
	_, err = store.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStoreSetsTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	c := cache.NewRedisCache(mr.Addr(), "gameshop")
	store := NewRedisStore(c)

	require.NoError(t, store.Save(context.Background(), sampleSession()))

	key := c.GenerateKey("checkout", "sess-1")
	ttl := mr.TTL(key)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, sessionTTL)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	want := sampleSession()
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, want.OrderID, got.OrderID)

	// The store hands back copies; mutating one must not leak into the other.
	got.State = StateComplete
	again, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingGateway, again.State)

	require.NoError(t, store.Clear(ctx, "sess-1"))
	_, err = store.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
