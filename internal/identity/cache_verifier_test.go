package identity

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/gameshop/internal/pkg/cache"
)

func TestCacheVerifier(t *testing.T) {
	mr := miniredis.RunT(t)
	c := cache.NewRedisCache(mr.Addr(), "gameshop")
	v := NewCacheVerifier(c)
	ctx := context.Background()

	stored, err := json.Marshal(&Identity{ID: "buyer-1", Email: "buyer@example.com", Name: "Buyer"})
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, c.GenerateKey("session", "tok-1"), string(stored), time.Hour))

	id, err := v.Verify(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "buyer-1", id.ID)
	assert.Equal(t, "buyer@example.com", id.Email)
	assert.False(t, id.Admin)

	_, err = v.Verify(ctx, "unknown-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCacheVerifierRejectsCorruptRecord(t *testing.T) {
	mr := miniredis.RunT(t)
	c := cache.NewRedisCache(mr.Addr(), "gameshop")
	v := NewCacheVerifier(c)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, c.GenerateKey("session", "tok-bad"), "{not json", time.Hour))
	_, err := v.Verify(ctx, "tok-bad")
	assert.Error(t, err)

	// A record without an id is not a usable identity.
	require.NoError(t, c.Set(ctx, c.GenerateKey("session", "tok-empty"), `{"email":"x@y.z"}`, time.Hour))
	_, err = v.Verify(ctx, "tok-empty")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestStaticVerifier(t *testing.T) {
	v := StaticVerifier{"tok": {ID: "u1", Admin: true}}

	id, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, id.Admin)

	_, err = v.Verify(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
