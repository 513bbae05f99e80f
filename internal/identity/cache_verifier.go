package identity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jcmexdev/gameshop/internal/pkg/cache"
)

// CacheVerifier resolves tokens against the session records the identity
// provider writes into Redis. The record is the JSON-encoded Identity stored
// under session:<token>.
type CacheVerifier struct {
	cache cache.Cache
}

// NewCacheVerifier constructs a CacheVerifier on the shared cache.
func NewCacheVerifier(c cache.Cache) *CacheVerifier {
	return &CacheVerifier{cache: c}
}

func (v *CacheVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	raw, err := v.cache.Get(ctx, v.cache.GenerateKey("session", token))
	if err != nil {
		return nil, fmt.Errorf("identity: session lookup: %w", err)
	}
	if raw == "" {
		return nil, ErrInvalidToken
	}

	var id Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return nil, fmt.Errorf("identity: corrupt session record: %w", err)
	}
	if id.ID == "" {
		return nil, ErrInvalidToken
	}
	return &id, nil
}

// StaticVerifier maps fixed tokens to identities. Development and tests only.
type StaticVerifier map[string]*Identity

func (v StaticVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	id, ok := v[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	cp := *id
	return &cp, nil
}

var (
	_ Verifier = (*CacheVerifier)(nil)
	_ Verifier = (StaticVerifier)(nil)
)
