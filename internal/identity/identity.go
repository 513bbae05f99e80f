// Package identity consumes the external identity provider. Tokens are
// issued elsewhere; this package only resolves an opaque bearer token to the
// identity it represents.
package identity

import (
	"context"
	"errors"
)

// ErrInvalidToken is returned for absent, unknown or expired tokens.
var ErrInvalidToken = errors.New("identity: invalid token")

// Identity is the authenticated actor behind a request.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	// Admin grants access to the privileged order listing.
	Admin bool `json:"admin"`
}

// Verifier validates an opaque credential on each request.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}
