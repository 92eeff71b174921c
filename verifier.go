package session

import (
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenVerifierFunc adapts a function into a TokenVerifier.
type TokenVerifierFunc func(token string) error

// Verify satisfies the TokenVerifier interface.
func (f TokenVerifierFunc) Verify(token string) error {
	if f == nil {
		return nil
	}
	return f(token)
}

// KeyfuncVerifier verifies token signatures and registered claims using
// a jwt.Keyfunc for key resolution.
type KeyfuncVerifier struct {
	keyFn jwt.Keyfunc
}

var _ TokenVerifier = (*KeyfuncVerifier)(nil)

// NewKeyfuncVerifier wraps an existing key resolver, e.g. a static HMAC
// key in tests or a pre-built JWKS.
func NewKeyfuncVerifier(fn jwt.Keyfunc) *KeyfuncVerifier {
	return &KeyfuncVerifier{keyFn: fn}
}

// NewJWKSVerifier fetches the backend's JWK Set and keeps it refreshed
// in the background.
func NewJWKSVerifier(jwksURL string) (*KeyfuncVerifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "unable to fetch JWK Set").
			WithTextCode(TextCodeNetworkError)
	}

	return NewKeyfuncVerifier(jwks.Keyfunc), nil
}

// Verify parses and validates the token, including signature and expiry.
func (v *KeyfuncVerifier) Verify(raw string) error {
	if v.keyFn == nil {
		return goerrors.New("verifier has no key resolver", goerrors.CategoryInternal)
	}

	token, err := jwt.Parse(raw, v.keyFn)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryAuth, "token verification failed").
			WithTextCode(TextCodeTokenRejected).
			WithCode(goerrors.CodeUnauthorized)
	}

	if !token.Valid {
		return ErrTokenRejected
	}

	return nil
}
