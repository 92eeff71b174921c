package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenInfo is the decoded, UNVERIFIED view of a bearer token issued by
// the backend. It exists for UI hints (expiry warnings, role display);
// authentication decisions always come from token presence plus the
// backend's acceptance of it, never from local claim inspection.
type TokenInfo struct {
	Subject   string
	UserID    string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token carries an expiry in the past. A
// token without an expiry claim never reports expired.
func (t TokenInfo) Expired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return t.ExpiresAt.Before(now)
}

// ExpiresWithin reports whether the token expires inside d from now.
func (t TokenInfo) ExpiresWithin(now time.Time, d time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return t.ExpiresAt.Before(now.Add(d))
}

// InspectToken decodes the claims of a JWT bearer token without
// verifying its signature.
func InspectToken(raw string) (*TokenInfo, error) {
	parser := jwt.NewParser()

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "unable to decode token claims").
			WithTextCode(TextCodeTokenRejected)
	}

	info := &TokenInfo{}

	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
		info.UserID = sub
	}

	if uid, ok := claims["uid"].(string); ok && uid != "" {
		info.UserID = uid
	}

	if role, ok := claims["role"].(string); ok {
		info.Role = Role(role)
	}

	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}

	return info, nil
}
