package session

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Authenticator holds the operations that settle against the remote
// marketplace backend and drive Store transitions.
type Authenticator interface {
	Login(ctx context.Context, payload LoginPayload) error
	RegisterStudent(ctx context.Context, payload RegistrationPayload) error
	FetchProfile(ctx context.Context) error
	Logout()
}

// SessionReader exposes the synchronous read side of a Store.
type SessionReader interface {
	Snapshot() Session
}

// LoginPayload is the credential input for Login
type LoginPayload interface {
	GetEmail() string
	GetPassword() string
}

// Config holds gateway and guard options
type Config interface {
	GetBaseURL() string
	GetAuthScheme() string
	GetRequestTimeout() int
	GetLoginRoute() string
	GetHomeRoute() string
	GetRejectedRouteKey() string
}

// TokenVerifier verifies a raw bearer token without tying callers to a
// specific signing or key-distribution scheme.
type TokenVerifier interface {
	Verify(token string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SESSION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SESSION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SESSION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SESSION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
