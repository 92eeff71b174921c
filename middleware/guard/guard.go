// Package guard wires route-level authorization decisions into go-router
// handler chains. The decision itself lives in the parent package as a
// pure function; this middleware evaluates it against a live store
// snapshot on every request.
package guard

import (
	"errors"
	"net/http"
	"time"

	"github.com/goliatone/go-router"

	session "github.com/coursekit/go-session"
)

const defaultContextKey = "session"

// ErrMissingStore is returned while building a middleware without a
// session source.
var ErrMissingStore = errors.New("guard: missing session store")

// DecisionListener is invoked after a decision is made but before it is
// acted on. Use it to emit metrics or audit redirects.
type DecisionListener func(ctx router.Context, decision session.Decision)

type Config struct {
	// Filter skips the guard entirely when it returns true.
	Filter func(router.Context) bool

	// Store supplies the session snapshot. Required.
	Store session.SessionReader

	// RequiredRole declares the route's role requirement; empty admits
	// any authenticated principal.
	RequiredRole session.Role

	// LoginRoute receives unauthenticated visitors. Defaults to /login.
	LoginRoute string

	// HomeRoute receives authenticated principals whose role does not
	// match. Defaults to /.
	HomeRoute string

	// RejectedRouteKey is the cookie remembering the denied target so a
	// later login can resume there. Defaults to rejected_route.
	RejectedRouteKey string

	// ContextKey is where the snapshot is stored for downstream
	// handlers when the route renders. Defaults to session.
	ContextKey string

	// DecisionListeners run for every evaluated request.
	DecisionListeners []DecisionListener
}

// New builds the guard middleware.
func New(config ...Config) router.MiddlewareFunc {
	cfg := configDefault(config...)

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			snapshot := cfg.Store.Snapshot()
			decision := session.EvaluateRoute(snapshot, cfg.RequiredRole)

			for _, listener := range cfg.DecisionListeners {
				listener(ctx, decision)
			}

			switch decision {
			case session.DecisionRender:
				ctx.Locals(cfg.ContextKey, snapshot)
				return ctx.Next()
			case session.DecisionRedirectLogin:
				rememberRejectedRoute(ctx, cfg.RejectedRouteKey)
				return redirect(ctx, cfg.LoginRoute)
			default:
				return redirect(ctx, cfg.HomeRoute)
			}
		}
	}
}

// FromContext retrieves the snapshot a rendering guard stored for the
// request, using the same key configured on the middleware.
func FromContext(ctx router.Context, key ...string) (session.Session, bool) {
	k := defaultContextKey
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}

	snapshot, ok := ctx.Locals(k).(session.Session)
	return snapshot, ok
}

func configDefault(config ...Config) Config {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Store == nil {
		panic(ErrMissingStore)
	}

	if cfg.LoginRoute == "" {
		cfg.LoginRoute = "/login"
	}

	if cfg.HomeRoute == "" {
		cfg.HomeRoute = "/"
	}

	if cfg.RejectedRouteKey == "" {
		cfg.RejectedRouteKey = "rejected_route"
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = defaultContextKey
	}

	return cfg
}

func rememberRejectedRoute(ctx router.Context, key string) {
	ctx.Cookie(&router.Cookie{
		Name:     key,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func redirect(ctx router.Context, route string) error {
	statusCode := http.StatusSeeOther
	if ctx.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return ctx.Redirect(route, statusCode)
}
