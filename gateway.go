package session

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Gateway performs exactly one network operation per call and maps its
// settlement deterministically onto Store transitions. Operations never
// panic past the gateway boundary: callers always receive a settled
// error (nil on success) and the same outcome is visible in the store.
type Gateway struct {
	store      *Store
	api        *transport
	logger     Logger
	sink       ActivitySink
	verifier   TokenVerifier
	autoLogout bool

	// generation implements the single-flight guard: each mutating
	// operation captures an id at start and a settlement whose id is no
	// longer current leaves the store untouched.
	generation atomic.Uint64
}

var _ Authenticator = (*Gateway)(nil)

// NewGateway returns a Gateway bound to store and the backend described
// by cfg.
func NewGateway(store *Store, cfg Config) *Gateway {
	logger := defLogger{}

	return &Gateway{
		store:  store,
		api:    newTransport(cfg, logger),
		logger: logger,
		sink:   noopActivitySink{},
	}
}

func (g *Gateway) WithLogger(logger Logger) *Gateway {
	if logger != nil {
		g.logger = logger
		g.api.logger = logger
	}
	return g
}

// WithHTTPClient overrides the underlying client, e.g. to add a custom
// transport or to point tests at an httptest server.
func (g *Gateway) WithHTTPClient(client *http.Client) *Gateway {
	if client != nil {
		g.api.client = client
	}
	return g
}

// WithActivitySink configures an ActivitySink for emitting settlement events.
func (g *Gateway) WithActivitySink(sink ActivitySink) *Gateway {
	g.sink = normalizeActivitySink(sink)
	return g
}

// WithTokenVerifier verifies tokens received at login before they are
// committed to the store. Hydrated tokens stay unverified: validity is
// discovered lazily on the first authenticated call.
func (g *Gateway) WithTokenVerifier(verifier TokenVerifier) *Gateway {
	g.verifier = verifier
	return g
}

// WithAutoLogoutOnUnauthorized makes a 401 on profile refresh clear the
// session instead of leaving the stale token in place.
func (g *Gateway) WithAutoLogoutOnUnauthorized(enabled bool) *Gateway {
	g.autoLogout = enabled
	return g
}

// Session returns the current store snapshot.
func (g *Gateway) Session() Session {
	return g.store.Snapshot()
}

// Login POSTs credentials to the session-creation endpoint. A 2xx with a
// token installs the principal; any other settlement records a failure
// and leaves an existing session untouched. No automatic retry.
func (g *Gateway) Login(ctx context.Context, payload LoginPayload) error {
	if v, ok := payload.(interface{ Validate() error }); ok {
		// Rejected input never reaches the network or the store.
		if err := v.Validate(); err != nil {
			return wrapValidationError(err)
		}
	}

	email := payload.GetEmail()
	gen := g.begin()

	status, body, err := g.api.postJSON(ctx, loginPath, map[string]string{
		"email":    email,
		"password": payload.GetPassword(),
	})
	if err != nil {
		return g.settleFailure(ctx, gen, ActivityEventLoginFailure, "", email, err)
	}

	if !isSuccess(status) {
		failure := apiFailure(status, body, TextCodeInvalidCredentials)
		return g.settleFailure(ctx, gen, ActivityEventLoginFailure, "", email, failure)
	}

	var envelope loginEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Token == "" || envelope.User == nil {
		g.logger.Error("login response malformed", "status", status)
		failure := goerrors.New(GenericFailureMessage, goerrors.CategoryOperation).
			WithTextCode(TextCodeUpstreamError)
		return g.settleFailure(ctx, gen, ActivityEventLoginFailure, "", email, failure)
	}

	if g.verifier != nil {
		if err := g.verifier.Verify(envelope.Token); err != nil {
			failure := goerrors.Wrap(err, goerrors.CategoryAuth, "issued token failed verification").
				WithTextCode(TextCodeTokenRejected).
				WithCode(goerrors.CodeUnauthorized)
			return g.settleFailure(ctx, gen, ActivityEventLoginFailure, envelope.User.ID, email, failure)
		}
	}

	// A superseded settlement neither mutates the store nor reaches the
	// audit stream: the session it describes was never installed.
	if !g.stale(gen) {
		g.store.ApplySuccess(envelope.User, envelope.Token, envelope.Message)
		g.emit(ctx, ActivityEventLoginSuccess, envelope.User.ID, email, nil)
	}

	return nil
}

// RegisterStudent POSTs a multipart payload of profile fields plus an
// optional image. Success does not authenticate: the caller navigates to
// login or email verification afterwards.
func (g *Gateway) RegisterStudent(ctx context.Context, payload RegistrationPayload) error {
	if err := payload.Validate(); err != nil {
		return wrapValidationError(err)
	}

	gen := g.begin()

	fields := map[string]string{
		"first_name":   payload.FirstName,
		"last_name":    payload.LastName,
		"email":        payload.Email,
		"phone_number": payload.Phone,
		"password":     payload.Password,
	}

	status, body, err := g.api.postMultipart(ctx, registerPath, fields, payload.Image)
	if err != nil {
		return g.settleFailure(ctx, gen, ActivityEventRegisterFailure, "", payload.Email, err)
	}

	if !isSuccess(status) {
		failure := apiFailure(status, body, TextCodeInvalidCredentials)
		return g.settleFailure(ctx, gen, ActivityEventRegisterFailure, "", payload.Email, failure)
	}

	message := decodeMessage(body)
	if message == "" {
		message = "Registration complete"
	}

	if !g.stale(gen) {
		g.store.Complete(message)
		g.emit(ctx, ActivityEventRegisterSuccess, "", payload.Email, nil)
	}

	return nil
}

// FetchProfile refreshes the principal behind the stored token. With no
// token present it fails immediately without a network call. A rejected
// token records a failure; the session is cleared only when auto-logout
// is enabled.
func (g *Gateway) FetchProfile(ctx context.Context) error {
	snapshot := g.store.Snapshot()
	if snapshot.Token == "" {
		g.store.ApplyFailure(ErrNoToken)
		return ErrNoToken
	}

	gen := g.begin()

	status, body, err := g.api.get(ctx, profilePath, snapshot.Token)
	if err != nil {
		return g.settleFailure(ctx, gen, ActivityEventProfileRefreshFailure, userID(snapshot.User), "", err)
	}

	if !isSuccess(status) {
		failure := apiFailure(status, body, TextCodeTokenRejected)

		if g.autoLogout && (status == http.StatusUnauthorized || status == http.StatusForbidden) {
			if !g.stale(gen) {
				g.store.Clear()
			}
			g.emit(ctx, ActivityEventProfileRefreshFailure, userID(snapshot.User), "", map[string]any{
				"error":       failure.Error(),
				"auto_logout": true,
			})
			return failure
		}

		return g.settleFailure(ctx, gen, ActivityEventProfileRefreshFailure, userID(snapshot.User), "", failure)
	}

	var envelope profileEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.User == nil {
		g.logger.Error("profile response malformed", "status", status)
		failure := goerrors.New(GenericFailureMessage, goerrors.CategoryOperation).
			WithTextCode(TextCodeUpstreamError)
		return g.settleFailure(ctx, gen, ActivityEventProfileRefreshFailure, userID(snapshot.User), "", failure)
	}

	if !g.stale(gen) {
		g.store.ReplaceUser(envelope.User, "")
		g.emit(ctx, ActivityEventProfileRefreshed, envelope.User.ID, envelope.User.Email, nil)
	}

	return nil
}

// Logout is purely local: it clears the store and persistence, issues no
// network call, and always succeeds.
func (g *Gateway) Logout() {
	snapshot := g.store.Snapshot()
	g.store.Clear()
	g.emit(context.Background(), ActivityEventLogout, userID(snapshot.User), "", nil)
}

func (g *Gateway) begin() uint64 {
	id := g.generation.Add(1)
	g.store.BeginRequest()
	return id
}

func (g *Gateway) stale(id uint64) bool {
	return g.generation.Load() != id
}

func (g *Gateway) settleFailure(ctx context.Context, gen uint64, event ActivityEventType, uid, email string, err error) error {
	if !g.stale(gen) {
		g.store.ApplyFailure(err)
	} else {
		g.logger.Debug("discarding stale settlement", "event", string(event))
	}

	g.emit(ctx, event, uid, email, map[string]any{"error": err.Error()})
	return err
}

func (g *Gateway) emit(ctx context.Context, eventType ActivityEventType, uid, email string, metadata map[string]any) {
	sink := normalizeActivitySink(g.sink)
	event := ActivityEvent{
		EventType:     eventType,
		CorrelationID: uuid.NewString(),
		UserID:        uid,
		Email:         email,
		Metadata:      metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		g.logger.Warn("activity sink record error: %v", err)
	}
}

func userID(u *User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
