package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	session "github.com/coursekit/go-session"
)

func loginBackend(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *session.Store, *session.Gateway) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := session.NewStore()
	gateway := session.NewGateway(store, newMockConfig(server.URL))

	return server, store, gateway
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, payload any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(t, json.NewEncoder(w).Encode(payload))
}

func TestGatewayLoginSuccess(t *testing.T) {
	sink := &recordingSink{}

	_, store, gateway := loginBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/users/login", r.URL.Path)

		var creds map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "grace@school.edu", creds["email"])
		assert.Equal(t, "correct-horse", creds["password"])

		writeJSON(t, w, http.StatusOK, map[string]any{
			"token":   "issued-token",
			"user":    professorFixture(),
			"message": "Welcome back",
		})
	})
	gateway.WithActivitySink(sink)

	err := gateway.Login(context.Background(), session.LoginRequest{
		Email:    "grace@school.edu",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	snapshot := store.Snapshot()
	assert.True(t, snapshot.IsAuthenticated())
	assert.Equal(t, session.StateSucceeded, snapshot.State)
	assert.Equal(t, "issued-token", snapshot.Token)
	assert.Equal(t, "Welcome back", snapshot.Message)
	require.NotNil(t, snapshot.User)
	assert.Equal(t, "grace@school.edu", snapshot.User.Email)

	assert.Equal(t, []session.ActivityEventType{session.ActivityEventLoginSuccess}, sink.eventTypes())

	// Events carry a parseable correlation id for joining with host logs.
	_, err = uuid.Parse(sink.events[0].CorrelationID)
	assert.NoError(t, err)
}

func TestGatewayLoginRejectedCredentials(t *testing.T) {
	sink := &recordingSink{}

	_, store, gateway := loginBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]string{
			"message": "Invalid email or password",
		})
	})
	gateway.WithActivitySink(sink)

	err := gateway.Login(context.Background(), session.LoginRequest{
		Email:    "grace@school.edu",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.True(t, session.IsUnauthorizedError(err))

	var rich *goerrors.Error
	require.True(t, goerrors.As(err, &rich))
	assert.Equal(t, session.TextCodeInvalidCredentials, rich.TextCode)

	snapshot := store.Snapshot()
	assert.False(t, snapshot.IsAuthenticated())
	assert.Equal(t, session.StateFailed, snapshot.State)
	assert.Equal(t, "Invalid email or password", snapshot.Message)

	assert.Equal(t, []session.ActivityEventType{session.ActivityEventLoginFailure}, sink.eventTypes())
}

func TestGatewayLoginFailurePreservesExistingSession(t *testing.T) {
	_, store, gateway := loginBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]string{
			"message": "Invalid email or password",
		})
	})

	store.ApplySuccess(professorFixture(), "existing-token", "")

	err := gateway.Login(context.Background(), session.LoginRequest{
		Email:    "grace@school.edu",
		Password: "wrong",
	})
	require.Error(t, err)

	snapshot := store.Snapshot()
	assert.Equal(t, "existing-token", snapshot.Token)
	require.NotNil(t, snapshot.User)
	assert.Equal(t, "grace@school.edu", snapshot.User.Email)
	assert.Equal(t, session.StateFailed, snapshot.State)
}

func TestGatewayLoginValidationSkipsNetworkAndStore(t *testing.T) {
	var calls atomic.Int32

	_, store, gateway := loginBackend(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	err := gateway.Login(context.Background(), session.LoginRequest{
		Email:    "not-an-email",
		Password: "",
	})
	require.Error(t, err)
	assert.True(t, session.IsValidationError(err))

	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, session.StateIdle, store.Snapshot().State)
}

func TestGatewayLoginMalformedBody(t *testing.T) {
	_, store, gateway := loginBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]string{"unexpected": "shape"})
	})

	err := gateway.Login(context.Background(), session.LoginRequest{
		Email:    "grace@school.edu",
		Password: "correct-horse",
	})
	require.Error(t, err)

	var rich *goerrors.Error
	require.True(t, goerrors.As(err, &rich))
	assert.Equal(t, session.TextCodeUpstreamError, rich.TextCode)

	snapshot := store.Snapshot()
	assert.False(t, snapshot.IsAuthenticated())
	assert.Equal(t, session.GenericFailureMessage, snapshot.Message)
}

func TestGatewayLoginNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	store := session.NewStore()
	gateway := session.NewGateway(store, newMockConfig(url))

	err := gateway.Login(context.Background(), session.LoginRequest{
		Email:    "grace@school.edu",
		Password: "correct-horse",
	})
	require.Error(t, err)
	assert.True(t, session.IsNetworkError(err))

	snapshot := store.Snapshot()
	assert.Equal(t, session.StateFailed, snapshot.State)
	assert.Equal(t, session.GenericFailureMessage, snapshot.Message)
}

func TestGatewayLoginVerifierRejection(t *testing.T) {
	_, store, gateway := loginBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"token": "forged-token",
			"user":  professorFixture(),
		})
	})
	gateway.WithTokenVerifier(session.TokenVerifierFunc(func(string) error {
		return session.ErrTokenRejected
	}))

	err := gateway.Login(context.Background(), session.LoginRequest{
		Email:    "grace@school.edu",
		Password: "correct-horse",
	})
	require.Error(t, err)
	assert.True(t, session.IsUnauthorizedError(err))

	snapshot := store.Snapshot()
	assert.False(t, snapshot.IsAuthenticated())
	assert.Equal(t, session.StateFailed, snapshot.State)
}

func TestGatewayLoginStaleSettlementDiscarded(t *testing.T) {
	firstArrived := make(chan struct{})
	release := make(chan struct{})
	sink := &recordingSink{}

	_, store, gateway := loginBackend(t, func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&creds))

		token := "token-second"
		if creds["email"] == "first@school.edu" {
			// Hold the first settlement until the second one has landed.
			close(firstArrived)
			<-release
			token = "token-first"
		}

		writeJSON(t, w, http.StatusOK, map[string]any{
			"token": token,
			"user":  professorFixture(),
		})
	})
	gateway.WithActivitySink(sink)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = gateway.Login(context.Background(), session.LoginRequest{
			Email:    "first@school.edu",
			Password: "correct-horse",
		})
	}()

	<-firstArrived

	err := gateway.Login(context.Background(), session.LoginRequest{
		Email:    "second@school.edu",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	close(release)
	wg.Wait()

	// The superseded request settled after the newer one; its result
	// must not overwrite the committed session, and it records no
	// success event for a session that was never installed.
	assert.Equal(t, "token-second", store.Snapshot().Token)
	assert.Equal(t, []session.ActivityEventType{session.ActivityEventLoginSuccess}, sink.eventTypes())
}

func TestGatewayRegisterStudentDoesNotAuthenticate(t *testing.T) {
	sink := &recordingSink{}

	_, store, gateway := loginBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/students/register", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Grace", r.FormValue("first_name"))
		assert.Equal(t, "grace@school.edu", r.FormValue("email"))

		writeJSON(t, w, http.StatusCreated, map[string]string{
			"message": "Account created, check your email",
		})
	})
	gateway.WithActivitySink(sink)

	err := gateway.RegisterStudent(context.Background(), validRegistration())
	require.NoError(t, err)

	snapshot := store.Snapshot()
	assert.False(t, snapshot.IsAuthenticated())
	assert.Nil(t, snapshot.User)
	assert.Equal(t, session.StateSucceeded, snapshot.State)
	assert.Equal(t, "Account created, check your email", snapshot.Message)

	assert.Equal(t, []session.ActivityEventType{session.ActivityEventRegisterSuccess}, sink.eventTypes())
}

func TestGatewayRegisterStudentProfileImage(t *testing.T) {
	_, _, gateway := loginBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))

		files := r.MultipartForm.File["image"]
		if assert.Len(t, files, 1) {
			assert.Equal(t, "avatar.png", files[0].Filename)
			assert.Equal(t, "image/png", files[0].Header.Get("Content-Type"))
		}

		writeJSON(t, w, http.StatusCreated, map[string]string{"message": "Account created"})
	})

	payload := validRegistration()
	payload.Image = &session.ProfileImage{
		Filename:    "avatar.png",
		ContentType: "image/png",
		Reader:      strings.NewReader("png-bytes"),
	}

	require.NoError(t, gateway.RegisterStudent(context.Background(), payload))
}

func TestGatewayRegisterStudentDuplicateAccount(t *testing.T) {
	_, store, gateway := loginBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusConflict, map[string]string{
			"message": "An account with this email already exists",
		})
	})

	err := gateway.RegisterStudent(context.Background(), validRegistration())
	require.Error(t, err)

	var rich *goerrors.Error
	require.True(t, goerrors.As(err, &rich))
	assert.Equal(t, session.TextCodeDuplicateAccount, rich.TextCode)

	snapshot := store.Snapshot()
	assert.Equal(t, session.StateFailed, snapshot.State)
	assert.Equal(t, "An account with this email already exists", snapshot.Message)
}

func TestGatewayRegisterStudentValidationShortCircuit(t *testing.T) {
	var calls atomic.Int32

	_, _, gateway := loginBackend(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	payload := validRegistration()
	payload.ConfirmPassword = "something-else"

	err := gateway.RegisterStudent(context.Background(), payload)
	require.Error(t, err)
	assert.True(t, session.IsValidationError(err))
	assert.Equal(t, int32(0), calls.Load())
}

func TestGatewayFetchProfileWithoutToken(t *testing.T) {
	var calls atomic.Int32

	_, store, gateway := loginBackend(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	err := gateway.FetchProfile(context.Background())
	require.ErrorIs(t, err, session.ErrNoToken)

	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, session.StateFailed, store.Snapshot().State)
}

func TestGatewayFetchProfileRefreshesUser(t *testing.T) {
	refreshed := professorFixture()
	refreshed.FirstName = "Gracie"
	refreshed.ProfileImageURL = "https://cdn.school.edu/grace.png"

	_, store, gateway := loginBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/profile", r.URL.Path)
		assert.Equal(t, "Bearer stored-token", r.Header.Get("Authorization"))

		writeJSON(t, w, http.StatusOK, map[string]any{"user": refreshed})
	})

	store.ApplySuccess(professorFixture(), "stored-token", "")

	require.NoError(t, gateway.FetchProfile(context.Background()))

	snapshot := store.Snapshot()
	assert.Equal(t, "stored-token", snapshot.Token)
	require.NotNil(t, snapshot.User)
	assert.Equal(t, "Gracie", snapshot.User.FirstName)
	assert.Equal(t, "https://cdn.school.edu/grace.png", snapshot.User.ProfileImageURL)
}

func TestGatewayFetchProfileRejectedTokenKeptByDefault(t *testing.T) {
	_, store, gateway := loginBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]string{"message": "Token expired"})
	})

	store.ApplySuccess(professorFixture(), "stale-token", "")

	err := gateway.FetchProfile(context.Background())
	require.Error(t, err)
	assert.True(t, session.IsUnauthorizedError(err))

	// Without auto-logout the stale token stays; the caller decides.
	snapshot := store.Snapshot()
	assert.Equal(t, "stale-token", snapshot.Token)
	assert.Equal(t, session.StateFailed, snapshot.State)
}

func TestGatewayFetchProfileAutoLogout(t *testing.T) {
	sink := &recordingSink{}

	_, store, gateway := loginBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]string{"message": "Token expired"})
	})
	gateway.WithActivitySink(sink).WithAutoLogoutOnUnauthorized(true)

	store.ApplySuccess(professorFixture(), "stale-token", "")

	err := gateway.FetchProfile(context.Background())
	require.Error(t, err)

	snapshot := store.Snapshot()
	assert.False(t, snapshot.IsAuthenticated())
	assert.Nil(t, snapshot.User)

	require.Len(t, sink.events, 1)
	assert.Equal(t, session.ActivityEventProfileRefreshFailure, sink.events[0].EventType)
	assert.Equal(t, true, sink.events[0].Metadata["auto_logout"])
}

func TestGatewayLogoutIsLocal(t *testing.T) {
	sink := &recordingSink{}
	persistence := session.NewMemory()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	t.Cleanup(server.Close)

	store := session.NewStore(session.WithPersistence(persistence))
	gateway := session.NewGateway(store, newMockConfig(server.URL)).WithActivitySink(sink)

	store.ApplySuccess(professorFixture(), "token-1", "")

	gateway.Logout()

	assert.Equal(t, int32(0), calls.Load())
	assert.False(t, store.Snapshot().IsAuthenticated())

	token, user, err := persistence.Read()
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Nil(t, user)

	assert.Equal(t, []session.ActivityEventType{session.ActivityEventLogout}, sink.eventTypes())
}
