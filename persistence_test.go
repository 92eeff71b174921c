package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	session "github.com/coursekit/go-session"
)

func TestMemoryRoundTrip(t *testing.T) {
	store := session.NewMemory()

	user := &session.User{ID: "u-1", Email: "a@b.com", Role: session.RoleStudent}
	require.NoError(t, store.Write("tok", user))

	token, got, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	require.NotNil(t, got)
	assert.Equal(t, *user, *got)
}

func TestMemoryReadReturnsCopy(t *testing.T) {
	store := session.NewMemory()
	require.NoError(t, store.Write("tok", &session.User{Email: "a@b.com"}))

	_, first, err := store.Read()
	require.NoError(t, err)
	first.Email = "tampered@b.com"

	_, second, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", second.Email)
}

func TestMemoryClear(t *testing.T) {
	store := session.NewMemory()
	require.NoError(t, store.Write("tok", &session.User{Email: "a@b.com"}))

	require.NoError(t, store.Clear())

	token, user, err := store.Read()
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Nil(t, user)
}

func TestMemoryEmptyRead(t *testing.T) {
	token, user, err := session.NewMemory().Read()
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Nil(t, user)
}
