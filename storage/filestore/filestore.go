// Package filestore persists session credentials on disk so a process
// restart restores the signed-in session without re-authenticating.
//
// Each API base URL gets its own profile directory (named by a
// deterministic hash of the URL) holding two entries, written and
// cleared together: the bearer token and the serialized user record.
package filestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"

	session "github.com/coursekit/go-session"
)

const (
	tokenFile = "token"
	userFile  = "user.json"

	dirMode  = 0o700
	fileMode = 0o600
)

type Store struct {
	mu     sync.Mutex
	dir    string
	logger session.Logger
}

var _ session.Persistence = (*Store)(nil)

type Option func(*Store)

func WithLogger(logger session.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New returns a Store rooted at root with a profile directory derived
// from the API base URL, so sessions against different backends never
// collide.
func New(root, baseURL string, opts ...Option) (*Store, error) {
	profile, err := hashid.NewUUID(baseURL)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to derive profile directory")
	}

	s := &Store{
		dir: filepath.Join(root, profile.String()),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = noopLogger{}
	}

	return s, nil
}

// Dir exposes the resolved profile directory, mostly for diagnostics.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) Write(token string, user *session.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, dirMode); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to create profile directory")
	}

	serialized, err := json.Marshal(user)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to serialize user")
	}

	if err := writeAtomic(filepath.Join(s.dir, tokenFile), []byte(token)); err != nil {
		return err
	}

	return writeAtomic(filepath.Join(s.dir, userFile), serialized)
}

// Read restores the persisted pair. Missing or corrupt entries yield an
// empty result rather than an error: a session we cannot restore is a
// session that does not exist.
func (s *Store) Read() (string, *session.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(filepath.Join(s.dir, tokenFile))
	if err != nil {
		return "", nil, nil
	}

	token := string(raw)
	if token == "" {
		return "", nil, nil
	}

	serialized, err := os.ReadFile(filepath.Join(s.dir, userFile))
	if err != nil {
		s.logger.Warn("user record missing, dropping persisted session")
		return "", nil, nil
	}

	var user *session.User
	if err := json.Unmarshal(serialized, &user); err != nil {
		s.logger.Warn("user record corrupt, dropping persisted session", "error", err)
		return "", nil, nil
	}

	return token, user, nil
}

func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range []string{tokenFile, userFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to clear persisted session")
		}
	}

	return nil
}

// writeAtomic goes through a temp file and rename so a crash mid-write
// never leaves a truncated entry behind.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, fileMode); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to write session entry")
	}

	if err := os.Rename(tmp, path); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to commit session entry")
	}

	return nil
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
