// Package bunstore persists session credentials in a SQLite table via
// bun, for hosts that already carry a local database. It stores the same
// two fields as every other backend, bearer token and serialized user,
// in a single row per profile, written and cleared together.
package bunstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	session "github.com/coursekit/go-session"
)

// DefaultProfile keys the credentials row when a host tracks a single
// backend.
const DefaultProfile = "default"

// Credentials is the persisted row
type Credentials struct {
	bun.BaseModel `bun:"table:session_credentials,alias:sc"`
	Profile       string     `bun:"profile,pk" json:"profile"`
	Token         string     `bun:"token,notnull" json:"token"`
	UserJSON      string     `bun:"user_json,notnull" json:"user_json"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

type Store struct {
	db      *bun.DB
	profile string
	logger  session.Logger
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

func WithProfile(profile string) Option {
	return func(s *Store) {
		if profile != "" {
			s.profile = profile
		}
	}
}

// New wraps an existing bun handle. Call Init once to ensure the table
// exists.
func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{
		db:      db,
		profile: DefaultProfile,
		logger:  noopLogger{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Open creates a SQLite-backed store at dsn and ensures the schema.
func Open(dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to open credentials database")
	}

	s := New(bun.NewDB(db, sqlitedialect.New()), opts...)

	if err := s.Init(context.Background()); err != nil {
		return nil, err
	}

	return s, nil
}

// Init creates the credentials table when missing.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*Credentials)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to create credentials table")
	}
	return nil
}

func (s *Store) Write(token string, user *session.User) error {
	serialized, err := json.Marshal(user)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to serialize user")
	}

	now := time.Now()
	record := &Credentials{
		Profile:   s.profile,
		Token:     token,
		UserJSON:  string(serialized),
		UpdatedAt: &now,
	}

	_, err = s.db.NewInsert().
		Model(record).
		On("CONFLICT (profile) DO UPDATE").
		Set("token = EXCLUDED.token").
		Set("user_json = EXCLUDED.user_json").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(context.Background())
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to persist credentials")
	}

	return nil
}

// Read restores the persisted pair. A missing row or a corrupt user
// record yields an empty result rather than an error.
func (s *Store) Read() (string, *session.User, error) {
	record := &Credentials{}

	err := s.db.NewSelect().
		Model(record).
		Where("profile = ?", s.profile).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("credentials read failed, dropping persisted session", "error", err)
		}
		return "", nil, nil
	}

	if record.Token == "" {
		return "", nil, nil
	}

	var user *session.User
	if err := json.Unmarshal([]byte(record.UserJSON), &user); err != nil {
		s.logger.Warn("user record corrupt, dropping persisted session", "error", err)
		return "", nil, nil
	}

	return record.Token, user, nil
}

func (s *Store) Clear() error {
	_, err := s.db.NewDelete().
		Model((*Credentials)(nil)).
		Where("profile = ?", s.profile).
		Exec(context.Background())
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to clear credentials")
	}
	return nil
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
