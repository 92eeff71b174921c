package session

import "sync"

// Store is the single source of truth for the Session. It is an explicit
// dependency, not a package-level singleton: hosts and tests construct as
// many isolated instances as they need.
//
// Transitions are atomic from the caller's perspective: a Snapshot taken
// concurrently with ApplySuccess observes either the old session or the
// new one, never a token without its user.
type Store struct {
	mu          sync.RWMutex
	session     Session
	persistence Persistence
	logger      Logger
	onChange    func(Session)
}

var _ SessionReader = (*Store)(nil)

// StoreOption customizes a Store at construction time.
type StoreOption func(*Store)

// WithPersistence mirrors the durable session fields to p.
func WithPersistence(p Persistence) StoreOption {
	return func(s *Store) {
		s.persistence = p
	}
}

// WithStoreLogger overrides the default logger.
func WithStoreLogger(logger Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOnChange registers a hook invoked after every committed transition
// with the resulting snapshot. The hook runs outside the store lock.
func WithOnChange(fn func(Session)) StoreOption {
	return func(s *Store) {
		s.onChange = fn
	}
}

// NewStore returns an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		session:     emptySession(),
		persistence: noopPersistence{},
		logger:      defLogger{},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.persistence = normalizePersistence(s.persistence)

	return s
}

// Hydrate restores token and user from persistence. It issues no network
// call and performs no validation: a stale token is discovered lazily by
// the first authenticated request. An empty or unreadable backend leaves
// the store empty.
func (s *Store) Hydrate() Session {
	token, user, err := s.persistence.Read()
	if err != nil {
		s.logger.Warn("hydrate: persistence read failed, starting empty", "error", err)
		token, user = "", nil
	}

	if token == "" {
		return s.Snapshot()
	}

	s.mu.Lock()
	s.session = Session{
		User:  user.Clone(),
		Token: token,
		State: StateIdle,
	}
	snapshot := s.session
	s.mu.Unlock()

	s.notify(snapshot)
	return snapshot
}

// Snapshot returns the current session by value.
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := s.session
	snapshot.User = s.session.User.Clone()
	return snapshot
}

// BeginRequest marks a gateway operation in flight and clears the prior
// error. Calling it while already pending is a no-op.
func (s *Store) BeginRequest() {
	s.mu.Lock()
	if s.session.State == StatePending {
		s.mu.Unlock()
		return
	}
	s.session.State = StatePending
	s.session.Message = ""
	s.session.Err = nil
	snapshot := s.session
	s.mu.Unlock()

	s.notify(snapshot)
}

// ApplySuccess installs an authenticated principal. User and token are
// committed together and mirrored to persistence.
func (s *Store) ApplySuccess(user *User, token, message string) {
	s.mu.Lock()
	s.session = Session{
		User:    user.Clone(),
		Token:   token,
		State:   StateSucceeded,
		Message: message,
	}
	snapshot := s.session
	s.mu.Unlock()

	if err := s.persistence.Write(token, user); err != nil {
		s.logger.Warn("persistence write failed", "error", err)
	}

	s.notify(snapshot)
}

// ReplaceUser swaps the principal without touching the token. Used by
// profile refreshes, where the credential stays as issued.
func (s *Store) ReplaceUser(user *User, message string) {
	s.mu.Lock()
	s.session.User = user.Clone()
	s.session.State = StateSucceeded
	s.session.Message = message
	s.session.Err = nil
	token := s.session.Token
	snapshot := s.session
	s.mu.Unlock()

	if token != "" {
		if err := s.persistence.Write(token, user); err != nil {
			s.logger.Warn("persistence write failed", "error", err)
		}
	}

	s.notify(snapshot)
}

// Complete settles the in-flight operation as succeeded without touching
// user or token. Registration lands here: a created account does not
// imply a signed-in session.
func (s *Store) Complete(message string) {
	s.mu.Lock()
	s.session.State = StateSucceeded
	s.session.Message = message
	s.session.Err = nil
	snapshot := s.session
	s.mu.Unlock()

	s.notify(snapshot)
}

// ApplyFailure records a failed operation. User and token are left
// untouched: a failed login attempt or profile refresh never tears down
// an existing valid session.
func (s *Store) ApplyFailure(err error) {
	s.mu.Lock()
	s.session.State = StateFailed
	s.session.Err = err
	s.session.Message = FailureMessage(err)
	snapshot := s.session
	s.mu.Unlock()

	s.notify(snapshot)
}

// Clear resets to the empty session and removes the persisted fields.
// Clearing an already-empty store is a no-op and always succeeds.
func (s *Store) Clear() {
	s.mu.Lock()
	s.session = emptySession()
	snapshot := s.session
	s.mu.Unlock()

	if err := s.persistence.Clear(); err != nil {
		s.logger.Warn("persistence clear failed", "error", err)
	}

	s.notify(snapshot)
}

func (s *Store) notify(snapshot Session) {
	if s.onChange == nil {
		return
	}
	snapshot.User = snapshot.User.Clone()
	s.onChange(snapshot)
}
