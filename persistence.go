package session

import "sync"

// Persistence mirrors the session's durable fields (token and serialized
// user) so a restart restores the session without re-authenticating.
//
// Read treats missing or corrupt entries as empty rather than failing:
// a session we cannot restore is a session that does not exist. Write
// and Clear affect both fields together; there is no valid persisted
// state with one present and the other absent.
type Persistence interface {
	Write(token string, user *User) error
	Read() (token string, user *User, err error)
	Clear() error
}

// Memory is an in-process Persistence for tests and short-lived hosts.
type Memory struct {
	mu    sync.Mutex
	token string
	user  *User
}

var _ Persistence = (*Memory)(nil)

// NewMemory returns an empty in-memory persistence.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Write(token string, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.user = user.Clone()
	return nil
}

func (m *Memory) Read() (string, *User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.user.Clone(), nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.user = nil
	return nil
}

type noopPersistence struct{}

func (noopPersistence) Write(string, *User) error    { return nil }
func (noopPersistence) Read() (string, *User, error) { return "", nil, nil }
func (noopPersistence) Clear() error                 { return nil }

func normalizePersistence(p Persistence) Persistence {
	if p == nil {
		return noopPersistence{}
	}
	return p
}
