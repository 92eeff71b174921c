package session_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	session "github.com/coursekit/go-session"
)

// MockConfig implements session.Config
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) GetBaseURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetAuthScheme() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetRequestTimeout() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockConfig) GetLoginRoute() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetHomeRoute() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetRejectedRouteKey() string {
	args := m.Called()
	return args.String(0)
}

func newMockConfig(baseURL string) *MockConfig {
	cfg := new(MockConfig)
	cfg.On("GetBaseURL").Return(baseURL)
	cfg.On("GetAuthScheme").Return("Bearer")
	cfg.On("GetRequestTimeout").Return(5)
	cfg.On("GetLoginRoute").Return("/login")
	cfg.On("GetHomeRoute").Return("/")
	cfg.On("GetRejectedRouteKey").Return("rejected_route")
	return cfg
}

// recordingSink captures activity events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []session.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event session.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) eventTypes() []session.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]session.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		types = append(types, e.EventType)
	}
	return types
}

// failingPersistence errors on every call; the store must degrade to an
// empty session rather than surface it.
type failingPersistence struct {
	err error
}

func (f failingPersistence) Write(string, *session.User) error {
	return f.err
}

func (f failingPersistence) Read() (string, *session.User, error) {
	return "", nil, f.err
}

func (f failingPersistence) Clear() error {
	return f.err
}
