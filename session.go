package session

import (
	"fmt"
)

// Session is the point-in-time snapshot of the signed-in principal and
// the latest gateway request outcome. Snapshots are values: mutating one
// never affects the Store that produced it.
type Session struct {
	User    *User        `json:"user,omitempty"`
	Token   string       `json:"token,omitempty"`
	State   RequestState `json:"state,omitempty"`
	Message string       `json:"message,omitempty"`
	Err     error        `json:"-"`
}

// IsAuthenticated is derived from token presence; it is never stored,
// which keeps the invariant that authentication equals token presence true by construction.
func (s Session) IsAuthenticated() bool {
	return s.Token != ""
}

// Role returns the principal's role, or empty when signed out.
func (s Session) Role() Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

// Empty reports whether the session carries no principal and no token.
func (s Session) Empty() bool {
	return s.User == nil && s.Token == ""
}

func (s Session) String() string {
	user := "<nil>"
	if s.User != nil {
		user = s.User.Email
	}
	return fmt.Sprintf(
		"user=%s role=%s authenticated=%t state=%s",
		user,
		s.Role(),
		s.IsAuthenticated(),
		s.State,
	)
}

func emptySession() Session {
	return Session{State: StateIdle}
}
