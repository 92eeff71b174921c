package session

import (
	"github.com/google/uuid"
)

// Role is the principal's marketplace role
type Role = string

const (
	// RoleStudent is the default role assigned on registration
	RoleStudent Role = "user"
	// RoleProfessor can create and manage courses
	RoleProfessor Role = "professor"
	// RoleAdmin manages users and courses
	RoleAdmin Role = "admin"
)

// RequestState reflects the most recent gateway operation, not
// cumulative history.
type RequestState = string

const (
	StateIdle      RequestState = "idle"
	StatePending   RequestState = "pending"
	StateSucceeded RequestState = "succeeded"
	StateFailed    RequestState = "failed"
)

// User is the signed-in principal as reported by the backend
type User struct {
	ID              string `json:"id,omitempty"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	Email           string `json:"email,omitempty"`
	Role            Role   `json:"role,omitempty"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}

// UUID parses the backend identifier, which is expected to be a UUID.
func (u *User) UUID() (uuid.UUID, error) {
	return uuid.Parse(u.ID)
}

// FullName joins first and last name, tolerating either being empty.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// Clone returns a copy so store snapshots never alias caller-held records.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
