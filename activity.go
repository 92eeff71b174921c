package session

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess          ActivityEventType = "session.login.success"
	ActivityEventLoginFailure          ActivityEventType = "session.login.failure"
	ActivityEventRegisterSuccess       ActivityEventType = "session.register.success"
	ActivityEventRegisterFailure       ActivityEventType = "session.register.failure"
	ActivityEventProfileRefreshed      ActivityEventType = "session.profile.refreshed"
	ActivityEventProfileRefreshFailure ActivityEventType = "session.profile.refresh.failure"
	ActivityEventLogout                ActivityEventType = "session.logout"
)

// ActivityEvent captures audit-friendly information about an operation
// settlement. CorrelationID is assigned per settlement so sinks can join
// the event with host-side logs.
type ActivityEvent struct {
	EventType     ActivityEventType
	CorrelationID string
	UserID        string
	Email         string
	Metadata      map[string]any
	OccurredAt    time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Sinks run best-effort: errors are logged, never surfaced to callers.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
