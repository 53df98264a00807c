package circuitbreaker

import "time"

// Event names a lifecycle notification.
type Event string

const (
	EventOpen     Event = "open"
	EventClose    Event = "close"
	EventHalfOpen Event = "halfOpen"
	EventSuccess  Event = "success"
	EventFailure  Event = "failure"
	EventIgnored  Event = "ignored"
	EventReject   Event = "reject"
	EventFallback Event = "fallback"
)

// Notification is delivered to listeners after every transition and call
// outcome. State is the state after the event.
type Notification struct {
	Breaker string
	Event   Event
	State   State
	Err     error
	Time    time.Time
}

type Listener func(Notification)
