package events

import (
	"context"
	"time"
)

// Envelope wraps one published payload. It is handed to handlers by value
// and stored in the bus history.
type Envelope struct {
	ID        string    `json:"id"`
	Sequence  uint64    `json:"sequence"`
	Type      Type      `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler consumes one event. Returned errors and panics are isolated by the
// bus and never reach the publisher.
type Handler func(ctx context.Context, payload any, env Envelope) error

type registration struct {
	id      string
	handler Handler
}
