package events

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEventType is returned for empty or malformed event types.
	ErrInvalidEventType = errors.New("invalid event type")

	// ErrNilHandler is returned when registering a nil handler.
	ErrNilHandler = errors.New("event handler is nil")

	// ErrUnserializablePayload is returned when a payload cannot be encoded as JSON.
	ErrUnserializablePayload = errors.New("event payload is not serializable")
)

// HandlerError describes a failed handler invocation. It is only logged and
// counted; Publish never returns it.
type HandlerError struct {
	Type      Type
	HandlerID string
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s for %q failed: %v", e.HandlerID, e.Type, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
