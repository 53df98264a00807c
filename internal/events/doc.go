// Package events implements the domain event bus.
//
// Services publish a Type from the shared catalog together with a
// JSON-serializable payload after a state change. The bus wraps it in an
// Envelope, appends it to a bounded history, updates the counters and then
// calls every handler registered for that type, one after another, on the
// publisher's goroutine. Handler errors and panics are caught, logged with
// the event type and handler id, counted, and skipped.
//
// A Bus is constructed once by the application context and injected where
// needed; there is no package-level instance.
package events
