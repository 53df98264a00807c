package events

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"sync"

	"github.com/benbjohnson/clock"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/angeloszaimis/eventguard/internal/metrics"
	"github.com/angeloszaimis/eventguard/pkg/logger"
)

const DefaultHistoryCapacity = 1000

var typePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)*$`)

// Bus is an in-process, synchronous publish/subscribe dispatcher. Handlers
// run on the publisher's goroutine in registration order; a failing handler
// never affects the others or the publisher.
type Bus struct {
	mutex    sync.RWMutex
	handlers map[Type][]registration
	index    map[string]Type
	sequence uint64
	history  *metrics.Ring[Envelope]
	store    *metrics.Store
	logger   logger.Logger
	clock    clock.Clock
}

type Option func(*Bus)

// WithHistoryCapacity bounds how many envelopes History retains.
func WithHistoryCapacity(n int) Option {
	return func(b *Bus) { b.history = metrics.NewRing[Envelope](n) }
}

func WithClock(c clock.Clock) Option {
	return func(b *Bus) { b.clock = c }
}

// NewBus creates a bus recording into store. A nil store or logger is
// replaced with a private store and a discarding logger.
func NewBus(store *metrics.Store, log logger.Logger, opts ...Option) *Bus {
	if store == nil {
		store = metrics.NewStore()
	}
	if log == nil {
		log = logger.Nop()
	}

	b := &Bus{
		handlers: make(map[Type][]registration),
		index:    make(map[string]Type),
		history:  metrics.NewRing[Envelope](DefaultHistoryCapacity),
		store:    store,
		logger:   log,
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register appends h to the handlers of t and returns its registration id.
func (b *Bus) Register(t Type, h Handler) (string, error) {
	if err := validateType(t); err != nil {
		return "", err
	}
	if h == nil {
		return "", ErrNilHandler
	}

	id := uuid.NewString()

	b.mutex.Lock()
	b.handlers[t] = append(b.handlers[t], registration{id: id, handler: h})
	b.index[id] = t
	b.mutex.Unlock()

	b.logger.Debug("Registered event handler",
		"event_type", t.String(),
		"handler_id", id)
	return id, nil
}

// Unregister removes the registration with the given id. It reports whether
// a registration was removed; unknown ids are a no-op.
func (b *Bus) Unregister(id string) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	t, ok := b.index[id]
	if !ok {
		return false
	}
	delete(b.index, id)

	regs := b.handlers[t]
	for i, reg := range regs {
		if reg.id == id {
			// Copy so a Publish holding the old slice keeps its view.
			b.handlers[t] = slices.Concat(regs[:i], regs[i+1:])
			break
		}
	}
	if len(b.handlers[t]) == 0 {
		delete(b.handlers, t)
	}
	return true
}

// Publish records payload as an event of type t and dispatches it to every
// handler registered for t at the time of the call. It only fails for an
// invalid type or a payload that cannot be serialized; handler failures are
// logged and counted instead.
func (b *Bus) Publish(ctx context.Context, t Type, payload any) error {
	if err := validateType(t); err != nil {
		return err
	}
	// encoding/json reports reference cycles as an error instead of
	// recursing until the stack overflows.
	if _, err := json.Marshal(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrUnserializablePayload, err)
	}

	b.mutex.Lock()
	b.sequence++
	env := Envelope{
		ID:        uuid.NewString(),
		Sequence:  b.sequence,
		Type:      t,
		Payload:   payload,
		Timestamp: b.clock.Now(),
	}
	b.history.Push(env)
	b.store.RecordPublished(t.String())
	regs := b.handlers[t]
	b.mutex.Unlock()

	b.logger.Debug("Publishing event",
		"event_type", t.String(),
		"event_id", env.ID,
		"sequence", env.Sequence,
		"handlers", len(regs))

	for _, reg := range regs {
		if err := b.invoke(ctx, reg, env); err != nil {
			herr := &HandlerError{Type: t, HandlerID: reg.id, Err: err}
			b.store.RecordHandlerError(t.String())
			b.logger.Error("Event handler failed",
				"event_type", t.String(),
				"handler_id", reg.id,
				"error", herr.Error())
		}
	}
	return nil
}

func (b *Bus) invoke(ctx context.Context, reg registration, env Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return reg.handler(ctx, env.Payload, env)
}

// Metrics returns a copy of the bus counters.
func (b *Bus) Metrics() metrics.BusSnapshot {
	snap := b.store.Snapshot()
	snap.HistorySize = b.history.Len()
	snap.HistoryCapacity = b.history.Cap()
	return snap
}

// History returns the retained envelopes, oldest first.
func (b *Bus) History() []Envelope {
	return b.history.Items()
}

// Handlers returns how many handlers are registered for t.
func (b *Bus) Handlers(t Type) int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.handlers[t])
}

// Clear drops every registration, the history and all counters. It exists
// for test isolation.
func (b *Bus) Clear() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.handlers = make(map[Type][]registration)
	b.index = make(map[string]Type)
	b.sequence = 0
	b.history.Reset()
	b.store.Reset()
}

func validateType(t Type) error {
	err := validation.Validate(string(t),
		validation.Required,
		validation.Match(typePattern),
	)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidEventType, t, err)
	}
	return nil
}
