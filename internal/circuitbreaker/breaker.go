package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/angeloszaimis/eventguard/internal/metrics"
	"github.com/angeloszaimis/eventguard/pkg/logger"
)

type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Short-circuiting calls
	StateHalfOpen              // Testing with one probe call
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Func is a guarded call.
type Func[Req, Resp any] func(ctx context.Context, req Req) (Resp, error)

// FallbackFunc substitutes for Func while the breaker short-circuits. err is
// the *OpenError the caller would otherwise receive.
type FallbackFunc[Req, Resp any] func(ctx context.Context, req Req, err error) (Resp, error)

// Stats is a point-in-time view of a breaker.
type Stats struct {
	Name                      string     `json:"name"`
	State                     State      `json:"-"`
	StateName                 string     `json:"state"`
	FailuresInWindow          int        `json:"failures_in_window"`
	ConsecutiveProbeSuccesses int        `json:"consecutive_probe_successes"`
	ProbeInFlight             bool       `json:"probe_in_flight"`
	OpenedAt                  *time.Time `json:"opened_at,omitempty"`
}

// Breaker guards one callable. Every wrapped callable owns its own Breaker,
// so one dependency method tripping never blocks another.
type Breaker[Req, Resp any] struct {
	mutex     sync.Mutex
	name      string
	fn        Func[Req, Resp]
	fallback  FallbackFunc[Req, Resp]
	config    Config
	ignored   map[string]struct{}
	clock     clock.Clock
	logger    logger.Logger
	listeners map[Event][]Listener
	all       []Listener

	state                     State
	failuresInWindow          int
	windowStartedAt           time.Time
	openedAt                  time.Time
	consecutiveProbeSuccesses int
	probeInFlight             bool
	// generation changes on every transition and Reset so a probe admitted
	// before them cannot drive the state machine afterwards.
	generation uint64
}

// Wrap returns a closed breaker guarding fn.
func Wrap[Req, Resp any](name string, fn Func[Req, Resp], cfg Config, opts ...Option) (*Breaker[Req, Resp], error) {
	if name == "" {
		return nil, errors.New("circuit breaker name is required")
	}
	if fn == nil {
		return nil, fmt.Errorf("circuit breaker %q: nil function", name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("circuit breaker %q: %w", name, err)
	}

	s := newSettings(opts)
	b := &Breaker[Req, Resp]{
		name:      name,
		fn:        fn,
		config:    cfg,
		ignored:   cfg.ignoreSet(),
		clock:     s.clock,
		logger:    s.logger,
		listeners: make(map[Event][]Listener),
		all:       s.listeners,
		state:     StateClosed,
	}

	metrics.SetCircuitBreakerState(name, StateClosed.String())
	return b, nil
}

func (b *Breaker[Req, Resp]) Name() string {
	return b.name
}

// Fallback registers fn to answer calls while the breaker short-circuits.
func (b *Breaker[Req, Resp]) Fallback(fn FallbackFunc[Req, Resp]) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.fallback = fn
}

// On subscribes l to one lifecycle event.
func (b *Breaker[Req, Resp]) On(event Event, l Listener) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.listeners[event] = append(b.listeners[event], l)
}

func (b *Breaker[Req, Resp]) subscribe(l Listener) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.all = append(b.all, l)
}

// Fire invokes the guarded function unless the breaker short-circuits. The
// function's own result and error are always returned unchanged.
func (b *Breaker[Req, Resp]) Fire(ctx context.Context, req Req) (Resp, error) {
	allowed, probe, gen, pending := b.admit()
	b.notify(pending)

	if !allowed {
		return b.shortCircuit(ctx, req)
	}

	defer func() {
		if r := recover(); r != nil {
			b.notify(b.record(probe, gen, fmt.Errorf("panic: %v", r)))
			panic(r)
		}
	}()

	resp, err := b.fn(ctx, req)
	b.notify(b.record(probe, gen, err))
	return resp, err
}

// admit decides whether a call may run and whether it is the half-open
// probe. gen is the generation the call was admitted in.
func (b *Breaker[Req, Resp]) admit() (allowed, probe bool, gen uint64, pending []Notification) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	now := b.clock.Now()

	switch b.state {
	case StateOpen:
		if now.Sub(b.openedAt) < b.config.Timeout || b.probeInFlight {
			return false, false, b.generation, nil
		}
		b.probeInFlight = true
		pending = append(pending, b.transitionTo(StateHalfOpen, now, nil))
		return true, true, b.generation, pending
	case StateHalfOpen:
		if b.probeInFlight {
			return false, false, b.generation, nil
		}
		b.probeInFlight = true
		return true, true, b.generation, nil
	default:
		return true, false, b.generation, nil
	}
}

// record classifies the outcome of an admitted call and applies transitions.
// A probe whose generation has passed is recorded as an ordinary call.
func (b *Breaker[Req, Resp]) record(probe bool, gen uint64, err error) []Notification {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	now := b.clock.Now()
	if probe {
		if gen == b.generation && b.state == StateHalfOpen {
			b.probeInFlight = false
		} else {
			probe = false
		}
	}

	switch {
	case err == nil:
		pending := []Notification{b.notification(EventSuccess, now, nil)}
		if probe {
			b.consecutiveProbeSuccesses++
			if b.consecutiveProbeSuccesses >= b.config.SuccessThreshold {
				pending = append(pending, b.transitionTo(StateClosed, now, nil))
				pending[0].State = b.state
			}
		}
		return pending

	case b.isIgnored(err):
		return []Notification{b.notification(EventIgnored, now, err)}

	default:
		pending := []Notification{b.notification(EventFailure, now, err)}
		switch {
		case probe:
			metrics.RecordCircuitBreakerTrip(b.name, "half_open_failure")
			pending = append(pending, b.transitionTo(StateOpen, now, err))
		case b.state == StateClosed:
			if b.windowStartedAt.IsZero() || now.Sub(b.windowStartedAt) >= b.config.RollingWindow {
				b.windowStartedAt = now
				b.failuresInWindow = 0
			}
			b.failuresInWindow++
			if b.failuresInWindow >= b.config.FailureThreshold {
				metrics.RecordCircuitBreakerTrip(b.name, "threshold_exceeded")
				pending = append(pending, b.transitionTo(StateOpen, now, err))
			}
		}
		pending[0].State = b.state
		return pending
	}
}

func (b *Breaker[Req, Resp]) isIgnored(err error) bool {
	code := ErrorCode(err)
	if code == "" {
		return false
	}
	_, ok := b.ignored[code]
	return ok
}

// transitionTo changes state and returns the matching notification.
// Caller must hold the lock.
func (b *Breaker[Req, Resp]) transitionTo(state State, now time.Time, cause error) Notification {
	b.state = state
	b.generation++

	var event Event
	switch state {
	case StateOpen:
		event = EventOpen
		b.openedAt = now
		b.consecutiveProbeSuccesses = 0
	case StateHalfOpen:
		event = EventHalfOpen
		b.consecutiveProbeSuccesses = 0
	case StateClosed:
		event = EventClose
		b.failuresInWindow = 0
		b.windowStartedAt = time.Time{}
		b.consecutiveProbeSuccesses = 0
		b.openedAt = time.Time{}
	}

	metrics.SetCircuitBreakerState(b.name, state.String())
	return b.notification(event, now, cause)
}

func (b *Breaker[Req, Resp]) notification(event Event, now time.Time, err error) Notification {
	return Notification{Breaker: b.name, Event: event, State: b.state, Err: err, Time: now}
}

func (b *Breaker[Req, Resp]) shortCircuit(ctx context.Context, req Req) (Resp, error) {
	b.mutex.Lock()
	fallback := b.fallback
	state := b.state
	now := b.clock.Now()
	b.mutex.Unlock()

	openErr := &OpenError{Breaker: b.name, State: state}
	pending := []Notification{{Breaker: b.name, Event: EventReject, State: state, Err: openErr, Time: now}}

	if fallback == nil {
		b.notify(pending)
		var zero Resp
		return zero, openErr
	}

	pending = append(pending, Notification{Breaker: b.name, Event: EventFallback, State: state, Err: openErr, Time: now})
	b.notify(pending)
	return fallback(ctx, req, openErr)
}

// notify delivers notifications outside the lock, logging transitions.
func (b *Breaker[Req, Resp]) notify(pending []Notification) {
	if len(pending) == 0 {
		return
	}

	b.mutex.Lock()
	all := append([]Listener(nil), b.all...)
	byEvent := make(map[Event][]Listener, len(pending))
	for _, n := range pending {
		byEvent[n.Event] = append([]Listener(nil), b.listeners[n.Event]...)
	}
	b.mutex.Unlock()

	for _, n := range pending {
		b.log(n)
		switch n.Event {
		case EventSuccess, EventFailure, EventIgnored, EventReject:
			metrics.RecordCircuitBreakerCall(b.name, string(n.Event))
		}

		for _, l := range all {
			b.deliver(l, n)
		}
		for _, l := range byEvent[n.Event] {
			b.deliver(l, n)
		}
	}
}

func (b *Breaker[Req, Resp]) deliver(l Listener, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Circuit breaker listener panicked",
				"breaker", b.name,
				"event", string(n.Event),
				"panic", fmt.Sprint(r))
		}
	}()
	l(n)
}

func (b *Breaker[Req, Resp]) log(n Notification) {
	switch n.Event {
	case EventOpen:
		meta := []any{"breaker", b.name, "timeout", b.config.Timeout.String()}
		if n.Err != nil {
			meta = append(meta, "error", n.Err.Error())
		}
		b.logger.Warn("Circuit breaker opened", meta...)
	case EventHalfOpen:
		b.logger.Info("Circuit breaker half-open, probing", "breaker", b.name)
	case EventClose:
		b.logger.Info("Circuit breaker closed", "breaker", b.name)
	case EventFailure:
		b.logger.Debug("Guarded call failed", "breaker", b.name, "error", n.Err.Error())
	case EventIgnored:
		b.logger.Debug("Guarded call failed with ignored code",
			"breaker", b.name,
			"code", ErrorCode(n.Err))
	}
}

func (b *Breaker[Req, Resp]) State() State {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.state
}

func (b *Breaker[Req, Resp]) Stats() Stats {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	stats := Stats{
		Name:                      b.name,
		State:                     b.state,
		StateName:                 b.state.String(),
		FailuresInWindow:          b.failuresInWindow,
		ConsecutiveProbeSuccesses: b.consecutiveProbeSuccesses,
		ProbeInFlight:             b.probeInFlight,
	}
	if !b.openedAt.IsZero() {
		openedAt := b.openedAt
		stats.OpenedAt = &openedAt
	}
	return stats
}

// Reset forces the breaker closed and clears its counters.
func (b *Breaker[Req, Resp]) Reset() {
	b.mutex.Lock()
	b.probeInFlight = false
	var pending []Notification
	if b.state != StateClosed {
		pending = append(pending, b.transitionTo(StateClosed, b.clock.Now(), nil))
	} else {
		b.generation++
		b.failuresInWindow = 0
		b.windowStartedAt = time.Time{}
	}
	b.mutex.Unlock()

	b.notify(pending)
}
