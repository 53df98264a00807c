package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/angeloszaimis/eventguard/pkg/logger"
)

type BreakerEventType string

const (
	BreakerOpened   BreakerEventType = "open"
	BreakerClosed   BreakerEventType = "close"
	BreakerHalfOpen BreakerEventType = "halfOpen"
	BreakerSuccess  BreakerEventType = "success"
	BreakerFailure  BreakerEventType = "failure"
	BreakerIgnored  BreakerEventType = "ignored"
	BreakerRejected BreakerEventType = "reject"
	BreakerFallback BreakerEventType = "fallback"
)

// BreakerEvent is one lifecycle notification forwarded by a circuit breaker.
type BreakerEvent struct {
	Type      BreakerEventType
	Breaker   string
	State     string
	Timestamp time.Time
}

// BreakerMetrics aggregates the notifications seen for one breaker.
type BreakerMetrics struct {
	State          string    `json:"state"`
	Opens          int64     `json:"opens"`
	Closes         int64     `json:"closes"`
	HalfOpens      int64     `json:"half_opens"`
	Successes      int64     `json:"successes"`
	Failures       int64     `json:"failures"`
	Ignored        int64     `json:"ignored"`
	Rejected       int64     `json:"rejected"`
	Fallbacks      int64     `json:"fallbacks"`
	LastTransition time.Time `json:"last_transition,omitempty"`
}

type BreakerSnapshot struct {
	Uptime   time.Duration             `json:"uptime"`
	Breakers map[string]BreakerMetrics `json:"breakers"`
}

// Collector consumes breaker notifications off the call path through a
// buffered channel and keeps per-breaker totals.
type Collector struct {
	eventCh   chan BreakerEvent
	mutex     sync.RWMutex
	breakers  map[string]*BreakerMetrics
	startTime time.Time
	logger    logger.Logger
	done      chan struct{}
}

func NewCollector(bufferSize int, log logger.Logger) *Collector {
	if log == nil {
		log = logger.Nop()
	}
	return &Collector{
		eventCh:   make(chan BreakerEvent, bufferSize),
		breakers:  make(map[string]*BreakerMetrics),
		startTime: time.Now(),
		logger:    log,
		done:      make(chan struct{}),
	}
}

func (c *Collector) EventChannel() chan<- BreakerEvent {
	return c.eventCh
}

// Emit forwards event without blocking; it is dropped when the buffer is full.
func (c *Collector) Emit(event BreakerEvent) bool {
	select {
	case c.eventCh <- event:
		return true
	default:
		return false
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

// Done is closed once the collector has drained after its context ended.
func (c *Collector) Done() <-chan struct{} {
	return c.done
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Breaker metrics collector started")
	defer c.logger.Info("Breaker metrics collector stopped")
	defer close(c.done)

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event BreakerEvent) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	bm, ok := c.breakers[event.Breaker]
	if !ok {
		bm = &BreakerMetrics{}
		c.breakers[event.Breaker] = bm
	}
	if event.State != "" {
		bm.State = event.State
	}

	switch event.Type {
	case BreakerOpened:
		bm.Opens++
		bm.LastTransition = event.Timestamp
	case BreakerClosed:
		bm.Closes++
		bm.LastTransition = event.Timestamp
	case BreakerHalfOpen:
		bm.HalfOpens++
		bm.LastTransition = event.Timestamp
	case BreakerSuccess:
		bm.Successes++
	case BreakerFailure:
		bm.Failures++
	case BreakerIgnored:
		bm.Ignored++
	case BreakerRejected:
		bm.Rejected++
	case BreakerFallback:
		bm.Fallbacks++
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() BreakerSnapshot {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	breakers := make(map[string]BreakerMetrics, len(c.breakers))
	for name, bm := range c.breakers {
		breakers[name] = *bm
	}
	return BreakerSnapshot{
		Uptime:   time.Since(c.startTime),
		Breakers: breakers,
	}
}
