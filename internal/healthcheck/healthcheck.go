package healthcheck

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/angeloszaimis/eventguard/internal/events"
	"github.com/angeloszaimis/eventguard/pkg/logger"
)

const pingTimeout = 5 * time.Second

// Pinger is the part of the AI client the checker needs.
type Pinger interface {
	Ping(ctx context.Context, _ struct{}) (struct{}, error)
}

// Publisher is the part of the event bus the checker needs.
type Publisher interface {
	Publish(ctx context.Context, t events.Type, payload any) error
}

// Status is the payload of ai.health_changed.
type Status struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Checker tracks whether the AI provider answers pings. The provider is
// assumed healthy until a ping says otherwise.
type Checker struct {
	pinger    Pinger
	publisher Publisher
	interval  time.Duration
	logger    logger.Logger
	clock     clock.Clock

	mutex  sync.RWMutex
	status Status
}

type Option func(*Checker)

func WithClock(c clock.Clock) Option {
	return func(hc *Checker) { hc.clock = c }
}

func New(p Pinger, pub Publisher, interval time.Duration, log logger.Logger, opts ...Option) *Checker {
	hc := &Checker{
		pinger:    p,
		publisher: pub,
		interval:  interval,
		logger:    log,
		clock:     clock.New(),
		status:    Status{Healthy: true},
	}
	for _, opt := range opts {
		opt(hc)
	}
	return hc
}

// Run pings every interval until ctx is cancelled.
func (hc *Checker) Run(ctx context.Context) error {
	ticker := hc.clock.Ticker(hc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			hc.logger.Info("Health check stopped")
			return nil

		case <-ticker.C:
			hc.Check(ctx)
		}
	}
}

// Check pings once, publishing ai.health_changed when the result differs
// from the previous one. It reports whether the status changed.
func (hc *Checker) Check(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	next := Status{Healthy: true}
	if _, err := hc.pinger.Ping(pingCtx, struct{}{}); err != nil {
		next = Status{Healthy: false, Error: err.Error()}
	}

	hc.mutex.Lock()
	changed := hc.status.Healthy != next.Healthy
	hc.status = next
	hc.mutex.Unlock()

	if !changed {
		return false
	}

	if next.Healthy {
		hc.logger.Info("AI provider is back up")
	} else {
		hc.logger.Warn("AI provider is down", "error", next.Error)
	}

	if err := hc.publisher.Publish(ctx, events.AIHealthChanged, next); err != nil {
		hc.logger.Error("Failed to publish health change", "error", err)
	}
	return true
}

func (hc *Checker) Status() Status {
	hc.mutex.RLock()
	defer hc.mutex.RUnlock()
	return hc.status
}
