package circuitbreaker

import (
	"github.com/benbjohnson/clock"

	"github.com/angeloszaimis/eventguard/pkg/logger"
)

type settings struct {
	clock     clock.Clock
	logger    logger.Logger
	listeners []Listener
}

type Option func(*settings)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clock.Clock) Option {
	return func(s *settings) { s.clock = c }
}

func WithLogger(l logger.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithListener subscribes l to every event of the breaker.
func WithListener(l Listener) Option {
	return func(s *settings) { s.listeners = append(s.listeners, l) }
}

func newSettings(opts []Option) settings {
	s := settings{clock: clock.New(), logger: logger.Nop()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
