package app

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/eventguard/config"
	"github.com/angeloszaimis/eventguard/internal/ai"
	"github.com/angeloszaimis/eventguard/internal/circuitbreaker"
	"github.com/angeloszaimis/eventguard/internal/events"
	"github.com/angeloszaimis/eventguard/internal/handler"
	"github.com/angeloszaimis/eventguard/internal/healthcheck"
	"github.com/angeloszaimis/eventguard/internal/httpserver"
	"github.com/angeloszaimis/eventguard/internal/metrics"
	"github.com/angeloszaimis/eventguard/pkg/logger"
)

// App owns every long-lived component. It is created once at startup and
// passed explicitly to whatever needs it.
type App struct {
	config    *config.Config
	logger    logger.Logger
	store     *metrics.Store
	bus       *events.Bus
	collector *metrics.Collector
	registry  *circuitbreaker.Registry
	ai        *ai.GuardedClient
	health    *healthcheck.Checker
	server    *httpserver.Server
}

type options struct {
	client ai.Client
}

type Option func(*options)

// WithAIClient replaces the OpenAI client, mostly for tests.
func WithAIClient(c ai.Client) Option {
	return func(o *options) { o.client = c }
}

func New(cfg *config.Config, log logger.Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		config:    cfg,
		logger:    log,
		store:     metrics.NewStore(),
		collector: metrics.NewCollector(cfg.Metrics.CollectorBuffer, log),
	}
	a.bus = events.NewBus(a.store, log, events.WithHistoryCapacity(cfg.Events.HistoryCapacity))

	registry, err := circuitbreaker.NewRegistry(BreakerConfig(cfg), circuitbreaker.WithLogger(log))
	if err != nil {
		return nil, err
	}
	registry.Subscribe(a.forwardToCollector)
	a.registry = registry

	client := o.client
	if client == nil {
		client = ai.NewOpenAIClient(cfg.AI)
	}

	var guardOpts []ai.GuardOption
	if cfg.AI.FallbackMessage != "" {
		guardOpts = append(guardOpts, ai.WithCompletionFallback(cfg.AI.FallbackMessage))
	}
	a.ai, err = ai.WrapClient(client, registry, guardOpts...)
	if err != nil {
		return nil, fmt.Errorf("guard ai client: %w", err)
	}

	a.health = healthcheck.New(a.ai, a.bus, cfg.AIHealthInterval(), log)

	h := handler.New(log, a.bus, a.registry, a.collector, a.health)
	a.server, err = httpserver.New(cfg.Server.Address, handler.NewRouter(h), log)
	if err != nil {
		return nil, fmt.Errorf("create server: %w", err)
	}

	return a, nil
}

// BreakerConfig converts the loaded configuration into breaker settings.
func BreakerConfig(cfg *config.Config) circuitbreaker.Config {
	return circuitbreaker.Config{
		FailureThreshold:  cfg.Breaker.FailureThreshold,
		SuccessThreshold:  cfg.Breaker.SuccessThreshold,
		Timeout:           cfg.BreakerTimeout(),
		RollingWindow:     cfg.BreakerRollingWindow(),
		IgnoredErrorCodes: cfg.Breaker.IgnoredErrorCodes,
	}
}

func (a *App) Bus() *events.Bus                   { return a.bus }
func (a *App) Registry() *circuitbreaker.Registry { return a.registry }
func (a *App) Collector() *metrics.Collector      { return a.collector }
func (a *App) AI() *ai.GuardedClient              { return a.ai }
func (a *App) Health() *healthcheck.Checker       { return a.health }

// Run starts the collector, the AI health check and the introspection
// server, and blocks until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.collector.Start(gctx)
		<-a.collector.Done()
		return nil
	})
	g.Go(func() error {
		return a.health.Run(gctx)
	})
	g.Go(func() error {
		return a.server.Run(gctx)
	})

	return g.Wait()
}

// Shutdown stops the server and flushes the logger, reporting every
// failure.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	err = multierr.Append(err, a.server.Shutdown(ctx))

	if s, ok := a.logger.(interface{ Sync() error }); ok {
		err = multierr.Append(err, s.Sync())
	}
	return err
}

func (a *App) forwardToCollector(n circuitbreaker.Notification) {
	a.collector.Emit(metrics.BreakerEvent{
		Type:      metrics.BreakerEventType(n.Event),
		Breaker:   n.Breaker,
		State:     n.State.String(),
		Timestamp: n.Time,
	})
}
