package ai

import (
	"context"
	"fmt"

	"github.com/angeloszaimis/eventguard/internal/circuitbreaker"
)

// Breaker names, one per guarded Client method.
const (
	BreakerComplete = "ai.complete"
	BreakerEmbed    = "ai.embed"
	BreakerModerate = "ai.moderate"
	BreakerPing     = "ai.ping"
)

// GuardedClient is a Client whose every method runs behind its own circuit
// breaker. Model passes through unguarded.
type GuardedClient struct {
	client   Client
	complete *circuitbreaker.Breaker[CompletionRequest, Completion]
	embed    *circuitbreaker.Breaker[EmbeddingRequest, Embedding]
	moderate *circuitbreaker.Breaker[ModerationRequest, Moderation]
	ping     *circuitbreaker.Breaker[struct{}, struct{}]
}

var _ Client = (*GuardedClient)(nil)

type GuardOption func(*GuardedClient)

// WithCompletionFallback answers Complete with message while its breaker is
// open instead of returning the open error.
func WithCompletionFallback(message string) GuardOption {
	return func(g *GuardedClient) {
		g.complete.Fallback(func(_ context.Context, _ CompletionRequest, _ error) (Completion, error) {
			return Completion{Text: message, Model: g.client.Model(), Degraded: true}, nil
		})
	}
}

// WrapClient registers one breaker per Client method in r, all sharing r's
// configuration but tripping independently. It fails without registering
// anything when one of the breaker names is already taken.
func WrapClient(c Client, r *circuitbreaker.Registry, opts ...GuardOption) (*GuardedClient, error) {
	for _, name := range []string{BreakerComplete, BreakerEmbed, BreakerModerate, BreakerPing} {
		if _, exists := r.Get(name); exists {
			return nil, fmt.Errorf("%w: %s", circuitbreaker.ErrDuplicateBreaker, name)
		}
	}

	g := &GuardedClient{client: c}

	var err error
	if g.complete, err = circuitbreaker.Register(r, BreakerComplete, c.Complete); err != nil {
		return nil, err
	}
	if g.embed, err = circuitbreaker.Register(r, BreakerEmbed, c.Embed); err != nil {
		return nil, err
	}
	if g.moderate, err = circuitbreaker.Register(r, BreakerModerate, c.Moderate); err != nil {
		return nil, err
	}
	if g.ping, err = circuitbreaker.Register(r, BreakerPing, c.Ping); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *GuardedClient) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	return g.complete.Fire(ctx, req)
}

func (g *GuardedClient) Embed(ctx context.Context, req EmbeddingRequest) (Embedding, error) {
	return g.embed.Fire(ctx, req)
}

func (g *GuardedClient) Moderate(ctx context.Context, req ModerationRequest) (Moderation, error) {
	return g.moderate.Fire(ctx, req)
}

func (g *GuardedClient) Ping(ctx context.Context, req struct{}) (struct{}, error) {
	return g.ping.Fire(ctx, req)
}

func (g *GuardedClient) Model() string {
	return g.client.Model()
}
