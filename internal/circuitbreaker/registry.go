package circuitbreaker

import (
	"fmt"
	"sort"
	"sync"
)

// guard is the type-erased view a Registry keeps of its breakers.
type guard interface {
	Name() string
	State() State
	Stats() Stats
	Reset()
	subscribe(Listener)
}

// Registry creates breakers that share one Config and keeps them for
// introspection. Each breaker still has its own independent state.
type Registry struct {
	mutex     sync.RWMutex
	breakers  map[string]guard
	config    Config
	opts      []Option
	listeners []Listener
}

func NewRegistry(cfg Config, opts ...Option) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("circuit breaker registry: %w", err)
	}

	return &Registry{
		breakers: make(map[string]guard),
		config:   cfg,
		opts:     opts,
	}, nil
}

// Register wraps fn in a new breaker named name using the registry's config.
func Register[Req, Resp any](r *Registry, name string, fn Func[Req, Resp]) (*Breaker[Req, Resp], error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.breakers[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateBreaker, name)
	}

	opts := append([]Option(nil), r.opts...)
	for _, l := range r.listeners {
		opts = append(opts, WithListener(l))
	}

	cb, err := Wrap(name, fn, r.config, opts...)
	if err != nil {
		return nil, err
	}
	r.breakers[name] = cb
	return cb, nil
}

// Subscribe attaches l to every breaker, including ones registered later.
func (r *Registry) Subscribe(l Listener) {
	r.mutex.Lock()
	r.listeners = append(r.listeners, l)
	existing := r.guards()
	r.mutex.Unlock()

	for _, cb := range existing {
		cb.subscribe(l)
	}
}

func (r *Registry) Config() Config {
	return r.config
}

// Get returns the stats of one breaker.
func (r *Registry) Get(name string) (Stats, bool) {
	r.mutex.RLock()
	cb, ok := r.breakers[name]
	r.mutex.RUnlock()

	if !ok {
		return Stats{}, false
	}
	return cb.Stats(), true
}

// Reset forces every breaker closed.
func (r *Registry) Reset() {
	r.mutex.RLock()
	all := r.guards()
	r.mutex.RUnlock()

	// Listeners run inside Reset and may call back into the registry.
	for _, cb := range all {
		cb.Reset()
	}
}

// guards copies the breaker set. Caller must hold the lock.
func (r *Registry) guards() []guard {
	out := make([]guard, 0, len(r.breakers))
	for _, cb := range r.breakers {
		out = append(out, cb)
	}
	return out
}

func (r *Registry) Stats() map[string]State {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]State, len(r.breakers))
	for name, cb := range r.breakers {
		stats[name] = cb.State()
	}
	return stats
}

// Snapshot returns the stats of every breaker sorted by name.
func (r *Registry) Snapshot() []Stats {
	r.mutex.RLock()
	out := make([]Stats, 0, len(r.breakers))
	for _, cb := range r.breakers {
		out = append(out, cb.Stats())
	}
	r.mutex.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}
