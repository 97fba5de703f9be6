package scoring

import (
	"context"
	"sync"

	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscore/pkg/errors"
)

// Constructor builds a scorer from its options and injected collaborators.
type Constructor func(ctx context.Context, opts Options, deps Dependencies) (Scorer, error)

// Registry maps scorer names to constructors. Names are matched exactly.
type Registry struct {
	mu    sync.RWMutex
	names []string
	ctors map[string]Constructor
	deps  Dependencies
}

// NewRegistry returns an empty registry whose constructors receive deps.
func NewRegistry(deps Dependencies) *Registry {
	return &Registry{
		ctors: make(map[string]Constructor),
		deps:  deps.withDefaults(),
	}
}

// NewDefaultRegistry returns a registry holding the built-in scorers in the
// order no_sulphur, tanimoto, activity_model.
func NewDefaultRegistry(deps Dependencies) *Registry {
	r := NewRegistry(deps)
	r.MustRegister(NameNoSulphur, NewNoSulphur)
	r.MustRegister(NameTanimoto, NewTanimoto)
	r.MustRegister(NameActivityModel, NewActivityModel)
	return r
}

// Register adds a scorer variant. Registering a name twice is an error.
func (r *Registry) Register(name string, ctor Constructor) error {
	if name == "" || ctor == nil {
		return errors.InvalidParam("scorer name and constructor are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ctors[name]; exists {
		return errors.New(errors.ErrCodeScorerConfigInvalid, "scorer already registered").WithDetail(name)
	}
	r.ctors[name] = ctor
	r.names = append(r.names, name)
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(name string, ctor Constructor) {
	if err := r.Register(name, ctor); err != nil {
		panic(err)
	}
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ctors[name]
	return ok
}

// Get constructs the scorer registered under name. An unknown name is
// logged together with the valid names and returned as an unknown-scorer
// error.
func (r *Registry) Get(ctx context.Context, name string, opts Options) (Scorer, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[name]
	r.mu.RUnlock()
	if !ok {
		valid := r.Names()
		r.deps.Logger.Error("unknown scoring function",
			logging.String("name", name),
			logging.Strings("valid", valid),
		)
		return nil, errors.UnknownScorer(name, valid)
	}
	if opts == nil {
		opts = Options{}
	}
	return ctor(ctx, opts, r.deps)
}

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *Registry
)

// DefaultRegistry returns the process-wide registry of built-in scorers,
// created on first use with default collaborators.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewDefaultRegistry(Dependencies{})
	})
	return defaultRegistry
}

// GetScoringFunction constructs a scorer by name from the default registry.
func GetScoringFunction(ctx context.Context, name string, opts Options) (Scorer, error) {
	return DefaultRegistry().Get(ctx, name, opts)
}
