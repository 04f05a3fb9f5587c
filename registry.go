package providence

import (
	"log/slog"
	"sort"
	"sync"
)

// Registry holds the process-wide bookkeeping for a set of providers: one
// record per provider, the global initialization lock, and the one-time
// setup hook.
//
// Most programs use the package-level default registry via [Declare] and
// friends. Tests create isolated registries with [NewRegistry].
type Registry struct {
	logger *slog.Logger

	// initMu serializes the entire check/order/initialize sequence for any
	// provider. Coarse but correct: unrelated chains that race at startup
	// are serialized.
	initMu sync.Mutex

	// mu guards declaration-time data: the provider map and the setup hook.
	mu        sync.Mutex
	providers map[string]*Provider
	setup     func() error
	setupDone bool
}

// RegistryOption configures a [Registry].
type RegistryOption func(*Registry)

// WithLogger sets the logger used for initialization chain logging.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry creates an empty provider registry.
func NewRegistry(options ...RegistryOption) *Registry {
	r := &Registry{
		logger:    slog.Default(),
		providers: map[string]*Provider{},
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Declare registers a new provider. The dependency set, init routine and
// failure policy are fixed here and immutable afterwards.
//
// Declaration does not validate the dependency graph: cycle detection runs
// lazily on first access, because edges may reference providers declared
// later.
func (r *Registry) Declare(name string, options ...Option) (*Provider, error) {
	if name == "" {
		return nil, definitionErrorf("provider name cannot be empty")
	}
	p := &Provider{registry: r, name: name}
	for _, option := range options {
		if err := option(p); err != nil {
			return nil, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; ok {
		return nil, definitionErrorf("provider %s is already declared", name)
	}
	r.providers[name] = p
	return p, nil
}

// MustDeclare is like [Registry.Declare] but panics on a malformed
// declaration. Intended for package-level provider variables.
func (r *Registry) MustDeclare(name string, options ...Option) *Provider {
	p, err := r.Declare(name, options...)
	if err != nil {
		panic(err)
	}
	return p
}

// OnSetup registers the one-time setup hook, guaranteed to run exactly once
// before the first provider initialization of any kind. If the hook fails
// the triggering access aborts with a [SetupError] and the hook is retried
// on the next access.
//
// Only one hook may be registered per registry.
func (r *Registry) OnSetup(fn func() error) error {
	if fn == nil {
		return definitionErrorf("nil setup hook")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setup != nil {
		return definitionErrorf("setup hook is already registered")
	}
	r.setup = fn
	return nil
}

// Lookup returns the provider declared under name.
func (r *Registry) Lookup(name string) (*Provider, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[name]
	return p, ok
}

// Providers returns all declared providers, sorted by name.
func (r *Registry) Providers() []*Provider {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Reset returns every provider to [Uninitialized], clears guarded fields and
// marks the setup hook as not-run. It exists for test harnesses only and is
// not part of normal operation.
func (r *Registry) Reset() {
	r.initMu.Lock()
	defer r.initMu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.providers {
		p.setState(Uninitialized)
		p.failure = nil
		for _, reset := range p.fieldResets {
			reset()
		}
	}
	r.setupDone = false
}

// resolve walks the dependency references reachable from root, resolving
// each to a declared provider, and returns the edge set of the subgraph.
// Resolution tolerates cycles; detecting them is the analyzer's job.
func (r *Registry) resolve(root *Provider) (map[*Provider][]*Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	edges := map[*Provider][]*Provider{}
	stack := []*Provider{root}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := edges[p]; ok {
			continue
		}
		deps := make([]*Provider, 0, len(p.requires))
		for _, ref := range p.requires {
			dep, ok := ref.(*Provider)
			if !ok {
				dep, ok = r.providers[ref.providerName()]
				if !ok {
					return nil, definitionErrorf("provider %s requires %q which is not declared", p.name, ref.providerName())
				}
			}
			if dep.registry != r {
				return nil, definitionErrorf("provider %s requires %s from a different registry", p.name, dep.name)
			}
			deps = append(deps, dep)
			stack = append(stack, dep)
		}
		edges[p] = deps
	}
	return edges, nil
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide default registry.
func Default() *Registry { return defaultRegistry }

// Declare registers a provider in the default registry.
func Declare(name string, options ...Option) (*Provider, error) {
	return defaultRegistry.Declare(name, options...)
}

// MustDeclare registers a provider in the default registry, panicking on a
// malformed declaration.
func MustDeclare(name string, options ...Option) *Provider {
	return defaultRegistry.MustDeclare(name, options...)
}

// OnSetup registers the one-time setup hook on the default registry.
func OnSetup(fn func() error) error { return defaultRegistry.OnSetup(fn) }

// Reset resets the default registry. Test harnesses only.
func Reset() { defaultRegistry.Reset() }
