package providence

import (
	"context"
	"log/slog"

	"github.com/alecthomas/errors"

	"github.com/alecthomas/providence/internal/depgraph"
)

// chain marks a context as belonging to a running initialization chain.
// Init routines receive a context carrying this marker; guarded operations
// invoked through that context re-enter the coordinator without re-acquiring
// the (already held) initialization lock, and a guarded operation on the
// provider currently initializing is a self-dependency.
type chain struct {
	registry *Registry
	current  *Provider
}

type chainKey struct{}

func chainFrom(ctx context.Context) *chain {
	c, _ := ctx.Value(chainKey{}).(*chain)
	return c
}

// initialize is the entry point of every guarded operation: ensure p and its
// transitive dependencies are initialized, in dependency order, exactly once
// each. reason names the operation that triggered the chain, for diagnostics.
func (r *Registry) initialize(ctx context.Context, p *Provider, reason string) error {
	// Fast path, no lock: Initialized is terminal.
	if p.Initialized() {
		return nil
	}
	if run := chainFrom(ctx); run != nil && run.registry == r {
		if run.current == p {
			return errors.WithStack(&SelfDependencyError{Provider: p.name, Operation: reason})
		}
		// The lock is held further up this call stack.
		return r.initChain(ctx, p, reason)
	}
	r.initMu.Lock()
	defer r.initMu.Unlock()
	if p.Initialized() {
		return nil
	}
	return r.initChain(ctx, p, reason)
}

// initChain validates the dependency subgraph reachable from p, computes an
// initialization order, and runs every not-yet-initialized member in that
// order. Called with the initialization lock held.
func (r *Registry) initChain(ctx context.Context, p *Provider, reason string) error {
	if err := r.runSetup(); err != nil {
		return err
	}

	r.logger.Debug("About to initialize provider", "provider", p.name, "reason", reason)

	edges, err := r.resolve(p)
	if err != nil {
		return err
	}
	deps := func(q *Provider) []*Provider { return edges[q] }

	// The ordering algorithm alone cannot distinguish "cannot order" from
	// malformed input, so cycles are rejected first.
	if stack, ok := depgraph.Cycle(p, deps); ok {
		names := make([]string, len(stack))
		for i, q := range stack {
			names[i] = q.name
		}
		return errors.WithStack(&CircularDependencyError{Provider: p.name, Stack: names})
	}

	order, err := depgraph.Sort(p, deps)
	if err != nil {
		// Unreachable once the cycle check has passed.
		return errors.Errorf("provider %s: %w", p.name, err)
	}
	if r.logger.Enabled(ctx, slog.LevelDebug) {
		r.logger.Debug("Initialization order", "provider", p.name, "order", orderStatus(order))
	}

	for _, q := range order {
		switch q.State() {
		case Initialized:
			continue

		case Initializing:
			// Only reachable from inside an init routine, through the chain
			// marker: the routine performed a guarded operation whose closure
			// contains a provider still on the current chain. That is a cycle
			// expressed through runtime behaviour rather than declarations.
			return errors.WithStack(&CircularDependencyError{Provider: p.name, Stack: []string{q.name, p.name}})

		case Failed:
			return errors.WithStack(&InitializationError{Provider: p.name, Dependency: q.name, cause: q.failure})
		}

		q.setState(Initializing)
		r.logger.Debug("Initializing provider", "provider", q.name)
		err := r.runRoutines(ctx, q)
		if err != nil {
			if q.poison {
				q.setState(Failed)
				q.failure = err
			} else {
				q.setState(Uninitialized)
			}
			// A self-dependency is reported as such, not as an init failure.
			var selfErr *SelfDependencyError
			if errors.As(err, &selfErr) {
				return err
			}
			return errors.WithStack(&InitializationError{Provider: p.name, Dependency: q.name, cause: err})
		}
		q.setState(Initialized)
		r.logger.Info("Provider initialized", "provider", q.name)
	}
	return nil
}

// runRoutines runs q's init routine and, on success, its ping routine, with
// the chain marker attached to the context.
func (r *Registry) runRoutines(ctx context.Context, q *Provider) error {
	runCtx := context.WithValue(ctx, chainKey{}, &chain{registry: r, current: q})
	if q.init != nil {
		if err := q.init(runCtx); err != nil {
			return err
		}
	}
	if q.ping != nil {
		if err := q.ping(runCtx); err != nil {
			return errors.Errorf("ping failed: %w", err)
		}
	}
	return nil
}

// runSetup runs the one-time setup hook if it is registered and has not yet
// succeeded. Called with the initialization lock held.
func (r *Registry) runSetup() error {
	r.mu.Lock()
	hook, done := r.setup, r.setupDone
	r.mu.Unlock()
	if done || hook == nil {
		return nil
	}
	if err := hook(); err != nil {
		return errors.WithStack(&SetupError{cause: err})
	}
	r.mu.Lock()
	r.setupDone = true
	r.mu.Unlock()
	r.logger.Info("Setup hook executed successfully")
	return nil
}

func orderStatus(order []*Provider) []string {
	out := make([]string, len(order))
	for i, q := range order {
		out[i] = q.name
		if q.Initialized() {
			out[i] += " (initialized)"
		}
	}
	return out
}
