package providence

import (
	"context"
	"slices"
	"sync/atomic"
)

// State is the lifecycle state of a provider. There is exactly one state per
// provider for the life of the process; providers are never instantiated.
type State int32

const (
	// Uninitialized providers have never run their init routine, or failed
	// their last run and will retry on the next guarded access.
	Uninitialized State = iota
	// Initializing providers are currently running their init routine.
	Initializing
	// Initialized is terminal for the remainder of the process, unless a test
	// harness explicitly resets the registry.
	Initialized
	// Failed providers declared with [PoisonOnFailure] stay failed; every
	// subsequent access returns the recorded failure.
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Initialized:
		return "initialized"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// InitFunc is a provider init or ping routine. It runs at most once per
// process lifetime on success, under the registry's initialization lock.
//
// The context passed to the routine carries the initialization chain marker.
// Any guarded operation invoked from inside the routine must receive this
// context, otherwise it will deadlock on the initialization lock.
type InitFunc func(ctx context.Context) error

// Ref is a reference to a provider in a dependency declaration: either a
// *Provider handle or a forward [Name] reference, resolved on first access so
// that providers may be declared in any order.
type Ref interface {
	providerName() string
}

// Name references a provider by name before it has been declared.
type Name string

func (n Name) providerName() string { return string(n) }

// Provider is the process-wide record for one singleton provider: its
// declared dependencies, its init routine, and its lifecycle state.
type Provider struct {
	registry *Registry
	name     string
	requires []Ref
	init     InitFunc
	ping     InitFunc
	poison   bool

	state atomic.Int32
	// failure is the recorded init failure of a poisoned provider. Guarded by
	// the registry initialization lock.
	failure error
	// fieldResets are invoked by Registry.Reset. Guarded by registry.mu.
	fieldResets []func()
	fields      []string
}

func (p *Provider) providerName() string { return p.name }

// Name returns the provider's unique name within its registry.
func (p *Provider) Name() string { return p.name }

// State returns the provider's current lifecycle state.
func (p *Provider) State() State { return State(p.state.Load()) }

// Initialized reports whether the provider's init routine has completed
// successfully.
func (p *Provider) Initialized() bool { return p.State() == Initialized }

func (p *Provider) setState(s State) { p.state.Store(int32(s)) }

// Requires returns the names of the provider's declared direct dependencies.
func (p *Provider) Requires() []string {
	names := make([]string, len(p.requires))
	for i, ref := range p.requires {
		names[i] = ref.providerName()
	}
	return names
}

// Fields returns the names of the provider's declared guarded fields.
func (p *Provider) Fields() []string {
	p.registry.mu.Lock()
	defer p.registry.mu.Unlock()
	return slices.Clone(p.fields)
}

// Initialize ensures the provider and its transitive dependencies are
// initialized, in dependency order, exactly once each.
//
// Guarded operations call this implicitly; user code never needs to.
func (p *Provider) Initialize(ctx context.Context) error {
	return p.registry.initialize(ctx, p, "Initialize")
}

// Option configures a provider declaration.
type Option func(*Provider) error

// Requires declares the provider's direct dependencies.
//
// Dependencies are fixed at declaration time. References are resolved on
// first access, so a [Name] may refer to a provider declared later.
func Requires(refs ...Ref) Option {
	return func(p *Provider) error {
		for _, ref := range refs {
			if ref == nil {
				return definitionErrorf("provider %s: nil dependency reference", p.name)
			}
			name := ref.providerName()
			if name == p.name {
				return definitionErrorf("provider %s cannot require itself", p.name)
			}
			// Requires is set semantics, duplicates collapse.
			if slices.Contains(p.Requires(), name) {
				continue
			}
			p.requires = append(p.requires, ref)
		}
		return nil
	}
}

// Init declares the provider's init routine, run exactly once on first
// guarded access, after all dependencies have initialized.
func Init(fn InitFunc) Option {
	return func(p *Provider) error {
		if fn == nil {
			return definitionErrorf("provider %s: nil init routine", p.name)
		}
		if p.init != nil {
			return definitionErrorf("provider %s: init routine declared twice", p.name)
		}
		p.init = fn
		return nil
	}
}

// Ping declares a health check run immediately after a successful init. A
// failing ping fails initialization exactly like a failing init routine.
func Ping(fn InitFunc) Option {
	return func(p *Provider) error {
		if fn == nil {
			return definitionErrorf("provider %s: nil ping routine", p.name)
		}
		if p.ping != nil {
			return definitionErrorf("provider %s: ping routine declared twice", p.name)
		}
		p.ping = fn
		return nil
	}
}

// PoisonOnFailure makes an init failure permanent: the provider transitions
// to [Failed] and every subsequent access returns the recorded failure.
//
// The default is to leave a failed provider [Uninitialized] so the next
// guarded access retries from scratch.
func PoisonOnFailure() Option {
	return func(p *Provider) error {
		p.poison = true
		return nil
	}
}
