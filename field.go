package providence

import (
	"context"
	"sync"

	"github.com/alecthomas/errors"
)

// Field is a guarded provider field: declared with a type but no value, it
// may only be assigned from inside its owning provider's init routine until
// it has been set once. The moment it is assigned from outside the init
// routine it becomes permanently unguarded.
//
// Reading an unassigned field triggers initialization of the owning provider
// exactly like a guarded method call, since the field may only become
// defined as a side effect of initialization.
type Field[T any] struct {
	provider *Provider
	name     string

	mu       sync.Mutex
	value    T
	assigned bool
}

// NewField declares a guarded field on p. It panics on a malformed
// declaration and is intended for package-level variables, like
// [Registry.MustDeclare].
func NewField[T any](p *Provider, name string) *Field[T] {
	if p == nil {
		panic(&DefinitionError{Message: "field " + name + ": nil provider"})
	}
	if name == "" {
		panic(&DefinitionError{Message: "provider " + p.name + ": field name cannot be empty"})
	}
	f := &Field[T]{provider: p, name: name}
	r := p.registry
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range p.fields {
		if existing == name {
			panic(&DefinitionError{Message: "provider " + p.name + ": field " + name + " is already declared"})
		}
	}
	p.fields = append(p.fields, name)
	p.fieldResets = append(p.fieldResets, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		var zero T
		f.value = zero
		f.assigned = false
	})
	return f
}

// Name returns the field name.
func (f *Field[T]) Name() string { return f.name }

// Get returns the field's value, initializing the owning provider first if
// the field has not been assigned yet. If no value was ever assigned, even
// after initialization completes, Get returns a [FieldNotSetError].
func (f *Field[T]) Get(ctx context.Context) (T, error) {
	f.mu.Lock()
	if f.assigned {
		value := f.value
		f.mu.Unlock()
		return value, nil
	}
	f.mu.Unlock()
	var zero T
	if err := f.provider.registry.initialize(ctx, f.provider, f.name); err != nil {
		return zero, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.assigned {
		return zero, errors.WithStack(&FieldNotSetError{Provider: f.provider.name, Field: f.name})
	}
	return f.value, nil
}

// Set assigns the field. Before the first assignment this is only permitted
// from inside the owning provider's init routine, identified by the chain
// marker on ctx; any later write, from anywhere, is permitted.
func (f *Field[T]) Set(ctx context.Context, value T) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run := chainFrom(ctx)
	inside := run != nil && run.current == f.provider
	if !f.assigned && !inside {
		return errors.WithStack(&GuardedAssignmentError{Provider: f.provider.name, Field: f.name})
	}
	f.value = value
	f.assigned = true
	return nil
}
