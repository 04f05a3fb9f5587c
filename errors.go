package providence

import (
	"fmt"
	"strings"

	"github.com/alecthomas/errors"
)

// CircularDependencyError is returned when the dependency graph reachable
// from a provider contains a cycle.
type CircularDependencyError struct {
	// Provider is the provider whose access triggered the check.
	Provider string
	// Stack contains every provider on the offending dependency path. The
	// order is the traversal order, not a canonical cycle ordering.
	Stack []string
}

func (c *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency in provider %s within recursion stack: %s",
		c.Provider, strings.Join(c.Stack, ", "))
}

// SelfDependencyError is returned when a guarded operation is invoked from
// within its own provider's init routine.
type SelfDependencyError struct {
	Provider string
	// Operation is the guarded operation that was invoked, when known.
	Operation string
}

func (s *SelfDependencyError) Error() string {
	op := s.Operation
	if op == "" {
		op = "a guarded operation"
	}
	return fmt.Sprintf("provider %s invoked %s from inside its own init routine", s.Provider, op)
}

// InitializationError wraps a failure raised by a provider's init or ping
// routine. Provider is the provider whose access triggered the chain and
// Dependency is the provider that actually failed; they may be the same.
type InitializationError struct {
	Provider   string
	Dependency string
	cause      error
}

func (i *InitializationError) Error() string {
	if i.Provider == i.Dependency {
		return fmt.Sprintf("failed to initialize provider %s: %s", i.Provider, i.cause)
	}
	return fmt.Sprintf("failed to initialize provider %s because of %s: %s", i.Provider, i.Dependency, i.cause)
}

func (i *InitializationError) Unwrap() error { return i.cause }

// SetupError is returned when the one-time setup hook fails. The hook is
// considered not-run and will be retried on the next guarded access.
type SetupError struct {
	cause error
}

func (s *SetupError) Error() string {
	return fmt.Sprintf("error while invoking the setup hook: %s", s.cause)
}

func (s *SetupError) Unwrap() error { return s.cause }

// FieldNotSetError is returned when a guarded field is read before any value
// has ever been assigned to it.
type FieldNotSetError struct {
	Provider string
	Field    string
}

func (f *FieldNotSetError) Error() string {
	return fmt.Sprintf("provider %s field %q was never set during initialization", f.Provider, f.Field)
}

// GuardedAssignmentError is returned when a guarded field is written from
// outside its provider's init routine before it has ever been set.
type GuardedAssignmentError struct {
	Provider string
	Field    string
}

func (g *GuardedAssignmentError) Error() string {
	return fmt.Sprintf("provider %s field %q may only be assigned inside its init routine", g.Provider, g.Field)
}

// DefinitionError is returned for malformed declarations: duplicate provider
// names, nil routines, unresolvable dependency references, and so on.
type DefinitionError struct {
	Message string
}

func (d *DefinitionError) Error() string { return d.Message }

func definitionErrorf(format string, args ...any) error {
	return errors.WithStack(&DefinitionError{Message: fmt.Sprintf(format, args...)})
}
