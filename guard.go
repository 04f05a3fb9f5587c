package providence

import "context"

// Do ensures p and its transitive dependencies are initialized, then invokes
// op with the same context. It is the primitive behind [GuardFunc] and
// [GuardValue] for operations whose signatures don't fit either.
func (p *Provider) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if err := p.registry.initialize(ctx, p, "Do"); err != nil {
		return err
	}
	return op(ctx)
}

// GuardFunc wraps fn so that calling it first ensures p is initialized. The
// call is forwarded unchanged and its error returned verbatim.
//
// Calling a guarded function from inside p's own init routine returns a
// [SelfDependencyError].
func GuardFunc(p *Provider, fn func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := p.registry.initialize(ctx, p, "GuardFunc"); err != nil {
			return err
		}
		return fn(ctx)
	}
}

// GuardValue is [GuardFunc] for operations returning a value.
func GuardValue[T any](p *Provider, fn func(ctx context.Context) (T, error)) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		if err := p.registry.initialize(ctx, p, "GuardValue"); err != nil {
			var zero T
			return zero, err
		}
		return fn(ctx)
	}
}
