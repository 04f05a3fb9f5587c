// Package providence is a lazy-initialization dependency container: a set of
// process-wide provider singletons, each declaring static dependencies on
// other providers, initialized on first use in dependency order, exactly
// once, thread-safely.
//
// A provider is declared once, at load time, with its dependency set, an
// init routine and optional guarded fields:
//
//	var Database = providence.MustDeclare("database",
//		providence.Requires(logging.Provider),
//		providence.Init(func(ctx context.Context) error {
//			return conn.Set(ctx, dial())
//		}),
//	)
//
//	var conn = providence.NewField[*Conn](Database, "conn")
//
// There is no explicit start-up call. Calling any guarded operation (a
// function wrapped with [GuardFunc] or [GuardValue], [Provider.Do], or a
// [Field] access) triggers initialization of the provider's full dependency
// closure: the graph is checked for cycles, topologically ordered, and every
// not-yet-initialized member is initialized in that order under a single
// global lock.
//
// An init routine that fails leaves its provider uninitialized; the next
// guarded access retries from scratch. Declare a provider with
// [PoisonOnFailure] to make the first failure permanent instead.
package providence
