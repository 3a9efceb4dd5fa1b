// Package di implements a small scoped IoC container.
//
// The container is built from three pieces:
//
//   - Registry: maps a Token to a construction strategy (factory, constant, or
//     constructable description) plus a Lifetime. Registration is pure
//     bookkeeping; nothing is constructed until first resolution.
//   - Scope: an isolated registry + instance cache pair, optionally chained to
//     a parent. A scope reads (never writes) its ancestors' registrations, so a
//     child scope inherits the bulk of an application's wiring while overriding
//     a subset.
//   - Resolver: turns a Token into an instance within one scope, applying
//     caching, lifecycle policy, and cycle detection.
//
// Design goals:
//   - Explicit registration: no reflection-driven constructor injection; wiring
//     lives in your composition root (or is generated by cmd/digen).
//   - Scope-local overrides: substituting a dependency for a test never mutates
//     shared state and is discarded with the scope.
//   - Safe defaults: duplicate registrations, dependency cycles, and missing
//     tokens surface as typed errors you can assert on.
//
// Lifecycle semantics
//
// Singleton and Scoped registrations cache in the scope that performed the
// resolution, so a child scope never pollutes its parent's cache and a parent
// never observes a child's overrides. Transient registrations are rebuilt on
// every resolution.
//
// Typical bootstrap:
//
//	root := di.New()
//	_ = root.Constant(cfgToken, cfg)
//	_ = root.Provide(dbToken, di.Singleton, openDatabase)
//	_ = root.Construct(repoToken, di.Singleton, []di.Token{dbToken}, newRepository)
//
//	repo, err := di.Resolve[*Repository](root, repoToken)
//
// Typical test setup:
//
//	child := root.Child()
//	child.OverrideValue(dbToken, &fakeDB{})
//	repo := di.MustResolve[*Repository](child, repoToken) // sees fakeDB transitively
//
// Notes on performance:
//   - A cache hit is a map read under an RWMutex read lock; no strategy runs.
//   - Error paths avoid fmt.Errorf so failed lookups stay cheap when used for
//     control flow.
package di
