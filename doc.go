// Package codi is the repository root for a small scope-based dependency
// injection container.
//
// The container lives in the di package: tokens map to construction
// strategies in a Registry, a Scope memoizes resolved instances per lifetime,
// and child scopes override registrations for tests without touching the
// parent graph.
//
// See subpackages:
//   - di: the container (tokens, registry, scopes, resolver)
//   - cmd/digen: code generator turning a graph spec into explicit wiring
//   - examples/flashcards: end-to-end wiring of a small application graph
//   - examples/httpapi: per-request child scopes behind an HTTP router
package codi
