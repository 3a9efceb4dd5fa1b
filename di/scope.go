package di

import (
	"reflect"
	"sync"
)

// Scope composes a Registry and an instance cache into an isolated resolution
// context.
//
// Scopes form a chain: a child scope reads its ancestors' registrations for
// tokens it does not register locally, but caches are strictly scope-local.
// Instances resolved through a scope are constructed and cached by that
// scope, never by an ancestor. That is what keeps a child's overrides
// invisible to the parent and lets each test run against a fresh graph.
//
// A long-lived root scope holds the application wiring; each test scenario
// (and each request, for Scoped graphs) derives its own child and discards it.
//
// A Scope is safe for concurrent use. Cache hits take a read lock only.
// Construction of uncached instances is serialized per scope: once a
// resolution completes and is cached, every later resolution observes the same
// instance, and no token is ever constructed twice by racing callers.
type Scope struct {
	parent   *Scope
	registry *Registry

	mu    sync.RWMutex
	cache map[Token]any

	// buildMu serializes strategy invocation within this scope. Holding one
	// lock for the whole recursive resolution keeps concurrent resolutions of
	// mutually-dependent tokens from deadlocking on per-token locks.
	buildMu sync.Mutex
}

// New creates a root scope with an empty registry.
func New() *Scope {
	return NewWithRegistry(nil)
}

// NewWithRegistry creates a root scope around a pre-populated registry, for
// bootstrap code that assembles wiring before the scope exists. A nil registry
// is replaced with a fresh one.
func NewWithRegistry(reg *Registry) *Scope {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Scope{registry: reg, cache: make(map[Token]any)}
}

// Child derives a scope with an empty cache and an empty registry that defers
// to this scope's chain for unregistered tokens. Registrations made on the
// child are visible only to the child and its own descendants.
func (s *Scope) Child() *Scope {
	return &Scope{
		parent:   s,
		registry: NewRegistry(),
		cache:    make(map[Token]any),
	}
}

// Registry exposes this scope's own registry (not the chain).
func (s *Scope) Registry() *Registry { return s.registry }

// Register adds a registration to this scope. See (*Registry).Register for
// the duplicate-token policy.
func (s *Scope) Register(reg Registration) error {
	return s.registry.Register(reg)
}

// Provide registers a factory. Shorthand for Register(Provide(...)).
func (s *Scope) Provide(tok Token, lifetime Lifetime, factory Factory) error {
	return s.registry.Register(Provide(tok, lifetime, factory))
}

// Constant registers a pre-built value. Shorthand for Register(Constant(...)).
func (s *Scope) Constant(tok Token, value any) error {
	return s.registry.Register(Constant(tok, value))
}

// Construct registers a constructable description. Shorthand for
// Register(Construct(...)).
func (s *Scope) Construct(tok Token, lifetime Lifetime, deps []Token, build Build) error {
	return s.registry.Register(Construct(tok, lifetime, deps, build))
}

// Override replaces the registration for reg.Token in this scope and drops
// any instance this scope has already cached for it, so subsequent
// resolutions pick up the replacement. Ancestor scopes are untouched.
//
// Known limitation: instances already cached in this scope that hold a direct
// reference to the pre-override value are not updated retroactively. Override
// before the first resolution that could transitively depend on the token.
func (s *Scope) Override(reg Registration) error {
	if err := s.registry.Replace(reg); err != nil {
		return err
	}
	s.invalidate(reg.Token)
	return nil
}

// OverrideValue overrides a token with a pre-built value, the common path for
// substituting a test double.
func (s *Scope) OverrideValue(tok Token, value any) error {
	return s.Override(Constant(tok, value))
}

// Resolved reports whether this scope's own cache holds an instance for tok.
func (s *Scope) Resolved(tok Token) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cache[tok]
	return ok
}

// Registered reports whether tok has a registration anywhere in the scope
// chain.
func (s *Scope) Registered(tok Token) bool {
	_, ok := s.lookup(tok)
	return ok
}

// Resolve produces the instance for tok: a cached instance when present,
// otherwise a newly constructed one per the registration's strategy and
// lifetime.
//
// It fails with UnregisteredTokenError when no registration exists in the
// scope chain, with CircularDependencyError when tok transitively depends on
// itself, and otherwise propagates strategy errors unchanged (and uncached).
func (s *Scope) Resolve(tok Token) (any, error) {
	if s == nil {
		return nil, ErrNilScope
	}
	if tok.IsZero() {
		return nil, ErrZeroToken
	}
	if v, ok := s.cached(tok); ok {
		return v, nil
	}

	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	r := &Resolver{scope: s, building: make(map[Token]struct{})}
	return r.Resolve(tok)
}

// MustResolve is like Resolve but panics on error. Intended for bootstrap
// code where a wiring mistake should fail fast.
func (s *Scope) MustResolve(tok Token) any {
	v, err := s.Resolve(tok)
	if err != nil {
		panic(err)
	}
	return v
}

// cached reads this scope's own cache. Caches never chain to the parent.
func (s *Scope) cached(tok Token) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.cache[tok]
	return v, ok
}

func (s *Scope) store(tok Token, v any) {
	s.mu.Lock()
	s.cache[tok] = v
	s.mu.Unlock()
}

func (s *Scope) invalidate(tok Token) {
	s.mu.Lock()
	delete(s.cache, tok)
	s.mu.Unlock()
}

// lookup walks the registry chain from this scope up through its ancestors,
// nearest first.
func (s *Scope) lookup(tok Token) (Registration, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if reg, ok := sc.registry.Lookup(tok); ok {
			return reg, true
		}
	}
	return Registration{}, false
}

// Resolver carries the state of one resolution call: the originating scope
// plus the working set of tokens currently under construction. Factories
// receive it so their own dependency lookups stay on the same resolution path
// (overrides propagate, cycles are caught).
//
// A Resolver is only valid for the duration of the resolution that created it;
// do not retain it.
type Resolver struct {
	scope    *Scope
	stack    []Token
	building map[Token]struct{}
}

// Resolve resolves tok within the originating scope.
func (r *Resolver) Resolve(tok Token) (any, error) {
	if tok.IsZero() {
		return nil, ErrZeroToken
	}
	s := r.scope
	if v, ok := s.cached(tok); ok {
		return v, nil
	}
	if _, busy := r.building[tok]; busy {
		return nil, CircularDependencyError{Cycle: r.cyclePath(tok)}
	}

	reg, ok := s.lookup(tok)
	if !ok {
		return nil, UnregisteredTokenError{Token: tok}
	}

	r.building[tok] = struct{}{}
	r.stack = append(r.stack, tok)

	instance, err := r.construct(reg)

	r.stack = r.stack[:len(r.stack)-1]
	delete(r.building, tok)

	if err != nil {
		return nil, err
	}
	if reg.Lifetime.cacheable() {
		// The dependency is fully constructed before it is cached or handed
		// to a dependent; partially-built values are never observable.
		s.store(tok, instance)
	}
	return instance, nil
}

// construct invokes the registration's strategy.
func (r *Resolver) construct(reg Registration) (any, error) {
	switch {
	case reg.constant:
		return reg.value, nil
	case reg.build != nil:
		deps := make([]any, len(reg.deps))
		for i, depTok := range reg.deps {
			dep, err := r.Resolve(depTok)
			if err != nil {
				return nil, err
			}
			deps[i] = dep
		}
		return reg.build(deps)
	default:
		return reg.factory(r)
	}
}

// cyclePath returns the ordered cycle: from the first occurrence of tok on the
// construction stack through the stack top, closed by tok itself.
func (r *Resolver) cyclePath(tok Token) []Token {
	start := 0
	for i, t := range r.stack {
		if t == tok {
			start = i
			break
		}
	}
	cycle := make([]Token, 0, len(r.stack)-start+1)
	cycle = append(cycle, r.stack[start:]...)
	cycle = append(cycle, tok)
	return cycle
}

// Resolve resolves tok from s and type-asserts the instance to T.
//
// It returns WrongTypeError when the token resolves to something that is not a
// T; resolution errors pass through unchanged.
func Resolve[T any](s *Scope, tok Token) (T, error) {
	var zero T
	v, err := s.Resolve(tok)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, WrongTypeError{Token: tok, GotType: typeName(v)}
	}
	return typed, nil
}

// MustResolve is like Resolve but panics on error.
func MustResolve[T any](s *Scope, tok Token) T {
	v, err := Resolve[T](s, tok)
	if err != nil {
		panic(err)
	}
	return v
}

// ResolveIn is the typed helper for use inside factories: it resolves through
// the per-resolution Resolver so cycle detection spans factory boundaries.
func ResolveIn[T any](r *Resolver, tok Token) (T, error) {
	var zero T
	v, err := r.Resolve(tok)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, WrongTypeError{Token: tok, GotType: typeName(v)}
	}
	return typed, nil
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
