package di

import "sync"

// Factory builds an instance on demand. It receives the per-resolution
// Resolver so it can pull its own dependencies through the originating scope
// (keeping cycle detection and override propagation intact).
//
// A factory error is propagated unchanged to the resolution caller and the
// failed resolution is never cached.
type Factory func(r *Resolver) (any, error)

// Build constructs an instance from already-resolved dependencies. The deps
// slice matches the token order declared in the Construct registration.
type Build func(deps []any) (any, error)

// Registration couples a token with a construction strategy and a lifetime.
//
// Build one with Provide, Constant, or Construct; the zero Registration is
// invalid.
type Registration struct {
	// Token identifies the registration within a registry.
	Token Token

	// Lifetime selects the caching policy. Constants are always Singleton.
	Lifetime Lifetime

	factory  Factory
	build    Build
	deps     []Token
	value    any
	constant bool
}

// Provide builds a factory registration.
func Provide(tok Token, lifetime Lifetime, factory Factory) Registration {
	return Registration{Token: tok, Lifetime: lifetime, factory: factory}
}

// Constant builds a registration for a pre-built value. The value requires no
// invocation and is cached in the resolving scope on first resolution.
func Constant(tok Token, value any) Registration {
	return Registration{Token: tok, Lifetime: Singleton, value: value, constant: true}
}

// Construct builds a registration for a constructable description: a list of
// dependency tokens plus a build function. At resolution time each dependency
// is resolved recursively through the originating scope before build runs, so
// build never observes a partially-constructed graph.
func Construct(tok Token, lifetime Lifetime, deps []Token, build Build) Registration {
	return Registration{Token: tok, Lifetime: lifetime, deps: deps, build: build}
}

// validate checks structural correctness of a registration.
func (reg Registration) validate() error {
	if reg.Token.IsZero() {
		return ErrZeroToken
	}
	if reg.constant {
		return nil
	}
	if reg.build != nil {
		for _, dep := range reg.deps {
			if dep.IsZero() {
				return ErrZeroToken
			}
		}
		return nil
	}
	if reg.factory == nil {
		if reg.deps != nil {
			return ErrNilBuild
		}
		return ErrNilFactory
	}
	return nil
}

// Registry maps tokens to registrations. It owns the entries exclusively;
// scopes read it during resolution but instances never live here.
//
// A Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[Token]Registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Token]Registration)}
}

// Register adds an entry. Registering a token that already has an entry in
// this registry is rejected with AlreadyRegisteredError: replacement is an
// explicit operation (Replace, or (*Scope).Override), never an accident.
func (r *Registry) Register(reg Registration) error {
	if err := reg.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[reg.Token]; exists {
		return AlreadyRegisteredError{Token: reg.Token}
	}
	r.entries[reg.Token] = reg
	return nil
}

// Replace adds or overwrites an entry unconditionally. Callers that hold
// cached instances for the token are responsible for invalidating them; see
// (*Scope).Override.
func (r *Registry) Replace(reg Registration) error {
	if err := reg.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[reg.Token] = reg
	return nil
}

// Lookup returns the registration for tok. It is a pure read with no side
// effects; ok is false when no entry exists in this registry (callers walk the
// scope chain themselves).
func (r *Registry) Lookup(tok Token) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[tok]
	return reg, ok
}

// Tokens returns the tokens registered in this registry, in no particular
// order. Intended for debugging and introspection.
func (r *Registry) Tokens() []Token {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Token, 0, len(r.entries))
	for tok := range r.entries {
		out = append(out, tok)
	}
	return out
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
