package di

// Lifetime selects the caching policy applied when a registration is resolved.
type Lifetime uint8

const (
	// Singleton caches the instance in the resolving scope: at most one
	// instance per scope for the lifetime of that scope.
	Singleton Lifetime = iota

	// Scoped behaves like Singleton. The distinct name exists so registrations
	// can state intent: Scoped graphs are meant to be resolved from short-lived
	// child scopes (one per request, one per test), Singleton graphs from a
	// long-lived root.
	Scoped

	// Transient rebuilds the instance on every resolution; nothing is cached.
	Transient
)

// String implements fmt.Stringer.
func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Scoped:
		return "scoped"
	case Transient:
		return "transient"
	default:
		return "unknown"
	}
}

// cacheable reports whether resolved instances should be stored in the
// originating scope's cache.
func (l Lifetime) cacheable() bool { return l == Singleton || l == Scoped }
