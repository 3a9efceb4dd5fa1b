package di

import (
	"errors"
	"strings"
)

var (
	// ErrNilScope is returned when a resolution is attempted on a nil scope.
	ErrNilScope = errors.New("di: nil scope")

	// ErrNilFactory is returned when a factory registration is created with a
	// nil factory function.
	ErrNilFactory = errors.New("di: nil factory function")

	// ErrNilBuild is returned when a constructable registration is created
	// with a nil build function.
	ErrNilBuild = errors.New("di: nil build function")

	// ErrZeroToken is returned when a registration or resolution uses the zero
	// Token value.
	ErrZeroToken = errors.New("di: zero token")
)

// UnregisteredTokenError is returned when a token has no registration anywhere
// in the scope chain. It indicates a wiring mistake (misspelled token, missing
// registration); the container never default-constructs.
type UnregisteredTokenError struct{ Token Token }

// Error implements the error interface.
func (e UnregisteredTokenError) Error() string {
	// Example: di: no registration for token "db" in scope chain
	return "di: no registration for token " + e.Token.String() + " in scope chain"
}

// AlreadyRegisteredError is returned when a token is registered twice in the
// same registry. Use (*Scope).Override to replace an existing registration.
type AlreadyRegisteredError struct{ Token Token }

// Error implements the error interface.
func (e AlreadyRegisteredError) Error() string {
	// Example: di: token "db" already registered (use Override to replace)
	return "di: token " + e.Token.String() + " already registered (use Override to replace)"
}

// CircularDependencyError is returned when a token transitively depends on
// itself. Cycle holds the ordered token path, starting and ending at the token
// that closed the cycle.
type CircularDependencyError struct{ Cycle []Token }

// Error implements the error interface.
func (e CircularDependencyError) Error() string {
	// Example: di: circular dependency: "a" -> "b" -> "a"
	var b strings.Builder
	b.WriteString("di: circular dependency: ")
	for i, tok := range e.Cycle {
		if i > 0 {
			b.WriteString(" -> ")
		}
		b.WriteString(tok.String())
	}
	return b.String()
}

// WrongTypeError is returned by the generic Resolve helpers when a token
// resolves successfully but the instance is not assignable to the requested
// type.
type WrongTypeError struct {
	// Token is the token that was resolved.
	Token Token

	// GotType is reflect.TypeOf(instance).String(), or "<nil>" for a nil
	// instance.
	GotType string
}

// Error implements the error interface.
func (e WrongTypeError) Error() string {
	// Example: di: token "db" resolved to wrong type (*mypkg.Logger)
	return "di: token " + e.Token.String() + " resolved to wrong type (" + e.GotType + ")"
}
