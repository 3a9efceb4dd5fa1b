package di

import (
	"reflect"
	"strconv"
)

type tokenKind uint8

const (
	kindNamed tokenKind = iota + 1
	kindTyped
)

// Token identifies a dependency within a scope chain.
//
// A token is either an opaque string key (Key) or a type identity (Type).
// Tokens are immutable values, comparable with ==, and usable as map keys.
// Two registrations for the same token in the same scope conflict; see
// (*Registry).Register.
//
// Keys are typically defined as package-level constants-by-convention to avoid
// typos:
//
//	var (
//	  TokenDB     = di.Key("db")
//	  TokenLogger = di.Key("logger")
//	)
type Token struct {
	kind tokenKind
	name string
	typ  reflect.Type
}

// Key builds a token from an opaque string name.
func Key(name string) Token { return Token{kind: kindNamed, name: name} }

// Type builds a token from the identity of T.
//
// Distinct types yield distinct tokens; di.Type[Store]() and
// di.Type[*Store]() are different tokens.
func Type[T any]() Token {
	return Token{kind: kindTyped, typ: reflect.TypeOf((*T)(nil)).Elem()}
}

// IsZero reports whether t is the zero Token (never produced by Key or Type).
func (t Token) IsZero() bool { return t.kind == 0 }

// String returns a diagnostic representation: the quoted key name for named
// tokens, the Go type string for typed ones.
func (t Token) String() string {
	switch t.kind {
	case kindNamed:
		return strconv.Quote(t.name)
	case kindTyped:
		return t.typ.String()
	default:
		return "<zero token>"
	}
}
