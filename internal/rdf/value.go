package rdf

import (
	"fmt"
	"strconv"
)

// Kind identifies the concrete type of a Value.
type Kind uint8

const (
	// KindIRI is a resource reference.
	KindIRI Kind = iota + 1
	// KindString is a plain string literal.
	KindString
	// KindBool is a boolean literal.
	KindBool
	// KindInt is an integer literal.
	KindInt
	// KindDeleted is the reserved tombstone marker.
	KindDeleted
)

var kindNames = map[Kind]string{
	KindIRI:     "iri",
	KindString:  "string",
	KindBool:    "bool",
	KindInt:     "int",
	KindDeleted: "deleted",
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind converts a wire name back into a Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown value kind %q", name)
}

// Value is a sealed interface for triple objects.
// Only IRI, String, Bool, Int and Tombstone implement it.
type Value interface {
	// Kind reports the concrete type.
	Kind() Kind
	// Lexical returns the literal's lexical form (the IRI itself for IRIs).
	Lexical() string

	value() // sealed
}

// IRI references another resource.
type IRI string

func (IRI) value()            {}
func (IRI) Kind() Kind        { return KindIRI }
func (v IRI) Lexical() string { return string(v) }

// String is a plain literal.
type String string

func (String) value()            {}
func (String) Kind() Kind        { return KindString }
func (v String) Lexical() string { return string(v) }

// Bool is a boolean literal.
type Bool bool

func (Bool) value()            {}
func (Bool) Kind() Kind        { return KindBool }
func (v Bool) Lexical() string { return strconv.FormatBool(bool(v)) }

// Int is an integer literal. Always int64, never float.
type Int int64

func (Int) value()            {}
func (Int) Kind() Kind        { return KindInt }
func (v Int) Lexical() string { return strconv.FormatInt(int64(v), 10) }

// Tombstone is the reserved "deleted" object. Removing a register writes a
// Tombstone with a fresh timestamp so the removal can out-race older updates.
type Tombstone struct{}

func (Tombstone) value()          {}
func (Tombstone) Kind() Kind      { return KindDeleted }
func (Tombstone) Lexical() string { return "" }

// Deleted is the tombstone value.
var Deleted Value = Tombstone{}

// IsDeleted reports whether v is the tombstone marker.
func IsDeleted(v Value) bool {
	return v != nil && v.Kind() == KindDeleted
}

// AsBool interprets v as a boolean.
// String literals "true" and "false" are accepted because relays that store
// objects as text hand them back untyped.
func AsBool(v Value) (bool, bool) {
	switch val := v.(type) {
	case Bool:
		return bool(val), true
	case String:
		switch val {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

// AsInt interprets v as an integer. Numeric string literals are accepted.
func AsInt(v Value) (int64, bool) {
	switch val := v.(type) {
	case Int:
		return int64(val), true
	case String:
		n, err := strconv.ParseInt(string(val), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// AsString returns the lexical form of string literals and IRIs.
func AsString(v Value) (string, bool) {
	switch val := v.(type) {
	case String:
		return string(val), true
	case IRI:
		return string(val), true
	}
	return "", false
}

// ParseLiteral guesses a literal type from text: "true"/"false" become Bool,
// decimal integers become Int, everything else is a String.
func ParseLiteral(s string) Value {
	if b, ok := AsBool(String(s)); ok {
		return Bool(b)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
		return Int(n)
	}
	return String(s)
}
