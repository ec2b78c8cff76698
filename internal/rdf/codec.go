package rdf

import (
	"encoding/json"
	"fmt"
)

type valueJSON struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalValue encodes v as {"kind": ..., "value": ...}.
// The tombstone carries no value.
func MarshalValue(v Value) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("marshal value: nil")
	}
	out := valueJSON{Kind: v.Kind().String()}
	var (
		raw []byte
		err error
	)
	switch val := v.(type) {
	case IRI:
		raw, err = json.Marshal(string(val))
	case String:
		raw, err = json.Marshal(string(val))
	case Bool:
		raw, err = json.Marshal(bool(val))
	case Int:
		raw, err = json.Marshal(int64(val))
	case Tombstone:
	default:
		return nil, fmt.Errorf("marshal value: unsupported type %T", v)
	}
	if err != nil {
		return nil, err
	}
	out.Value = raw
	return json.Marshal(out)
}

// UnmarshalValue decodes the form produced by MarshalValue.
func UnmarshalValue(data []byte) (Value, error) {
	var raw valueJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	kind, err := ParseKind(raw.Kind)
	if err != nil {
		return nil, err
	}
	if kind == KindDeleted {
		return Deleted, nil
	}
	if len(raw.Value) == 0 {
		return nil, fmt.Errorf("unmarshal value: %s without value", kind)
	}
	switch kind {
	case KindIRI:
		var s string
		if err := json.Unmarshal(raw.Value, &s); err != nil {
			return nil, fmt.Errorf("unmarshal iri: %w", err)
		}
		return IRI(s), nil
	case KindString:
		var s string
		if err := json.Unmarshal(raw.Value, &s); err != nil {
			return nil, fmt.Errorf("unmarshal string: %w", err)
		}
		return String(s), nil
	case KindBool:
		var b bool
		if err := json.Unmarshal(raw.Value, &b); err != nil {
			return nil, fmt.Errorf("unmarshal bool: %w", err)
		}
		return Bool(b), nil
	case KindInt:
		var n int64
		if err := json.Unmarshal(raw.Value, &n); err != nil {
			return nil, fmt.Errorf("unmarshal int (floats are not allowed): %w", err)
		}
		return Int(n), nil
	}
	return nil, fmt.Errorf("unmarshal value: unhandled kind %s", kind)
}

// EncodeObject returns the storage form of an object: its kind name and
// lexical text. Storage adapters use this for two-column object encoding.
func EncodeObject(v Value) (kind string, lexical string) {
	return v.Kind().String(), v.Lexical()
}

// DecodeObject reverses EncodeObject.
func DecodeObject(kind, lexical string) (Value, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return nil, err
	}
	switch k {
	case KindIRI:
		return IRI(lexical), nil
	case KindString:
		return String(lexical), nil
	case KindBool:
		b, ok := AsBool(String(lexical))
		if !ok {
			return nil, fmt.Errorf("decode bool %q", lexical)
		}
		return Bool(b), nil
	case KindInt:
		n, ok := AsInt(String(lexical))
		if !ok {
			return nil, fmt.Errorf("decode int %q", lexical)
		}
		return Int(n), nil
	case KindDeleted:
		return Deleted, nil
	}
	return nil, fmt.Errorf("decode object: unhandled kind %s", k)
}
