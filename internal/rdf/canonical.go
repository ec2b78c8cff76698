package rdf

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// DomainGraph separates graph digests from any other SHA-256 use.
// The version suffix allows a future algorithm migration.
const DomainGraph = "triplesync/graph/v1"

// Digest returns the content hash of a triple set.
//
// Two replicas have converged iff their digests are equal. The set is sorted
// by (subject, predicate) first, so input order does not matter.
func Digest(triples []Triple) (string, error) {
	sorted := slices.Clone(triples)
	SortTriples(sorted)

	doc := make([]any, len(sorted))
	for i, t := range sorted {
		obj, err := canonicalObject(t.Object)
		if err != nil {
			return "", fmt.Errorf("triple %d: %w", i, err)
		}
		doc[i] = map[string]any{
			"subject":    t.Subject,
			"predicate":  t.Predicate,
			"object":     obj,
			"timestamp":  int64(t.Timestamp),
			"replica_id": string(t.ReplicaID),
		}
	}

	canonical, err := MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	return hashWithDomain(DomainGraph, canonical), nil
}

func canonicalObject(v Value) (map[string]any, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("nil object")
	case IRI:
		return map[string]any{"kind": "iri", "value": string(val)}, nil
	case String:
		return map[string]any{"kind": "string", "value": string(val)}, nil
	case Bool:
		return map[string]any{"kind": "bool", "value": bool(val)}, nil
	case Int:
		return map[string]any{"kind": "int", "value": int64(val)}, nil
	case Tombstone:
		return map[string]any{"kind": "deleted"}, nil
	}
	return nil, fmt.Errorf("unsupported object %T", v)
}

// hashWithDomain computes SHA-256 with domain separation.
// Format: domain + 0x00 + data.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// MarshalCanonical produces RFC 8785 canonical JSON.
//
// Differences from json.Marshal:
//  1. Object keys sorted by UTF-16 code units
//  2. No HTML escaping
//  3. Strings are NFC normalized
//  4. Floats and null are rejected
func MarshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		return marshalCanonicalString(val)
	case int64:
		return []byte(fmt.Sprintf("%d", val)), nil
	case int:
		return []byte(fmt.Sprintf("%d", val)), nil
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := MarshalCanonical(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareKeysRFC8785)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := marshalCanonicalString(k)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := MarshalCanonical(val[k])
			if err != nil {
				return nil, fmt.Errorf("value for key %q: %w", k, err)
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case float64, float32:
		return nil, fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// compareKeysRFC8785 orders keys by UTF-16 code units.
// utf16.Encode is required for correct surrogate handling.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	for i := 0; i < len(a16) && i < len(b16); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	return len(a16) - len(b16)
}

// marshalCanonicalString escapes only control characters, backslash and quote.
// U+2028 and U+2029 stay literal.
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}
	result := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	return unescapeLineSeparators(result), nil
}

// unescapeLineSeparators turns \u2028 and \u2029 back into literal runes
// unless the backslash is itself escaped (\\u2028 is literal text).
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+1 < len(data) {
			if data[i+1] == 'u' && i+6 <= len(data) && string(data[i+2:i+5]) == "202" &&
				(data[i+5] == '8' || data[i+5] == '9') {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 5
				continue
			}
			// Any other escape: copy both bytes so an escaped backslash
			// never pairs with the following text.
			out = append(out, data[i], data[i+1])
			i++
			continue
		}
		out = append(out, data[i])
	}
	return out
}
