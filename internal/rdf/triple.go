package rdf

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
)

// LogicalTime is a replica clock reading, millisecond-scale.
type LogicalTime int64

// MaxLogicalTime is the largest timestamp a triple or operation may carry:
// 2^53-1, the largest integer a JSON number holds exactly. Clocks never
// issue or witness anything above it, so Next cannot overflow.
const MaxLogicalTime LogicalTime = 1<<53 - 1

// ReplicaID identifies one independent copy of the store.
// It is only ever used as a tie-breaker and for pull exclusion.
type ReplicaID string

// Triple is one timestamped (subject, predicate, object) fact.
//
// The (Subject, Predicate) pair is an LWW register; at most one live triple
// per pair exists in a store. Triples are values: never mutated in place.
type Triple struct {
	Subject   string      `json:"subject" validate:"required"`
	Predicate string      `json:"predicate" validate:"required"`
	Object    Value       `json:"object"`
	Timestamp LogicalTime `json:"timestamp" validate:"gt=0,lte=9007199254740991"`
	ReplicaID ReplicaID   `json:"replica_id" validate:"required"`
}

// Key returns the register key "subject#predicate".
func (t Triple) Key() string {
	return RegisterKey(t.Subject, t.Predicate)
}

// RegisterKey builds the register key for a subject and predicate.
func RegisterKey(subject, predicate string) string {
	return subject + "#" + predicate
}

// IsTombstone reports whether the triple marks its register as removed.
func (t Triple) IsTombstone() bool {
	return IsDeleted(t.Object)
}

// Equal reports whether two triples are identical in every field.
func (t Triple) Equal(o Triple) bool {
	return t.Subject == o.Subject &&
		t.Predicate == o.Predicate &&
		t.Timestamp == o.Timestamp &&
		t.ReplicaID == o.ReplicaID &&
		ValuesEqual(t.Object, o.Object)
}

// String renders the triple for logs and test failures.
func (t Triple) String() string {
	obj := "<nil>"
	if t.Object != nil {
		obj = t.Object.Kind().String() + ":" + t.Object.Lexical()
	}
	return fmt.Sprintf("(%s %s %s @%d/%s)", t.Subject, t.Predicate, obj, t.Timestamp, t.ReplicaID)
}

// ValuesEqual compares two values by kind and lexical form.
func ValuesEqual(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Kind() == b.Kind() && a.Lexical() == b.Lexical()
}

// CompareTriples orders triples by subject, then predicate.
func CompareTriples(a, b Triple) int {
	if c := cmp.Compare(a.Subject, b.Subject); c != 0 {
		return c
	}
	return cmp.Compare(a.Predicate, b.Predicate)
}

// SortTriples sorts in place by (subject, predicate).
func SortTriples(ts []Triple) {
	slices.SortStableFunc(ts, CompareTriples)
}

type tripleJSON struct {
	Subject   string          `json:"subject"`
	Predicate string          `json:"predicate"`
	Object    json.RawMessage `json:"object"`
	Timestamp LogicalTime     `json:"timestamp"`
	ReplicaID ReplicaID       `json:"replica_id"`
}

// MarshalJSON encodes the object through MarshalValue.
func (t Triple) MarshalJSON() ([]byte, error) {
	var obj json.RawMessage
	if t.Object != nil {
		b, err := MarshalValue(t.Object)
		if err != nil {
			return nil, err
		}
		obj = b
	} else {
		obj = json.RawMessage("null")
	}
	return json.Marshal(tripleJSON{
		Subject:   t.Subject,
		Predicate: t.Predicate,
		Object:    obj,
		Timestamp: t.Timestamp,
		ReplicaID: t.ReplicaID,
	})
}

// UnmarshalJSON decodes the object through UnmarshalValue.
// A null or missing object leaves Object nil so validation can reject it.
func (t *Triple) UnmarshalJSON(data []byte) error {
	var raw tripleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Triple{
		Subject:   raw.Subject,
		Predicate: raw.Predicate,
		Timestamp: raw.Timestamp,
		ReplicaID: raw.ReplicaID,
	}
	if len(raw.Object) == 0 || string(raw.Object) == "null" {
		return nil
	}
	v, err := UnmarshalValue(raw.Object)
	if err != nil {
		return fmt.Errorf("triple %s %s: %w", raw.Subject, raw.Predicate, err)
	}
	t.Object = v
	return nil
}
