package engine

import (
	"cmp"

	"github.com/roach88/triplesync/internal/rdf"
)

// registerKey identifies one LWW register. A struct key keeps "a#b"+"c" and
// "a"+"b#c" apart even though both render as the same "subject#predicate".
type registerKey struct {
	subject   string
	predicate string
}

func keyOf(t rdf.Triple) registerKey {
	return registerKey{subject: t.Subject, predicate: t.Predicate}
}

// Wins reports whether candidate beats current for the same register.
//
// The greater timestamp wins. On equal timestamps the byte-wise greater
// replica id wins. Two writes by one replica at one timestamp cannot differ
// in a well-behaved system; if they do, the greater object decides so the
// rule stays a total order.
func Wins(candidate, current rdf.Triple) bool {
	if candidate.Timestamp != current.Timestamp {
		return candidate.Timestamp > current.Timestamp
	}
	if candidate.ReplicaID != current.ReplicaID {
		return candidate.ReplicaID > current.ReplicaID
	}
	return compareObjects(candidate.Object, current.Object) > 0
}

func compareObjects(a, b rdf.Value) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if c := cmp.Compare(a.Kind(), b.Kind()); c != 0 {
		return c
	}
	return cmp.Compare(a.Lexical(), b.Lexical())
}

// Merge combines two triple sets, keeping one winner per register.
//
// Merge is pure and total. It is commutative, associative and idempotent, so
// replicas converge no matter the order in which batches arrive. Superseded
// triples are discarded, not kept as history. The result is sorted by
// (subject, predicate).
func Merge(local, remote []rdf.Triple) []rdf.Triple {
	winners := make(map[registerKey]rdf.Triple, len(local)+len(remote))
	for _, batch := range [][]rdf.Triple{local, remote} {
		for _, t := range batch {
			k := keyOf(t)
			if cur, ok := winners[k]; !ok || Wins(t, cur) {
				winners[k] = t
			}
		}
	}

	out := make([]rdf.Triple, 0, len(winners))
	for _, t := range winners {
		out = append(out, t)
	}
	rdf.SortTriples(out)
	return out
}
