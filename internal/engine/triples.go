package engine

import (
	"sync"

	"github.com/roach88/triplesync/internal/rdf"
)

// TripleStore holds the authoritative triple set of one replica: one LWW
// register per (subject, predicate).
//
// Reads return sorted copies. Thread-safety: all methods are safe for
// concurrent use; the Replica additionally serializes apply+append pairs.
type TripleStore struct {
	mu        sync.RWMutex
	registers map[registerKey]rdf.Triple
}

// NewTripleStore creates an empty store.
func NewTripleStore() *TripleStore {
	return &TripleStore{registers: make(map[registerKey]rdf.Triple)}
}

// Apply validates the batch, then inserts or replaces each triple using the
// merge rule. A malformed triple rejects the whole batch with a validation
// error and nothing is applied.
//
// Apply returns the triples that actually changed a register, sorted by
// (subject, predicate). Triples that lose to the current register value are
// dropped silently: a lost race is not an error.
func (s *TripleStore) Apply(triples []rdf.Triple) ([]rdf.Triple, error) {
	if err := ValidateTriples("apply", triples); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := make(map[registerKey]rdf.Triple)
	for _, t := range triples {
		k := keyOf(t)
		if cur, ok := s.registers[k]; ok && !Wins(t, cur) {
			continue
		}
		s.registers[k] = t
		changed[k] = t
	}

	out := make([]rdf.Triple, 0, len(changed))
	for _, t := range changed {
		out = append(out, t)
	}
	rdf.SortTriples(out)
	return out, nil
}

// All returns a sorted snapshot of every register, tombstones included.
func (s *TripleStore) All() []rdf.Triple {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]rdf.Triple, 0, len(s.registers))
	for _, t := range s.registers {
		out = append(out, t)
	}
	rdf.SortTriples(out)
	return out
}

// ForSubject returns a sorted snapshot of one subject's registers.
func (s *TripleStore) ForSubject(subject string) []rdf.Triple {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]rdf.Triple, 0)
	for k, t := range s.registers {
		if k.subject == subject {
			out = append(out, t)
		}
	}
	rdf.SortTriples(out)
	return out
}

// Get returns the register for (subject, predicate), tombstone or not.
func (s *TripleStore) Get(subject, predicate string) (rdf.Triple, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.registers[registerKey{subject: subject, predicate: predicate}]
	return t, ok
}

// Live returns the register only when it holds a non-tombstone value.
func (s *TripleStore) Live(subject, predicate string) (rdf.Triple, bool) {
	t, ok := s.Get(subject, predicate)
	if !ok || t.IsTombstone() {
		return rdf.Triple{}, false
	}
	return t, true
}

// Len returns the number of registers, tombstones included.
func (s *TripleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registers)
}

// MaxTimestamp returns the highest timestamp held, or 0 when empty.
func (s *TripleStore) MaxTimestamp() rdf.LogicalTime {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ts rdf.LogicalTime
	for _, t := range s.registers {
		ts = max(ts, t.Timestamp)
	}
	return ts
}
