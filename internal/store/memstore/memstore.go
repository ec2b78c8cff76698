// Package memstore is an in-memory persistence adapter.
//
// It backs the "memory" CLI backend and tests. Writes can be made to fail on
// demand to exercise persistence error handling.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/roach88/triplesync/internal/rdf"
)

// ErrInjected is returned by writes while FailWrites is on.
var ErrInjected = errors.New("memstore: injected write failure")

// Store keeps triples, operations and the replica id in maps.
//
// Thread-safety: all methods are safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	triples   map[string]rdf.Triple
	ops       []rdf.Operation
	opIDs     map[string]struct{}
	replicaID rdf.ReplicaID
	fail      bool
	writes    int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		triples: make(map[string]rdf.Triple),
		opIDs:   make(map[string]struct{}),
	}
}

// FailWrites makes every subsequent write return ErrInjected until turned off.
func (s *Store) FailWrites(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

// Writes counts successful write calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// LoadTriples returns all registers sorted by (subject, predicate).
func (s *Store) LoadTriples(_ context.Context) ([]rdf.Triple, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]rdf.Triple, 0, len(s.triples))
	for _, t := range s.triples {
		out = append(out, t)
	}
	rdf.SortTriples(out)
	return out, nil
}

// SaveTriples replaces the whole set.
func (s *Store) SaveTriples(_ context.Context, all []rdf.Triple) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return ErrInjected
	}

	s.triples = make(map[string]rdf.Triple, len(all))
	for _, t := range all {
		s.triples[t.Key()] = t
	}
	s.writes++
	return nil
}

// AppendOperation records op once; known ids are ignored.
func (s *Store) AppendOperation(_ context.Context, op rdf.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return ErrInjected
	}
	s.appendLocked(op)
	s.writes++
	return nil
}

func (s *Store) appendLocked(op rdf.Operation) {
	if _, ok := s.opIDs[op.ID]; ok {
		return
	}
	s.opIDs[op.ID] = struct{}{}
	s.ops = append(s.ops, op)
}

// WriteBatch upserts the changed registers and appends op, all or nothing.
func (s *Store) WriteBatch(_ context.Context, changed []rdf.Triple, op *rdf.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return ErrInjected
	}

	for _, t := range changed {
		s.triples[t.Key()] = t
	}
	if op != nil {
		s.appendLocked(*op)
	}
	s.writes++
	return nil
}

// LoadOperations returns operations with timestamp > since, oldest first.
func (s *Store) LoadOperations(_ context.Context, since rdf.LogicalTime) ([]rdf.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]rdf.Operation, 0)
	for _, op := range s.ops {
		if op.Timestamp > since {
			out = append(out, op)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// LoadReplicaID returns the saved id or "".
func (s *Store) LoadReplicaID(_ context.Context) (rdf.ReplicaID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replicaID, nil
}

// SaveReplicaID stores the id.
func (s *Store) SaveReplicaID(_ context.Context, id rdf.ReplicaID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return ErrInjected
	}
	s.replicaID = id
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
