package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/triplesync/internal/rdf"
)

// createTestStore creates a new temporary-file store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestTriple creates a triple with the given subject, predicate and object.
func createTestTriple(subject, predicate string, obj rdf.Value, ts rdf.LogicalTime) rdf.Triple {
	return rdf.Triple{
		Subject:   subject,
		Predicate: predicate,
		Object:    obj,
		Timestamp: ts,
		ReplicaID: "replica-test",
	}
}

// createTestOperation wraps triples into an add operation stamped ts.
func createTestOperation(ts rdf.LogicalTime, triples ...rdf.Triple) rdf.Operation {
	return rdf.NewOperation(rdf.OpAdd, triples, ts, "replica-test")
}
