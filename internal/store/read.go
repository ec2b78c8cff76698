package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/triplesync/internal/rdf"
)

// LoadTriples returns every persisted register.
// Results are ordered deterministically: ORDER BY subject, predicate COLLATE BINARY.
//
// Returns an empty slice (not nil) when the store is empty.
func (s *Store) LoadTriples(ctx context.Context) ([]rdf.Triple, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subject, predicate, object_kind, object, timestamp, replica_id
		FROM triples
		ORDER BY subject COLLATE BINARY ASC, predicate COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query triples: %w", err)
	}
	defer rows.Close()

	triples := []rdf.Triple{}
	for rows.Next() {
		t, err := scanTriple(rows)
		if err != nil {
			return nil, err
		}
		triples = append(triples, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate triples: %w", err)
	}
	return triples, nil
}

// LoadOperations returns operations with timestamp > since.
// Results are ordered deterministically: ORDER BY timestamp ASC, seq ASC.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) LoadOperations(ctx context.Context, since rdf.LogicalTime) ([]rdf.Operation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, triples, timestamp, replica_id
		FROM operations
		WHERE timestamp > ?
		ORDER BY timestamp ASC, seq ASC
	`, int64(since))
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	ops := []rdf.Operation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return ops, nil
}

// ReadOperation returns one operation by id. found is false when it does
// not exist.
func (s *Store) ReadOperation(ctx context.Context, id string) (rdf.Operation, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, triples, timestamp, replica_id
		FROM operations
		WHERE id = ?
	`, id)
	if err != nil {
		return rdf.Operation{}, false, fmt.Errorf("read operation: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return rdf.Operation{}, false, fmt.Errorf("read operation: %w", err)
		}
		return rdf.Operation{}, false, nil
	}
	op, err := scanOperation(rows)
	if err != nil {
		return rdf.Operation{}, false, err
	}
	return op, true, nil
}

// LoadReplicaID returns the saved replica id, or "" when none is saved.
func (s *Store) LoadReplicaID(ctx context.Context) (rdf.ReplicaID, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'replica_id'`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load replica id: %w", err)
	}
	return rdf.ReplicaID(id), nil
}

func scanTriple(rows *sql.Rows) (rdf.Triple, error) {
	var (
		t       rdf.Triple
		kind    string
		lexical string
		ts      int64
		replica string
	)
	if err := rows.Scan(&t.Subject, &t.Predicate, &kind, &lexical, &ts, &replica); err != nil {
		return rdf.Triple{}, fmt.Errorf("scan triple: %w", err)
	}
	obj, err := rdf.DecodeObject(kind, lexical)
	if err != nil {
		return rdf.Triple{}, fmt.Errorf("scan triple %s %s: %w", t.Subject, t.Predicate, err)
	}
	t.Object = obj
	t.Timestamp = rdf.LogicalTime(ts)
	t.ReplicaID = rdf.ReplicaID(replica)
	return t, nil
}

func scanOperation(rows *sql.Rows) (rdf.Operation, error) {
	var (
		op          rdf.Operation
		kind        string
		triplesJSON string
		ts          int64
		replica     string
	)
	if err := rows.Scan(&op.ID, &kind, &triplesJSON, &ts, &replica); err != nil {
		return rdf.Operation{}, fmt.Errorf("scan operation: %w", err)
	}
	triples, err := unmarshalTriples(triplesJSON)
	if err != nil {
		return rdf.Operation{}, fmt.Errorf("scan operation %s: %w", op.ID, err)
	}
	op.Kind = rdf.OpKind(kind)
	op.Triples = triples
	op.Timestamp = rdf.LogicalTime(ts)
	op.ReplicaID = rdf.ReplicaID(replica)
	return op, nil
}
