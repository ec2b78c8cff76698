package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/triplesync/internal/rdf"
)

// SaveTriples replaces the persisted triple set with all, in one
// transaction.
func (s *Store) SaveTriples(ctx context.Context, all []rdf.Triple) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save triples: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM triples`); err != nil {
		return fmt.Errorf("save triples: clear: %w", err)
	}
	if err := upsertTriples(ctx, tx, all); err != nil {
		return fmt.Errorf("save triples: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save triples: commit: %w", err)
	}
	return nil
}

// AppendOperation inserts an operation into the log.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate ids are
// silently ignored.
func (s *Store) AppendOperation(ctx context.Context, op rdf.Operation) error {
	if err := insertOperation(ctx, s.db, op); err != nil {
		return fmt.Errorf("append operation: %w", err)
	}
	return nil
}

// WriteBatch upserts the changed registers and appends op (when non-nil)
// in one transaction.
func (s *Store) WriteBatch(ctx context.Context, changed []rdf.Triple, op *rdf.Operation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write batch: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := upsertTriples(ctx, tx, changed); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	if op != nil {
		if err := insertOperation(ctx, tx, *op); err != nil {
			return fmt.Errorf("write batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write batch: commit: %w", err)
	}
	return nil
}

// SaveReplicaID stores the replica id in the meta table.
func (s *Store) SaveReplicaID(ctx context.Context, id rdf.ReplicaID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES ('replica_id', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, string(id))
	if err != nil {
		return fmt.Errorf("save replica id: %w", err)
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertTriples(ctx context.Context, tx *sql.Tx, triples []rdf.Triple) error {
	if len(triples) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO triples (subject, predicate, object_kind, object, timestamp, replica_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(subject, predicate) DO UPDATE SET
			object_kind = excluded.object_kind,
			object = excluded.object,
			timestamp = excluded.timestamp,
			replica_id = excluded.replica_id
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i, t := range triples {
		kind, lexical, err := encodeObject(t.Object)
		if err != nil {
			return fmt.Errorf("triple %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx,
			t.Subject,
			t.Predicate,
			kind,
			lexical,
			int64(t.Timestamp),
			string(t.ReplicaID),
		); err != nil {
			return fmt.Errorf("upsert triple %d: %w", i, err)
		}
	}
	return nil
}

func insertOperation(ctx context.Context, db execer, op rdf.Operation) error {
	triplesJSON, err := marshalTriples(op.Triples)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO operations (id, kind, triples, timestamp, replica_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		op.ID,
		string(op.Kind),
		triplesJSON,
		int64(op.Timestamp),
		string(op.ReplicaID),
	)
	if err != nil {
		return fmt.Errorf("insert operation %s: %w", op.ID, err)
	}
	return nil
}
