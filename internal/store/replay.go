package store

import (
	"context"
	"fmt"

	"github.com/roach88/triplesync/internal/rdf"
)

// Summary describes what the store holds, for status and replay checks.
type Summary struct {
	Triples       int             `json:"triples"`
	Tombstones    int             `json:"tombstones"`
	Operations    int             `json:"operations"`
	LastTimestamp rdf.LogicalTime `json:"last_timestamp"`
	ReplicaID     rdf.ReplicaID   `json:"replica_id"`
	SchemaVersion int             `json:"schema_version"`
}

// Summarize counts rows and finds the highest timestamp in either table.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	var sum Summary

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(object_kind = 'deleted'), 0), COALESCE(MAX(timestamp), 0)
		FROM triples
	`).Scan(&sum.Triples, &sum.Tombstones, &sum.LastTimestamp)
	if err != nil {
		return sum, fmt.Errorf("summarize triples: %w", err)
	}

	var opMax rdf.LogicalTime
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(MAX(timestamp), 0) FROM operations
	`).Scan(&sum.Operations, &opMax)
	if err != nil {
		return sum, fmt.Errorf("summarize operations: %w", err)
	}
	sum.LastTimestamp = max(sum.LastTimestamp, opMax)

	if sum.ReplicaID, err = s.LoadReplicaID(ctx); err != nil {
		return sum, err
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&sum.SchemaVersion); err != nil {
		return sum, fmt.Errorf("summarize schema version: %w", err)
	}
	return sum, nil
}

// GetLastTimestamp returns the highest timestamp in either table, or 0 for
// an empty store. The replica clock resumes past it.
func (s *Store) GetLastTimestamp(ctx context.Context) (rdf.LogicalTime, error) {
	var ts rdf.LogicalTime
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(ts), 0) FROM (
			SELECT MAX(timestamp) AS ts FROM triples
			UNION ALL
			SELECT MAX(timestamp) AS ts FROM operations
		)
	`).Scan(&ts)
	if err != nil {
		return 0, fmt.Errorf("get last timestamp: %w", err)
	}
	return ts, nil
}
