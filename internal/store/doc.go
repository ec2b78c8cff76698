// Package store provides SQLite-backed durable storage for one replica.
//
// The store persists:
//   - Triples: one row per LWW register, keyed (subject, predicate)
//   - Operations: the append-only local operation log
//   - Meta: the replica id and other small settings
//
// Store implements engine.Persistence, engine.BatchWriter and
// engine.IdentityStore.
//
// # Critical Patterns
//
// Idempotent Appends
//   - operations.id is UNIQUE and inserts use ON CONFLICT DO NOTHING
//   - Re-appending after a failed write or a restart is safe
//
// All-Or-Nothing Writes
//   - SaveTriples and WriteBatch each run in one transaction
//   - A crash mid-write never leaves half an apply on disk
//
// Deterministic Reads
//   - Triples: ORDER BY subject, predicate COLLATE BINARY
//   - Operations: ORDER BY timestamp ASC, seq ASC
//   - Empty results are empty slices, never nil
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
