package relay

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/triplesync/internal/engine"
	"github.com/roach88/triplesync/internal/rdf"
)

// Supported SQL drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

var relayDDL = []string{
	`CREATE TABLE IF NOT EXISTS relay_triples (
		room        TEXT   NOT NULL,
		subject     TEXT   NOT NULL,
		predicate   TEXT   NOT NULL,
		object_kind TEXT   NOT NULL,
		object      TEXT   NOT NULL,
		timestamp   BIGINT NOT NULL,
		replica_id  TEXT   NOT NULL,
		PRIMARY KEY (room, subject, predicate)
	)`,
	`CREATE TABLE IF NOT EXISTS relay_operations (
		room       TEXT   NOT NULL,
		id         TEXT   NOT NULL,
		replica_id TEXT   NOT NULL,
		timestamp  BIGINT NOT NULL,
		PRIMARY KEY (room, id)
	)`,
}

// SQLBackend persists rooms in SQLite or Postgres through database/sql.
//
// The merge rule runs in Go inside the transaction so both databases get
// byte-identical tie-breaks. Operation ids are recorded per room; a
// re-pushed operation is skipped without touching the registers.
type SQLBackend struct {
	db     *sql.DB
	driver string
}

// OpenSQL opens the backend and creates its tables.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLBackend, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("relay: unsupported driver %q (want %s or %s)", driver, DriverSQLite, DriverPostgres)
	}
	if dsn == "" {
		return nil, errors.New("relay: dsn is required")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set journal_mode: %w", err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	b := &SQLBackend{db: db, driver: driver}
	for _, stmt := range relayDDL {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure relay tables: %w", err)
		}
	}
	return b, nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (b *SQLBackend) rebind(query string) string {
	if b.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (b *SQLBackend) Apply(ctx context.Context, room string, ops []rdf.Operation) (int, error) {
	for _, op := range ops {
		if err := engine.ValidateOperation("push", op); err != nil {
			return 0, err
		}
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertOp := b.rebind(`INSERT INTO relay_operations (room, id, replica_id, timestamp)
		VALUES (?, ?, ?, ?) ON CONFLICT (room, id) DO NOTHING`)
	selectCur := b.rebind(`SELECT object_kind, object, timestamp, replica_id
		FROM relay_triples WHERE room = ? AND subject = ? AND predicate = ?`)
	upsert := b.rebind(`INSERT INTO relay_triples
		(room, subject, predicate, object_kind, object, timestamp, replica_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (room, subject, predicate) DO UPDATE SET
			object_kind = excluded.object_kind,
			object      = excluded.object,
			timestamp   = excluded.timestamp,
			replica_id  = excluded.replica_id`)

	changed := 0
	for _, op := range ops {
		res, err := tx.ExecContext(ctx, insertOp, room, op.ID, string(op.ReplicaID), int64(op.Timestamp))
		if err != nil {
			return 0, fmt.Errorf("record operation %s: %w", op.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			continue
		}

		for _, t := range op.Triples {
			cur, found, err := b.current(ctx, tx, selectCur, room, t)
			if err != nil {
				return 0, err
			}
			if found && !engine.Wins(t, cur) {
				continue
			}
			kind, lexical := rdf.EncodeObject(t.Object)
			if _, err := tx.ExecContext(ctx, upsert,
				room, t.Subject, t.Predicate, kind, lexical, int64(t.Timestamp), string(t.ReplicaID),
			); err != nil {
				return 0, fmt.Errorf("upsert %s: %w", t.Key(), err)
			}
			changed++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return changed, nil
}

func (b *SQLBackend) current(ctx context.Context, tx *sql.Tx, query, room string, t rdf.Triple) (rdf.Triple, bool, error) {
	var (
		kind, lexical, replica string
		ts                     int64
	)
	err := tx.QueryRowContext(ctx, query, room, t.Subject, t.Predicate).Scan(&kind, &lexical, &ts, &replica)
	if errors.Is(err, sql.ErrNoRows) {
		return rdf.Triple{}, false, nil
	}
	if err != nil {
		return rdf.Triple{}, false, fmt.Errorf("read %s: %w", t.Key(), err)
	}
	obj, err := rdf.DecodeObject(kind, lexical)
	if err != nil {
		return rdf.Triple{}, false, fmt.Errorf("decode %s: %w", t.Key(), err)
	}
	return rdf.Triple{
		Subject:   t.Subject,
		Predicate: t.Predicate,
		Object:    obj,
		Timestamp: rdf.LogicalTime(ts),
		ReplicaID: rdf.ReplicaID(replica),
	}, true, nil
}

func (b *SQLBackend) Pull(ctx context.Context, room string, exclude rdf.ReplicaID) ([]rdf.Triple, error) {
	rows, err := b.db.QueryContext(ctx, b.rebind(`
		SELECT subject, predicate, object_kind, object, timestamp, replica_id
		FROM relay_triples
		WHERE room = ? AND replica_id <> ?
	`), room, string(exclude))
	if err != nil {
		return nil, fmt.Errorf("query triples: %w", err)
	}
	defer rows.Close()

	triples := []rdf.Triple{}
	for rows.Next() {
		var (
			t             rdf.Triple
			kind, lexical string
			ts            int64
			replica       string
		)
		if err := rows.Scan(&t.Subject, &t.Predicate, &kind, &lexical, &ts, &replica); err != nil {
			return nil, fmt.Errorf("scan triple: %w", err)
		}
		if t.Object, err = rdf.DecodeObject(kind, lexical); err != nil {
			return nil, fmt.Errorf("decode %s: %w", t.Key(), err)
		}
		t.Timestamp = rdf.LogicalTime(ts)
		t.ReplicaID = rdf.ReplicaID(replica)
		triples = append(triples, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate triples: %w", err)
	}
	// Postgres collation is locale-dependent; order in Go.
	rdf.SortTriples(triples)
	return triples, nil
}

func (b *SQLBackend) Close() error {
	return b.db.Close()
}
