// Package badgerstore is a persistence adapter over BadgerDB.
//
// Key layout:
//
//	t/<subject>\x00<predicate>   -> triple JSON
//	o/<timestamp:020d>/<op id>    -> operation JSON
//	i/<op id>                     -> empty, marks an appended operation
//	m/replica_id                  -> replica id
//
// Operation keys sort by timestamp, so LoadOperations is a single prefix
// iteration seeked past the watermark.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/roach88/triplesync/internal/rdf"
)

const (
	triplePrefix = "t/"
	opPrefix     = "o/"
	opIDPrefix   = "i/"
	replicaKey   = "m/replica_id"
)

// Config holds BadgerDB settings.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in memory. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives Badger's internal log lines. Nil silences them.
	Logger *slog.Logger

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the discardable fraction that triggers a rewrite.
	GCDiscardRatio float64
}

// DefaultConfig returns durable settings for path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns settings for a throwaway in-memory database.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store implements engine.Persistence, engine.BatchWriter and
// engine.IdentityStore.
//
// Thread-safety: safe for concurrent use; Badger serializes conflicting
// transactions.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	stopGC chan struct{}
	doneGC chan struct{}
}

// Open opens (or creates) a Badger database.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badgerstore: path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &Store{db: db, logger: cfg.Logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		ratio := cfg.GCDiscardRatio
		if ratio <= 0 || ratio >= 1 {
			ratio = 0.5
		}
		s.stopGC = make(chan struct{})
		s.doneGC = make(chan struct{})
		go s.runGC(cfg.GCInterval, ratio)
	}
	return s, nil
}

func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.doneGC)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && s.logger != nil {
				s.logger.Warn("badger value log GC error", "error", err)
			}
		}
	}
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.doneGC
		s.stopGC = nil
	}
	return s.db.Close()
}

func tripleKey(t rdf.Triple) []byte {
	return []byte(triplePrefix + t.Subject + "\x00" + t.Predicate)
}

func opKey(op rdf.Operation) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", opPrefix, op.Timestamp, op.ID))
}

func setTriples(txn *badger.Txn, triples []rdf.Triple) error {
	for i, t := range triples {
		if t.Object == nil {
			return fmt.Errorf("triple %d (%s): nil object", i, t.Key())
		}
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal triple %s: %w", t.Key(), err)
		}
		if err := txn.Set(tripleKey(t), data); err != nil {
			return fmt.Errorf("set triple %s: %w", t.Key(), err)
		}
	}
	return nil
}

func appendOperation(txn *badger.Txn, op rdf.Operation) error {
	idKey := []byte(opIDPrefix + op.ID)
	if _, err := txn.Get(idKey); err == nil {
		return nil
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("lookup operation %s: %w", op.ID, err)
	}
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("marshal operation %s: %w", op.ID, err)
	}
	if err := txn.Set(opKey(op), data); err != nil {
		return fmt.Errorf("set operation %s: %w", op.ID, err)
	}
	return txn.Set(idKey, nil)
}

// LoadTriples returns every register sorted by (subject, predicate).
func (s *Store) LoadTriples(ctx context.Context) ([]rdf.Triple, error) {
	triples := []rdf.Triple{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(triplePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var t rdf.Triple
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &t)
			}); err != nil {
				return fmt.Errorf("decode triple %q: %w", it.Item().Key(), err)
			}
			triples = append(triples, t)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load triples: %w", err)
	}
	// The NUL separator sorts below every other byte, so key order already
	// matches (subject, predicate); sort anyway for subjects holding NUL.
	rdf.SortTriples(triples)
	return triples, nil
}

// SaveTriples replaces the persisted register set in one transaction.
func (s *Store) SaveTriples(ctx context.Context, all []rdf.Triple) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(triplePrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return setTriples(txn, all)
	})
	if err != nil {
		return fmt.Errorf("save triples: %w", err)
	}
	return nil
}

// AppendOperation records op. A known id is a no-op.
func (s *Store) AppendOperation(_ context.Context, op rdf.Operation) error {
	if err := s.db.Update(func(txn *badger.Txn) error {
		return appendOperation(txn, op)
	}); err != nil {
		return fmt.Errorf("append operation: %w", err)
	}
	return nil
}

// WriteBatch upserts changed and appends op (if non-nil) atomically.
func (s *Store) WriteBatch(_ context.Context, changed []rdf.Triple, op *rdf.Operation) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := setTriples(txn, changed); err != nil {
			return err
		}
		if op != nil {
			return appendOperation(txn, *op)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	return nil
}

// LoadOperations returns operations with timestamp > since, oldest first.
func (s *Store) LoadOperations(_ context.Context, since rdf.LogicalTime) ([]rdf.Operation, error) {
	ops := []rdf.Operation{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(opPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek to the first key strictly after every "since" entry.
		start := []byte(fmt.Sprintf("%s%020d/\xff", opPrefix, since))
		for it.Seek(start); it.Valid(); it.Next() {
			var op rdf.Operation
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &op)
			}); err != nil {
				return fmt.Errorf("decode operation %q: %w", it.Item().Key(), err)
			}
			if op.Timestamp > since {
				ops = append(ops, op)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load operations: %w", err)
	}
	return ops, nil
}

// ReadOperation returns one operation by id. The timestamp encoded in the
// id locates its key directly.
func (s *Store) ReadOperation(_ context.Context, id string) (rdf.Operation, bool, error) {
	ts, _, err := rdf.ParseOperationID(id)
	if err != nil {
		return rdf.Operation{}, false, fmt.Errorf("read operation: %w", err)
	}
	var (
		op    rdf.Operation
		found bool
	)
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(opKey(rdf.Operation{ID: id, Timestamp: ts}))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &op)
		})
	})
	if err != nil {
		return rdf.Operation{}, false, fmt.Errorf("read operation %s: %w", id, err)
	}
	return op, found, nil
}

// LoadReplicaID returns the saved replica id, or "" if none.
func (s *Store) LoadReplicaID(_ context.Context) (rdf.ReplicaID, error) {
	var id string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(replicaKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		id = strings.TrimSpace(string(val))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("load replica id: %w", err)
	}
	return rdf.ReplicaID(id), nil
}

// SaveReplicaID stores id, replacing any previous value.
func (s *Store) SaveReplicaID(_ context.Context, id rdf.ReplicaID) error {
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(replicaKey), []byte(id))
	}); err != nil {
		return fmt.Errorf("save replica id: %w", err)
	}
	return nil
}
