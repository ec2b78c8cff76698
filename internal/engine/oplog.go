package engine

import (
	"sort"
	"sync"

	"github.com/roach88/triplesync/internal/rdf"
)

// OperationLog is the append-only record of local mutations, kept in
// timestamp order (insertion order among equal timestamps).
//
// The log is a push optimization, not the source of truth: the triple set
// converges without it.
//
// Thread-safety: all methods are safe for concurrent use.
type OperationLog struct {
	mu  sync.RWMutex
	ops []rdf.Operation
	ids map[string]struct{}
}

// NewOperationLog creates an empty log.
func NewOperationLog() *OperationLog {
	return &OperationLog{
		ops: make([]rdf.Operation, 0, 64),
		ids: make(map[string]struct{}),
	}
}

// Append adds op to the log. Appending an id that is already present is a
// no-op and returns false, so reloading persisted operations is idempotent.
func (l *OperationLog) Append(op rdf.Operation) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, dup := l.ids[op.ID]; dup {
		return false
	}
	l.ids[op.ID] = struct{}{}

	// First index with a strictly greater timestamp keeps equal timestamps
	// in insertion order.
	i := sort.Search(len(l.ops), func(i int) bool { return l.ops[i].Timestamp > op.Timestamp })
	l.ops = append(l.ops, rdf.Operation{})
	copy(l.ops[i+1:], l.ops[i:])
	l.ops[i] = op
	return true
}

// Since returns every operation with timestamp > ts, in timestamp order.
func (l *OperationLog) Since(ts rdf.LogicalTime) []rdf.Operation {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i := sort.Search(len(l.ops), func(i int) bool { return l.ops[i].Timestamp > ts })
	out := make([]rdf.Operation, len(l.ops)-i)
	copy(out, l.ops[i:])
	return out
}

// Len returns the number of logged operations.
func (l *OperationLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ops)
}

// Last returns the newest operation.
func (l *OperationLog) Last() (rdf.Operation, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.ops) == 0 {
		return rdf.Operation{}, false
	}
	return l.ops[len(l.ops)-1], true
}
