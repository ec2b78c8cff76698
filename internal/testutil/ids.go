package testutil

import (
	"fmt"
	"sync/atomic"
)

// SequentialIDs generates "<prefix>-1", "<prefix>-2", ... for entity ids.
//
// Unlike engine.FixedGenerator, which returns a predetermined list and panics
// when exhausted, SequentialIDs never runs out. Scenarios use it so the same
// script yields the same subjects on every run.
//
// Thread-safety: SequentialIDs is safe for concurrent use (atomic counter).
type SequentialIDs struct {
	prefix string
	n      atomic.Int64
}

// NewSequentialIDs creates a generator. An empty prefix becomes "task".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "task"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.n.Add(1))
}
