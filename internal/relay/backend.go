package relay

import (
	"context"
	"sync"

	"github.com/roach88/triplesync/internal/engine"
	"github.com/roach88/triplesync/internal/rdf"
)

// Backend stores the register set of every room.
type Backend interface {
	// Apply merges the triples of ops into room and returns how many
	// registers changed.
	Apply(ctx context.Context, room string, ops []rdf.Operation) (int, error)

	// Pull returns room's registers not written by exclude, sorted by
	// (subject, predicate). An empty exclude returns everything.
	Pull(ctx context.Context, room string, exclude rdf.ReplicaID) ([]rdf.Triple, error)

	Close() error
}

// MemoryBackend keeps rooms in engine.TripleStores.
type MemoryBackend struct {
	mu    sync.Mutex
	rooms map[string]*engine.TripleStore
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{rooms: make(map[string]*engine.TripleStore)}
}

func (b *MemoryBackend) room(name string) *engine.TripleStore {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.rooms[name]
	if !ok {
		s = engine.NewTripleStore()
		b.rooms[name] = s
	}
	return s
}

func (b *MemoryBackend) Apply(_ context.Context, room string, ops []rdf.Operation) (int, error) {
	var all []rdf.Triple
	for _, op := range ops {
		if err := engine.ValidateOperation("push", op); err != nil {
			return 0, err
		}
		all = append(all, op.Triples...)
	}
	changed, err := b.room(room).Apply(all)
	if err != nil {
		return 0, err
	}
	return len(changed), nil
}

func (b *MemoryBackend) Pull(_ context.Context, room string, exclude rdf.ReplicaID) ([]rdf.Triple, error) {
	return excluding(b.room(room).All(), exclude), nil
}

func (b *MemoryBackend) Close() error {
	return nil
}

func excluding(triples []rdf.Triple, exclude rdf.ReplicaID) []rdf.Triple {
	out := make([]rdf.Triple, 0, len(triples))
	for _, t := range triples {
		if exclude == "" || t.ReplicaID != exclude {
			out = append(out, t)
		}
	}
	return out
}
