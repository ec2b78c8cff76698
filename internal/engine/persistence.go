package engine

import (
	"context"

	"github.com/roach88/triplesync/internal/rdf"
)

// Persistence is the durable storage a Replica writes through.
//
// Implementations: store.Store (SQLite), badgerstore.Store, memstore.Store.
type Persistence interface {
	// LoadTriples returns every persisted register.
	LoadTriples(ctx context.Context) ([]rdf.Triple, error)

	// SaveTriples replaces the persisted set with all, in one transaction.
	SaveTriples(ctx context.Context, all []rdf.Triple) error

	// AppendOperation durably records op. Appending a known id is a no-op.
	AppendOperation(ctx context.Context, op rdf.Operation) error

	// LoadOperations returns operations with timestamp > since, oldest first.
	LoadOperations(ctx context.Context, since rdf.LogicalTime) ([]rdf.Operation, error)
}

// BatchWriter is implemented by adapters that can upsert only the changed
// registers together with the operation in one transaction. op is nil when
// the change came from a remote merge.
type BatchWriter interface {
	WriteBatch(ctx context.Context, changed []rdf.Triple, op *rdf.Operation) error
}

// OperationReader is implemented by adapters that can look up one
// operation by id. found is false with a nil error when it is not stored.
type OperationReader interface {
	ReadOperation(ctx context.Context, id string) (op rdf.Operation, found bool, err error)
}

// IdentityStore is implemented by adapters that persist the replica id.
// LoadReplicaID returns "" with a nil error when no id has been saved yet.
type IdentityStore interface {
	LoadReplicaID(ctx context.Context) (rdf.ReplicaID, error)
	SaveReplicaID(ctx context.Context, id rdf.ReplicaID) error
}
