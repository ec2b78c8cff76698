package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/triplesync/internal/rdf"
)

func TestSaveTriples_ReplacesAll(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.SaveTriples(ctx, []rdf.Triple{
		createTestTriple("s1", "p", rdf.String("a"), 1),
		createTestTriple("s2", "p", rdf.String("b"), 2),
	}))
	require.NoError(t, s.SaveTriples(ctx, []rdf.Triple{
		createTestTriple("s3", "p", rdf.Bool(false), 3),
	}))

	got, err := s.LoadTriples(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s3", got[0].Subject)
	assert.Equal(t, rdf.Bool(false), got[0].Object)
}

func TestSaveTriples_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.SaveTriples(ctx, []rdf.Triple{createTestTriple("keep", "p", rdf.Int(1), 1)}))

	err := s.SaveTriples(ctx, []rdf.Triple{
		createTestTriple("new", "p", rdf.Int(1), 2),
		{Subject: "bad", Predicate: "p", Timestamp: 3, ReplicaID: "r"},
	})
	require.Error(t, err)

	got, err := s.LoadTriples(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1, "failed replace leaves the previous set intact")
	assert.Equal(t, "keep", got[0].Subject)
}

func TestWriteBatch_UpsertsAndAppends(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	t1 := createTestTriple("s", "title", rdf.String("first"), 1)
	op1 := createTestOperation(1, t1)
	require.NoError(t, s.WriteBatch(ctx, []rdf.Triple{t1}, &op1))

	t2 := createTestTriple("s", "title", rdf.String("second"), 2)
	op2 := createTestOperation(2, t2)
	require.NoError(t, s.WriteBatch(ctx, []rdf.Triple{t2}, &op2))

	got, err := s.LoadTriples(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rdf.String("second"), got[0].Object)
	assert.Equal(t, rdf.LogicalTime(2), got[0].Timestamp)

	ops, err := s.LoadOperations(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, ops, 2)
}

func TestWriteBatch_WithoutOperation(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.WriteBatch(ctx, []rdf.Triple{createTestTriple("s", "p", rdf.Deleted, 4)}, nil))

	got, err := s.LoadTriples(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsTombstone())

	ops, err := s.LoadOperations(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestWriteBatch_Atomic(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	good := createTestTriple("s", "p", rdf.Int(1), 1)
	bad := rdf.Triple{Subject: "s", Predicate: "q", Timestamp: 1, ReplicaID: "r"}
	op := createTestOperation(1, good)
	require.Error(t, s.WriteBatch(ctx, []rdf.Triple{good, bad}, &op))

	got, err := s.LoadTriples(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
	ops, err := s.LoadOperations(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, ops, "operation rolled back with the triples")
}

func TestAppendOperation_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	op := createTestOperation(5, createTestTriple("s", "p", rdf.String("v"), 5))
	require.NoError(t, s.AppendOperation(ctx, op))
	require.NoError(t, s.AppendOperation(ctx, op))

	ops, err := s.LoadOperations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, op, ops[0])
}

func TestReplicaID_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	id, err := s.LoadReplicaID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, s.SaveReplicaID(ctx, "replica-1"))
	require.NoError(t, s.SaveReplicaID(ctx, "replica-2"))

	id, err = s.LoadReplicaID(ctx)
	require.NoError(t, err)
	assert.Equal(t, rdf.ReplicaID("replica-2"), id)
}
