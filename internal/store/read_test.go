package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/triplesync/internal/rdf"
)

func TestLoadTriples_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	got, err := s.LoadTriples(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLoadTriples_DeterministicOrder(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.SaveTriples(ctx, []rdf.Triple{
		createTestTriple("b", "p", rdf.Int(1), 1),
		createTestTriple("a", "z", rdf.Int(1), 1),
		createTestTriple("a", "B", rdf.Int(1), 1),
		createTestTriple("a", "a", rdf.Int(1), 1),
	}))

	got, err := s.LoadTriples(ctx)
	require.NoError(t, err)
	var keys []string
	for _, tr := range got {
		keys = append(keys, tr.Key())
	}
	assert.Equal(t, []string{"a#B", "a#a", "a#z", "b#p"}, keys, "binary collation: uppercase first")
}

func TestLoadTriples_AllValueKinds(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	in := []rdf.Triple{
		createTestTriple("s", "a", rdf.IRI(rdf.TodoTask), 1),
		createTestTriple("s", "b", rdf.String(""), 2),
		createTestTriple("s", "c", rdf.Bool(false), 3),
		createTestTriple("s", "d", rdf.Int(-9), 4),
		createTestTriple("s", "e", rdf.Deleted, 5),
	}
	require.NoError(t, s.SaveTriples(ctx, in))

	got, err := s.LoadTriples(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestLoadOperations_SinceAndOrder(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	for _, ts := range []rdf.LogicalTime{30, 10, 20} {
		require.NoError(t, s.AppendOperation(ctx, createTestOperation(ts, createTestTriple("s", "p", rdf.Int(int64(ts)), ts))))
	}

	ops, err := s.LoadOperations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, rdf.LogicalTime(20), ops[0].Timestamp)
	assert.Equal(t, rdf.LogicalTime(30), ops[1].Timestamp)
	assert.Equal(t, rdf.Int(20), ops[0].Triples[0].Object)

	ops, err = s.LoadOperations(ctx, 30)
	require.NoError(t, err)
	assert.NotNil(t, ops)
	assert.Empty(t, ops)
}

func TestReadOperation(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	op := createTestOperation(7, createTestTriple("s", "p", rdf.String("v"), 7))
	require.NoError(t, s.AppendOperation(ctx, op))

	got, found, err := s.ReadOperation(ctx, op.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, op, got)

	_, found, err = s.ReadOperation(ctx, "op-0-missing")
	require.NoError(t, err)
	assert.False(t, found)
}
