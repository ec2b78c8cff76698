package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/triplesync/internal/rdf"
)

func op(ts rdf.LogicalTime, replica rdf.ReplicaID) rdf.Operation {
	return rdf.NewOperation(rdf.OpAdd, []rdf.Triple{mk("s", "p", rdf.Int(int64(ts)), ts, replica)}, ts, replica)
}

func TestOperationLog_SinceIsExclusive(t *testing.T) {
	l := NewOperationLog()
	for _, ts := range []rdf.LogicalTime{1, 2, 3} {
		l.Append(op(ts, "a"))
	}

	got := l.Since(1)
	require.Len(t, got, 2)
	assert.Equal(t, rdf.LogicalTime(2), got[0].Timestamp)
	assert.Equal(t, rdf.LogicalTime(3), got[1].Timestamp)

	assert.Len(t, l.Since(0), 3)
	assert.Empty(t, l.Since(3))
	assert.NotNil(t, l.Since(3))
}

func TestOperationLog_TimestampOrder(t *testing.T) {
	l := NewOperationLog()
	l.Append(op(5, "a"))
	l.Append(op(2, "a"))
	l.Append(op(5, "b"))
	l.Append(op(3, "a"))

	got := l.Since(0)
	var ids []string
	for _, o := range got {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []string{"op-2-a", "op-3-a", "op-5-a", "op-5-b"}, ids, "equal timestamps keep insertion order")
}

func TestOperationLog_DuplicateIgnored(t *testing.T) {
	l := NewOperationLog()
	assert.True(t, l.Append(op(1, "a")))
	assert.False(t, l.Append(op(1, "a")))
	assert.Equal(t, 1, l.Len())
}

func TestOperationLog_Last(t *testing.T) {
	l := NewOperationLog()
	_, ok := l.Last()
	assert.False(t, ok)

	l.Append(op(9, "a"))
	l.Append(op(4, "a"))
	last, ok := l.Last()
	require.True(t, ok)
	assert.Equal(t, rdf.LogicalTime(9), last.Timestamp)
}
