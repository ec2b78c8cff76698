package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/triplesync/internal/rdf"
)

func TestTripleStore_ApplyReturnsChanged(t *testing.T) {
	s := NewTripleStore()

	changed, err := s.Apply([]rdf.Triple{
		mk("s", "p", rdf.String("v1"), 5, "a"),
		mk("s", "q", rdf.Int(1), 5, "a"),
	})
	require.NoError(t, err)
	assert.Len(t, changed, 2)

	changed, err = s.Apply([]rdf.Triple{
		mk("s", "p", rdf.String("stale"), 4, "z"),
		mk("s", "q", rdf.Int(2), 6, "a"),
	})
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, rdf.Int(2), changed[0].Object)

	got, ok := s.Get("s", "p")
	require.True(t, ok)
	assert.Equal(t, rdf.String("v1"), got.Object, "older write loses")
}

func TestTripleStore_ApplySameKeyTwiceInBatch(t *testing.T) {
	s := NewTripleStore()
	changed, err := s.Apply([]rdf.Triple{
		mk("s", "p", rdf.String("first"), 1, "a"),
		mk("s", "p", rdf.String("second"), 2, "a"),
	})
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, rdf.String("second"), changed[0].Object)
	assert.Equal(t, 1, s.Len())
}

func TestTripleStore_ValidationRejectsWholeBatch(t *testing.T) {
	tests := []struct {
		name  string
		bad   rdf.Triple
		field string
	}{
		{"missing subject", mk("", "p", rdf.String("v"), 1, "a"), "Subject"},
		{"missing predicate", mk("s", "", rdf.String("v"), 1, "a"), "Predicate"},
		{"missing object", mk("s", "p", nil, 1, "a"), "Object"},
		{"zero timestamp", mk("s", "p", rdf.String("v"), 0, "a"), "Timestamp"},
		{"missing replica", mk("s", "p", rdf.String("v"), 1, ""), "ReplicaID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewTripleStore()
			_, err := s.Apply([]rdf.Triple{mk("ok", "p", rdf.String("v"), 1, "a"), tt.bad})
			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, 1, e.Index)
			assert.Equal(t, tt.field, e.Field)
			assert.Equal(t, 0, s.Len(), "nothing applied")
		})
	}
}

func TestTripleStore_Snapshots(t *testing.T) {
	s := NewTripleStore()
	_, err := s.Apply([]rdf.Triple{
		mk("b", "p", rdf.Int(1), 1, "a"),
		mk("a", "q", rdf.Int(1), 3, "a"),
		mk("a", "p", rdf.Deleted, 2, "a"),
	})
	require.NoError(t, err)

	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, "a#p", all[0].Key())

	sub := s.ForSubject("a")
	assert.Len(t, sub, 2)
	assert.Empty(t, s.ForSubject("missing"))
	assert.NotNil(t, s.ForSubject("missing"))

	_, ok := s.Live("a", "p")
	assert.False(t, ok, "tombstone is not live")
	_, ok = s.Get("a", "p")
	assert.True(t, ok)

	assert.Equal(t, rdf.LogicalTime(3), s.MaxTimestamp())

	all[0].Subject = "mutated"
	assert.Equal(t, "a", s.All()[0].Subject, "snapshot is a copy")
}

func TestTripleStore_KeyWithHash(t *testing.T) {
	s := NewTripleStore()
	_, err := s.Apply([]rdf.Triple{
		mk("a#b", "c", rdf.Int(1), 1, "r"),
		mk("a", "b#c", rdf.Int(2), 1, "r"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len(), "registers with the same rendered key stay distinct")
}
