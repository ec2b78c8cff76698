package engine

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/triplesync/internal/rdf"
)

func mk(s, p string, v rdf.Value, ts rdf.LogicalTime, r rdf.ReplicaID) rdf.Triple {
	return rdf.Triple{Subject: s, Predicate: p, Object: v, Timestamp: ts, ReplicaID: r}
}

// randomBatch draws triples over a small key space so batches collide often.
func randomBatch(rng *rand.Rand, n int) []rdf.Triple {
	replicas := []rdf.ReplicaID{"replica-a", "replica-b", "replica-c"}
	values := []rdf.Value{rdf.String("x"), rdf.String("y"), rdf.Bool(true), rdf.Int(7), rdf.Deleted}
	out := make([]rdf.Triple, n)
	for i := range out {
		out[i] = mk(
			fmt.Sprintf("s%d", rng.IntN(3)),
			fmt.Sprintf("p%d", rng.IntN(3)),
			values[rng.IntN(len(values))],
			rdf.LogicalTime(1+rng.IntN(5)),
			replicas[rng.IntN(len(replicas))],
		)
	}
	return out
}

func TestMerge_LWW(t *testing.T) {
	t1 := mk("s", "p", rdf.String("o1"), 5, "a")
	t2 := mk("s", "p", rdf.String("o2"), 7, "b")

	got := Merge([]rdf.Triple{t1}, []rdf.Triple{t2})
	require.Len(t, got, 1)
	assert.Equal(t, t2, got[0])

	got = Merge([]rdf.Triple{t2}, []rdf.Triple{t1})
	require.Len(t, got, 1)
	assert.Equal(t, t2, got[0])
}

func TestMerge_TieBreakOnReplicaID(t *testing.T) {
	a := mk("s", "p", rdf.String("from a"), 5, "replica-a")
	b := mk("s", "p", rdf.String("from b"), 5, "replica-b")

	for i := 0; i < 10; i++ {
		assert.Equal(t, b, Merge([]rdf.Triple{a}, []rdf.Triple{b})[0])
		assert.Equal(t, b, Merge([]rdf.Triple{b}, []rdf.Triple{a})[0])
	}
}

func TestMerge_TieBreakIsByteWise(t *testing.T) {
	// "Z" (0x5A) < "a" (0x61): plain byte comparison, not case-folded.
	upper := mk("s", "p", rdf.String("upper"), 1, "Z")
	lower := mk("s", "p", rdf.String("lower"), 1, "a")
	assert.Equal(t, lower, Merge([]rdf.Triple{upper}, []rdf.Triple{lower})[0])
}

func TestMerge_SameReplicaSameTimestamp(t *testing.T) {
	x := mk("s", "p", rdf.String("x"), 1, "r")
	y := mk("s", "p", rdf.String("y"), 1, "r")
	assert.Equal(t,
		Merge([]rdf.Triple{x}, []rdf.Triple{y}),
		Merge([]rdf.Triple{y}, []rdf.Triple{x}))
}

func TestMerge_TombstoneOutracesOlderUpdate(t *testing.T) {
	update := mk("s", "p", rdf.String("edited"), 10, "replica-b")
	removal := mk("s", "p", rdf.Deleted, 11, "replica-a")

	got := Merge([]rdf.Triple{update}, []rdf.Triple{removal})
	require.Len(t, got, 1)
	assert.True(t, got[0].IsTombstone())
}

func TestMerge_PerPredicateNotPerSubject(t *testing.T) {
	local := []rdf.Triple{
		mk("s", "title", rdf.String("old"), 1, "a"),
		mk("s", "done", rdf.Bool(true), 9, "a"),
	}
	remote := []rdf.Triple{
		mk("s", "title", rdf.String("new"), 5, "b"),
		mk("s", "done", rdf.Bool(false), 2, "b"),
	}

	got := Merge(local, remote)
	require.Len(t, got, 2)
	assert.Equal(t, rdf.Bool(true), got[0].Object, "done keeps the newer local write")
	assert.Equal(t, rdf.String("new"), got[1].Object, "title takes the newer remote write")
}

func TestMerge_SortedOutput(t *testing.T) {
	got := Merge(
		[]rdf.Triple{mk("b", "p", rdf.Int(1), 1, "r"), mk("a", "z", rdf.Int(1), 1, "r")},
		[]rdf.Triple{mk("a", "b", rdf.Int(1), 1, "r")},
	)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a#b", "a#z", "b#p"}, []string{got[0].Key(), got[1].Key(), got[2].Key()})
}

func TestMerge_Empty(t *testing.T) {
	assert.Empty(t, Merge(nil, nil))
	assert.NotNil(t, Merge(nil, nil))
}

func TestMerge_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 200; i++ {
		a := randomBatch(rng, 1+rng.IntN(8))
		b := randomBatch(rng, 1+rng.IntN(8))
		c := randomBatch(rng, 1+rng.IntN(8))

		t.Run(fmt.Sprintf("case-%d", i), func(t *testing.T) {
			// Commutativity: arrival order does not matter.
			ab := Merge(Merge(nil, a), b)
			ba := Merge(Merge(nil, b), a)
			assert.Equal(t, ab, ba)

			// Associativity.
			left := Merge(Merge(a, b), c)
			right := Merge(a, Merge(b, c))
			assert.Equal(t, left, right)

			// Idempotence.
			set := Merge(nil, a)
			assert.Equal(t, set, Merge(set, set))
		})
	}
}

func TestApplyThenMergeCommutes(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))

	for i := 0; i < 50; i++ {
		a := randomBatch(rng, 6)
		b := randomBatch(rng, 6)

		s1 := NewTripleStore()
		_, err := s1.Apply(a)
		require.NoError(t, err)
		_, err = s1.Apply(Merge(s1.All(), b))
		require.NoError(t, err)

		s2 := NewTripleStore()
		_, err = s2.Apply(b)
		require.NoError(t, err)
		_, err = s2.Apply(Merge(s2.All(), a))
		require.NoError(t, err)

		assert.Equal(t, s1.All(), s2.All())
	}
}
