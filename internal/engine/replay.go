package engine

// # Replay and Idempotency
//
// Convergence does not depend on delivery order or count. Every path that
// folds triples into a replica goes through Merge, and Merge is
//
//   - commutative: Merge(a, b) == Merge(b, a)
//   - associative: Merge(Merge(a, b), c) == Merge(a, Merge(b, c))
//   - idempotent:  Merge(a, a) == a
//
// so a replica may receive the same pull twice, receive pushes out of order,
// or rebuild itself from its operation log after a crash, and the register
// set comes out the same.
//
// ## What the log proves
//
// The operation log holds only local writes; remote triples arrive as state
// and are never logged. The log therefore cannot rebuild the graph on its
// own, but it must always be dominated by it: replaying every logged triple
// over the current registers changes nothing. VerifyReplay checks exactly
// that, and `triplesync verify` runs it against a persisted store.
//
// ## Crash safety
//
// SQLite and Badger adapters write the changed registers and the operation
// in one transaction. A crash either loses both or keeps both; on the next
// Open the clock resumes past the highest persisted timestamp.

import (
	"fmt"

	"github.com/roach88/triplesync/internal/rdf"
)

// Replay folds every operation's triples into an empty register set.
func Replay(ops []rdf.Operation) []rdf.Triple {
	var all []rdf.Triple
	for _, op := range ops {
		all = append(all, op.Triples...)
	}
	return Merge(nil, all)
}

// VerifyReplay reports an error if replaying ops over triples would change
// any register, that is if the log holds a write the state has lost.
func VerifyReplay(triples []rdf.Triple, ops []rdf.Operation) error {
	replayed := Merge(triples, Replay(ops))
	if len(replayed) != len(triples) {
		return fmt.Errorf("replay: log holds %d registers missing from state", len(replayed)-len(triples))
	}
	state := make([]rdf.Triple, len(triples))
	copy(state, triples)
	rdf.SortTriples(state)
	for i := range replayed {
		if !replayed[i].Equal(state[i]) {
			return fmt.Errorf("replay: register %s diverges: state %s, log %s",
				replayed[i].Key(), state[i], replayed[i])
		}
	}
	return nil
}
