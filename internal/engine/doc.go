// Package engine implements the triplesync replication core.
//
// The engine owns one replica's authoritative state: a set of LWW registers
// keyed by (subject, predicate), an append-only operation log, and a hybrid
// logical clock. Replicas converge by exchanging triples; the log only
// decides what a push needs to send.
//
// ARCHITECTURE:
//
// Single Writer Per Replica:
// Every local mutation runs as one transaction under the Replica mutex:
// 1. Clock.Next() stamps the mutation
// 2. The triples are built (reading current registers for toggles)
// 3. TripleStore.Apply validates and applies them
// 4. OperationLog.Append records the operation
// 5. The change is written through to Persistence
// 6. Listeners are notified after the mutex is released
//
// Remote triples enter through Replica.Merge, which takes the same mutex,
// so a sync round and a local write never interleave at register level.
//
// CRITICAL PATTERNS:
//
// Merge Rule:
// The greater timestamp wins; equal timestamps go to the byte-wise greater
// replica id. Merge is commutative, associative and idempotent. Conflicts
// are resolved, never reported.
//
// Tombstones:
// Removal writes the rdf.Deleted value with a fresh timestamp. Registers are
// never physically deleted, so a removal can out-race older updates.
//
// Clock:
// Next() = max(last+1, wall). Remote timestamps are witnessed on merge, and
// the clock resumes past persisted timestamps on Open.
package engine
