// Package syncer keeps a replica in step with a relay.
//
// A sync round pushes the local operations logged since the last
// acknowledged push, then pulls the relay's registers written by other
// replicas and merges them. Push and pull fail independently: a failed push
// is retried next round from the same watermark while the pull still runs.
//
// Rounds run on the Run loop: once after connecting, on a fixed interval,
// whenever the relay sends notify, and optionally after every local write.
// Each connection carries a generation number; results belonging to a
// connection that was torn down meanwhile are dropped.
package syncer
