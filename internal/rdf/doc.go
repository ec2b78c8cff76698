// Package rdf provides the data model shared by every triplesync package.
//
// This package contains value types and pure helpers only. All other internal
// packages import rdf; rdf imports nothing internal.
//
// Key design constraints:
//   - A Triple is an immutable (subject, predicate, object) fact stamped with a
//     LogicalTime and the ReplicaID that wrote it
//   - Objects are sealed Values: IRI, String, Bool, Int, or the Deleted tombstone
//   - NO float values - numbers are int64 (timestamps and counts)
//   - All JSON tags use snake_case
//   - The (subject, predicate) pair is the register key; see Triple.Key
package rdf
