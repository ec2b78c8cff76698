// Package harness runs multi-replica convergence scenarios.
//
// A scenario opens a set of replicas, each with its own manual wall clock,
// connects them to one in-process relay room, and plays a list of steps:
// local mutations, sync rounds, disconnects and restarts. Assertions then
// check the projected tasks and that every replica ended on the same graph.
//
// # Scenario Format
//
//	name: concurrent_rename
//	description: "Later rename wins on both replicas"
//	replicas: [a, b]
//	steps:
//	  - {replica: a, at: 1000, action: add, id: t1, title: "Buy milk"}
//	  - {action: sync_all}
//	  - {replica: a, at: 2000, action: rename, id: t1, title: "Buy oat milk"}
//	  - {replica: b, at: 3000, action: rename, id: t1, title: "Buy soy milk"}
//	  - {action: sync_all}
//	assertions:
//	  - type: converged
//	  - type: task
//	    id: t1
//	    title: "Buy soy milk"
//
// # Step Actions
//
//   - add, rename, toggle, delete: local mutations on one replica
//   - sync: connect if needed, then one push/pull round
//   - sync_all: two rounds per replica, in declaration order
//   - disconnect: drop the replica's relay connection
//   - restart: reopen the replica from its persisted state
//
// # Assertion Types
//
//   - converged: all replicas hold the same graph digest
//   - task: a task exists with the given fields (subset match)
//   - task_absent: no task with the id is visible
//   - task_count: exact number of visible tasks
//
// Task assertions without a replica apply to every replica.
//
// # Determinism
//
// Wall clocks only move when a step sets "at". Entity ids come from the
// step's id field. The relay is a MemoryBackend reached over in-memory
// pipes, so a run produces the same graph every time.
package harness
