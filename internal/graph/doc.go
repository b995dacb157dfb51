// Package graph projects the event log into the queryable knowledge
// graph: artifact and symbol nodes joined by typed edges.
//
// The graph is strictly a materialized view. It is never authoritative
// and never mutated directly by callers: Rebuild derives it from the
// event history, Apply advances it one event at a time, and both follow
// the identical projection path, so incremental application over a
// sequence equals a full rebuild of that sequence.
//
// # Critical Patterns
//
// CP-1: Structural Idempotency
//   - Applying the same event twice equals applying it once; events are
//     deduplicated by id during projection
//
// CP-2: Logical Identity and Time
//   - All ordering uses seq (logical clock), never timestamps
//
// CP-3: Integrity Warnings, Not Crashes
//   - An edge referencing a missing id is dropped and recorded as a
//     warning; replay continues
//
// CP-4: Atomic Publication
//   - Holder swaps complete graphs with an atomic pointer; concurrent
//     readers see either the old or the new graph, never a partial one
package graph
