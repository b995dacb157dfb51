// Package knowledge defines the cairn data model: events, artifacts,
// symbols, and edges.
//
// Events are the only source of truth. Every other structure in the
// system is a deterministic projection of the event history. Events are
// immutable once written; corrections are always new events referencing
// the old id.
//
// # Critical Patterns
//
// CP-1: Closed Payload Union
//   - Every event type has exactly one payload variant
//   - Each variant carries a CUE validation schema
//   - A record failing validation is skipped, never crashes replay
//
// CP-2: Logical Identity and Time
//   - All ordering uses seq INTEGER (logical clock), NEVER timestamps
//   - Enables deterministic replay regardless of wall time
//
// CP-3: Content Fingerprints
//   - Shared copies of artifacts carry a domain-separated SHA-256
//     fingerprint of their canonical content, so sync can deduplicate
//     re-shared artifacts across repositories
package knowledge
