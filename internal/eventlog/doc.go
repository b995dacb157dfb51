// Package eventlog provides the append-only event store, the sole
// source of truth for all captured knowledge.
//
// Each scope (shared, local) is one JSONL file: one event per line,
// human-diffable and version-control-friendly. Events are immutable
// once written; the only mutation path is appending a new line.
//
// # Critical Patterns
//
// CP-1: Single Writer Per Scope
//   - Append takes an exclusive lock file per scope
//   - A losing concurrent append fails with ErrWriteConflict, never
//     silently interleaves; the caller retries
//
// CP-2: Logical Identity and Time
//   - Appends assign a strictly increasing seq per scope
//   - All replay ordering uses seq, never timestamps
//
// CP-3: One Corrupt Line Never Loses History
//   - Records failing decode or schema validation are skipped with
//     their line number reported; reads continue
//   - Only storage-level failures are fatal
package eventlog
