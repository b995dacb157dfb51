// Package index persists the projected knowledge graph in a SQLite
// cache so reads do not replay the event log on every invocation.
//
// The cache is derived state: the JSONL event log remains the only
// source of truth, and every cached row can be regenerated by replay.
// A watermark recording the log positions the cache was built from
// detects staleness; a stale or damaged cache is simply rebuilt.
package index
