package index

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cairnhq/cairn/internal/graph"
	"github.com/cairnhq/cairn/internal/knowledge"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
// 2 - artifacts.severity
const currentSchemaVersion = 2

const watermarkKey = "watermark"
const appliedKey = "applied"

// Cache is the SQLite-backed materialization of the projected graph.
type Cache struct {
	db *sql.DB
}

// Open creates or opens the cache database at path. Pragmas and schema
// migrations are applied automatically; calling Open on an existing
// cache is idempotent.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (the log, not the cache, carries durability)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect cache: %w", err)
	}

	// SQLite supports one writer at a time; a single pooled connection
	// avoids SQLITE_BUSY during Save.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("cache schema version %d is newer than supported %d; delete the cache file and rebuild",
			version, currentSchemaVersion)
	}
	if version > 0 && version < currentSchemaVersion {
		// The cache is derived state: an outdated schema is dropped and
		// regenerated from the log, never migrated in place.
		for _, table := range []string{"artifacts", "symbols", "edges", "warnings", "meta"} {
			if _, err := db.Exec("DROP TABLE IF EXISTS " + table); err != nil {
				return fmt.Errorf("drop outdated %s: %w", table, err)
			}
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Save replaces the cached graph with g, recording the watermark of the
// log state it was built from. The swap is transactional: readers see
// either the previous cache or the new one, never a mix.
func (c *Cache) Save(ctx context.Context, g *graph.Graph, watermark string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save cache: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, table := range []string{"artifacts", "symbols", "edges", "warnings"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("save cache: clear %s: %w", table, err)
		}
	}

	for _, a := range g.Artifacts() {
		tags, err := json.Marshal(a.Tags)
		if err != nil {
			return fmt.Errorf("save cache: marshal tags: %w", err)
		}
		tokens, err := json.Marshal(a.Tokens)
		if err != nil {
			return fmt.Errorf("save cache: marshal tokens: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO artifacts
			(id, kind, text, tags, tokens, scope, status, severity, seq, created_at, endorsements, evidence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			a.ID, string(a.Kind), a.Text, string(tags), string(tokens),
			string(a.Scope), string(a.Status), string(a.Severity), a.Seq,
			a.CreatedAt.UTC().Format(time.RFC3339Nano),
			a.Endorsements, a.Evidence,
		)
		if err != nil {
			return fmt.Errorf("save cache: artifact %s: %w", a.ID, err)
		}
	}

	for _, s := range g.Symbols() {
		tokens, err := json.Marshal(s.Tokens)
		if err != nil {
			return fmt.Errorf("save cache: marshal tokens: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO symbols (id, name, kind, location, tokens, seq)
			VALUES (?, ?, ?, ?, ?, ?)
		`, s.ID, s.Name, s.Kind, s.Location, string(tokens), s.Seq)
		if err != nil {
			return fmt.Errorf("save cache: symbol %s: %w", s.ID, err)
		}
	}

	for _, e := range g.Edges() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO edges (from_id, to_id, relation, seq)
			VALUES (?, ?, ?, ?)
		`, e.From, e.To, string(e.Relation), e.Seq)
		if err != nil {
			return fmt.Errorf("save cache: edge %s->%s: %w", e.From, e.To, err)
		}
	}

	for _, w := range g.Warnings() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO warnings (event_id, reason) VALUES (?, ?)
		`, w.EventID, w.Reason)
		if err != nil {
			return fmt.Errorf("save cache: warning %s: %w", w.EventID, err)
		}
	}

	if err := c.putMeta(ctx, tx, watermarkKey, watermark); err != nil {
		return err
	}
	if err := c.putMeta(ctx, tx, appliedKey, fmt.Sprintf("%d", g.Applied())); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save cache: commit: %w", err)
	}
	return nil
}

func (c *Cache) putMeta(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("save cache: meta %s: %w", key, err)
	}
	return nil
}

// Watermark returns the log watermark the cache was built from, or ""
// for an empty cache.
func (c *Cache) Watermark(ctx context.Context) (string, error) {
	var value string
	err := c.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", watermarkKey).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("cache watermark: %w", err)
	}
	return value, nil
}

// Load returns the cached graph when its watermark matches want.
// ok is false when the cache is empty or stale; the caller then rebuilds
// from the log and Saves the result.
func (c *Cache) Load(ctx context.Context, want string) (g *graph.Graph, ok bool, err error) {
	stored, err := c.Watermark(ctx)
	if err != nil {
		return nil, false, err
	}
	if stored == "" || stored != want {
		return nil, false, nil
	}

	artifacts, err := c.loadArtifacts(ctx)
	if err != nil {
		return nil, false, err
	}
	symbols, err := c.loadSymbols(ctx)
	if err != nil {
		return nil, false, err
	}
	edges, err := c.loadEdges(ctx)
	if err != nil {
		return nil, false, err
	}
	warnings, err := c.loadWarnings(ctx)
	if err != nil {
		return nil, false, err
	}
	applied, err := c.loadApplied(ctx)
	if err != nil {
		return nil, false, err
	}

	return graph.Restore(artifacts, symbols, edges, warnings, applied), true, nil
}

func (c *Cache) loadArtifacts(ctx context.Context) ([]*knowledge.Artifact, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, kind, text, tags, tokens, scope, status, severity, seq, created_at, endorsements, evidence
		FROM artifacts ORDER BY seq, id
	`)
	if err != nil {
		return nil, fmt.Errorf("load artifacts: %w", err)
	}
	defer rows.Close()

	var out []*knowledge.Artifact
	for rows.Next() {
		var (
			a                             knowledge.Artifact
			kind, scope, status, severity string
			tags, tokens, createdAt       string
		)
		if err := rows.Scan(&a.ID, &kind, &a.Text, &tags, &tokens, &scope, &status,
			&severity, &a.Seq, &createdAt, &a.Endorsements, &a.Evidence); err != nil {
			return nil, fmt.Errorf("load artifacts: scan: %w", err)
		}
		a.Kind = knowledge.ArtifactKind(kind)
		a.Scope = knowledge.Scope(scope)
		a.Status = knowledge.Status(status)
		a.Severity = knowledge.Severity(severity)
		if err := json.Unmarshal([]byte(tags), &a.Tags); err != nil {
			return nil, fmt.Errorf("load artifacts: tags of %s: %w", a.ID, err)
		}
		if err := json.Unmarshal([]byte(tokens), &a.Tokens); err != nil {
			return nil, fmt.Errorf("load artifacts: tokens of %s: %w", a.ID, err)
		}
		a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("load artifacts: created_at of %s: %w", a.ID, err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (c *Cache) loadSymbols(ctx context.Context) ([]*knowledge.Symbol, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, kind, location, tokens, seq FROM symbols ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("load symbols: %w", err)
	}
	defer rows.Close()

	var out []*knowledge.Symbol
	for rows.Next() {
		var (
			s      knowledge.Symbol
			tokens string
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Kind, &s.Location, &tokens, &s.Seq); err != nil {
			return nil, fmt.Errorf("load symbols: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(tokens), &s.Tokens); err != nil {
			return nil, fmt.Errorf("load symbols: tokens of %s: %w", s.ID, err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (c *Cache) loadEdges(ctx context.Context) ([]knowledge.Edge, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT from_id, to_id, relation, seq FROM edges ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("load edges: %w", err)
	}
	defer rows.Close()

	var out []knowledge.Edge
	for rows.Next() {
		var (
			e        knowledge.Edge
			relation string
		)
		if err := rows.Scan(&e.From, &e.To, &relation, &e.Seq); err != nil {
			return nil, fmt.Errorf("load edges: scan: %w", err)
		}
		e.Relation = knowledge.Relation(relation)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c *Cache) loadWarnings(ctx context.Context) ([]graph.IntegrityWarning, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT event_id, reason FROM warnings ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("load warnings: %w", err)
	}
	defer rows.Close()

	var out []graph.IntegrityWarning
	for rows.Next() {
		var w graph.IntegrityWarning
		if err := rows.Scan(&w.EventID, &w.Reason); err != nil {
			return nil, fmt.Errorf("load warnings: scan: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (c *Cache) loadApplied(ctx context.Context) (int, error) {
	var value string
	err := c.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", appliedKey).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache applied count: %w", err)
	}
	var applied int
	if _, err := fmt.Sscanf(value, "%d", &applied); err != nil {
		return 0, fmt.Errorf("cache applied count: %w", err)
	}
	return applied, nil
}
