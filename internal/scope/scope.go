package scope

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cairnhq/cairn/internal/eventlog"
	"github.com/cairnhq/cairn/internal/graph"
	"github.com/cairnhq/cairn/internal/knowledge"
)

// ErrNotFound reports a share of an artifact the graph does not know.
var ErrNotFound = errors.New("artifact not found")

// Manager performs cross-scope operations on top of the event log.
type Manager struct {
	log    *eventlog.Log
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger overrides the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager returns a Manager writing through log.
func NewManager(log *eventlog.Log, opts ...Option) *Manager {
	m := &Manager{log: log, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Share promotes an artifact into the shared scope by appending a share
// event carrying a full copy of its content. The original local event
// is never modified.
//
// Sharing is idempotent on content: when a shared event with the same
// fingerprint already exists, Share returns it with created == false
// and writes nothing.
func (m *Manager) Share(ctx context.Context, g *graph.Graph, artifactID string) (ev knowledge.Event, created bool, err error) {
	a := g.Artifact(artifactID)
	if a == nil {
		return knowledge.Event{}, false, fmt.Errorf("share %s: %w", artifactID, ErrNotFound)
	}
	if a.Kind == knowledge.KindTension {
		return knowledge.Event{}, false, fmt.Errorf("share %s: tension annotations are not shareable", artifactID)
	}

	fingerprint := knowledge.Fingerprint(a.Kind, a.Text, a.Tags)

	if existing, ok, err := m.findShared(ctx, fingerprint); err != nil {
		return knowledge.Event{}, false, err
	} else if ok {
		m.logger.Debug("share skipped, fingerprint already shared",
			"artifact", artifactID, "event", existing.ID)
		return existing, false, nil
	}

	ev, err = m.log.Append(ctx, knowledge.ScopeShared, knowledge.SharePayload{
		SourceID:    a.ID,
		Kind:        a.Kind,
		Text:        a.Text,
		Tags:        a.Tags,
		Fingerprint: fingerprint,
	})
	if err != nil {
		return knowledge.Event{}, false, fmt.Errorf("share %s: %w", artifactID, err)
	}
	return ev, true, nil
}

// findShared scans the shared scope for a share event with the given
// fingerprint.
func (m *Manager) findShared(ctx context.Context, fingerprint string) (knowledge.Event, bool, error) {
	events, _, err := m.log.Read(ctx, knowledge.ScopeShared)
	if err != nil {
		return knowledge.Event{}, false, err
	}
	for _, ev := range events {
		p, ok := ev.Payload.(knowledge.SharePayload)
		if ok && p.Fingerprint == fingerprint {
			return ev, true, nil
		}
	}
	return knowledge.Event{}, false, nil
}

// SyncResult summarizes one merge of pulled shared events.
type SyncResult struct {
	Applied    int `json:"applied"`
	Duplicates int `json:"duplicates"`
	Rejected   int `json:"rejected"`
}

// Sync merges shared events pulled from a teammate into the shared log.
// Events already present (same id, or a share with an already-known
// fingerprint) count as duplicates and are skipped, which makes Sync
// idempotent: sync(sync(S)) == sync(S). Events that are not
// shared-scope are rejected. The local scope is never written.
func (m *Manager) Sync(ctx context.Context, pulled []knowledge.Event) (SyncResult, error) {
	var res SyncResult

	existing, _, err := m.log.Read(ctx, knowledge.ScopeShared)
	if err != nil {
		return res, err
	}
	ids := make(map[string]bool, len(existing))
	fingerprints := make(map[string]bool)
	for _, ev := range existing {
		ids[ev.ID] = true
		if p, ok := ev.Payload.(knowledge.SharePayload); ok {
			fingerprints[p.Fingerprint] = true
		}
	}

	for _, ev := range pulled {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if ev.Scope != knowledge.ScopeShared {
			m.logger.Warn("sync rejected non-shared event", "id", ev.ID, "scope", string(ev.Scope))
			res.Rejected++
			continue
		}
		if ids[ev.ID] {
			res.Duplicates++
			continue
		}
		if p, ok := ev.Payload.(knowledge.SharePayload); ok && fingerprints[p.Fingerprint] {
			res.Duplicates++
			continue
		}

		appended, err := m.log.AppendExisting(ctx, ev)
		if err != nil {
			if errors.Is(err, eventlog.ErrWriteConflict) {
				// Another writer holds the shared scope; retry the sync.
				return res, err
			}
			m.logger.Warn("sync rejected invalid event", "id", ev.ID, "error", err)
			res.Rejected++
			continue
		}

		ids[appended.ID] = true
		if p, ok := appended.Payload.(knowledge.SharePayload); ok {
			fingerprints[p.Fingerprint] = true
		}
		res.Applied++
	}

	m.logger.Debug("sync merged",
		"applied", res.Applied, "duplicates", res.Duplicates, "rejected", res.Rejected)
	return res, nil
}
