package graph

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/cairnhq/cairn/internal/knowledge"
)

// Rebuild replays the full event sequence into a fresh graph. The
// projection is deterministic: the same sequence always yields an
// identical graph.
//
// Rebuild checks ctx between per-event projection steps, so an
// in-progress rebuild can be interrupted; the partial graph is
// discarded by returning an error and must never be published.
func Rebuild(ctx context.Context, events []knowledge.Event) (*Graph, error) {
	g := New()
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g.Apply(ev)
	}
	return g, nil
}

// Holder publishes graph snapshots atomically. Readers always observe
// a complete graph: stale during a rebuild is acceptable, torn is not.
type Holder struct {
	current atomic.Pointer[Graph]
}

// NewHolder starts with an empty graph so readers never see nil.
func NewHolder() *Holder {
	h := &Holder{}
	h.current.Store(New())
	return h
}

// Load returns the current snapshot.
func (h *Holder) Load() *Graph {
	return h.current.Load()
}

// Publish swaps in a fully built graph.
func (h *Holder) Publish(g *Graph) {
	h.current.Store(g)
}

// snapshot is the canonical serialized form of a graph, used for
// determinism verification and golden tests. Collections are emitted
// in deterministic order.
type snapshot struct {
	Artifacts []*knowledge.Artifact `json:"artifacts"`
	Symbols   []*knowledge.Symbol   `json:"symbols"`
	Edges     []knowledge.Edge      `json:"edges"`
	Warnings  []IntegrityWarning    `json:"warnings"`
}

// Snapshot serializes the graph deterministically.
func (g *Graph) Snapshot() ([]byte, error) {
	return json.MarshalIndent(snapshot{
		Artifacts: g.Artifacts(),
		Symbols:   g.Symbols(),
		Edges:     g.Edges(),
		Warnings:  g.Warnings(),
	}, "", "  ")
}

// Equal reports whether two graphs serialize identically. Used by the
// rebuild command to verify replay determinism.
func Equal(a, b *Graph) (bool, error) {
	sa, err := a.Snapshot()
	if err != nil {
		return false, err
	}
	sb, err := b.Snapshot()
	if err != nil {
		return false, err
	}
	return string(sa) == string(sb), nil
}
