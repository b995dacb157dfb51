package graph

import (
	"fmt"
	"sort"

	"github.com/cairnhq/cairn/internal/knowledge"
	"github.com/cairnhq/cairn/internal/token"
)

// IntegrityWarning records a non-fatal projection problem: typically an
// edge referencing an id that never existed in the history.
type IntegrityWarning struct {
	EventID string `json:"event_id"`
	Reason  string `json:"reason"`
}

func (w IntegrityWarning) String() string {
	return fmt.Sprintf("event %s: %s", w.EventID, w.Reason)
}

type edgeKey struct {
	from, to string
	relation knowledge.Relation
}

// Graph is the projected knowledge graph. Writers build it through
// Apply or Rebuild; once published via Holder it is treated as
// read-only by all readers.
type Graph struct {
	artifacts map[string]*knowledge.Artifact
	symbols   map[string]*knowledge.Symbol
	edges     []knowledge.Edge

	outgoing map[string][]int // node id -> indices into edges
	incoming map[string][]int

	edgeSeen  map[edgeKey]bool
	eventSeen map[string]bool

	warnings []IntegrityWarning
	applied  int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		artifacts: make(map[string]*knowledge.Artifact),
		symbols:   make(map[string]*knowledge.Symbol),
		outgoing:  make(map[string][]int),
		incoming:  make(map[string][]int),
		edgeSeen:  make(map[edgeKey]bool),
		eventSeen: make(map[string]bool),
	}
}

// Restore reconstructs a graph from previously projected parts, as
// loaded from the derived-index cache. The restored graph serves reads
// only; replaying events into it would bypass event deduplication, so
// callers must rebuild from the log instead of calling Apply.
func Restore(artifacts []*knowledge.Artifact, symbols []*knowledge.Symbol, edges []knowledge.Edge, warnings []IntegrityWarning, applied int) *Graph {
	g := New()
	for _, a := range artifacts {
		g.artifacts[a.ID] = a
	}
	for _, s := range symbols {
		g.symbols[s.ID] = s
	}
	for _, e := range edges {
		key := edgeKey{from: e.From, to: e.To, relation: e.Relation}
		if g.edgeSeen[key] {
			continue
		}
		g.edgeSeen[key] = true
		idx := len(g.edges)
		g.edges = append(g.edges, e)
		g.outgoing[e.From] = append(g.outgoing[e.From], idx)
		g.incoming[e.To] = append(g.incoming[e.To], idx)
	}
	g.warnings = append(g.warnings, warnings...)
	g.applied = applied
	return g
}

// Artifact returns the artifact for id, or nil.
func (g *Graph) Artifact(id string) *knowledge.Artifact {
	return g.artifacts[id]
}

// Symbol returns the symbol for id, or nil.
func (g *Graph) Symbol(id string) *knowledge.Symbol {
	return g.symbols[id]
}

// Artifacts returns all artifacts ordered by seq then id, for
// deterministic iteration.
func (g *Graph) Artifacts() []*knowledge.Artifact {
	out := make([]*knowledge.Artifact, 0, len(g.artifacts))
	for _, a := range g.artifacts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Symbols returns all symbols ordered by id.
func (g *Graph) Symbols() []*knowledge.Symbol {
	out := make([]*knowledge.Symbol, 0, len(g.symbols))
	for _, s := range g.symbols {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns all edges in application order.
func (g *Graph) Edges() []knowledge.Edge {
	out := make([]knowledge.Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Warnings returns integrity warnings recorded during projection.
func (g *Graph) Warnings() []IntegrityWarning {
	out := make([]IntegrityWarning, len(g.warnings))
	copy(out, g.warnings)
	return out
}

// Applied returns the number of events projected into this graph.
func (g *Graph) Applied() int { return g.applied }

// resolvable reports whether id can be an edge endpoint. Commit ids are
// external stable keys owned by the version-control collaborator and
// always resolve.
func (g *Graph) resolvable(id string) bool {
	if _, ok := g.artifacts[id]; ok {
		return true
	}
	if _, ok := g.symbols[id]; ok {
		return true
	}
	return isCommitID(id)
}

func isCommitID(id string) bool {
	return len(id) > len(knowledge.CommitIDPrefix) &&
		id[:len(knowledge.CommitIDPrefix)] == knowledge.CommitIDPrefix
}

func (g *Graph) warn(eventID, format string, args ...any) {
	g.warnings = append(g.warnings, IntegrityWarning{
		EventID: eventID,
		Reason:  fmt.Sprintf(format, args...),
	})
}

// addEdge records a deduplicated edge between two resolvable endpoints.
func (g *Graph) addEdge(eventID string, e knowledge.Edge) {
	if !g.resolvable(e.From) {
		g.warn(eventID, "edge %s dropped: from id %q not found", e.Relation, e.From)
		return
	}
	if !g.resolvable(e.To) {
		g.warn(eventID, "edge %s dropped: to id %q not found", e.Relation, e.To)
		return
	}

	key := edgeKey{from: e.From, to: e.To, relation: e.Relation}
	if g.edgeSeen[key] {
		return
	}
	g.edgeSeen[key] = true

	idx := len(g.edges)
	g.edges = append(g.edges, e)
	g.outgoing[e.From] = append(g.outgoing[e.From], idx)
	g.incoming[e.To] = append(g.incoming[e.To], idx)
}

// Apply projects one event into the graph. Events are deduplicated by
// id, so applying an already-seen event is a no-op. Problems are
// recorded as integrity warnings, never returned: a damaged reference
// must not abort replay.
func (g *Graph) Apply(ev knowledge.Event) {
	if ev.ID == "" || g.eventSeen[ev.ID] {
		if ev.ID != "" {
			g.warn(ev.ID, "duplicate event id, skipped")
		}
		return
	}
	g.eventSeen[ev.ID] = true
	g.applied++

	switch p := ev.Payload.(type) {
	case knowledge.CapturePayload:
		g.applyCapture(ev, p)
	case knowledge.SharePayload:
		g.applyShare(ev, p)
	case knowledge.LinkPayload:
		g.addEdge(ev.ID, knowledge.Edge{From: p.From, To: p.To, Relation: p.Relation, Seq: ev.Seq})
	case knowledge.EndorsePayload:
		if a := g.artifacts[p.DecisionID]; a != nil {
			a.Endorsements++
		} else {
			g.warn(ev.ID, "endorse dropped: decision %q not found", p.DecisionID)
		}
	case knowledge.EvidencePayload:
		if a := g.artifacts[p.DecisionID]; a != nil {
			a.Evidence++
		} else {
			g.warn(ev.ID, "evidence dropped: decision %q not found", p.DecisionID)
		}
	case knowledge.DeprecatePayload:
		g.applyDeprecate(ev, p)
	case knowledge.ResolvePayload:
		g.applyResolve(ev, p)
	case knowledge.TensionPayload:
		g.applyTension(ev, p)
	case knowledge.SymbolPayload:
		g.applySymbol(ev, p)
	default:
		g.warn(ev.ID, "unknown payload variant %T, skipped", ev.Payload)
	}
}

func (g *Graph) applyCapture(ev knowledge.Event, p knowledge.CapturePayload) {
	if _, exists := g.artifacts[ev.ID]; exists {
		g.warn(ev.ID, "capture dropped: artifact id already exists")
		return
	}
	g.artifacts[ev.ID] = &knowledge.Artifact{
		ID:        ev.ID,
		Kind:      p.Kind,
		Text:      p.Text,
		Tags:      p.Tags,
		Tokens:    tokenize(p.Text, p.Tags),
		Scope:     ev.Scope,
		Status:    knowledge.StatusActive,
		Seq:       ev.Seq,
		CreatedAt: ev.Timestamp,
	}
}

// applyShare adds a shared-scope copy of a local artifact. The copy is
// a new node; the original event is untouched. When the source artifact
// is visible in this replay, a linked_to edge ties copy to original.
func (g *Graph) applyShare(ev knowledge.Event, p knowledge.SharePayload) {
	if _, exists := g.artifacts[ev.ID]; exists {
		g.warn(ev.ID, "share dropped: artifact id already exists")
		return
	}
	g.artifacts[ev.ID] = &knowledge.Artifact{
		ID:        ev.ID,
		Kind:      p.Kind,
		Text:      p.Text,
		Tags:      p.Tags,
		Tokens:    tokenize(p.Text, p.Tags),
		Scope:     knowledge.ScopeShared,
		Status:    knowledge.StatusActive,
		Seq:       ev.Seq,
		CreatedAt: ev.Timestamp,
	}
	// The source is local to the sharing writer; in other repositories
	// it is absent and the edge is simply dropped with a warning.
	g.addEdge(ev.ID, knowledge.Edge{
		From:     ev.ID,
		To:       p.SourceID,
		Relation: knowledge.RelLinkedTo,
		Seq:      ev.Seq,
	})
}

func (g *Graph) applyDeprecate(ev knowledge.Event, p knowledge.DeprecatePayload) {
	a := g.artifacts[p.ArtifactID]
	if a == nil {
		g.warn(ev.ID, "deprecate dropped: artifact %q not found", p.ArtifactID)
		return
	}
	if p.SupersededBy != "" {
		a.Status = knowledge.StatusSuperseded
		g.addEdge(ev.ID, knowledge.Edge{
			From:     p.SupersededBy,
			To:       p.ArtifactID,
			Relation: knowledge.RelEvolvesFrom,
			Seq:      ev.Seq,
		})
		return
	}
	a.Status = knowledge.StatusDeprecated
}

// applyResolve retires a tension artifact. The tension node and its
// edges are retained for history; only its status changes, which also
// removes the pair from active tension reporting.
func (g *Graph) applyResolve(ev knowledge.Event, p knowledge.ResolvePayload) {
	a := g.artifacts[p.TensionID]
	if a == nil {
		g.warn(ev.ID, "resolve dropped: tension %q not found", p.TensionID)
		return
	}
	if a.Kind != knowledge.KindTension {
		g.warn(ev.ID, "resolve dropped: artifact %q is %s, not tension", p.TensionID, a.Kind)
		return
	}
	a.Status = knowledge.StatusDeprecated
}

func (g *Graph) applyTension(ev knowledge.Event, p knowledge.TensionPayload) {
	if _, exists := g.artifacts[ev.ID]; exists {
		g.warn(ev.ID, "tension dropped: artifact id already exists")
		return
	}
	g.artifacts[ev.ID] = &knowledge.Artifact{
		ID:        ev.ID,
		Kind:      knowledge.KindTension,
		Text:      p.Text,
		Tokens:    tokenize(p.Text, nil),
		Scope:     ev.Scope,
		Status:    knowledge.StatusActive,
		Severity:  p.Severity,
		Seq:       ev.Seq,
		CreatedAt: ev.Timestamp,
	}
	for _, endpoint := range p.Between {
		g.addEdge(ev.ID, knowledge.Edge{
			From:     ev.ID,
			To:       endpoint,
			Relation: knowledge.RelTensionsWith,
			Seq:      ev.Seq,
		})
	}
}

// applySymbol upserts a symbol node. The id is derived from the
// qualified name, so re-indexing an unchanged symbol keeps its edges.
func (g *Graph) applySymbol(ev knowledge.Event, p knowledge.SymbolPayload) {
	id := knowledge.SymbolID(p.Name)
	g.symbols[id] = &knowledge.Symbol{
		ID:       id,
		Name:     p.Name,
		Kind:     p.Kind,
		Location: p.Location,
		Tokens:   token.Tokenize(p.Name),
		Seq:      ev.Seq,
	}
}

func tokenize(text string, tags []string) []string {
	if len(tags) == 0 {
		return token.Tokenize(text)
	}
	joined := text
	for _, tag := range tags {
		joined += " " + tag
	}
	return token.Tokenize(joined)
}
