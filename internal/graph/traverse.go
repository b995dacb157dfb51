package graph

import (
	"sort"

	"github.com/cairnhq/cairn/internal/knowledge"
	"github.com/cairnhq/cairn/internal/token"
)

// Direction selects which edges a traversal follows.
type Direction string

const (
	DirOut  Direction = "out"
	DirIn   Direction = "in"
	DirBoth Direction = "both"
)

// DefaultTraverseDepth bounds graph walks when the caller does not say
// otherwise.
const DefaultTraverseDepth = 1

// Hit is one node reached by a traversal.
type Hit struct {
	ID       string             `json:"id"`
	Depth    int                `json:"depth"`
	Relation knowledge.Relation `json:"relation"`
	Artifact *knowledge.Artifact `json:"artifact,omitempty"`
	Symbol   *knowledge.Symbol   `json:"symbol,omitempty"`
}

// Traverse walks typed edges from id up to maxDepth hops and returns
// the connected artifacts and symbols, nearest first. Depth bounding
// keeps walks finite regardless of graph shape; maxDepth < 1 uses
// DefaultTraverseDepth.
func (g *Graph) Traverse(id string, dir Direction, maxDepth int) []Hit {
	if maxDepth < 1 {
		maxDepth = DefaultTraverseDepth
	}

	type frontier struct {
		id       string
		depth    int
		relation knowledge.Relation
	}

	visited := map[string]bool{id: true}
	queue := []frontier{{id: id, depth: 0}}
	var hits []Hit

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.depth >= maxDepth {
			continue
		}

		for _, next := range g.neighbors(cur.id, dir) {
			if visited[next.id] {
				continue
			}
			visited[next.id] = true

			hit := Hit{
				ID:       next.id,
				Depth:    cur.depth + 1,
				Relation: next.relation,
				Artifact: g.artifacts[next.id],
				Symbol:   g.symbols[next.id],
			}
			hits = append(hits, hit)
			queue = append(queue, frontier{id: next.id, depth: cur.depth + 1, relation: next.relation})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Depth != hits[j].Depth {
			return hits[i].Depth < hits[j].Depth
		}
		return hits[i].ID < hits[j].ID
	})
	return hits
}

type neighbor struct {
	id       string
	relation knowledge.Relation
}

func (g *Graph) neighbors(id string, dir Direction) []neighbor {
	var out []neighbor
	if dir == DirOut || dir == DirBoth {
		for _, idx := range g.outgoing[id] {
			out = append(out, neighbor{id: g.edges[idx].To, relation: g.edges[idx].Relation})
		}
	}
	if dir == DirIn || dir == DirBoth {
		for _, idx := range g.incoming[id] {
			out = append(out, neighbor{id: g.edges[idx].From, relation: g.edges[idx].Relation})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Orphans returns active artifacts with no connection to the purpose
// graph: neither an edge path reaching a purpose within maxDepth hops
// nor token overlap with any purpose at or above linkThreshold.
//
// Connection is computed on demand rather than materialized as edges,
// so it cannot depend on capture order. Purposes themselves and
// tension annotations are never orphans.
func (g *Graph) Orphans(linkThreshold float64, maxDepth int) []*knowledge.Artifact {
	purposes := g.purposeTokenSets()

	var orphans []*knowledge.Artifact
	for _, a := range g.Artifacts() {
		if a.Status != knowledge.StatusActive {
			continue
		}
		if a.Kind == knowledge.KindPurpose || a.Kind == knowledge.KindTension {
			continue
		}
		if g.reachesPurpose(a.ID, maxDepth) {
			continue
		}
		if overlapsAnyPurpose(token.NewSet(a.Tokens), purposes, linkThreshold) {
			continue
		}
		orphans = append(orphans, a)
	}
	return orphans
}

func (g *Graph) purposeTokenSets() []token.Set {
	var sets []token.Set
	for _, a := range g.Artifacts() {
		if a.Kind == knowledge.KindPurpose && a.Status == knowledge.StatusActive {
			sets = append(sets, token.NewSet(a.Tokens))
		}
	}
	return sets
}

func overlapsAnyPurpose(tokens token.Set, purposes []token.Set, threshold float64) bool {
	for _, p := range purposes {
		if token.OverlapCoefficient(tokens, p) >= threshold {
			return true
		}
	}
	return false
}

// reachesPurpose walks edges in both directions looking for an active
// purpose within maxDepth hops.
func (g *Graph) reachesPurpose(id string, maxDepth int) bool {
	if maxDepth < 1 {
		maxDepth = DefaultTraverseDepth
	}
	for _, hit := range g.Traverse(id, DirBoth, maxDepth) {
		if hit.Artifact != nil &&
			hit.Artifact.Kind == knowledge.KindPurpose &&
			hit.Artifact.Status == knowledge.StatusActive {
			return true
		}
	}
	return false
}
