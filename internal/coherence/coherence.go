package coherence

import (
	"sort"

	"github.com/cairnhq/cairn/internal/graph"
	"github.com/cairnhq/cairn/internal/knowledge"
	"github.com/cairnhq/cairn/internal/token"
)

// DefaultTensionThreshold is the overlap coefficient at which two
// artifacts are reported as potentially conflicting.
const DefaultTensionThreshold = 0.25

// DefaultNegotiationThreshold is the overlap at which a proposal is
// flagged against a hard constraint.
const DefaultNegotiationThreshold = 0.4

// Finding is one detected tension between two artifacts. A is always
// the lexically smaller id.
type Finding struct {
	A        *knowledge.Artifact `json:"a"`
	B        *knowledge.Artifact `json:"b"`
	Overlap  float64             `json:"overlap"`
	Severity knowledge.Severity  `json:"severity"`
}

// DetectTensions reports pairs of active artifacts whose token overlap
// meets threshold and which nothing in the graph reconciles. Pairs
// already covered by a tension artifact or related through evolves_from
// are settled history and not re-reported.
//
// Severity grading:
//   - critical: either side carries the hard-constraint tag
//   - warning: both sides are decisions or constraints
//   - info: a memo or question is involved
//
// threshold < 0 means DefaultTensionThreshold. Detection is advisory;
// persisting a finding is a separate tension event.
func DetectTensions(g *graph.Graph, threshold float64) []Finding {
	if threshold < 0 {
		threshold = DefaultTensionThreshold
	}

	candidates := tensionCandidates(g)
	covered := coveredPairs(g)

	var findings []Finding
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			a, b := candidates[i], candidates[j]
			if covered[pairKey(a.ID, b.ID)] {
				continue
			}
			overlap := token.OverlapCoefficient(token.NewSet(a.Tokens), token.NewSet(b.Tokens))
			if overlap < threshold {
				continue
			}
			findings = append(findings, Finding{
				A:        a,
				B:        b,
				Overlap:  overlap,
				Severity: gradeSeverity(a, b),
			})
		}
	}

	sort.Slice(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Severity != b.Severity {
			return a.Severity.AtLeast(b.Severity)
		}
		if a.Overlap != b.Overlap {
			return a.Overlap > b.Overlap
		}
		if a.A.ID != b.A.ID {
			return a.A.ID < b.A.ID
		}
		return a.B.ID < b.B.ID
	})
	return findings
}

// tensionCandidates returns active artifacts that can participate in a
// tension, ordered by id so pair enumeration is deterministic. Purposes
// are goals, not positions, and tension artifacts are annotations;
// neither conflicts with anything.
func tensionCandidates(g *graph.Graph) []*knowledge.Artifact {
	var out []*knowledge.Artifact
	for _, a := range g.Artifacts() {
		if a.Status != knowledge.StatusActive {
			continue
		}
		if a.Kind == knowledge.KindPurpose || a.Kind == knowledge.KindTension {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// coveredPairs collects pairs the graph already reconciles: endpoints
// of any persisted tension artifact, and evolves_from successions.
func coveredPairs(g *graph.Graph) map[[2]string]bool {
	covered := make(map[[2]string]bool)

	tensionEndpoints := make(map[string][]string)
	for _, e := range g.Edges() {
		switch e.Relation {
		case knowledge.RelTensionsWith:
			tensionEndpoints[e.From] = append(tensionEndpoints[e.From], e.To)
		case knowledge.RelEvolvesFrom:
			covered[pairKey(e.From, e.To)] = true
		}
	}
	for _, endpoints := range tensionEndpoints {
		for i := 0; i < len(endpoints); i++ {
			for j := i + 1; j < len(endpoints); j++ {
				covered[pairKey(endpoints[i], endpoints[j])] = true
			}
		}
	}
	return covered
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

func gradeSeverity(a, b *knowledge.Artifact) knowledge.Severity {
	if a.HasTag(knowledge.TagHardConstraint) || b.HasTag(knowledge.TagHardConstraint) {
		return knowledge.SeverityCritical
	}
	if isPosition(a.Kind) && isPosition(b.Kind) {
		return knowledge.SeverityWarning
	}
	return knowledge.SeverityInfo
}

// isPosition reports whether a kind states a commitment rather than a
// note or open question.
func isPosition(k knowledge.ArtifactKind) bool {
	return k == knowledge.KindDecision || k == knowledge.KindConstraint
}

// ValidationState derives how well supported a decision is from its
// endorsement and evidence counters.
func ValidationState(a *knowledge.Artifact) knowledge.ValidationState {
	switch {
	case a.Endorsements > 0 && a.Evidence > 0:
		return knowledge.StateValidated
	case a.Endorsements > 0:
		return knowledge.StateConsensusOnly
	case a.Evidence > 0:
		return knowledge.StateEvidenceOnly
	default:
		return knowledge.StateProposed
	}
}

// RequiresNegotiation flags active hard constraints a proposed text
// collides with. It is purely advisory: the caller may capture the
// proposal anyway, ideally recording a tension event alongside.
//
// threshold < 0 means DefaultNegotiationThreshold.
func RequiresNegotiation(g *graph.Graph, text string, threshold float64) []*knowledge.Artifact {
	if threshold < 0 {
		threshold = DefaultNegotiationThreshold
	}
	proposal := token.NewSet(token.Tokenize(text))
	if len(proposal) == 0 {
		return nil
	}

	type scored struct {
		artifact *knowledge.Artifact
		overlap  float64
	}
	var hits []scored
	for _, a := range g.Artifacts() {
		if a.Status != knowledge.StatusActive || !a.HasTag(knowledge.TagHardConstraint) {
			continue
		}
		overlap := token.OverlapCoefficient(proposal, token.NewSet(a.Tokens))
		if overlap >= threshold {
			hits = append(hits, scored{artifact: a, overlap: overlap})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].overlap != hits[j].overlap {
			return hits[i].overlap > hits[j].overlap
		}
		return hits[i].artifact.ID < hits[j].artifact.ID
	})

	out := make([]*knowledge.Artifact, len(hits))
	for i, h := range hits {
		out[i] = h.artifact
	}
	return out
}
