package retrieval

import (
	"sort"
	"strings"

	"github.com/cairnhq/cairn/internal/graph"
	"github.com/cairnhq/cairn/internal/knowledge"
	"github.com/cairnhq/cairn/internal/token"
)

// DefaultLimit bounds result sets when the caller does not say
// otherwise.
const DefaultLimit = 10

// WeightSymbol keys the kind-weight entry for symbol hits; symbols have
// no ArtifactKind.
const WeightSymbol = "symbol"

// DefaultKindWeights break score ties. Decisions and constraints carry
// the most intent per token, memos the least.
var DefaultKindWeights = map[string]int{
	string(knowledge.KindDecision):   5,
	string(knowledge.KindConstraint): 5,
	string(knowledge.KindPurpose):    4,
	WeightSymbol:                     3,
	string(knowledge.KindQuestion):   2,
	string(knowledge.KindTension):    2,
	string(knowledge.KindMemo):       1,
}

// Result is one ranked hit. Exactly one of Artifact and Symbol is set.
type Result struct {
	ID       string              `json:"id"`
	Score    float64             `json:"score"`
	Artifact *knowledge.Artifact `json:"artifact,omitempty"`
	Symbol   *knowledge.Symbol   `json:"symbol,omitempty"`

	weight int
	seq    int64
}

// Options tune a query. The zero value asks for the default limit,
// default weights, and active artifacts only.
type Options struct {
	// Limit caps the number of results; values < 1 mean DefaultLimit.
	Limit int
	// IncludeRetired admits deprecated and superseded artifacts, for
	// history queries.
	IncludeRetired bool
	// KindWeights overrides DefaultKindWeights when non-nil.
	KindWeights map[string]int
	// Extra tokens are unioned into the query, typically supplied by
	// the enhance collaborator.
	Extra []string
}

func (o Options) limit() int {
	if o.Limit < 1 {
		return DefaultLimit
	}
	return o.Limit
}

func (o Options) weights() map[string]int {
	if o.KindWeights != nil {
		return o.KindWeights
	}
	return DefaultKindWeights
}

// Query ranks artifacts and symbols against text. The score of a
// candidate is the fraction of query tokens it contains; zero-score
// candidates are omitted, so an empty result is a valid answer, not an
// error.
func Query(g *graph.Graph, text string, opts Options) []Result {
	queryTokens := token.Tokenize(strings.Join(append([]string{text}, opts.Extra...), " "))
	if len(queryTokens) == 0 {
		return nil
	}
	query := token.NewSet(queryTokens)
	weights := opts.weights()

	var results []Result
	for _, a := range g.Artifacts() {
		if !opts.IncludeRetired && a.Status != knowledge.StatusActive {
			continue
		}
		score := token.QueryScore(token.NewSet(a.Tokens), query)
		if score == 0 {
			continue
		}
		results = append(results, Result{
			ID:       a.ID,
			Score:    score,
			Artifact: a,
			weight:   weights[string(a.Kind)],
			seq:      a.Seq,
		})
	}
	for _, s := range g.Symbols() {
		score := token.QueryScore(token.NewSet(s.Tokens), query)
		if score == 0 {
			continue
		}
		results = append(results, Result{
			ID:     s.ID,
			Score:  score,
			Symbol: s,
			weight: weights[WeightSymbol],
			seq:    s.Seq,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.weight != b.weight {
			return a.weight > b.weight
		}
		if a.seq != b.seq {
			return a.seq > b.seq
		}
		return a.ID < b.ID
	})

	if limit := opts.limit(); len(results) > limit {
		results = results[:limit]
	}
	return results
}

// QueryCommit returns the artifacts linked to a commit through
// implements edges, oldest first. The id may be given with or without
// the "commit:" prefix.
func QueryCommit(g *graph.Graph, commitID string) []*knowledge.Artifact {
	if !strings.HasPrefix(commitID, knowledge.CommitIDPrefix) {
		commitID = knowledge.CommitID(commitID)
	}

	var out []*knowledge.Artifact
	seen := make(map[string]bool)
	for _, e := range g.Edges() {
		if e.Relation != knowledge.RelImplements || e.To != commitID {
			continue
		}
		if a := g.Artifact(e.From); a != nil && !seen[a.ID] {
			seen[a.ID] = true
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].ID < out[j].ID
	})
	return out
}
