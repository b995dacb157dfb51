package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/internal/coherence"
	"github.com/cairnhq/cairn/internal/graph"
	"github.com/cairnhq/cairn/internal/knowledge"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Depth int
}

// HistoryResult is the history command output.
type HistoryResult struct {
	Artifact   *knowledge.Artifact       `json:"artifact"`
	Validation knowledge.ValidationState `json:"validation"`
	Related    []graph.Hit               `json:"related,omitempty"`
	Events     []knowledge.Event         `json:"events"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <artifact-id>",
		Short: "Show an artifact's full story",
		Long: `Show an artifact's current state, validation, connected nodes, and
every event that touched it, in log order. Nothing is ever rewritten,
so the event list is the complete provenance.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "traversal depth for related nodes (default from config)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command, id string) error {
	ws, err := openWorkspace(opts.RootOptions)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	g, err := ws.loadGraph(ctx)
	if err != nil {
		return err
	}

	artifact := g.Artifact(id)
	if artifact == nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("artifact %q not found", id))
	}

	depth := opts.Depth
	if depth < 1 {
		depth = ws.cfg.TraverseDepth
	}

	events, _, err := ws.log.ReadAll(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "read event log", err)
	}

	result := HistoryResult{
		Artifact:   artifact,
		Validation: coherence.ValidationState(artifact),
		Related:    g.Traverse(id, graph.DirBoth, depth),
	}
	for _, ev := range events {
		if eventMentions(ev, id) {
			result.Events = append(result.Events, ev)
		}
	}

	return respond(cmd, opts.RootOptions, result, func(w io.Writer) {
		fmt.Fprintf(w, "%s  %s  %s  (%s)\n", artifact.ID, artifact.Kind, artifact.Status, result.Validation)
		fmt.Fprintf(w, "  %s\n", artifact.Text)
		if len(result.Related) > 0 {
			fmt.Fprintln(w, "related:")
			for _, hit := range result.Related {
				fmt.Fprintf(w, "  %-22s %s\n", hit.Relation, hit.ID)
			}
		}
		fmt.Fprintln(w, "events:")
		for _, ev := range result.Events {
			fmt.Fprintf(w, "  %s  %-10s  %s/%d\n", ev.Timestamp.Format("2006-01-02 15:04"), ev.Type, ev.Scope, ev.Seq)
		}
	})
}

// eventMentions reports whether an event created or referenced the
// given node id.
func eventMentions(ev knowledge.Event, id string) bool {
	if ev.ID == id {
		return true
	}
	switch p := ev.Payload.(type) {
	case knowledge.LinkPayload:
		return p.From == id || p.To == id
	case knowledge.EndorsePayload:
		return p.DecisionID == id
	case knowledge.EvidencePayload:
		return p.DecisionID == id
	case knowledge.DeprecatePayload:
		return p.ArtifactID == id || p.SupersededBy == id
	case knowledge.ResolvePayload:
		return p.TensionID == id
	case knowledge.TensionPayload:
		return p.Between[0] == id || p.Between[1] == id
	case knowledge.SharePayload:
		return p.SourceID == id
	case knowledge.SymbolPayload:
		return knowledge.SymbolID(p.Name) == id
	default:
		return false
	}
}
