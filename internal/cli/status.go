package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/internal/coherence"
	"github.com/cairnhq/cairn/internal/graph"
	"github.com/cairnhq/cairn/internal/knowledge"
)

// StatusResult is the status command output.
type StatusResult struct {
	Watermark  string                   `json:"watermark"`
	Applied    int                      `json:"applied"`
	Kinds      map[string]int           `json:"kinds"`
	Statuses   map[string]int           `json:"statuses"`
	Symbols    int                      `json:"symbols"`
	Edges      int                      `json:"edges"`
	Validation map[string]int           `json:"validation"`
	Orphans    []string                 `json:"orphans,omitempty"`
	Warnings   []graph.IntegrityWarning `json:"warnings,omitempty"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize the knowledge graph",
		Long: `Show what the project knows: artifact counts by kind and status,
decision validation states, artifacts disconnected from every purpose,
and any integrity warnings recorded during replay.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
	return cmd
}

func runStatus(rootOpts *RootOptions, cmd *cobra.Command) error {
	ws, err := openWorkspace(rootOpts)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	watermark, err := ws.log.Watermark(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "read log watermark", err)
	}

	g, err := ws.loadGraph(ctx)
	if err != nil {
		return err
	}

	result := StatusResult{
		Watermark:  watermark,
		Applied:    g.Applied(),
		Kinds:      make(map[string]int),
		Statuses:   make(map[string]int),
		Symbols:    len(g.Symbols()),
		Edges:      len(g.Edges()),
		Validation: make(map[string]int),
		Warnings:   g.Warnings(),
	}

	for _, a := range g.Artifacts() {
		result.Kinds[string(a.Kind)]++
		result.Statuses[string(a.Status)]++
		if a.Kind == knowledge.KindDecision && a.Status == knowledge.StatusActive {
			result.Validation[string(coherence.ValidationState(a))]++
		}
	}

	for _, a := range g.Orphans(ws.cfg.Thresholds.Link, ws.cfg.TraverseDepth) {
		result.Orphans = append(result.Orphans, a.ID)
	}

	return respond(cmd, rootOpts, result, func(w io.Writer) {
		fmt.Fprintf(w, "watermark  %s\n", result.Watermark)
		fmt.Fprintf(w, "events     %d applied\n", result.Applied)
		fmt.Fprintf(w, "symbols    %d, edges %d\n", result.Symbols, result.Edges)
		for _, kind := range []knowledge.ArtifactKind{
			knowledge.KindPurpose, knowledge.KindDecision, knowledge.KindConstraint,
			knowledge.KindQuestion, knowledge.KindTension, knowledge.KindMemo,
		} {
			if n := result.Kinds[string(kind)]; n > 0 {
				fmt.Fprintf(w, "  %-10s %d\n", kind, n)
			}
		}
		for _, state := range []knowledge.ValidationState{
			knowledge.StateValidated, knowledge.StateConsensusOnly,
			knowledge.StateEvidenceOnly, knowledge.StateProposed,
		} {
			if n := result.Validation[string(state)]; n > 0 {
				fmt.Fprintf(w, "  decisions %s: %d\n", state, n)
			}
		}
		if len(result.Orphans) > 0 {
			fmt.Fprintf(w, "orphans    %d artifact(s) disconnected from every purpose\n", len(result.Orphans))
			for _, id := range result.Orphans {
				fmt.Fprintf(w, "  %s\n", id)
			}
		}
		if len(result.Warnings) > 0 {
			fmt.Fprintf(w, "warnings   %d\n", len(result.Warnings))
			for _, warning := range result.Warnings {
				fmt.Fprintf(w, "  %s\n", warning)
			}
		}
	})
}
