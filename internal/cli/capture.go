package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/internal/coherence"
	"github.com/cairnhq/cairn/internal/knowledge"
)

// CaptureOptions holds flags for the capture command.
type CaptureOptions struct {
	*RootOptions
	Tags   []string
	Shared bool
}

// CaptureResult is the capture command output.
type CaptureResult struct {
	Event knowledge.Event `json:"event"`
	// RequiresNegotiation lists active hard constraints the captured
	// text collides with. Advisory: the capture succeeded regardless.
	RequiresNegotiation []string `json:"requires_negotiation,omitempty"`
}

// NewCaptureCommand creates the capture command.
func NewCaptureCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CaptureOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "capture <kind> <text>",
		Short: "Record a knowledge artifact",
		Long: `Record a purpose, decision, constraint, question, or memo as a new
event. The text is tokenized for retrieval; tags refine matching and
"hard-constraint" marks constraints that demand negotiation before
conflicting work proceeds.

Capture never blocks: when the text collides with a hard constraint the
conflict is reported alongside the new artifact's id.

Examples:
  cairn capture decision "use SQLite for offline storage" --tag storage
  cairn capture constraint "core makes no network calls" --tag hard-constraint
  cairn capture purpose "local-first knowledge capture" --shared`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(opts, cmd, args[0], args[1])
		},
	}

	cmd.Flags().StringArrayVar(&opts.Tags, "tag", nil, "tag to attach (repeatable)")
	cmd.Flags().BoolVar(&opts.Shared, "shared", false, "capture into the shared scope")

	return cmd
}

func runCapture(opts *CaptureOptions, cmd *cobra.Command, kindArg, text string) error {
	kind := knowledge.ArtifactKind(kindArg)
	if !knowledge.CapturableKinds[kind] {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown kind %q", kindArg))
	}
	if strings.TrimSpace(text) == "" {
		return NewExitError(ExitCommandError, "text must not be empty")
	}

	ws, err := openWorkspace(opts.RootOptions)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	g, err := ws.loadGraph(ctx)
	if err != nil {
		return err
	}

	scope := knowledge.ScopeLocal
	if opts.Shared {
		scope = knowledge.ScopeShared
	}

	ev, err := ws.log.Append(ctx, scope, knowledge.CapturePayload{
		Kind: kind,
		Text: text,
		Tags: opts.Tags,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "append capture event", err)
	}

	result := CaptureResult{Event: ev}
	for _, hit := range coherence.RequiresNegotiation(g, text, ws.cfg.Thresholds.Negotiation) {
		result.RequiresNegotiation = append(result.RequiresNegotiation, hit.ID)
	}

	return respond(cmd, opts.RootOptions, result, func(w io.Writer) {
		fmt.Fprintf(w, "captured %s %s (scope %s, seq %d)\n", kind, ev.ID, ev.Scope, ev.Seq)
		for _, id := range result.RequiresNegotiation {
			fmt.Fprintf(w, "  negotiate with hard constraint %s before proceeding\n", id)
		}
	})
}
