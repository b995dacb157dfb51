package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/internal/knowledge"
)

// DeprecateOptions holds flags for the deprecate command.
type DeprecateOptions struct {
	*RootOptions
	SupersededBy string
}

// NewDeprecateCommand creates the deprecate command.
func NewDeprecateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeprecateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "deprecate <artifact-id>",
		Short: "Retire an artifact",
		Long: `Mark an artifact as no longer current. The original event is never
rewritten; retirement is itself an event. With --superseded-by the
artifact is marked superseded and an evolves_from edge records the
succession.

Examples:
  cairn deprecate 0192f3a0-...
  cairn deprecate 0192f3a0-... --superseded-by 0192f3b4-...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return appendLocal(rootOpts, cmd, knowledge.DeprecatePayload{
				ArtifactID:   args[0],
				SupersededBy: opts.SupersededBy,
			}, func(w io.Writer, ev knowledge.Event) {
				if opts.SupersededBy != "" {
					fmt.Fprintf(w, "superseded %s by %s (event %s)\n", args[0], opts.SupersededBy, ev.ID)
					return
				}
				fmt.Fprintf(w, "deprecated %s (event %s)\n", args[0], ev.ID)
			})
		},
	}

	cmd.Flags().StringVar(&opts.SupersededBy, "superseded-by", "", "id of the succeeding artifact")

	return cmd
}

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Via string
}

var validResolveVia = map[string]bool{
	"":            true,
	"evolution":   true,
	"negotiation": true,
	"withdrawal":  true,
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <tension-id>",
		Short: "Resolve a recorded tension",
		Long: `Retire a tension artifact. The tension and its edges stay in the
graph for history; it just stops being reported as active.

Example:
  cairn resolve 0192f3c8-... --via negotiation`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !validResolveVia[opts.Via] {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid --via %q: must be evolution, negotiation, or withdrawal", opts.Via))
			}
			return appendLocal(rootOpts, cmd, knowledge.ResolvePayload{
				TensionID: args[0],
				Via:       opts.Via,
			}, func(w io.Writer, ev knowledge.Event) {
				fmt.Fprintf(w, "resolved %s (event %s)\n", args[0], ev.ID)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Via, "via", "", "how the tension was settled (evolution|negotiation|withdrawal)")

	return cmd
}

// TensionOptions holds flags for the tension command.
type TensionOptions struct {
	*RootOptions
	Severity string
}

// NewTensionCommand creates the tension command.
func NewTensionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TensionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tension <id-a> <id-b> <text>",
		Short: "Record a tension between two artifacts",
		Long: `Persist a tension: a named conflict between two artifacts. Recorded
tensions are first-class nodes, connected to both sides with
tensions_with edges, and suppress automatic re-detection of the pair.

Example:
  cairn tension 0192f3a0-... 0192f3b4-... "storage technology conflict"`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			severity := knowledge.Severity(opts.Severity)
			if opts.Severity != "" && !severity.AtLeast(knowledge.SeverityInfo) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid --severity %q: must be info, warning, or critical", opts.Severity))
			}
			return appendLocal(rootOpts, cmd, knowledge.TensionPayload{
				Between:  [2]string{args[0], args[1]},
				Text:     args[2],
				Severity: severity,
			}, func(w io.Writer, ev knowledge.Event) {
				fmt.Fprintf(w, "recorded tension %s between %s and %s\n", ev.ID, args[0], args[1])
			})
		},
	}

	cmd.Flags().StringVar(&opts.Severity, "severity", "", "severity grade (info|warning|critical)")

	return cmd
}
