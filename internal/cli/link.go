package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/internal/knowledge"
)

// NewLinkCommand creates the link command.
func NewLinkCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link <from> <to> <relation>",
		Short: "Relate two artifacts, symbols, or commits",
		Long: `Record a typed edge between two nodes. Endpoints are artifact ids,
symbol ids ("sym:pkg.Name"), or commit keys ("commit:<hash>").

Relations: implements, implemented_in, evolves_from, tensions_with,
requires_negotiation, linked_to.

Example:
  cairn link 0192f3a0-... commit:4e8a21 implements`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			relation := knowledge.Relation(args[2])
			if !knowledge.ValidRelations[relation] {
				return NewExitError(ExitCommandError, fmt.Sprintf("unknown relation %q", args[2]))
			}
			return appendLocal(rootOpts, cmd, knowledge.LinkPayload{
				From:     args[0],
				To:       args[1],
				Relation: relation,
			}, func(w io.Writer, ev knowledge.Event) {
				fmt.Fprintf(w, "linked %s -%s-> %s (event %s)\n", args[0], relation, args[1], ev.ID)
			})
		},
	}
	return cmd
}

// EndorseOptions holds flags for the endorse command.
type EndorseOptions struct {
	*RootOptions
	By string
}

// NewEndorseCommand creates the endorse command.
func NewEndorseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EndorseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "endorse <decision-id>",
		Short: "Endorse a decision",
		Long: `Record agreement with a decision. Endorsements move a decision's
validation state towards consensus; they never modify the decision
event itself.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return appendLocal(rootOpts, cmd, knowledge.EndorsePayload{
				DecisionID: args[0],
				By:         opts.By,
			}, func(w io.Writer, ev knowledge.Event) {
				fmt.Fprintf(w, "endorsed %s (event %s)\n", args[0], ev.ID)
			})
		},
	}

	cmd.Flags().StringVar(&opts.By, "by", "", "who endorses (required)")
	_ = cmd.MarkFlagRequired("by")

	return cmd
}

// EvidenceOptions holds flags for the evidence command.
type EvidenceOptions struct {
	*RootOptions
	Ref string
}

// NewEvidenceCommand creates the evidence command.
func NewEvidenceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvidenceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "evidence <decision-id>",
		Short: "Attach supporting evidence to a decision",
		Long: `Record a reference backing a decision: a benchmark file, an incident
writeup, a measurement. Evidence moves the decision's validation state
towards validated.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return appendLocal(rootOpts, cmd, knowledge.EvidencePayload{
				DecisionID: args[0],
				Ref:        opts.Ref,
			}, func(w io.Writer, ev knowledge.Event) {
				fmt.Fprintf(w, "recorded evidence for %s (event %s)\n", args[0], ev.ID)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Ref, "ref", "", "evidence reference (required)")
	_ = cmd.MarkFlagRequired("ref")

	return cmd
}

// appendLocal opens the workspace, appends one local-scope event, and
// renders the result. Shared by the small write commands.
func appendLocal(rootOpts *RootOptions, cmd *cobra.Command, payload knowledge.Payload, text func(w io.Writer, ev knowledge.Event)) error {
	ws, err := openWorkspace(rootOpts)
	if err != nil {
		return err
	}

	ev, err := ws.log.Append(cmd.Context(), knowledge.ScopeLocal, payload)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("append %s event", payload.EventType()), err)
	}

	return respond(cmd, rootOpts, ev, func(w io.Writer) { text(w, ev) })
}
