package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/internal/coherence"
	"github.com/cairnhq/cairn/internal/knowledge"
)

// TensionsResult is the tensions command output.
type TensionsResult struct {
	Threshold float64             `json:"threshold"`
	Findings  []coherence.Finding `json:"findings"`
}

// NewTensionsCommand creates the tensions command.
func NewTensionsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tensions",
		Short: "Detect unreconciled conflicts",
		Long: `Report pairs of active artifacts whose token overlap suggests they
pull in different directions and that no recorded tension or
evolves_from succession already reconciles.

Detection is advisory. To silence a finding either resolve it
(deprecate, supersede) or persist it with "cairn tension".

Exits non-zero when a critical finding involves a hard constraint.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTensions(rootOpts, cmd)
		},
	}
	return cmd
}

func runTensions(rootOpts *RootOptions, cmd *cobra.Command) error {
	ws, err := openWorkspace(rootOpts)
	if err != nil {
		return err
	}

	g, err := ws.loadGraph(cmd.Context())
	if err != nil {
		return err
	}

	threshold := ws.cfg.Thresholds.Tension
	findings := coherence.DetectTensions(g, threshold)

	result := TensionsResult{Threshold: threshold, Findings: findings}
	if err := respond(cmd, rootOpts, result, func(w io.Writer) {
		if len(findings) == 0 {
			fmt.Fprintln(w, "no unreconciled tensions")
			return
		}
		for _, f := range findings {
			fmt.Fprintf(w, "%-8s  %.2f  %s (%s)\n", f.Severity, f.Overlap, f.A.ID, f.A.Text)
			fmt.Fprintf(w, "%16s  %s (%s)\n", "vs", f.B.ID, f.B.Text)
		}
	}); err != nil {
		return err
	}

	critical := 0
	for _, f := range findings {
		if f.Severity == knowledge.SeverityCritical {
			critical++
		}
	}
	if critical > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d critical tension(s) detected", critical))
	}
	return nil
}
