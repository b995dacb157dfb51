package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/internal/knowledge"
	"github.com/cairnhq/cairn/internal/scope"
)

// ShareResult is the share command output.
type ShareResult struct {
	Event   knowledge.Event `json:"event"`
	Created bool            `json:"created"`
}

// NewShareCommand creates the share command.
func NewShareCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share <artifact-id>",
		Short: "Promote a local artifact to the shared scope",
		Long: `Copy an artifact's content into a new shared event. The local
original is untouched. Sharing identical content twice is a no-op: the
content fingerprint deduplicates.

Example:
  cairn share 0192f3a0-...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShare(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runShare(rootOpts *RootOptions, cmd *cobra.Command, artifactID string) error {
	ws, err := openWorkspace(rootOpts)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	g, err := ws.loadGraph(ctx)
	if err != nil {
		return err
	}

	mgr := scope.NewManager(ws.log, scope.WithLogger(ws.logger))
	ev, created, err := mgr.Share(ctx, g, artifactID)
	if err != nil {
		return WrapExitError(ExitCommandError, "share artifact", err)
	}

	return respond(cmd, rootOpts, ShareResult{Event: ev, Created: created}, func(w io.Writer) {
		if created {
			fmt.Fprintf(w, "shared %s as %s\n", artifactID, ev.ID)
			return
		}
		fmt.Fprintf(w, "already shared as %s, nothing written\n", ev.ID)
	})
}

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	From string
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Merge pulled shared events",
		Long: `Merge shared events pulled from a teammate (one JSON event per line)
into the shared log. Already-known events are skipped, so running the
same sync twice changes nothing. The local scope is never written.

Examples:
  cairn sync --from pulled.jsonl
  git show origin/main:.cairn/shared.jsonl | cairn sync --from -`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "JSONL file of pulled shared events, or - for stdin (required)")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	ws, err := openWorkspace(opts.RootOptions)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var r io.Reader
	if opts.From == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(opts.From)
		if err != nil {
			return WrapExitError(ExitCommandError, "open pulled events", err)
		}
		defer f.Close()
		r = f
	}

	pulled, malformed, err := readPulledEvents(r)
	if err != nil {
		return WrapExitError(ExitCommandError, "read pulled events", err)
	}
	for _, line := range malformed {
		ws.logger.Warn("malformed pulled event skipped", "line", line)
	}

	mgr := scope.NewManager(ws.log, scope.WithLogger(ws.logger))
	res, err := mgr.Sync(ctx, pulled)
	if err != nil {
		return WrapExitError(ExitCommandError, "merge pulled events", err)
	}

	return respond(cmd, opts.RootOptions, res, func(w io.Writer) {
		fmt.Fprintf(w, "sync: %d applied, %d duplicates, %d rejected\n",
			res.Applied, res.Duplicates, res.Rejected)
	})
}

// readPulledEvents decodes one event per line, reporting line numbers
// of records that do not parse instead of failing the whole merge.
func readPulledEvents(r io.Reader) ([]knowledge.Event, []int, error) {
	var (
		events    []knowledge.Event
		malformed []int
		lineNo    int
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev knowledge.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			malformed = append(malformed, lineNo)
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return events, malformed, nil
}
