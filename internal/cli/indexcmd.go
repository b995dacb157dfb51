package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/internal/knowledge"
)

// IndexOptions holds flags for the index command.
type IndexOptions struct {
	*RootOptions
	Name     string
	Kind     string
	Location string
	From     string
}

// IndexResult is the index command output.
type IndexResult struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
}

// NewIndexCommand creates the index command.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IndexOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Register code symbols",
		Long: `Record symbols reported by an external code indexer. A symbol's id
derives from its qualified name, so re-indexing after a refactor
updates location and tokens while links to the symbol survive.

Single symbol:
  cairn index --name eventlog.Append --kind func --location internal/eventlog/log.go:86

Batch, one JSON symbol payload per line:
  my-indexer | cairn index --from -`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "qualified symbol name")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "symbol kind (func, type, const, ...)")
	cmd.Flags().StringVar(&opts.Location, "location", "", "source location (file:line)")
	cmd.Flags().StringVar(&opts.From, "from", "", "JSONL file of symbol payloads, or - for stdin")

	return cmd
}

func runIndex(opts *IndexOptions, cmd *cobra.Command) error {
	single := opts.Name != ""
	if single == (opts.From != "") {
		return NewExitError(ExitCommandError, "provide either --name/--kind/--location or --from")
	}

	var payloads []knowledge.SymbolPayload
	var skipped int

	if single {
		if opts.Kind == "" || opts.Location == "" {
			return NewExitError(ExitCommandError, "--kind and --location are required with --name")
		}
		payloads = []knowledge.SymbolPayload{{
			Name:     opts.Name,
			Kind:     opts.Kind,
			Location: opts.Location,
		}}
	} else {
		var r io.Reader
		if opts.From == "-" {
			r = cmd.InOrStdin()
		} else {
			f, err := os.Open(opts.From)
			if err != nil {
				return WrapExitError(ExitCommandError, "open symbol input", err)
			}
			defer f.Close()
			r = f
		}
		var err error
		payloads, skipped, err = readSymbolPayloads(r)
		if err != nil {
			return WrapExitError(ExitCommandError, "read symbol input", err)
		}
	}

	ws, err := openWorkspace(opts.RootOptions)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	for _, p := range payloads {
		if _, err := ws.log.Append(ctx, knowledge.ScopeLocal, p); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("index symbol %s", p.Name), err)
		}
	}

	result := IndexResult{Indexed: len(payloads), Skipped: skipped}
	return respond(cmd, opts.RootOptions, result, func(w io.Writer) {
		fmt.Fprintf(w, "indexed %d symbol(s)", result.Indexed)
		if result.Skipped > 0 {
			fmt.Fprintf(w, ", skipped %d malformed line(s)", result.Skipped)
		}
		fmt.Fprintln(w)
	})
}

func readSymbolPayloads(r io.Reader) ([]knowledge.SymbolPayload, int, error) {
	var (
		payloads []knowledge.SymbolPayload
		skipped  int
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var p knowledge.SymbolPayload
		if err := json.Unmarshal(line, &p); err != nil || p.Name == "" {
			skipped++
			continue
		}
		payloads = append(payloads, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, err
	}
	return payloads, skipped, nil
}
