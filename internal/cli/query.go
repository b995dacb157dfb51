package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/internal/enhance"
	"github.com/cairnhq/cairn/internal/knowledge"
	"github.com/cairnhq/cairn/internal/retrieval"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Commit  string
	History bool
	Limit   int
	Enhance bool
}

// QueryResult is the query command output.
type QueryResult struct {
	Query string `json:"query,omitempty"`
	// Extra lists tokens the enhancer added to the query, when enabled.
	Extra   []string           `json:"extra,omitempty"`
	Results []retrieval.Result `json:"results"`
}

// CommitQueryResult is the output of a commit-scoped query.
type CommitQueryResult struct {
	Commit    string                `json:"commit"`
	Artifacts []*knowledge.Artifact `json:"artifacts"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query [text...]",
		Short: "Retrieve relevant knowledge",
		Long: `Rank artifacts and symbols against a question by token overlap. An
empty result means nothing relevant has been captured; it is an answer,
not an error.

With --commit, list the artifacts a commit implements instead.

Examples:
  cairn query "why sqlite"
  cairn query "storage decisions" --history --limit 20
  cairn query --commit 4e8a21`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, cmd, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&opts.Commit, "commit", "", "list artifacts linked to this commit")
	cmd.Flags().BoolVar(&opts.History, "history", false, "include deprecated and superseded artifacts")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum results (default from config)")
	cmd.Flags().BoolVar(&opts.Enhance, "enhance", false, "expand the query with the configured model")

	return cmd
}

func runQuery(opts *QueryOptions, cmd *cobra.Command, text string) error {
	if opts.Commit == "" && strings.TrimSpace(text) == "" {
		return NewExitError(ExitCommandError, "provide query text or --commit")
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

	if opts.Commit != "" {
		artifacts := retrieval.QueryCommit(g, opts.Commit)
		result := CommitQueryResult{Commit: opts.Commit, Artifacts: artifacts}
		return respond(cmd, opts.RootOptions, result, func(w io.Writer) {
			if len(artifacts) == 0 {
				fmt.Fprintf(w, "no artifacts linked to commit %s\n", opts.Commit)
				return
			}
			for _, a := range artifacts {
				fmt.Fprintf(w, "%s  %-10s  %s\n", a.ID, a.Kind, a.Text)
			}
		})
	}

	limit := opts.Limit
	if limit < 1 {
		limit = ws.cfg.QueryLimit
	}

	extra := enhance.Tokens(ctx, ws.enhancer(opts.Enhance), text, ws.logger)

	results := retrieval.Query(g, text, retrieval.Options{
		Limit:          limit,
		IncludeRetired: opts.History,
		KindWeights:    ws.cfg.KindWeights,
		Extra:          extra,
	})

	result := QueryResult{Query: text, Extra: extra, Results: results}
	return respond(cmd, opts.RootOptions, result, func(w io.Writer) {
		if len(result.Extra) > 0 {
			fmt.Fprintf(w, "expanded with: %s\n", strings.Join(result.Extra, " "))
		}
		if len(results) == 0 {
			fmt.Fprintln(w, "nothing relevant captured")
			return
		}
		for _, r := range results {
			switch {
			case r.Artifact != nil:
				fmt.Fprintf(w, "%.2f  %-10s  %s  %s\n", r.Score, r.Artifact.Kind, r.ID, r.Artifact.Text)
			case r.Symbol != nil:
				fmt.Fprintf(w, "%.2f  %-10s  %s  %s\n", r.Score, "symbol", r.ID, r.Symbol.Location)
			}
		}
	})
}

// enhancer builds the configured query expander, or nil when expansion
// is off. Construction failures degrade to tokenizer-only retrieval.
func (ws *workspace) enhancer(force bool) enhance.Enhancer {
	if !force && !ws.cfg.Enhance.Enabled {
		return nil
	}
	e, err := enhance.NewOpenAI(enhance.Config{
		APIKey:  os.Getenv(ws.cfg.Enhance.APIKeyEnv),
		BaseURL: ws.cfg.Enhance.BaseURL,
		Model:   ws.cfg.Enhance.Model,
		Timeout: time.Duration(ws.cfg.Enhance.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		ws.logger.Warn("query enhancement unavailable", "error", err)
		return nil
	}
	return e
}
