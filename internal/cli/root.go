package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/internal/config"
	"github.com/cairnhq/cairn/internal/eventlog"
	"github.com/cairnhq/cairn/internal/graph"
	"github.com/cairnhq/cairn/internal/index"
	"github.com/cairnhq/cairn/internal/knowledge"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Dir     string // project root
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the cairn CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cairn",
		Short: "cairn - a project knowledge store",
		Long: "Cairn keeps a project's decisions, constraints, and purposes in an\n" +
			"append-only event log, and answers questions about them by replaying\n" +
			"that log into a knowledge graph.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Dir, "dir", ".", "project root directory")

	cmd.AddCommand(NewCaptureCommand(opts))
	cmd.AddCommand(NewLinkCommand(opts))
	cmd.AddCommand(NewEndorseCommand(opts))
	cmd.AddCommand(NewEvidenceCommand(opts))
	cmd.AddCommand(NewDeprecateCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewTensionCommand(opts))
	cmd.AddCommand(NewShareCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewIndexCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewTensionsCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewRebuildCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// workspace bundles the per-invocation dependencies every command
// needs: configuration, the event log, and a logger.
type workspace struct {
	cfg    config.Config
	log    *eventlog.Log
	logger *slog.Logger
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openWorkspace loads configuration and opens the event log under the
// project root.
func openWorkspace(opts *RootOptions) (*workspace, error) {
	cfg, err := config.Load(opts.Dir)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load configuration", err)
	}

	logger := newLogger(opts.Verbose)

	validator, err := knowledge.NewValidator()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "compile event schemas", err)
	}

	log, err := eventlog.Open(cfg.StateDir(), validator, eventlog.WithLogger(logger))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open event log", err)
	}

	return &workspace{cfg: cfg, log: log, logger: logger}, nil
}

// loadGraph returns the current projection, served from the derived
// cache when its watermark matches the log, rebuilt by replay
// otherwise. Cache problems degrade to a replay, never to a failure:
// the log is the source of truth, the cache only an accelerator.
func (ws *workspace) loadGraph(ctx context.Context) (*graph.Graph, error) {
	watermark, err := ws.log.Watermark(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read log watermark", err)
	}

	cache, err := index.Open(ws.cfg.CachePath())
	if err != nil {
		ws.logger.Warn("index cache unavailable, replaying log", "error", err)
		cache = nil
	} else {
		defer cache.Close()
		g, ok, err := cache.Load(ctx, watermark)
		if err != nil {
			ws.logger.Warn("index cache unreadable, replaying log", "error", err)
		} else if ok {
			return g, nil
		}
	}

	events, _, err := ws.log.ReadAll(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read event log", err)
	}
	g, err := graph.Rebuild(ctx, events)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "rebuild graph", err)
	}

	if cache != nil {
		if err := cache.Save(ctx, g, watermark); err != nil {
			ws.logger.Warn("index cache refresh failed", "error", err)
		}
	}
	return g, nil
}
