package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/filibuster/internal/analysis"
	"github.com/roach88/filibuster/internal/engine"
	"github.com/roach88/filibuster/internal/ir"
	"github.com/roach88/filibuster/internal/server"
	"github.com/roach88/filibuster/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Config          string
	Database        string
	Addr            string
	Counterexample  string
	DecisionTimeout time.Duration

	// Listener overrides Addr (for testing).
	Listener net.Listener
	// IDs overrides the exploration ID generator (for testing).
	// If nil, the engine uses UUIDv7.
	IDs engine.IDGenerator
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(&ServeOptions{RootOptions: rootOpts})
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the coordinator for out-of-process middleware",
		Long: `Start an engine for one exploration and expose it over HTTP.

Instrumented services post events to /filibuster/events and the test driver
brackets each run of the test with /filibuster/iterations/begin and
/filibuster/iterations/end. With --db, every iteration and event is archived
to SQLite for the iterations, events, counterexample and graph commands.

Example:
  filibuster serve --config analysis.yaml --db run.db --addr :5005
  filibuster serve --config analysis.yaml --counterexample cx.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "analysis config (.yaml, .json or .cue); default injects nothing")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for archiving the exploration")
	cmd.Flags().StringVar(&opts.Addr, "addr", ":5005", "listen address")
	cmd.Flags().StringVar(&opts.Counterexample, "counterexample", "", "replay a single iteration from a counterexample file")
	cmd.Flags().DurationVar(&opts.DecisionTimeout, "decision-timeout", engine.DefaultDecisionTimeout, "how long a request waits for the engine")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg := analysis.Default()
	if opts.Config != "" {
		loaded, err := analysis.Load(opts.Config)
		if err != nil {
			return configFailure(formatter, err)
		}
		cfg = loaded
	}

	engineOpts := []engine.EngineOption{engine.WithDecisionTimeout(opts.DecisionTimeout)}
	if opts.IDs != nil {
		engineOpts = append(engineOpts, engine.WithIDGenerator(opts.IDs))
	}
	if opts.Counterexample != "" {
		cx, err := ir.LoadCounterexample(opts.Counterexample)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeConfigInvalid, "failed to load counterexample", err)
		}
		engineOpts = append(engineOpts, engine.WithCounterexample(cx))
	}

	if opts.Database != "" {
		slog.Info("opening database", "path", opts.Database)
		st, err := store.Open(opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		engineOpts = append(engineOpts, engine.WithStore(st))
	}

	eng, err := engine.New(cfg, engineOpts...)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfigInvalid, "failed to create engine", err)
	}
	srv, err := server.New(eng)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to create server", err)
	}

	ln := opts.Listener
	if ln == nil {
		ln, err = net.Listen("tcp", opts.Addr)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeListen, "failed to listen", err)
		}
	}

	ctx, cancel := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	engineDone := make(chan error, 1)
	go func() {
		engineDone <- eng.Run(ctx)
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Coordinator listening on %s (exploration %s)\n", ln.Addr(), eng.ExplorationID())
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	serveErr := server.Serve(ctx, ln, srv)
	cancel()
	runErr := <-engineDone

	if serveErr != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "coordinator error", serveErr)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "engine error", runErr)
	}

	summaries := eng.Iterations()
	slog.Info("coordinator stopped", "exploration_id", eng.ExplorationID(), "iterations", len(summaries))
	return outputIterations(formatter, eng.ExplorationID(), toRecords(eng.ExplorationID(), summaries))
}

// configFailure reports a config that could not be loaded. Missing files
// are command errors; invalid contents are failures.
func configFailure(formatter *OutputFormatter, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return formatter.Fail(ExitCommandError, ErrCodeConfigMissing, "analysis config not found", err)
	}
	return formatter.Fail(ExitFailure, ErrCodeConfigInvalid, "invalid analysis config", err)
}

func toRecords(explorationID string, summaries []engine.Summary) []ir.IterationRecord {
	out := make([]ir.IterationRecord, len(summaries))
	for i, s := range summaries {
		out[i] = s.IterationRecord(explorationID)
	}
	return out
}
