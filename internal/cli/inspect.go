package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/filibuster/internal/ir"
	"github.com/roach88/filibuster/internal/report"
	"github.com/roach88/filibuster/internal/store"
)

// InspectOptions holds the flags shared by commands that read an archived
// exploration.
type InspectOptions struct {
	*RootOptions
	Database    string
	Exploration string // empty selects the most recent exploration
	Iteration   int
	Output      string
}

func (o *InspectOptions) addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&o.Exploration, "exploration", "", "exploration ID (default: most recent)")
}

func (o *InspectOptions) addIterationFlag(cmd *cobra.Command, required bool) {
	cmd.Flags().IntVar(&o.Iteration, "iteration", 0, "iteration number")
	if required {
		_ = cmd.MarkFlagRequired("iteration")
	}
}

// inspection is an open store positioned on one exploration.
type inspection struct {
	st            *store.Store
	explorationID string
}

// openInspection opens the store and resolves the exploration. The caller
// closes the returned store.
func openInspection(ctx context.Context, opts *InspectOptions, formatter *OutputFormatter) (*inspection, error) {
	if _, err := os.Stat(opts.Database); err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeStore, "database not found", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}

	var x ir.ExplorationRecord
	if opts.Exploration != "" {
		x, err = st.ReadExploration(ctx, opts.Exploration)
	} else {
		x, err = st.ReadLatestExploration(ctx)
	}
	if err != nil {
		st.Close()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, formatter.Fail(ExitCommandError, ErrCodeNotFound, "exploration not found", nil)
		}
		return nil, formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read exploration", err)
	}
	formatter.VerboseLog("exploration %s (replay=%v)", x.ID, x.Replay)
	return &inspection{st: st, explorationID: x.ID}, nil
}

func (in *inspection) iteration(ctx context.Context, number int, formatter *OutputFormatter) (ir.IterationRecord, error) {
	it, err := in.st.ReadIteration(ctx, in.explorationID, number)
	if errors.Is(err, sql.ErrNoRows) {
		return it, formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("iteration %d not found", number), nil)
	}
	if err != nil {
		return it, formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read iteration", err)
	}
	return it, nil
}

// NewIterationsCommand creates the iterations command.
func NewIterationsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "iterations",
		Short: "List the iterations of an exploration",
		Long: `List every archived iteration of an exploration with its outcome and
the faults it scheduled.

Exit codes:
  0 - No iteration failed
  1 - At least one iteration failed or did not inject its faults
  2 - Command error (database not found, etc.)

Examples:
  filibuster iterations --db run.db
  filibuster iterations --db run.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIterations(opts, cmd)
		},
	}
	opts.addStoreFlags(cmd)
	return cmd
}

// IterationsResult is the JSON payload of the iterations command.
type IterationsResult struct {
	ExplorationID string               `json:"exploration_id"`
	Iterations    []ir.IterationRecord `json:"iterations"`
	Failed        int                  `json:"failed"`
}

func runIterations(opts *InspectOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	in, err := openInspection(ctx, opts, formatter)
	if err != nil {
		return err
	}
	defer in.st.Close()

	its, err := in.st.ReadIterations(ctx, in.explorationID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read iterations", err)
	}
	return outputIterations(formatter, in.explorationID, its)
}

func outputIterations(formatter *OutputFormatter, explorationID string, its []ir.IterationRecord) error {
	result := IterationsResult{ExplorationID: explorationID, Iterations: its}
	for _, it := range its {
		if failed(it.Outcome) {
			result.Failed++
		}
	}

	if formatter.JSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		w := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Exploration %s\n", explorationID)
		fmt.Fprintln(w, "ITER\tOUTCOME\tINJECTED\tEVENTS\tFAULTS")
		for _, it := range its {
			fmt.Fprintf(w, "%d\t%s\t%d/%d\t%d\t%s\n",
				it.Number, it.Outcome, it.Injected, it.Scheduled, it.Events, describeFaults(it.Faults))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		for _, it := range its {
			if it.Failure != "" {
				fmt.Fprintf(formatter.Writer, "iteration %d: %s\n", it.Number, it.Failure)
			}
		}
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d iteration(s) failed", result.Failed, len(its)))
	}
	return nil
}

func failed(o ir.Outcome) bool {
	return o == ir.OutcomeFailed || o == ir.OutcomeFaultNotInjected
}

func describeFaults(faults []ir.ScheduledFault) string {
	if len(faults) == 0 {
		return "-"
	}
	parts := make([]string, len(faults))
	for i, sf := range faults {
		parts[i] = sf.Fault.String() + "@" + sf.ExecutionIndex
	}
	return strings.Join(parts, " ")
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the instrumentation events of one iteration",
		Long: `Show the instrumentation events of one iteration in the order the engine
received them.

Examples:
  filibuster events --db run.db --iteration 3
  filibuster events --db run.db --iteration 3 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd)
		},
	}
	opts.addStoreFlags(cmd)
	opts.addIterationFlag(cmd, true)
	return cmd
}

// EventsResult is the JSON payload of the events command.
type EventsResult struct {
	ExplorationID string     `json:"exploration_id"`
	Iteration     int        `json:"iteration"`
	Events        []ir.Event `json:"events"`
}

func runEvents(opts *InspectOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	in, err := openInspection(ctx, opts, formatter)
	if err != nil {
		return err
	}
	defer in.st.Close()

	if _, err := in.iteration(ctx, opts.Iteration, formatter); err != nil {
		return err
	}
	events, err := in.st.ReadEvents(ctx, in.explorationID, opts.Iteration)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read events", err)
	}

	if formatter.JSON() {
		return formatter.Success(EventsResult{ExplorationID: in.explorationID, Iteration: opts.Iteration, Events: events})
	}

	w := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tSERVICE\tMETHOD\tEXECUTION INDEX\tNOTE")
	for _, ev := range events {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			ev.GeneratedID, ev.Type, ev.Service, ev.Method, ev.ExecutionIndex, eventNote(ev))
	}
	return w.Flush()
}

func eventNote(ev ir.Event) string {
	switch {
	case ev.Fault != nil:
		return "injected " + ev.Fault.String()
	case ev.Exception != nil:
		return "exception " + ev.Exception.Name
	}
	return ""
}

// NewCounterexampleCommand creates the counterexample command.
func NewCounterexampleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "counterexample",
		Short: "Export an iteration's faults for replay",
		Long: `Export the fault assignment of one iteration as a counterexample file.
Pass the file to "filibuster serve --counterexample" to run exactly that
iteration again.

Without --iteration, the first failed iteration is exported.

Examples:
  filibuster counterexample --db run.db -o cx.json
  filibuster counterexample --db run.db --iteration 3 -o cx.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCounterexample(opts, cmd)
		},
	}
	opts.addStoreFlags(cmd)
	opts.addIterationFlag(cmd, false)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func runCounterexample(opts *InspectOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	in, err := openInspection(ctx, opts, formatter)
	if err != nil {
		return err
	}
	defer in.st.Close()

	number := opts.Iteration
	if number == 0 {
		failedIts, err := in.st.FailedIterations(ctx, in.explorationID)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read iterations", err)
		}
		if len(failedIts) == 0 {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, "no failed iteration to export", nil)
		}
		number = failedIts[0].Number
	} else if _, err := in.iteration(ctx, number, formatter); err != nil {
		return err
	}

	cx, err := in.st.Counterexample(ctx, in.explorationID, number)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read counterexample", err)
	}

	data, err := json.MarshalIndent(cx, "", "  ")
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to encode counterexample", err)
	}
	data = append(data, '\n')

	if opts.Output == "" {
		_, err := formatter.Writer.Write(data)
		return err
	}
	if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write counterexample", err)
	}
	formatter.VerboseLog("wrote %s", opts.Output)
	if formatter.JSON() {
		return formatter.Success(map[string]interface{}{"iteration": number, "path": opts.Output, "faults": len(cx.Faults)})
	}
	fmt.Fprintf(formatter.Writer, "Wrote counterexample for iteration %d (%d fault(s)) to %s\n", number, len(cx.Faults), opts.Output)
	return nil
}

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render an iteration's call tree as DOT",
		Long: `Render the call tree of one iteration in Graphviz DOT format. Faulted
calls are filled red.

Examples:
  filibuster graph --db run.db --iteration 3 | dot -Tsvg > iteration-3.svg`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(opts, cmd)
		},
	}
	opts.addStoreFlags(cmd)
	opts.addIterationFlag(cmd, true)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func runGraph(opts *InspectOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	in, err := openInspection(ctx, opts, formatter)
	if err != nil {
		return err
	}
	defer in.st.Close()

	if _, err := in.iteration(ctx, opts.Iteration, formatter); err != nil {
		return err
	}
	events, err := in.st.ReadEvents(ctx, in.explorationID, opts.Iteration)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read events", err)
	}

	dot, err := report.RenderDOT(events)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to render graph", err)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(dot), 0o644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write graph", err)
		}
		formatter.VerboseLog("wrote %s", opts.Output)
		return nil
	}
	if formatter.JSON() {
		return formatter.Success(map[string]string{"dot": dot})
	}
	_, err = fmt.Fprint(formatter.Writer, dot)
	return err
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
