package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filibuster/internal/ir"
	"github.com/roach88/filibuster/internal/store"
	"github.com/roach88/filibuster/internal/testutil"
)

const seededExploration = "exploration-1"

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func cartIndex() string {
	return testutil.Index(testutil.Call{Origin: "test", Service: "cart", Method: "GET /items"})
}

// seedStore archives a two-iteration exploration: a passing baseline and
// a failed iteration that injected a timeout into the cart call.
func seedStore(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "run.db")

	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.WriteExploration(ctx, ir.ExplorationRecord{
		ID:            seededExploration,
		Config:        "{}",
		EngineVersion: "test",
	}))

	timeout := ir.ExceptionFault("Timeout", ir.ExceptionMetadata{})
	faults := []ir.ScheduledFault{{ExecutionIndex: cartIndex(), Fault: timeout}}

	require.NoError(t, st.WriteIteration(ctx, ir.IterationRecord{
		ExplorationID: seededExploration, Number: 1, Outcome: ir.OutcomePassed,
		Faults: []ir.ScheduledFault{}, Events: 2, Proposed: 1,
	}))
	require.NoError(t, st.WriteIteration(ctx, ir.IterationRecord{
		ExplorationID: seededExploration, Number: 2, Outcome: ir.OutcomeFailed,
		Faults: faults, Scheduled: 1, Injected: 1, Events: 2,
		Failure: "cart returned an error the test did not handle",
	}))

	invocation := ir.Event{
		Type:           ir.InstrumentationInvocation,
		ExecutionIndex: cartIndex(),
		RequestID:      "req-1",
		Service:        "cart",
		Method:         "GET /items",
		CallType:       ir.CallTypeHTTP,
	}
	complete := invocation
	complete.Type = ir.InstrumentationInvocationComplete

	var gid int64
	write := func(iteration int, ev ir.Event) {
		gid++
		ev.GeneratedID = gid
		require.NoError(t, st.WriteEvent(ctx, ir.EventRecord{ExplorationID: seededExploration, Iteration: iteration, Event: ev}))
	}
	write(1, invocation)
	write(1, complete)

	faulted := complete
	faulted.Fault = &timeout
	faulted.Exception = timeout.Exception
	write(2, invocation)
	write(2, faulted)

	return path
}
