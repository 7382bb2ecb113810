// Package engine implements the fault-injection test-generation engine.
//
// The engine owns one test method's full exploration. It receives
// instrumentation events from middleware, answers each invocation with a
// fault directive, archives a TestExecutionRecord per iteration and decides
// which fault assignment the next iteration runs, until no unexplored
// assignment remains.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Events, BeginIteration and EndIteration all travel through one FIFO queue
// consumed by Run. Every mutation of the current record, the explored corpus
// and the proposal frontier happens in that goroutine. Callers block on a
// reply channel. EndIteration is therefore a barrier: every event submitted
// before it has been recorded when it returns.
//
// State Machine:
//
//	Idle -> RunningIteration -> AwaitingEvents -> DecidingNextIteration
//	DecidingNextIteration -> RunningIteration | Exhausted
//
// Exploration:
// Proposals are records that differ from the iteration that produced them by
// exactly one scheduled fault. A proposal whose record equals one already
// explored or queued is discarded without running it. The frontier is
// processed breadth-first in the order call sites were first observed.
//
// generated_id:
// Every event is stamped with a monotonic logical clock on receipt. Events
// are persisted and read back in that order; wall-clock time is never used.
package engine
