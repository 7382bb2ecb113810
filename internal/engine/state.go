package engine

// State is the engine's position in the exploration state machine.
type State string

const (
	// StateIdle is the state before the first iteration begins.
	StateIdle State = "idle"
	// StateRunningIteration means an iteration has begun and no event arrived yet.
	StateRunningIteration State = "running_iteration"
	// StateAwaitingEvents means the current iteration is receiving events.
	StateAwaitingEvents State = "awaiting_events"
	// StateDecidingNextIteration means the last iteration was archived and the
	// next fault assignment is selected, waiting for BeginIteration.
	StateDecidingNextIteration State = "deciding_next_iteration"
	// StateExhausted means no unexplored proposal remains or the iteration
	// cap was reached.
	StateExhausted State = "exhausted"
)

// Active reports whether an iteration is in progress.
func (s State) Active() bool {
	return s == StateRunningIteration || s == StateAwaitingEvents
}
