package runner

// State is the orchestrator's position in the conversation loop.
type State int

const (
	// StateIdle means no run is active.
	StateIdle State = iota

	// StateAwaitingProvider means the loop is consuming the adapter's
	// event stream.
	StateAwaitingProvider

	// StateDispatchingTools means proposed calls are being gated and
	// executed, strictly in proposal order.
	StateDispatchingTools

	// StateCancelled is terminal: cancellation was raised and honored.
	StateCancelled

	// StateDone is terminal: the model finished with no pending calls.
	StateDone

	// StateFailed is terminal: provider failure or iteration cap.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingProvider:
		return "awaiting_provider"
	case StateDispatchingTools:
		return "dispatching_tools"
	case StateCancelled:
		return "cancelled"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends a run.
func (s State) Terminal() bool {
	switch s {
	case StateCancelled, StateDone, StateFailed:
		return true
	default:
		return false
	}
}
