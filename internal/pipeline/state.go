package pipeline

// State is a step of a run
type State int

const (
	StateIdle State = iota
	StateAwaitingInput
	StateSearching
	StateNoResults
	StateProcessing
	StateDone
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingInput:
		return "awaiting_input"
	case StateSearching:
		return "searching"
	case StateNoResults:
		return "no_results"
	case StateProcessing:
		return "processing"
	case StateDone:
		return "done"
	case StateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}
