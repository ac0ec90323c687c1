package pipeline

import "fmt"

// State is a step of the harvest state machine.
type State string

// Controller states, in the only order they may be entered. StateFailed may
// follow any non-terminal state.
const (
	StateInit            State = "INIT"
	StateLoading         State = "LOADING"
	StateCollectingLinks State = "COLLECTING_LINKS"
	StateFetchingDetails State = "FETCHING_DETAILS"
	StateExporting       State = "EXPORTING"
	StateDone            State = "DONE"
	StateFailed          State = "FAILED"
)

var order = map[State]int{
	StateInit:            0,
	StateLoading:         1,
	StateCollectingLinks: 2,
	StateFetchingDetails: 3,
	StateExporting:       4,
	StateDone:            5,
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// canTransition allows exactly one step forward, or a jump to FAILED from any
// non-terminal state.
func canTransition(from, to State) error {
	if from.Terminal() {
		return fmt.Errorf("state %s is terminal", from)
	}
	if to == StateFailed {
		return nil
	}
	fromIdx, okFrom := order[from]
	toIdx, okTo := order[to]
	if !okFrom || !okTo || toIdx != fromIdx+1 {
		return fmt.Errorf("invalid transition %s -> %s", from, to)
	}
	return nil
}
