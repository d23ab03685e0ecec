package scheduling

import "fmt"

// TransitionError reports a status change not permitted from the current
// state, identifying both sides.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition from %s to %s", e.From, e.To)
}

// transitions is the complete lifecycle. Completed, cancelled and no_show are
// terminal. Cancelling or completing releases the appointment's interval
// automatically: availability is derived from status, so no slot bookkeeping
// happens here.
var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusConfirmed:  true,
		StatusInProgress: true,
		StatusCancelled:  true,
	},
	StatusScheduled: {
		StatusConfirmed:  true,
		StatusInProgress: true,
		StatusCompleted:  true,
		StatusCancelled:  true,
		StatusNoShow:     true,
	},
	StatusConfirmed: {
		StatusInProgress: true,
		StatusCompleted:  true,
		StatusCancelled:  true,
		StatusNoShow:     true,
	},
	StatusInProgress: {
		StatusCompleted: true,
	},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// Transition validates a lifecycle step, returning a *TransitionError when
// the step is not in the table.
func Transition(from, to Status) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}
