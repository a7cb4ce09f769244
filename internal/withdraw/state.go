// Package withdraw drives one interactive anchor withdrawal from asset
// selection to a terminal outcome.
package withdraw

import (
	"github.com/Veraticus/offramp/internal/model"
	"github.com/Veraticus/offramp/internal/poll"
)

// State is the driver's position in the withdrawal flow.
type State int

// Driver states.
const (
	StateNone State = iota
	StateStarted
	StateWaiting
	StateConfirmTransfer
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateStarted:
		return "STARTED"
	case StateWaiting:
		return "WAITING"
	case StateConfirmTransfer:
		return "CONFIRM_TRANSFER"
	case StateSuccess:
		return "SUCCESS"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// transition is the reaction to one polled status.
type transition struct {
	next     State
	decision poll.Decision
	outcome  model.Outcome // empty when nothing is settled
}

// decide maps a status onto the next state. It has no side effects.
func decide(status model.TransactionStatus) transition {
	switch status.Class() {
	case model.ClassTerminal:
		if status == model.StatusCompleted {
			return transition{next: StateSuccess, decision: poll.DecisionStop, outcome: model.OutcomeCompleted}
		}
		return transition{next: StateError, decision: poll.DecisionStop, outcome: model.OutcomeFailed}
	case model.ClassActionable:
		return transition{next: StateConfirmTransfer, decision: poll.DecisionStop}
	default:
		return transition{next: StateWaiting, decision: poll.DecisionContinue}
	}
}
