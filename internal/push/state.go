package push

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition matches every *TransitionError.
var ErrInvalidTransition = errors.New("push: invalid state transition")

// State is the push opt-in control state.
type State string

const (
	StateUnsupported   State = "unsupported"
	StateChecking      State = "checking"
	StateUnsubscribed  State = "unsubscribed"
	StateSubscribed    State = "subscribed"
	StateTransitioning State = "transitioning"
)

// transitions lists the allowed moves. Unsupported is terminal.
var transitions = map[State][]State{
	StateUnsupported:   nil,
	StateChecking:      {StateSubscribed, StateUnsubscribed},
	StateUnsubscribed:  {StateTransitioning},
	StateSubscribed:    {StateTransitioning},
	StateTransitioning: {StateSubscribed, StateUnsubscribed},
}

// CanTransition reports whether from → to is allowed.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Busy reports whether the control must stay disabled.
func (s State) Busy() bool {
	return s == StateChecking || s == StateTransitioning
}

// TransitionError reports a move the state machine does not allow.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("push: invalid transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
