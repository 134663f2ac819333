package live

import (
	"fmt"
	"time"
)

// State is a live session state
type State int

const (
	StateConnecting State = iota
	StateSetupSent
	StateAwaitingAudio
	StateTurnComplete
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateSetupSent:
		return "SETUP_SENT"
	case StateAwaitingAudio:
		return "AWAITING_AUDIO"
	case StateTurnComplete:
		return "TURN_COMPLETE"
	case StateClosed:
		return "CLOSED"
	case StateError:
		return "ERROR"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StateChange records one transition
type StateChange struct {
	From      State
	To        State
	Timestamp time.Time
}

// InvalidTransitionError is returned when a transition is not allowed from the current state
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid live state transition: %s -> %s", e.From, e.To)
}

// ERROR is reachable from every non-terminal state and always ends in CLOSED.
var validTransitions = map[State][]State{
	StateConnecting:    {StateSetupSent, StateError},
	StateSetupSent:     {StateAwaitingAudio, StateError},
	StateAwaitingAudio: {StateTurnComplete, StateError},
	StateTurnComplete:  {StateClosed, StateError},
	StateError:         {StateClosed},
}

func transitionValid(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
