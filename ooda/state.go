package ooda

import "fmt"

// State is the phase of one OODA cycle.
type State int

const (
	StateIdle State = iota
	StateObserving
	StateOrienting
	StateDeciding
	StateActing
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateObserving:
		return "OBSERVING"
	case StateOrienting:
		return "ORIENTING"
	case StateDeciding:
		return "DECIDING"
	case StateActing:
		return "ACTING"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// transitions is the closed set of legal state pairs. Anything not listed is
// a programming error, surfaced as a fatal audit event.
//
// The Deciding→Completed edge (approval with nothing to execute) is kept for
// completeness; the shipped rule set never takes it.
var transitions = map[State][]State{
	StateIdle:      {StateObserving},
	StateObserving: {StateOrienting, StateFailed},
	StateOrienting: {StateDeciding, StateFailed},
	StateDeciding:  {StateActing, StateCompleted, StateFailed},
	StateActing:    {StateCompleted, StateFailed},
	StateCompleted: {StateIdle},
	StateFailed:    {StateIdle},
}

// CanTransition reports whether from→to is in the table.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StateTransitionError is an attempted transition outside the table. It must
// be impossible in a correct orchestrator.
type StateTransitionError struct {
	From State
	To   State
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition %s -> %s", e.From, e.To)
}
