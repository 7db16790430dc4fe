package pipeline

import (
	"errors"
	"fmt"
)

// State is a step of a pipeline run.
type State string

const (
	StateValidatingConfig   State = "ValidatingConfig"
	StateEnsuringCollection State = "EnsuringCollection"
	StateFetchingIssues     State = "FetchingIssues"
	StateVectorizing        State = "Vectorizing"
	StateUpserting          State = "Upserting"
	StateFetchingSample     State = "FetchingSample"
	StateDone               State = "Done"
	StateFailed             State = "Failed"
)

// ErrInvalidTransition indicates a step tried to move to a state its
// transition table does not allow.
var ErrInvalidTransition = errors.New("invalid state transition")

// transitions lists the states reachable from each state. Failed appears
// only under the two fatal states.
var transitions = map[State][]State{
	StateValidatingConfig:   {StateEnsuringCollection, StateFailed},
	StateEnsuringCollection: {StateFetchingIssues, StateFailed},
	StateFetchingIssues:     {StateVectorizing, StateDone},
	StateVectorizing:        {StateUpserting},
	StateUpserting:          {StateFetchingSample},
	StateFetchingSample:     {StateDone},
}

// AllStates returns the non-terminal states in run order.
func AllStates() []State {
	return []State{
		StateValidatingConfig,
		StateEnsuringCollection,
		StateFetchingIssues,
		StateVectorizing,
		StateUpserting,
		StateFetchingSample,
	}
}

// Terminal reports whether a run stops in s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Fatal reports whether a failure in s aborts the run.
func (s State) Fatal() bool {
	return CanFail(s)
}

// CanFail is the function form of Fatal. Every non-fatal state degrades and
// continues.
func CanFail(s State) bool {
	return CanTransition(s, StateFailed)
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
