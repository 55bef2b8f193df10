package state

import (
	"errors"
)

// Phase is a room's lifecycle state.
type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseVoting    Phase = "voting"
	PhaseCountdown Phase = "countdown"
	PhaseRacing    Phase = "racing"
	PhaseFinished  Phase = "finished"
)

// ErrTransitionNotAllowed is returned when a phase change is not in the
// transition table.
var ErrTransitionNotAllowed = errors.New("phase transition not allowed")

// transitions lists every legal edge. The two back-edges are the rematch
// loop (finished -> voting) and the under-population abort
// (voting/countdown -> waiting).
var transitions = map[Phase][]Phase{
	PhaseWaiting:   {PhaseCountdown},
	PhaseVoting:    {PhaseCountdown, PhaseWaiting},
	PhaseCountdown: {PhaseRacing, PhaseWaiting},
	PhaseRacing:    {PhaseFinished},
	PhaseFinished:  {PhaseVoting},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Validate returns ErrTransitionNotAllowed for illegal edges.
func Validate(from, to Phase) error {
	if !CanTransition(from, to) {
		return ErrTransitionNotAllowed
	}
	return nil
}

// HasTimer reports whether the phase may have an armed phase timer.
// waiting and finished wait on players, never on the clock.
func (p Phase) HasTimer() bool {
	return p == PhaseVoting || p == PhaseCountdown || p == PhaseRacing
}
