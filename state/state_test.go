package state

import (
	"testing"
)

func TestCanTransition_LegalEdges(t *testing.T) {
	legal := []struct {
		from, to Phase
	}{
		{PhaseWaiting, PhaseCountdown},
		{PhaseVoting, PhaseCountdown},
		{PhaseVoting, PhaseWaiting},
		{PhaseCountdown, PhaseRacing},
		{PhaseCountdown, PhaseWaiting},
		{PhaseRacing, PhaseFinished},
		{PhaseFinished, PhaseVoting},
	}

	for _, edge := range legal {
		if !CanTransition(edge.from, edge.to) {
			t.Errorf("Expected %s -> %s to be allowed", edge.from, edge.to)
		}
	}
}

func TestCanTransition_IllegalEdges(t *testing.T) {
	illegal := []struct {
		from, to Phase
	}{
		{PhaseWaiting, PhaseRacing},
		{PhaseWaiting, PhaseVoting},
		{PhaseWaiting, PhaseFinished},
		{PhaseRacing, PhaseWaiting},
		{PhaseRacing, PhaseCountdown},
		{PhaseFinished, PhaseCountdown},
		{PhaseFinished, PhaseWaiting},
		{PhaseCountdown, PhaseVoting},
		{PhaseVoting, PhaseRacing},
		{PhaseRacing, PhaseRacing},
	}

	for _, edge := range illegal {
		if CanTransition(edge.from, edge.to) {
			t.Errorf("Expected %s -> %s to be rejected", edge.from, edge.to)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(PhaseWaiting, PhaseCountdown); err != nil {
		t.Errorf("Validate should allow waiting -> countdown, got: %v", err)
	}

	err := Validate(PhaseWaiting, PhaseRacing)
	if err != ErrTransitionNotAllowed {
		t.Errorf("Expected ErrTransitionNotAllowed, got: %v", err)
	}
}

func TestHasTimer(t *testing.T) {
	timed := []Phase{PhaseVoting, PhaseCountdown, PhaseRacing}
	for _, p := range timed {
		if !p.HasTimer() {
			t.Errorf("Expected %s to carry a timer", p)
		}
	}

	untimed := []Phase{PhaseWaiting, PhaseFinished}
	for _, p := range untimed {
		if p.HasTimer() {
			t.Errorf("Expected %s to carry no timer", p)
		}
	}
}
