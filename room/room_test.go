package room

import (
	"testing"
	"time"

	"github.com/23jmo/typr-server/models"
	"github.com/23jmo/typr-server/state"
)

func TestManager_AddGetRemove(t *testing.T) {
	manager := NewManager()

	r := &Room{
		ID:      "test_room_1",
		Name:    "Test Room",
		Phase:   state.PhaseWaiting,
		Players: make(map[string]*models.Player),
	}
	manager.Add(r)

	retrieved, exists := manager.Get("test_room_1")
	if !exists {
		t.Fatal("Get should find the added room")
	}
	if retrieved != r {
		t.Error("Get should return the same room instance")
	}
	if manager.Count() != 1 {
		t.Errorf("Expected count 1, got %d", manager.Count())
	}

	manager.Remove("test_room_1")
	if _, exists := manager.Get("test_room_1"); exists {
		t.Error("Get should not find a removed room")
	}
	if manager.Count() != 0 {
		t.Errorf("Expected count 0 after removal, got %d", manager.Count())
	}
}

func TestRoom_SnapshotIsACopy(t *testing.T) {
	r := &Room{
		ID:        "snap",
		Phase:     state.PhaseWaiting,
		CreatedAt: time.Now(),
		Players: map[string]*models.Player{
			"p1": {ID: "p1", Username: "One", Connected: true},
		},
		sessions:    map[string]string{"p1": "s1"},
		VoteOptions: []string{"space", "food"},
	}

	snap := r.Snapshot()
	snap.Players["p1"].Username = "Mutated"
	snap.VoteOptions[0] = "mutated"

	if r.Players["p1"].Username != "One" {
		t.Error("Mutating a snapshot player must not touch the room")
	}
	if r.VoteOptions[0] != "space" {
		t.Error("Mutating snapshot vote options must not touch the room")
	}
}

func TestRoom_Occupancy(t *testing.T) {
	r := &Room{
		ID: "occ",
		Players: map[string]*models.Player{
			"p1": {ID: "p1", Connected: true},
			"p2": {ID: "p2", Connected: false},
			"p3": {ID: "p3", Connected: true},
		},
		sessions: map[string]string{"p1": "s1", "p3": "s3"},
	}

	seated, connected := r.Occupancy()
	if seated != 3 {
		t.Errorf("Expected 3 seated, got %d", seated)
	}
	if connected != 2 {
		t.Errorf("Expected 2 connected, got %d", connected)
	}

	ids := r.SessionIDs()
	if len(ids) != 2 {
		t.Errorf("Expected 2 session handles, got %d", len(ids))
	}
}

func TestRoom_EarliestFinisher(t *testing.T) {
	r := &Room{
		ID: "win",
		Players: map[string]*models.Player{
			"slow":    {ID: "slow", Connected: true, FinishTime: 2000},
			"fast":    {ID: "fast", Connected: true, FinishTime: 1000},
			"gone":    {ID: "gone", Connected: false, FinishTime: 500},
			"running": {ID: "running", Connected: true},
		},
	}

	if got := r.earliestFinisher(); got != "fast" {
		t.Errorf("Expected the earliest connected finisher to win, got %q", got)
	}

	empty := &Room{ID: "none", Players: map[string]*models.Player{
		"p1": {ID: "p1", Connected: true},
	}}
	if got := empty.earliestFinisher(); got != "" {
		t.Errorf("Expected no winner when nobody finished, got %q", got)
	}
}
