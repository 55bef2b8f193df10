// services/race_service_test.go
package services

import (
	"sync"
	"testing"

	"github.com/23jmo/typr-server/models"
	"github.com/23jmo/typr-server/persistence"
)

// MockDatabase records persistence calls in memory.
type MockDatabase struct {
	mu      sync.Mutex
	records []*models.GormRaceRecord
	deltas  map[string]int
	wins    map[string]bool
}

func NewMockDatabase() *MockDatabase {
	return &MockDatabase{
		deltas: make(map[string]int),
		wins:   make(map[string]bool),
	}
}

func (m *MockDatabase) SaveRaceRecord(record *models.GormRaceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *MockDatabase) ApplyRatingChange(playerID, username string, delta int, won bool, wpm float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deltas[playerID] = delta
	m.wins[playerID] = won
	return nil
}

func (m *MockDatabase) GetPlayerStats(playerID string) (map[string]interface{}, error) {
	return nil, persistence.ErrRecordNotFound
}

func (m *MockDatabase) Close() error { return nil }

func rankedResult(winner string) models.RaceResult {
	return models.RaceResult{
		RoomID:     "room1",
		Ranked:     true,
		WinnerID:   winner,
		DurationMs: 45000,
		Players: []models.RacePlayerResult{
			{PlayerID: "alice", Username: "Alice", WPM: 92, Accuracy: 98, Rating: 1000},
			{PlayerID: "bob", Username: "Bob", WPM: 80, Accuracy: 96, Rating: 1000},
		},
	}
}

func TestRecordRace_RankedUpdatesBothRatings(t *testing.T) {
	db := NewMockDatabase()
	svc := NewRaceService(db)

	svc.RecordRace(rankedResult("alice"))

	db.mu.Lock()
	defer db.mu.Unlock()

	if len(db.records) != 1 {
		t.Fatalf("Expected one race record, got %d", len(db.records))
	}
	if db.records[0].WinnerID != "alice" || !db.records[0].Ranked {
		t.Errorf("Unexpected race record: %+v", db.records[0])
	}

	// Equal ratings swing by half the K factor.
	if db.deltas["alice"] != eloK/2 {
		t.Errorf("Expected winner delta %d, got %d", eloK/2, db.deltas["alice"])
	}
	if db.deltas["bob"] != -eloK/2 {
		t.Errorf("Expected loser delta %d, got %d", -eloK/2, db.deltas["bob"])
	}
	if !db.wins["alice"] || db.wins["bob"] {
		t.Error("Win flags recorded incorrectly")
	}
}

func TestRecordRace_UnrankedSkipsRatings(t *testing.T) {
	db := NewMockDatabase()
	svc := NewRaceService(db)

	result := rankedResult("alice")
	result.Ranked = false
	svc.RecordRace(result)

	db.mu.Lock()
	defer db.mu.Unlock()

	if len(db.records) != 1 {
		t.Fatalf("Unranked races are still recorded, got %d records", len(db.records))
	}
	if len(db.deltas) != 0 {
		t.Errorf("Unranked races must not move ratings, got %v", db.deltas)
	}
}

func TestRecordRace_NilServiceIsSafe(t *testing.T) {
	var svc *RaceService
	svc.RecordRace(rankedResult("alice")) // must not panic
}

func TestRatingDelta(t *testing.T) {
	// An evenly matched win is worth exactly half the K factor.
	if got := ratingDelta(1000, 1000, true); got != eloK/2 {
		t.Errorf("Expected %d for an even win, got %d", eloK/2, got)
	}
	if got := ratingDelta(1000, 1000, false); got != -eloK/2 {
		t.Errorf("Expected %d for an even loss, got %d", -eloK/2, got)
	}

	// The underdog gains more for a win than the favorite.
	underdog := ratingDelta(900, 1100, true)
	favorite := ratingDelta(1100, 900, true)
	if underdog <= favorite {
		t.Errorf("Underdog win (%d) should exceed favorite win (%d)", underdog, favorite)
	}

	// Deltas for one result sum to roughly zero.
	winner := ratingDelta(1200, 950, true)
	loser := ratingDelta(950, 1200, false)
	if sum := winner + loser; sum < -1 || sum > 1 {
		t.Errorf("Expected near zero-sum deltas, got %d + %d = %d", winner, loser, sum)
	}
}
