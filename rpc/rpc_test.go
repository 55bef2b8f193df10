package rpc

import (
	"net"
	"testing"
	"time"

	"github.com/23jmo/typr-server/models"
	"github.com/23jmo/typr-server/persistence"
	"github.com/23jmo/typr-server/services"
	"github.com/23jmo/typr-server/session"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct{}

func (m *MockConnection) Send(event string, data interface{}) error    { return nil }
func (m *MockConnection) ReadMessage() (*models.InboundMessage, error) { return nil, nil }
func (m *MockConnection) Close() error                                 { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                         { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)          {}

// stubDatabase serves canned stats for one player.
type stubDatabase struct {
	stats map[string]interface{}
}

func (s *stubDatabase) SaveRaceRecord(record *models.GormRaceRecord) error { return nil }
func (s *stubDatabase) ApplyRatingChange(playerID, username string, delta int, won bool, wpm float64) error {
	return nil
}
func (s *stubDatabase) Close() error { return nil }

func (s *stubDatabase) GetPlayerStats(playerID string) (map[string]interface{}, error) {
	if s.stats == nil {
		return nil, persistence.ErrRecordNotFound
	}
	return s.stats, nil
}

func TestGetPlayerStats_ReportsOnlinePresence(t *testing.T) {
	db := &stubDatabase{stats: map[string]interface{}{"rating": 1042}}
	races := services.NewRaceService(db)
	sessions := session.NewManager()
	admin := NewAdminService(races, nil, sessions, nil)

	sess := session.NewSession("sess-1", &MockConnection{})
	sess.SetPlayer("alice")
	sessions.Add(sess)

	var reply PlayerStatsReply
	if err := admin.GetPlayerStats(&PlayerStatsArgs{PlayerID: "alice"}, &reply); err != nil {
		t.Fatalf("GetPlayerStats failed: %v", err)
	}
	if reply.Data["rating"] != 1042 {
		t.Errorf("Expected rating 1042, got %v", reply.Data["rating"])
	}
	if !reply.Online {
		t.Error("A player with a live session should report online")
	}

	sessions.Remove(sess.GetID())
	reply = PlayerStatsReply{}
	if err := admin.GetPlayerStats(&PlayerStatsArgs{PlayerID: "alice"}, &reply); err != nil {
		t.Fatalf("GetPlayerStats failed: %v", err)
	}
	if reply.Online {
		t.Error("A player with no session should report offline")
	}
}
