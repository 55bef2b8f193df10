package session

import (
	"net"
	"testing"
	"time"

	"github.com/23jmo/typr-server/models"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct {
	SentEvents []string
	Closed     bool
}

func (m *MockConnection) Send(event string, data interface{}) error {
	m.SentEvents = append(m.SentEvents, event)
	return nil
}

func (m *MockConnection) ReadMessage() (*models.InboundMessage, error) { return nil, nil }

func (m *MockConnection) Close() error {
	m.Closed = true
	return nil
}

func (m *MockConnection) RemoteAddr() net.Addr { return &net.TCPAddr{} }

func (m *MockConnection) SetHeartbeat(interval time.Duration) {}

func TestSession_SendAndClose(t *testing.T) {
	conn := &MockConnection{}
	sess := NewSession("s1", conn)

	if err := sess.Send("room_state", nil); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(conn.SentEvents) != 1 || conn.SentEvents[0] != "room_state" {
		t.Errorf("Expected one room_state event, got %v", conn.SentEvents)
	}

	if err := sess.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !conn.Closed {
		t.Error("Close should reach the underlying connection")
	}
}

func TestSession_RoomAndPlayerBinding(t *testing.T) {
	sess := NewSession("s2", &MockConnection{})

	if sess.GetRoom() != "" || sess.GetPlayer() != "" {
		t.Error("A fresh session should be unbound")
	}

	sess.SetRoom("room1")
	sess.SetPlayer("player1")

	if sess.GetRoom() != "room1" {
		t.Errorf("Expected room1, got %s", sess.GetRoom())
	}
	if sess.GetPlayer() != "player1" {
		t.Errorf("Expected player1, got %s", sess.GetPlayer())
	}
}

func TestManager_AddGetRemove(t *testing.T) {
	manager := NewManager()
	sess := NewSession("s3", &MockConnection{})

	manager.Add(sess)

	got, exists := manager.Get("s3")
	if !exists {
		t.Fatal("Get should find the added session")
	}
	if got != sess {
		t.Error("Get should return the same session instance")
	}
	if !manager.IsAlive("s3") {
		t.Error("IsAlive should be true for a registered session")
	}
	if manager.Count() != 1 {
		t.Errorf("Expected count 1, got %d", manager.Count())
	}

	manager.Remove("s3")

	if _, exists := manager.Get("s3"); exists {
		t.Error("Get should not find a removed session")
	}
	if manager.IsAlive("s3") {
		t.Error("IsAlive should be false after removal")
	}
}

func TestManager_GetByPlayerID(t *testing.T) {
	manager := NewManager()

	a := NewSession("sa", &MockConnection{})
	a.SetPlayer("p1")
	b := NewSession("sb", &MockConnection{})
	b.SetPlayer("p2")
	manager.Add(a)
	manager.Add(b)

	sessions := manager.GetByPlayerID("p1")
	if len(sessions) != 1 || sessions[0] != a {
		t.Errorf("Expected exactly session sa for p1, got %v", sessions)
	}

	if got := manager.GetByPlayerID("p3"); len(got) != 0 {
		t.Errorf("Expected no sessions for unknown player, got %v", got)
	}
}
