package session

import (
	"sync"
	"time"

	"github.com/23jmo/typr-server/network"
)

// Session is the reachability handle for one connected transport. The
// matchmaker stores session ids in queue entries and treats "still
// registered with the manager" as liveness.
type Session struct {
	ID         string
	Conn       network.Connection
	PlayerID   string
	RoomID     string
	CreatedAt  time.Time
	LastActive time.Time
	mutex      sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
	}
}

func (s *Session) Send(event string, data interface{}) error {
	s.mutex.Lock()
	s.LastActive = time.Now()
	s.mutex.Unlock()
	return s.Conn.Send(event, data)
}

func (s *Session) GetID() string {
	return s.ID
}

// SetRoom records which room this session is seated in.
func (s *Session) SetRoom(roomID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.RoomID = roomID
}

func (s *Session) GetRoom() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.RoomID
}

func (s *Session) SetPlayer(playerID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.PlayerID = playerID
}

func (s *Session) GetPlayer() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.PlayerID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Manager owns the session table. A session is live exactly while it is
// registered here; the disconnect path removes it before anything else.
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

// IsAlive reports whether the session is still registered.
func (m *Manager) IsAlive(sessionID string) bool {
	_, exists := m.Get(sessionID)
	return exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

func (m *Manager) GetByPlayerID(playerID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.GetPlayer() == playerID {
			result = append(result, session)
		}
	}
	return result
}
