package room

import (
	"sync"
	"time"

	"github.com/23jmo/typr-server/models"
	"github.com/23jmo/typr-server/state"
)

// Room is one race lobby. Every field is guarded by mu; only the Service
// mutates rooms, and it snapshots before broadcasting so observers never
// see partial state.
type Room struct {
	ID          string
	Name        string
	Phase       state.Phase
	CreatedAt   time.Time
	TimeLimit   int // seconds, 0 = unlimited
	TextLength  int
	PlayerLimit int
	Ranked      bool

	Players  map[string]*models.Player
	sessions map[string]string // playerID -> sessionID

	Text        string
	TextSource  models.TextSource
	Topic       string
	VoteOptions []string
	HostID      string

	// Unix millis, 0 = unset.
	CountdownStartedAt int64
	VotingEndTime      int64
	StartTime          int64

	Winner          string
	PreMatchRatings map[string]int

	// Timer handles, 0 = not armed. At most one of countdownTimerID and
	// votingTimerID is non-zero at any instant.
	countdownTimerID int64
	votingTimerID    int64
	raceTimerID      int64
	cleanupTimerID   int64

	// Set once the vote tally has run; the room stays in voting until
	// the generated text arrives, and late votes must not re-tally.
	votingResolved bool

	mu sync.RWMutex
}

// connectedCount counts seated players whose transport is up. Callers
// hold mu.
func (r *Room) connectedCount() int {
	n := 0
	for _, p := range r.Players {
		if p.Connected {
			n++
		}
	}
	return n
}

func (r *Room) allConnectedReady() bool {
	for _, p := range r.Players {
		if p.Connected && !p.Ready {
			return false
		}
	}
	return true
}

func (r *Room) allConnectedFinished() bool {
	for _, p := range r.Players {
		if p.Connected && !p.Finished {
			return false
		}
	}
	return true
}

func (r *Room) allConnectedVoted() bool {
	for _, p := range r.Players {
		if p.Connected && p.Vote == "" {
			return false
		}
	}
	return true
}

func (r *Room) allConnectedWantRematch() bool {
	for _, p := range r.Players {
		if p.Connected && !p.WantsRematch {
			return false
		}
	}
	return true
}

// earliestFinisher returns the connected player with the lowest finish
// time, or "" if nobody finished. Callers hold mu.
func (r *Room) earliestFinisher() string {
	winner := ""
	var best int64
	for id, p := range r.Players {
		if !p.Connected || p.FinishTime == 0 {
			continue
		}
		if winner == "" || p.FinishTime < best {
			winner = id
			best = p.FinishTime
		}
	}
	return winner
}

// snapshot copies the room into its broadcast form. Callers hold mu (read
// or write).
func (r *Room) snapshot() *models.RoomSnapshot {
	players := make(map[string]*models.Player, len(r.Players))
	for id, p := range r.Players {
		copied := *p
		players[id] = &copied
	}

	var options []string
	if len(r.VoteOptions) > 0 {
		options = append([]string(nil), r.VoteOptions...)
	}

	return &models.RoomSnapshot{
		ID:                 r.ID,
		Name:               r.Name,
		Phase:              string(r.Phase),
		CreatedAt:          r.CreatedAt,
		TimeLimit:          r.TimeLimit,
		TextLength:         r.TextLength,
		PlayerLimit:        r.PlayerLimit,
		Ranked:             r.Ranked,
		Players:            players,
		Text:               r.Text,
		TextSource:         r.TextSource,
		Topic:              r.Topic,
		VoteOptions:        options,
		HostID:             r.HostID,
		CountdownStartedAt: r.CountdownStartedAt,
		VotingEndTime:      r.VotingEndTime,
		StartTime:          r.StartTime,
		Winner:             r.Winner,
	}
}

// Snapshot is the lock-taking variant for callers outside the service.
func (r *Room) Snapshot() *models.RoomSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot()
}

// SessionIDs returns the transport handles of currently seated players.
func (r *Room) SessionIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for _, sid := range r.sessions {
		ids = append(ids, sid)
	}
	return ids
}

// GetPhase reads the current phase.
func (r *Room) GetPhase() state.Phase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Phase
}

// Occupancy returns seated and connected player counts.
func (r *Room) Occupancy() (seated, connected int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Players), r.connectedCount()
}

// Manager is the session registry: the single authoritative mapping from
// room id to room state in this process.
type Manager struct {
	rooms map[string]*Room
	mutex sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
	}
}

func (m *Manager) Add(room *Room) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rooms[room.ID] = room
}

func (m *Manager) Get(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	room, exists := m.rooms[id]
	return room, exists
}

func (m *Manager) Remove(id string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.rooms, id)
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}
