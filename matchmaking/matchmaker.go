package matchmaking

import (
	"context"
	"errors"
	"time"

	"github.com/23jmo/typr-server/config"
	"github.com/23jmo/typr-server/logger"
	"github.com/23jmo/typr-server/models"
	"github.com/23jmo/typr-server/network"
	"github.com/23jmo/typr-server/room"
	"github.com/23jmo/typr-server/session"
)

// ErrMatchLost means another matchmaking attempt consumed one of the two
// entries between candidate selection and removal. The match is aborted;
// nothing was committed, so there is nothing to roll back. The requester
// stays out of the queue until they retry.
var ErrMatchLost = errors.New("match lost to a concurrent request")

// QueueMetrics is the slice of the monitor the matchmaker touches.
type QueueMetrics interface {
	SetQueuedPlayers(count int)
}

// Matchmaker pairs queued players inside a symmetric rating window.
// Selection is first-fit: the first candidate with a live transport wins,
// in store iteration order; no proximity sort.
type Matchmaker struct {
	store    QueueStore
	sessions *session.Manager
	rooms    *room.Service
	metrics  QueueMetrics
	window   int
}

func NewMatchmaker(store QueueStore, sessions *session.Manager, rooms *room.Service, metrics QueueMetrics, cfg config.MatchmakingConfig) *Matchmaker {
	return &Matchmaker{
		store:    store,
		sessions: sessions,
		rooms:    rooms,
		metrics:  metrics,
		window:   cfg.RatingWindow,
	}
}

// Enqueue registers a matchmaking request and immediately seeks a match.
// Re-enqueueing the same identity first purges prior entries, so the net
// effect of repeated calls is exactly one live entry.
func (m *Matchmaker) Enqueue(ctx context.Context, sess *session.Session, playerID, username string, rating int) (*room.Room, error) {
	if _, err := m.store.RemoveByPlayer(ctx, playerID); err != nil {
		return nil, err
	}

	entry := models.QueueEntry{
		PlayerID:   playerID,
		Username:   username,
		Rating:     rating,
		SessionID:  sess.ID,
		EnqueuedAt: time.Now().UnixMilli(),
	}
	if err := m.store.Add(ctx, entry); err != nil {
		return nil, err
	}
	m.observeQueueLen(ctx)

	matched, err := m.tryMatch(ctx, entry)
	if err != nil {
		return nil, err
	}
	return matched, nil
}

// Cancel removes the entry reached through the given transport handle.
// No-op if the player was never queued.
func (m *Matchmaker) Cancel(ctx context.Context, sessionID string) error {
	if err := m.store.RemoveBySession(ctx, sessionID); err != nil {
		return err
	}
	m.observeQueueLen(ctx)
	return nil
}

// HandleDisconnect purges any queue entry of a dropped transport. It runs
// for every disconnect, whether or not the player was queued.
func (m *Matchmaker) HandleDisconnect(ctx context.Context, sessionID string) {
	if err := m.store.RemoveBySession(ctx, sessionID); err != nil {
		logger.Log.Warnf("Failed to purge queue entry for session %s: %v", sessionID, err)
	}
	m.observeQueueLen(ctx)
}

// tryMatch scans the rating window for the first candidate whose
// transport is still live, then atomically claims both entries. Returns
// the created room, nil if nobody matched, or ErrMatchLost on a lost
// claim race.
func (m *Matchmaker) tryMatch(ctx context.Context, requester models.QueueEntry) (*room.Room, error) {
	candidates, err := m.store.RangeByRating(ctx, requester.Rating-m.window, requester.Rating+m.window)
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		if candidate.PlayerID == requester.PlayerID {
			continue
		}
		if !m.sessions.IsAlive(candidate.SessionID) {
			// Stale entry: its owner is gone. Drop it and keep scanning.
			if _, err := m.store.Remove(ctx, candidate); err != nil {
				logger.Log.Warnf("Failed to drop stale queue entry for %s: %v", candidate.PlayerID, err)
			}
			continue
		}

		removed, err := m.store.Remove(ctx, requester, candidate)
		if err != nil {
			return nil, err
		}
		m.observeQueueLen(ctx)
		if removed < 2 {
			// A concurrent attempt claimed one of the entries first.
			// Abort without re-inserting: the requester retries.
			logger.Log.Infof("Match between %s and %s lost to a concurrent claim (%d removed)",
				requester.PlayerID, candidate.PlayerID, removed)
			return nil, ErrMatchLost
		}

		return m.createMatch(requester, candidate), nil
	}

	return nil, nil
}

func (m *Matchmaker) createMatch(a, b models.QueueEntry) *room.Room {
	r := m.rooms.CreateMatchRoom(a, b)

	pairs := []struct {
		self, opponent models.QueueEntry
	}{
		{a, b},
		{b, a},
	}
	for _, pair := range pairs {
		sess, exists := m.sessions.Get(pair.self.SessionID)
		if !exists {
			// Verified live moments ago; if it vanished since, the
			// disconnect reconciler will tidy the seat up.
			continue
		}
		sess.SetPlayer(pair.self.PlayerID)
		sess.SetRoom(r.ID)
		if err := sess.Send(network.EventMatchFound, models.MatchFoundPayload{
			RoomID:   r.ID,
			Opponent: pair.opponent.Username,
		}); err != nil {
			logger.Log.Warnf("Failed to notify session %s of match: %v", sess.ID, err)
		}
	}

	logger.Log.Infof("Matched %s (%d) with %s (%d) into room %s",
		a.Username, a.Rating, b.Username, b.Rating, r.ID)
	return r
}

// QueueLen reports how many entries the queue currently holds.
func (m *Matchmaker) QueueLen() (int, error) {
	return m.store.Len(context.Background())
}

func (m *Matchmaker) observeQueueLen(ctx context.Context) {
	if m.metrics == nil {
		return
	}
	if n, err := m.store.Len(ctx); err == nil {
		m.metrics.SetQueuedPlayers(n)
	}
}
