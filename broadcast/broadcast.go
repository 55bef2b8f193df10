package broadcast

import (
	"errors"

	"github.com/23jmo/typr-server/room"
	"github.com/23jmo/typr-server/session"
)

var ErrRoomNotFound = errors.New("room not found")

// RoomBroadcaster delivers room events to every participant's transport.
// Send failures skip the session; its own read loop notices the broken
// socket and runs the disconnect path.
type RoomBroadcaster struct {
	rooms    *room.Manager
	sessions *session.Manager
}

func NewRoomBroadcaster(rooms *room.Manager, sessions *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		rooms:    rooms,
		sessions: sessions,
	}
}

func (b *RoomBroadcaster) BroadcastToRoom(roomID string, event string, data interface{}) error {
	return b.send(roomID, "", event, data)
}

func (b *RoomBroadcaster) BroadcastToRoomExcept(roomID string, exceptSessionID string, event string, data interface{}) error {
	return b.send(roomID, exceptSessionID, event, data)
}

func (b *RoomBroadcaster) send(roomID, exceptSessionID, event string, data interface{}) error {
	r, exists := b.rooms.Get(roomID)
	if !exists {
		return ErrRoomNotFound
	}

	for _, sessionID := range r.SessionIDs() {
		if sessionID == exceptSessionID {
			continue
		}
		sess, ok := b.sessions.Get(sessionID)
		if !ok {
			continue
		}
		if err := sess.Send(event, data); err != nil {
			continue
		}
	}
	return nil
}
