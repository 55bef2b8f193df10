package room

import (
	"context"
	"time"

	"github.com/23jmo/typr-server/models"
)

// Broadcaster fans room events out to participants. Defined here to break
// the import cycle with the broadcast package.
type Broadcaster interface {
	BroadcastToRoom(roomID string, event string, data interface{}) error
	// BroadcastToRoomExcept skips one session; used for progress fan-out
	// which never echoes back to its author.
	BroadcastToRoomExcept(roomID string, exceptSessionID string, event string, data interface{}) error
}

// TextProvider generates race text. An empty topic means random prose.
type TextProvider interface {
	Generate(ctx context.Context, topic string, approxLength int) (string, error)
}

// StatsSink is informed of completed races, fire-and-forget. Failures
// inside the sink must never reach back into room state.
type StatsSink interface {
	RecordRace(result models.RaceResult)
}

// Metrics is the slice of the monitor the orchestrator touches.
type Metrics interface {
	SetActiveRooms(count int)
	RaceStarted()
	RaceFinished(duration time.Duration)
}
