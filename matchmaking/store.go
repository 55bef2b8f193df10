package matchmaking

import (
	"context"
	"errors"

	"github.com/23jmo/typr-server/models"
)

var (
	// ErrStoreUnavailable wraps transport failures to the queue store so
	// the caller can fail the matchmaking request closed.
	ErrStoreUnavailable = errors.New("queue store unavailable")
)

// QueueStore is the score-ordered pool of pending matchmaking entries.
// Entries are scored by rating; removal reports how many entries were
// actually removed so a lost race is detectable.
type QueueStore interface {
	// Add inserts an entry scored by its rating. Dedupe is the caller's
	// job (RemoveByPlayer first).
	Add(ctx context.Context, entry models.QueueEntry) error

	// RangeByRating returns all entries with min <= rating <= max, in
	// score order. Iteration order among equal ratings is the store's.
	RangeByRating(ctx context.Context, min, max int) ([]models.QueueEntry, error)

	// Remove deletes the given entries and returns how many were
	// actually present. A result below len(entries) means someone else
	// removed one first.
	Remove(ctx context.Context, entries ...models.QueueEntry) (int, error)

	// RemoveByPlayer deletes every entry for the player identity and
	// returns how many it found.
	RemoveByPlayer(ctx context.Context, playerID string) (int, error)

	// RemoveBySession deletes the first entry carrying the session
	// handle. No-op if none matches.
	RemoveBySession(ctx context.Context, sessionID string) error

	// Len reports the number of queued entries.
	Len(ctx context.Context) (int, error)
}
