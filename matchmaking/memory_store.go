package matchmaking

import (
	"context"
	"sort"
	"sync"

	"github.com/23jmo/typr-server/models"
)

// MemoryStore is the in-process queue store used when no redis address
// is configured, and by tests. It mirrors the sorted-set semantics:
// entries ordered by rating, removal reports the count actually found.
type MemoryStore struct {
	entries []models.QueueEntry
	mutex   sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Add(_ context.Context, entry models.QueueEntry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.entries = append(s.entries, entry)
	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].Rating < s.entries[j].Rating
	})
	return nil
}

func (s *MemoryStore) RangeByRating(_ context.Context, min, max int) ([]models.QueueEntry, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var result []models.QueueEntry
	for _, entry := range s.entries {
		if entry.Rating >= min && entry.Rating <= max {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (s *MemoryStore) Remove(_ context.Context, entries ...models.QueueEntry) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	for _, target := range entries {
		for i, entry := range s.entries {
			if entry == target {
				s.entries = append(s.entries[:i], s.entries[i+1:]...)
				removed++
				break
			}
		}
	}
	return removed, nil
}

func (s *MemoryStore) RemoveByPlayer(_ context.Context, playerID string) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	kept := s.entries[:0]
	for _, entry := range s.entries {
		if entry.PlayerID == playerID {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	s.entries = kept
	return removed, nil
}

func (s *MemoryStore) RemoveBySession(_ context.Context, sessionID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for i, entry := range s.entries {
		if entry.SessionID == sessionID {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.entries), nil
}
