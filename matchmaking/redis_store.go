package matchmaking

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/23jmo/typr-server/models"
)

const queueKey = "matchmaking_queue"

// RedisStore keeps the queue in a redis sorted set: member is the JSON
// entry, score is the rating. ZREM's return value is the removed-entry
// count the matchmaker relies on to detect lost races.
type RedisStore struct {
	rdb *redis.Client
	key string
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, key: queueKey}
}

func (s *RedisStore) Add(ctx context.Context, entry models.QueueEntry) error {
	member, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode queue entry: %w", err)
	}
	if err := s.rdb.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(entry.Rating),
		Member: string(member),
	}).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) RangeByRating(ctx context.Context, min, max int) ([]models.QueueEntry, error) {
	members, err := s.rdb.ZRangeByScore(ctx, s.key, &redis.ZRangeBy{
		Min: strconv.Itoa(min),
		Max: strconv.Itoa(max),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	entries := make([]models.QueueEntry, 0, len(members))
	for _, member := range members {
		var entry models.QueueEntry
		if err := json.Unmarshal([]byte(member), &entry); err != nil {
			// A corrupt member is dropped rather than wedging every
			// future scan over it.
			s.rdb.ZRem(ctx, s.key, member)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *RedisStore) Remove(ctx context.Context, entries ...models.QueueEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	members := make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		member, err := json.Marshal(entry)
		if err != nil {
			return 0, fmt.Errorf("failed to encode queue entry: %w", err)
		}
		members = append(members, string(member))
	}
	removed, err := s.rdb.ZRem(ctx, s.key, members...).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return int(removed), nil
}

func (s *RedisStore) RemoveByPlayer(ctx context.Context, playerID string) (int, error) {
	entries, err := s.scanAll(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, item := range entries {
		if item.entry.PlayerID == playerID {
			n, err := s.rdb.ZRem(ctx, s.key, item.member).Result()
			if err != nil {
				return removed, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			removed += int(n)
		}
	}
	return removed, nil
}

func (s *RedisStore) RemoveBySession(ctx context.Context, sessionID string) error {
	entries, err := s.scanAll(ctx)
	if err != nil {
		return err
	}
	for _, item := range entries {
		if item.entry.SessionID == sessionID {
			if err := s.rdb.ZRem(ctx, s.key, item.member).Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			return nil
		}
	}
	return nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n, err := s.rdb.ZCard(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return int(n), nil
}

type rawEntry struct {
	member string
	entry  models.QueueEntry
}

func (s *RedisStore) scanAll(ctx context.Context) ([]rawEntry, error) {
	members, err := s.rdb.ZRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	result := make([]rawEntry, 0, len(members))
	for _, member := range members {
		var entry models.QueueEntry
		if err := json.Unmarshal([]byte(member), &entry); err != nil {
			continue
		}
		result = append(result, rawEntry{member: member, entry: entry})
	}
	return result, nil
}
