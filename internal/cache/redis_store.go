package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/stats"
	"github.com/redis/go-redis/v9"
)

// TTL constants
const (
	DefaultSnapshotKey = "stats:snapshot"
	DefaultSnapshotTTL = 1 * time.Hour
)

// storedSnapshot is the JSON document kept under the snapshot key
type storedSnapshot struct {
	Rows     []stats.PlayerStatRow `json:"rows"`
	LoadedAt time.Time             `json:"loaded_at"`
}

// RedisStore implements SharedStore with a single Redis string key
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore creates a new Redis backed snapshot store
func NewRedisStore(client *redis.Client, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = DefaultSnapshotKey
	}
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}

	return &RedisStore{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

// Save stores the rows of a freshly loaded snapshot
func (s *RedisStore) Save(ctx context.Context, rows []stats.PlayerStatRow, loadedAt time.Time) error {
	data, err := json.Marshal(storedSnapshot{Rows: rows, LoadedAt: loadedAt})
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	return s.client.Set(ctx, s.key, data, s.ttl).Err()
}

// Load retrieves the shared snapshot rows. ErrMiss means nothing is stored.
func (s *RedisStore) Load(ctx context.Context) ([]stats.PlayerStatRow, time.Time, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, time.Time{}, ErrMiss
		}
		return nil, time.Time{}, err
	}

	var stored storedSnapshot
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, time.Time{}, fmt.Errorf("unmarshaling snapshot: %w", err)
	}

	return stored.Rows, stored.LoadedAt, nil
}

// Delete removes the shared snapshot
func (s *RedisStore) Delete(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
