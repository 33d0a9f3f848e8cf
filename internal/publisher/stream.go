package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/cache"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/pkg/models"
	"github.com/redis/go-redis/v9"
)

// Stream trimming: keep roughly the last N refresh events
const maxStreamLen = 1000

// StreamPublisher publishes dataset refresh events to a Redis Stream
type StreamPublisher struct {
	redis      *redis.Client
	stream     string
	instanceID string
}

// NewStreamPublisher creates a new stream publisher
func NewStreamPublisher(redisClient *redis.Client, stream, instanceID string) *StreamPublisher {
	return &StreamPublisher{
		redis:      redisClient,
		stream:     stream,
		instanceID: instanceID,
	}
}

// Publish announces a freshly loaded snapshot to the other instances
func (p *StreamPublisher) Publish(ctx context.Context, snapshot *cache.Snapshot) error {
	event := p.newEvent(snapshot, time.Now())

	// Marshal to JSON
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("error marshaling refresh event: %w", err)
	}

	// Publish to stream
	_, err = p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		return fmt.Errorf("error publishing to stream %s: %w", p.stream, err)
	}

	return nil
}

func (p *StreamPublisher) newEvent(snapshot *cache.Snapshot, now time.Time) models.RefreshEvent {
	return models.RefreshEvent{
		InstanceID: p.instanceID,
		RowCount:   snapshot.Dataset.Len(),
		TeamCount:  len(snapshot.Teams),
		LoadedAt:   snapshot.LoadedAt,
		Published:  now.UTC(),
	}
}
