package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/cache"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/pkg/models"
	"github.com/redis/go-redis/v9"
)

const (
	// Batch size for reading messages
	batchSize = 10

	// Block duration when waiting for new messages
	blockDuration = 1 * time.Second
)

// Snapshots is the part of the snapshot cache the consumer drives
type Snapshots interface {
	Drop()
	Get(ctx context.Context) (*cache.Snapshot, error)
}

// Broadcaster announces a snapshot to connected dashboards
type Broadcaster interface {
	Broadcast(snapshot *cache.Snapshot)
}

// StreamConsumer follows refresh events published by other dashboard instances
type StreamConsumer struct {
	redis      *redis.Client
	stream     string
	instanceID string
	snapshots  Snapshots
	hub        Broadcaster
}

// NewStreamConsumer creates a new stream consumer
func NewStreamConsumer(redisClient *redis.Client, stream, instanceID string, snapshots Snapshots, hub Broadcaster) *StreamConsumer {
	return &StreamConsumer{
		redis:      redisClient,
		stream:     stream,
		instanceID: instanceID,
		snapshots:  snapshots,
		hub:        hub,
	}
}

// Start reads the refresh stream until ctx is cancelled. Only events
// published after Start are considered.
func (sc *StreamConsumer) Start(ctx context.Context) error {
	slog.Info("Stream consumer started", slog.String("stream", sc.stream))

	lastID := "$"

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		streams, err := sc.redis.XRead(ctx, &redis.XReadArgs{
			Streams: []string{sc.stream, lastID},
			Count:   batchSize,
			Block:   blockDuration,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				// No new messages - continue
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("Stream read error", slog.String("stream", sc.stream), slog.String("error", err.Error()))
			time.Sleep(1 * time.Second)
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				lastID = message.ID
				sc.processMessage(ctx, message)
			}
		}
	}
}

// processMessage handles a single stream message
func (sc *StreamConsumer) processMessage(ctx context.Context, msg redis.XMessage) {
	event, err := parseEvent(msg)
	if err != nil {
		slog.Warn("Skipping refresh event", slog.String("id", msg.ID), slog.String("error", err.Error()))
		return
	}

	if event.InstanceID == sc.instanceID {
		return
	}

	slog.Info("Dataset refreshed by another instance",
		slog.String("instance", event.InstanceID), slog.Int("rows", event.RowCount))

	sc.snapshots.Drop()

	snapshot, err := sc.snapshots.Get(ctx)
	if err != nil {
		slog.Warn("Failed to reload stats snapshot", slog.String("error", err.Error()))
		return
	}

	sc.hub.Broadcast(snapshot)
}

// parseEvent decodes the JSON document stored under the "data" field
func parseEvent(msg redis.XMessage) (models.RefreshEvent, error) {
	var event models.RefreshEvent

	dataStr, ok := msg.Values["data"].(string)
	if !ok {
		return event, fmt.Errorf("invalid message format: %v", msg.Values)
	}

	if err := json.Unmarshal([]byte(dataStr), &event); err != nil {
		return event, fmt.Errorf("failed to parse refresh event: %w", err)
	}

	return event, nil
}
