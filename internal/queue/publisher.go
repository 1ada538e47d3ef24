package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"quizgram/internal/logging"
)

// Publisher defines the interface for publishing events to a stream.
type Publisher interface {
	// Publish adds an event to the specified stream.
	// Returns the message ID assigned by Redis.
	Publish(ctx context.Context, stream string, event SocialEvent) (messageID string, err error)
}

// RedisPublisher implements Publisher using Redis Streams.
type RedisPublisher struct {
	client *redis.Client
	maxLen int64
	logger *slog.Logger
}

// NewPublisher creates a new Publisher backed by Redis Streams. maxLen
// caps the stream length approximately; 0 leaves it unbounded.
func NewPublisher(client *redis.Client, maxLen int64) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		maxLen: maxLen,
		logger: logging.Component("Publisher"),
	}
}

// Publish adds an event to the stream using XADD.
// Uses "*" for auto-generated message ID (timestamp-sequence).
func (p *RedisPublisher) Publish(ctx context.Context, stream string, event SocialEvent) (string, error) {
	startTime := time.Now()

	values, err := event.ToMap()
	if err != nil {
		p.logger.Error("Publish FAILED", "stream", stream, "type", event.Type, "error", err)
		return "", fmt.Errorf("serialize event: %w", err)
	}

	messageID, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: p.maxLen > 0,
		Values: values,
	}).Result()
	if err != nil {
		p.logger.Error("Publish FAILED", "stream", stream, "type", event.Type, "error", err)
		return "", fmt.Errorf("xadd to stream: %w", err)
	}

	p.logger.Debug("Publish OK",
		"stream", stream, "type", event.Type, "msg_id", messageID, "duration", time.Since(startTime))
	return messageID, nil
}

// PublishRelationshipChanged is a convenience method for relationship events.
func (p *RedisPublisher) PublishRelationshipChanged(ctx context.Context, sourceID, targetID int64, state string) (string, error) {
	return p.Publish(ctx, StreamSocial, NewRelationshipChangedEvent(sourceID, targetID, state))
}

// PublishViewRecorded is a convenience method for view events.
func (p *RedisPublisher) PublishViewRecorded(ctx context.Context, entityID, count int64) (string, error) {
	return p.Publish(ctx, StreamSocial, NewViewRecordedEvent(entityID, count))
}
