package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"quizgram/internal/logging"
)

// Message represents a message read from a Redis stream.
type Message struct {
	ID    string      // Redis message ID (e.g., "1702000000000-0")
	Event SocialEvent // Parsed event data
}

// Consumer defines the interface for consuming events from a stream.
type Consumer interface {
	// EnsureGroup creates the consumer group if it doesn't exist.
	EnsureGroup(ctx context.Context, stream, group, start string) error

	// Read reads new messages for this consumer with XREADGROUP.
	// block: how long to block waiting for new messages (0 = forever)
	Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error)

	// Ack removes messages from the consumer's pending list.
	Ack(ctx context.Context, stream, group string, messageIDs ...string) error

	// Pending returns the number of unacknowledged messages for the group.
	Pending(ctx context.Context, stream, group string) (int64, error)
}

// RedisConsumer implements Consumer using Redis Streams.
type RedisConsumer struct {
	client *redis.Client
	logger *slog.Logger
}

// NewConsumer creates a new Consumer backed by Redis Streams.
func NewConsumer(client *redis.Client) *RedisConsumer {
	return &RedisConsumer{client: client, logger: logging.Component("Consumer")}
}

// EnsureGroup creates the group and the stream if needed. start is "0" to
// replay the whole stream or "$" to receive only new messages.
func (c *RedisConsumer) EnsureGroup(ctx context.Context, stream, group, start string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, group, start).Err()
	if err != nil {
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			c.logger.Debug("EnsureGroup: already exists", "stream", stream, "group", group)
			return nil
		}
		c.logger.Error("EnsureGroup FAILED", "stream", stream, "group", group, "error", err)
		return fmt.Errorf("create consumer group: %w", err)
	}

	c.logger.Info("EnsureGroup OK (created)", "stream", stream, "group", group)
	return nil
}

// Read reads messages not yet delivered to any consumer of the group.
func (c *RedisConsumer) Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error) {
	return c.read(ctx, stream, group, consumer, ">", count, block)
}

// ReadPending reads messages that were delivered to this consumer but not
// yet acknowledged, e.g. after a crash.
func (c *RedisConsumer) ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]Message, error) {
	return c.read(ctx, stream, group, consumer, "0", count, -1)
}

func (c *RedisConsumer) read(ctx context.Context, stream, group, consumer, id string, count int64, block time.Duration) ([]Message, error) {
	startTime := time.Now()

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, id},
		Count:    count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		c.logger.Error("Read FAILED", "stream", stream, "group", group, "consumer", consumer, "error", err)
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	messages := parseStreams(c.logger, streams)

	c.logger.Debug("Read OK",
		"stream", stream, "group", group, "consumer", consumer,
		"count", len(messages), "duration", time.Since(startTime))
	return messages, nil
}

// parseStreams skips malformed messages.
func parseStreams(logger *slog.Logger, streams []redis.XStream) []Message {
	var messages []Message
	for _, s := range streams {
		for _, msg := range s.Messages {
			event, err := ParseSocialEvent(msg.Values)
			if err != nil {
				logger.Warn("parse error", "msg_id", msg.ID, "error", err)
				continue
			}
			messages = append(messages, Message{ID: msg.ID, Event: event})
		}
	}
	return messages
}

func (c *RedisConsumer) Ack(ctx context.Context, stream, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	acked, err := c.client.XAck(ctx, stream, group, messageIDs...).Result()
	if err != nil {
		c.logger.Error("Ack FAILED", "stream", stream, "group", group, "ids", messageIDs, "error", err)
		return fmt.Errorf("xack: %w", err)
	}

	c.logger.Debug("Ack OK", "stream", stream, "group", group, "acked", acked)
	return nil
}

func (c *RedisConsumer) Pending(ctx context.Context, stream, group string) (int64, error) {
	info, err := c.client.XPending(ctx, stream, group).Result()
	if err != nil {
		c.logger.Error("Pending FAILED", "stream", stream, "group", group, "error", err)
		return 0, fmt.Errorf("xpending: %w", err)
	}
	return info.Count, nil
}
