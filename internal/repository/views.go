package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"quizgram/internal/logging"
)

const (
	// ViewCountPrefix is the key prefix for entity view counters
	ViewCountPrefix = "views:entity:"
)

// redisViewCountRepository stores one INCR counter per entity.
type redisViewCountRepository struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisViewCountRepository(client *redis.Client) ViewCountRepository {
	return &redisViewCountRepository{
		client: client,
		logger: logging.Component("ViewCountRepository"),
	}
}

func viewKey(entityID int64) string {
	return fmt.Sprintf("%s%d", ViewCountPrefix, entityID)
}

func (r *redisViewCountRepository) Increment(ctx context.Context, entityID int64) (int64, error) {
	startTime := time.Now()

	count, err := r.client.Incr(ctx, viewKey(entityID)).Result()
	if err != nil {
		r.logger.Error("Increment FAILED", "entity", entityID, "error", err)
		return 0, fmt.Errorf("increment view count: %w", err)
	}

	r.logger.Debug("Increment OK", "entity", entityID, "count", count, "duration", time.Since(startTime))
	return count, nil
}

// Counts reads all counters with a single MGET. Missing keys count as 0.
func (r *redisViewCountRepository) Counts(ctx context.Context, entityIDs []int64) (map[int64]int64, error) {
	result := make(map[int64]int64, len(entityIDs))
	if len(entityIDs) == 0 {
		return result, nil
	}

	keys := make([]string, len(entityIDs))
	for i, id := range entityIDs {
		keys[i] = viewKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		r.logger.Error("Counts FAILED", "ids", len(entityIDs), "error", err)
		return nil, fmt.Errorf("mget view counts: %w", err)
	}

	for i, v := range values {
		id := entityIDs[i]
		s, ok := v.(string)
		if !ok {
			// nil: key does not exist
			result[id] = 0
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse view count for entity %d: %w", id, err)
		}
		result[id] = n
	}

	return result, nil
}
