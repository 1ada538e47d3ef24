package service

import (
	"context"
	"log/slog"

	"quizgram/internal/logging"
	"quizgram/internal/metrics"
	"quizgram/internal/model"
	"quizgram/internal/queue"
	"quizgram/internal/repository"
)

type ViewService struct {
	repo      repository.ViewCountRepository
	publisher queue.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewViewService(repo repository.ViewCountRepository, publisher queue.Publisher, m *metrics.Metrics) *ViewService {
	return &ViewService{
		repo:      repo,
		publisher: publisher,
		metrics:   m,
		logger:    logging.Component("ViewService"),
	}
}

// Record counts one view. The server does not deduplicate; clients record
// at most once per session.
func (s *ViewService) Record(ctx context.Context, entityID int64) (int64, error) {
	if entityID <= 0 {
		return 0, model.ErrInvalidEntityID
	}

	count, err := s.repo.Increment(ctx, entityID)
	if err != nil {
		return 0, err
	}
	s.metrics.ServerView()

	if s.publisher != nil {
		if _, err := s.publisher.Publish(ctx, queue.StreamSocial, queue.NewViewRecordedEvent(entityID, count)); err != nil {
			s.logger.Warn("failed to publish view_recorded", "entity", entityID, "error", err)
		}
	}

	return count, nil
}

// Counts returns the count of every requested id, 0 for unseen ones.
func (s *ViewService) Counts(ctx context.Context, entityIDs []int64) (map[int64]int64, error) {
	if len(entityIDs) > model.MaxBatchIDs {
		return nil, model.ErrTooManyIDs
	}
	for _, id := range entityIDs {
		if id <= 0 {
			return nil, model.ErrInvalidEntityID
		}
	}
	return s.repo.Counts(ctx, entityIDs)
}
