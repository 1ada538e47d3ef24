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

type RelationshipService struct {
	repo      repository.RelationshipRepository
	publisher queue.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewRelationshipService wires the relationship store. publisher and m may
// be nil.
func NewRelationshipService(
	repo repository.RelationshipRepository,
	publisher queue.Publisher,
	m *metrics.Metrics,
) *RelationshipService {
	return &RelationshipService{
		repo:      repo,
		publisher: publisher,
		metrics:   m,
		logger:    logging.Component("RelationshipService"),
	}
}

// SetState moves the source->target edge to desired and returns the state
// now stored. Setting the state an edge already has is not an error.
func (s *RelationshipService) SetState(ctx context.Context, actorID, sourceID, targetID int64, desired model.FollowState) (model.FollowState, error) {
	if !desired.Valid() {
		return "", model.ErrInvalidFollowState
	}
	if sourceID <= 0 || targetID <= 0 {
		return "", model.ErrInvalidEntityID
	}
	if actorID != sourceID {
		return "", model.ErrForbiddenSource
	}
	if sourceID == targetID {
		return "", model.ErrCannotFollowSelf
	}

	var (
		changed bool
		err     error
	)
	if desired == model.Following {
		changed, err = s.repo.Create(ctx, sourceID, targetID)
	} else {
		changed, err = s.repo.Delete(ctx, sourceID, targetID)
	}
	if err != nil {
		return "", err
	}

	s.metrics.ServerMutation(string(desired), changed)

	// Publish only real changes (after the write!)
	if changed && s.publisher != nil {
		event := queue.NewRelationshipChangedEvent(sourceID, targetID, string(desired))
		msgID, err := s.publisher.Publish(ctx, queue.StreamSocial, event)
		if err != nil {
			s.logger.Warn("failed to publish relationship_changed",
				"source", sourceID, "target", targetID, "error", err)
		} else {
			s.logger.Debug("published relationship_changed",
				"source", sourceID, "target", targetID, "msg_id", msgID)
		}
	}

	return desired, nil
}

func (s *RelationshipService) FollowerCount(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, model.ErrInvalidEntityID
	}
	return s.repo.CountFollowers(ctx, userID)
}

// FollowStatus reports, for each target, whether sourceID follows it.
func (s *RelationshipService) FollowStatus(ctx context.Context, sourceID int64, targetIDs []int64) (map[int64]bool, error) {
	if sourceID <= 0 {
		return nil, model.ErrInvalidEntityID
	}
	if len(targetIDs) > model.MaxBatchIDs {
		return nil, model.ErrTooManyIDs
	}
	return s.repo.CheckFollows(ctx, sourceID, targetIDs)
}
