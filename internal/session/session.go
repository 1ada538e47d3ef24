// Package session bundles the client-side caches of one signed-in viewer.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"quizgram/internal/apiclient"
	"quizgram/internal/config"
	"quizgram/internal/events"
	"quizgram/internal/metrics"
	"quizgram/internal/model"
	"quizgram/internal/social"
	"quizgram/internal/views"
)

// Session owns the event bus, the relationship toggler and the view
// aggregator. Nothing resolves into its caches after Close.
type Session struct {
	ViewerID int64
	Client   *apiclient.Client
	Bus      *events.Bus
	Toggler  *social.Toggler
	Views    *views.Aggregator

	closeOnce sync.Once
}

// New builds a session for the viewer configured in cfg.
func New(cfg *config.Config, m *metrics.Metrics, opts ...apiclient.Option) (*Session, error) {
	if cfg.ViewerID <= 0 {
		return nil, errors.New("VIEWER_ID must be a positive user id")
	}
	if cfg.AccessToken != "" {
		opts = append([]apiclient.Option{apiclient.WithToken(cfg.AccessToken)}, opts...)
	}

	client := apiclient.New(cfg.APIBaseURL, cfg.RequestTimeout, opts...)
	return FromClient(cfg.ViewerID, client, views.Options{
		RefreshInterval: cfg.ViewRefreshInterval,
		BatchSize:       cfg.ViewRefreshBatchSize,
		Metrics:         m,
	}), nil
}

// FromClient wires a session over an existing client.
func FromClient(viewerID int64, client *apiclient.Client, viewOpts views.Options) *Session {
	bus := events.NewBus()
	return &Session{
		ViewerID: viewerID,
		Client:   client,
		Bus:      bus,
		Toggler:  social.NewToggler(client, bus, viewOpts.Metrics),
		Views:    views.NewAggregator(client, viewOpts),
	}
}

// LoadFollowStatus seeds the toggler with the viewer's current
// relationships to targetIDs. Edges already tracked keep their state.
func (s *Session) LoadFollowStatus(ctx context.Context, targetIDs []int64) error {
	status, err := s.Client.FollowStatus(ctx, s.ViewerID, targetIDs)
	if err != nil {
		return fmt.Errorf("load follow status: %w", err)
	}
	for _, id := range targetIDs {
		state := model.NotFollowing
		if status[id] {
			state = model.Following
		}
		s.Toggler.Track(model.RelationshipEdge{SourceID: s.ViewerID, TargetID: id, State: state})
	}
	return nil
}

// ToggleFollow flips the viewer's relationship to targetID.
func (s *Session) ToggleFollow(ctx context.Context, targetID int64) (model.RelationshipEdge, error) {
	edge, ok := s.Toggler.Edge(s.ViewerID, targetID)
	if !ok {
		edge = model.RelationshipEdge{SourceID: s.ViewerID, TargetID: targetID, State: model.NotFollowing}
	}
	return s.Toggler.Toggle(ctx, edge)
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.Toggler.Close()
		s.Views.Close()
	})
}
