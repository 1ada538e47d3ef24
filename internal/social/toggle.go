// Package social implements optimistic follow/unfollow toggling.
//
// A toggle flips the cached edge immediately, asks the remote service for the
// opposite state, and then either keeps the server-confirmed state or reverts
// to the state it had before the toggle. At most one mutation per
// (source, target) pair is in flight at any time.
package social

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"quizgram/internal/events"
	"quizgram/internal/logging"
	"quizgram/internal/metrics"
	"quizgram/internal/model"
)

// Mutator performs the remote relationship mutation. Calling it twice with the
// same desired state must yield the same result.
type Mutator interface {
	MutateRelationship(ctx context.Context, sourceID, targetID int64, desired model.FollowState) (model.FollowState, error)
}

type edgeKey struct {
	source int64
	target int64
}

// Toggler owns the relationship edges of one session.
type Toggler struct {
	mutator Mutator
	bus     *events.Bus
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu     sync.Mutex
	edges  map[edgeKey]*model.RelationshipEdge
	closed bool
}

// NewToggler creates a Toggler. bus and m may be nil.
func NewToggler(mutator Mutator, bus *events.Bus, m *metrics.Metrics) *Toggler {
	return &Toggler{
		mutator: mutator,
		bus:     bus,
		metrics: m,
		logger:  logging.Component("OptimisticToggle"),
		edges:   make(map[edgeKey]*model.RelationshipEdge),
	}
}

// Track registers an edge seen while rendering, typically from a server-side
// is_following flag. An edge that is already known is left untouched.
func (t *Toggler) Track(edge model.RelationshipEdge) model.RelationshipEdge {
	t.mu.Lock()
	defer t.mu.Unlock()

	return *t.lookupLocked(edge)
}

// Edge returns the cached edge for the pair.
func (t *Toggler) Edge(sourceID, targetID int64) (model.RelationshipEdge, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.edges[edgeKey{sourceID, targetID}]
	if !ok {
		return model.RelationshipEdge{}, false
	}
	return *e, true
}

// Toggle flips the relationship and reconciles it with the server.
//
// A toggle on a pending edge, on invalid ids or on a self edge is ignored and
// returns the current edge with a nil error. A failed mutation reverts the
// edge, publishes MutationFailed and returns the *model.RemoteError. A
// confirmed mutation publishes RelationshipChanged.
func (t *Toggler) Toggle(ctx context.Context, edge model.RelationshipEdge) (model.RelationshipEdge, error) {
	if edge.SourceID <= 0 || edge.TargetID <= 0 || edge.SourceID == edge.TargetID {
		t.logger.Debug("toggle ignored: invalid edge", "source", edge.SourceID, "target", edge.TargetID)
		t.metrics.Toggle(metrics.ToggleIgnored)
		return edge, nil
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return edge, nil
	}
	current := t.lookupLocked(edge)
	if current.Pending {
		snapshot := *current
		t.mu.Unlock()
		t.logger.Debug("toggle ignored: mutation in flight", "source", edge.SourceID, "target", edge.TargetID)
		t.metrics.Toggle(metrics.ToggleIgnored)
		return snapshot, nil
	}

	before := *current
	desired := before.State.Opposite()
	current.Pending = true
	current.State = desired
	t.mu.Unlock()

	confirmed, err := t.mutator.MutateRelationship(ctx, before.SourceID, before.TargetID, desired)
	if err == nil && !confirmed.Valid() {
		err = &model.RemoteError{Kind: model.KindUnknown, Message: "server confirmed an unknown state " + string(confirmed)}
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.logger.Debug("toggle resolution discarded: session closed", "source", before.SourceID, "target", before.TargetID)
		t.metrics.Toggle(metrics.ToggleDiscarded)
		return before, nil
	}
	current = t.lookupLocked(before)
	current.Pending = false
	if err != nil {
		current.State = before.State
	} else {
		current.State = confirmed
	}
	result := *current
	t.mu.Unlock()

	if err != nil {
		kind := model.KindOf(err)
		t.logger.Info("toggle reverted",
			"source", before.SourceID, "target", before.TargetID, "kind", kind, "error", err)
		t.metrics.Toggle(metrics.ToggleReverted)
		t.publish(events.MutationFailed{
			Kind:    kind,
			Message: errorMessage(err),
			Edge:    before,
			Err:     err,
		})
		return result, asRemote(err)
	}

	t.metrics.Toggle(metrics.ToggleConfirmed)
	t.publish(events.RelationshipChanged{
		SourceID: result.SourceID,
		TargetID: result.TargetID,
		State:    result.State,
	})
	return result, nil
}

// Close discards the resolution of any toggle still in flight.
func (t *Toggler) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}

func (t *Toggler) lookupLocked(edge model.RelationshipEdge) *model.RelationshipEdge {
	key := edgeKey{edge.SourceID, edge.TargetID}
	if e, ok := t.edges[key]; ok {
		return e
	}
	state := edge.State
	if !state.Valid() {
		state = model.NotFollowing
	}
	e := &model.RelationshipEdge{SourceID: edge.SourceID, TargetID: edge.TargetID, State: state}
	t.edges[key] = e
	return e
}

func (t *Toggler) publish(e events.Event) {
	if t.bus != nil {
		t.bus.Publish(e)
	}
}

func errorMessage(err error) string {
	var re *model.RemoteError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	return err.Error()
}

func asRemote(err error) *model.RemoteError {
	var re *model.RemoteError
	if errors.As(err, &re) {
		return re
	}
	return &model.RemoteError{Kind: model.KindOf(err), Message: err.Error(), Err: err}
}
