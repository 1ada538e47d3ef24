package social

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizgram/internal/events"
	"quizgram/internal/model"
)

// =============================================================================
// MOCK MUTATOR
// =============================================================================

type mutateCall struct {
	Source  int64
	Target  int64
	Desired model.FollowState
}

type mockMutator struct {
	mutateFn func(ctx context.Context, sourceID, targetID int64, desired model.FollowState) (model.FollowState, error)

	mu    sync.Mutex
	calls []mutateCall
}

func (m *mockMutator) MutateRelationship(ctx context.Context, sourceID, targetID int64, desired model.FollowState) (model.FollowState, error) {
	m.mu.Lock()
	m.calls = append(m.calls, mutateCall{Source: sourceID, Target: targetID, Desired: desired})
	m.mu.Unlock()

	if m.mutateFn != nil {
		return m.mutateFn(ctx, sourceID, targetID, desired)
	}
	return desired, nil
}

func (m *mockMutator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func record(bus *events.Bus) *recorder {
	r := &recorder{}
	bus.Subscribe(func(e events.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
	})
	return r
}

func (r *recorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func edge(source, target int64, state model.FollowState) model.RelationshipEdge {
	return model.RelationshipEdge{SourceID: source, TargetID: target, State: state}
}

// =============================================================================
// TOGGLE TESTS
// =============================================================================

func TestToggle_FollowConfirmed(t *testing.T) {
	mutator := &mockMutator{}
	bus := events.NewBus()
	rec := record(bus)
	toggler := NewToggler(mutator, bus, nil)

	var observedDuringCall model.RelationshipEdge
	mutator.mutateFn = func(ctx context.Context, sourceID, targetID int64, desired model.FollowState) (model.FollowState, error) {
		observedDuringCall, _ = toggler.Edge(sourceID, targetID)
		return desired, nil
	}

	got, err := toggler.Toggle(context.Background(), edge(1, 99, model.NotFollowing))
	require.NoError(t, err)

	// Optimistic state visible while the request is in flight
	assert.Equal(t, model.Following, observedDuringCall.State)
	assert.True(t, observedDuringCall.Pending)

	assert.Equal(t, model.Following, got.State)
	assert.False(t, got.Pending)
	assert.Equal(t, []mutateCall{{Source: 1, Target: 99, Desired: model.Following}}, mutator.calls)

	require.Len(t, rec.all(), 1)
	assert.Equal(t, events.RelationshipChanged{SourceID: 1, TargetID: 99, State: model.Following}, rec.all()[0])
}

func TestToggle_ServerErrorRollsBack(t *testing.T) {
	mutator := &mockMutator{
		mutateFn: func(ctx context.Context, sourceID, targetID int64, desired model.FollowState) (model.FollowState, error) {
			return "", &model.RemoteError{Kind: model.KindServerRejected, Status: 500, Message: "Failed to update relationship"}
		},
	}
	bus := events.NewBus()
	rec := record(bus)
	toggler := NewToggler(mutator, bus, nil)

	got, err := toggler.Toggle(context.Background(), edge(1, 99, model.NotFollowing))

	var remote *model.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, model.KindServerRejected, remote.Kind)

	assert.Equal(t, model.NotFollowing, got.State)
	assert.False(t, got.Pending)

	stored, ok := toggler.Edge(1, 99)
	require.True(t, ok)
	assert.Equal(t, model.NotFollowing, stored.State)

	require.Len(t, rec.all(), 1)
	failed, ok := rec.all()[0].(events.MutationFailed)
	require.True(t, ok)
	assert.Equal(t, model.KindServerRejected, failed.Kind)
	assert.Equal(t, "Failed to update relationship", failed.Message)
	assert.Equal(t, edge(1, 99, model.NotFollowing), failed.Edge)
}

func TestToggle_RollbackRestoresPreviousStateForAnyStart(t *testing.T) {
	failures := []error{
		&model.RemoteError{Kind: model.KindNetwork, Message: "connection refused"},
		&model.RemoteError{Kind: model.KindServerRejected, Status: 404, Message: "user not found"},
		errors.New("something odd"),
		context.DeadlineExceeded,
	}

	for _, start := range []model.FollowState{model.Following, model.NotFollowing} {
		for _, failure := range failures {
			mutator := &mockMutator{
				mutateFn: func(context.Context, int64, int64, model.FollowState) (model.FollowState, error) {
					return "", failure
				},
			}
			toggler := NewToggler(mutator, nil, nil)

			got, err := toggler.Toggle(context.Background(), edge(3, 4, start))
			assert.Error(t, err)
			assert.Equal(t, start, got.State, "start=%s failure=%v", start, failure)
		}
	}
}

func TestToggle_NetworkKindForContextErrors(t *testing.T) {
	mutator := &mockMutator{
		mutateFn: func(context.Context, int64, int64, model.FollowState) (model.FollowState, error) {
			return "", context.DeadlineExceeded
		},
	}
	toggler := NewToggler(mutator, nil, nil)

	_, err := toggler.Toggle(context.Background(), edge(1, 2, model.Following))

	var remote *model.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, model.KindNetwork, remote.Kind)
}

func TestToggle_NoDuplicateInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	mutator := &mockMutator{
		mutateFn: func(ctx context.Context, sourceID, targetID int64, desired model.FollowState) (model.FollowState, error) {
			close(entered)
			<-release
			return desired, nil
		},
	}
	toggler := NewToggler(mutator, nil, nil)

	done := make(chan model.RelationshipEdge)
	go func() {
		got, _ := toggler.Toggle(context.Background(), edge(1, 99, model.NotFollowing))
		done <- got
	}()
	<-entered

	second, err := toggler.Toggle(context.Background(), edge(1, 99, model.NotFollowing))
	require.NoError(t, err)
	assert.True(t, second.Pending)
	assert.Equal(t, model.Following, second.State)

	close(release)
	first := <-done

	assert.Equal(t, 1, mutator.callCount())
	assert.Equal(t, model.Following, first.State)
	assert.False(t, first.Pending)
}

func TestToggle_ConcurrentBurstIssuesSingleRequest(t *testing.T) {
	var inFlight, maxInFlight int32
	release := make(chan struct{})
	mutator := &mockMutator{
		mutateFn: func(ctx context.Context, sourceID, targetID int64, desired model.FollowState) (model.FollowState, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				m := atomic.LoadInt32(&maxInFlight)
				if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
					break
				}
			}
			<-release
			atomic.AddInt32(&inFlight, -1)
			return desired, nil
		},
	}
	toggler := NewToggler(mutator, nil, nil)
	toggler.Track(edge(7, 8, model.NotFollowing))

	var wg sync.WaitGroup
	var returned int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = toggler.Toggle(context.Background(), edge(7, 8, model.NotFollowing))
			atomic.AddInt32(&returned, 1)
		}()
	}

	// One goroutine holds the pending flag; the other 19 return immediately.
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&returned) == 19 }, timeout, tick)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, mutator.callCount())
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
	got, _ := toggler.Edge(7, 8)
	assert.Equal(t, model.Following, got.State)
}

func TestToggle_ClientMisuseMakesNoCall(t *testing.T) {
	mutator := &mockMutator{}
	bus := events.NewBus()
	rec := record(bus)
	toggler := NewToggler(mutator, bus, nil)

	for _, e := range []model.RelationshipEdge{
		edge(5, 5, model.NotFollowing), // self
		edge(0, 5, model.NotFollowing),
		edge(5, -1, model.Following),
	} {
		got, err := toggler.Toggle(context.Background(), e)
		assert.NoError(t, err)
		assert.Equal(t, e, got)
	}

	assert.Zero(t, mutator.callCount())
	assert.Empty(t, rec.all())
}

func TestToggle_ResolutionDiscardedAfterClose(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	mutator := &mockMutator{
		mutateFn: func(ctx context.Context, sourceID, targetID int64, desired model.FollowState) (model.FollowState, error) {
			close(entered)
			<-release
			return desired, nil
		},
	}
	bus := events.NewBus()
	rec := record(bus)
	toggler := NewToggler(mutator, bus, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = toggler.Toggle(context.Background(), edge(1, 2, model.NotFollowing))
	}()
	<-entered

	toggler.Close()
	close(release)
	<-done

	assert.Empty(t, rec.all(), "no events after close")

	_, err := toggler.Toggle(context.Background(), edge(1, 3, model.NotFollowing))
	assert.NoError(t, err)
	assert.Equal(t, 1, mutator.callCount(), "closed toggler issues no requests")
}

func TestToggle_SecondToggleUnfollows(t *testing.T) {
	mutator := &mockMutator{}
	toggler := NewToggler(mutator, nil, nil)

	first, err := toggler.Toggle(context.Background(), edge(1, 2, model.NotFollowing))
	require.NoError(t, err)
	assert.Equal(t, model.Following, first.State)

	// Caller passes a stale copy; the cached edge wins.
	second, err := toggler.Toggle(context.Background(), edge(1, 2, model.NotFollowing))
	require.NoError(t, err)
	assert.Equal(t, model.NotFollowing, second.State)

	assert.Equal(t, []mutateCall{
		{Source: 1, Target: 2, Desired: model.Following},
		{Source: 1, Target: 2, Desired: model.NotFollowing},
	}, mutator.calls)
}

func TestToggle_InvalidConfirmedStateRollsBack(t *testing.T) {
	mutator := &mockMutator{
		mutateFn: func(context.Context, int64, int64, model.FollowState) (model.FollowState, error) {
			return "blocked", nil
		},
	}
	toggler := NewToggler(mutator, nil, nil)

	got, err := toggler.Toggle(context.Background(), edge(1, 2, model.NotFollowing))

	var remote *model.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, model.KindUnknown, remote.Kind)
	assert.Equal(t, model.NotFollowing, got.State)
}

func TestTrack_KeepsExistingEdge(t *testing.T) {
	toggler := NewToggler(&mockMutator{}, nil, nil)

	first := toggler.Track(edge(1, 2, model.Following))
	second := toggler.Track(edge(1, 2, model.NotFollowing))

	assert.Equal(t, model.Following, first.State)
	assert.Equal(t, model.Following, second.State)

	unknown := toggler.Track(model.RelationshipEdge{SourceID: 1, TargetID: 3})
	assert.Equal(t, model.NotFollowing, unknown.State)
}
