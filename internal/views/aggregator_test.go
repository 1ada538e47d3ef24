package views

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizgram/internal/model"
)

// =============================================================================
// MOCK BACKEND
// =============================================================================

type mockBackend struct {
	recordFn func(ctx context.Context, entityID int64) error
	fetchFn  func(ctx context.Context, entityIDs []int64) (map[int64]int64, error)

	mu           sync.Mutex
	recordCalls  []int64
	fetchBatches [][]int64
}

func (m *mockBackend) RecordEntityView(ctx context.Context, entityID int64) error {
	m.mu.Lock()
	m.recordCalls = append(m.recordCalls, entityID)
	m.mu.Unlock()

	if m.recordFn != nil {
		return m.recordFn(ctx, entityID)
	}
	return nil
}

func (m *mockBackend) FetchEntityViewCounts(ctx context.Context, entityIDs []int64) (map[int64]int64, error) {
	m.mu.Lock()
	m.fetchBatches = append(m.fetchBatches, append([]int64(nil), entityIDs...))
	m.mu.Unlock()

	if m.fetchFn != nil {
		return m.fetchFn(ctx, entityIDs)
	}
	return map[int64]int64{}, nil
}

func (m *mockBackend) recordCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recordCalls)
}

func (m *mockBackend) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fetchBatches)
}

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newTestAggregator(t *testing.T, backend Backend, opts Options) *Aggregator {
	t.Helper()
	agg := NewAggregator(backend, opts)
	t.Cleanup(agg.Close)
	return agg
}

// =============================================================================
// RECORD TESTS
// =============================================================================

func TestRecordView_AtMostOncePerSession(t *testing.T) {
	backend := &mockBackend{}
	agg := newTestAggregator(t, backend, Options{})

	for i := 0; i < 3; i++ {
		agg.RecordView(context.Background(), 42)
	}

	assert.Equal(t, []int64{42}, backend.recordCalls)
	assert.Equal(t, int64(1), agg.GetCount(42))
	assert.Equal(t, model.ViewRecorded, agg.State(42))
}

func TestRecordView_QuizViewedTwice(t *testing.T) {
	backend := &mockBackend{}
	agg := newTestAggregator(t, backend, Options{})

	agg.RecordView(context.Background(), 5)
	agg.RecordView(context.Background(), 5)

	assert.Equal(t, 1, backend.recordCount())
}

func TestRecordView_ConcurrentCallsShareOneRequest(t *testing.T) {
	release := make(chan struct{})
	backend := &mockBackend{
		recordFn: func(ctx context.Context, entityID int64) error {
			<-release
			return nil
		},
	}
	agg := newTestAggregator(t, backend, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			agg.RecordView(context.Background(), 8)
		}()
	}

	assert.Eventually(t, func() bool { return backend.recordCount() == 1 }, timeout, tick)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, backend.recordCount())
	assert.Equal(t, int64(1), agg.GetCount(8))
}

func TestRecordView_FailureAllowsRetry(t *testing.T) {
	fail := true
	backend := &mockBackend{
		recordFn: func(ctx context.Context, entityID int64) error {
			if fail {
				return &model.RemoteError{Kind: model.KindNetwork, Message: "connection reset"}
			}
			return nil
		},
	}
	agg := newTestAggregator(t, backend, Options{})

	agg.RecordView(context.Background(), 9)
	assert.Equal(t, int64(0), agg.GetCount(9))
	assert.Equal(t, model.ViewCached, agg.State(9))

	fail = false
	agg.RecordView(context.Background(), 9)
	agg.RecordView(context.Background(), 9)

	assert.Equal(t, []int64{9, 9}, backend.recordCalls)
	assert.Equal(t, int64(1), agg.GetCount(9))
	assert.Equal(t, model.ViewRecorded, agg.State(9))
}

func TestRecordView_IgnoresInvalidIDs(t *testing.T) {
	backend := &mockBackend{}
	agg := newTestAggregator(t, backend, Options{})

	agg.RecordView(context.Background(), 0)
	agg.RecordView(context.Background(), -4)

	assert.Zero(t, backend.recordCount())
}

func TestRecordView_DiscardedAfterClose(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	backend := &mockBackend{
		recordFn: func(ctx context.Context, entityID int64) error {
			close(entered)
			<-release
			return nil
		},
	}
	agg := NewAggregator(backend, Options{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		agg.RecordView(context.Background(), 3)
	}()
	<-entered

	agg.Close()
	close(release)
	<-done

	counter, ok := agg.Counter(3)
	require.True(t, ok)
	assert.Zero(t, counter.Count)
	assert.False(t, counter.Recorded)
}

// =============================================================================
// GET / REFRESH TESTS
// =============================================================================

func TestGetCount_UnseenIsZero(t *testing.T) {
	agg := newTestAggregator(t, &mockBackend{}, Options{})

	assert.Equal(t, model.ViewUnseen, agg.State(11))
	assert.Equal(t, int64(0), agg.GetCount(11))
	assert.Equal(t, model.ViewCached, agg.State(11))
}

func TestRefresh_OverwritesNeverMerges(t *testing.T) {
	backend := &mockBackend{
		fetchFn: func(ctx context.Context, entityIDs []int64) (map[int64]int64, error) {
			return map[int64]int64{7: 9}, nil
		},
	}
	agg := newTestAggregator(t, backend, Options{})

	// Local optimistic value of 5
	agg.mu.Lock()
	agg.entryLocked(7).count = 5
	agg.mu.Unlock()

	require.NoError(t, agg.Refresh(context.Background(), []int64{7}))
	assert.Equal(t, int64(9), agg.GetCount(7))
}

func TestRefresh_ServerMayLowerTheCount(t *testing.T) {
	backend := &mockBackend{
		fetchFn: func(ctx context.Context, entityIDs []int64) (map[int64]int64, error) {
			return map[int64]int64{4: 2}, nil
		},
	}
	agg := newTestAggregator(t, backend, Options{})

	agg.mu.Lock()
	agg.entryLocked(4).count = 10
	agg.mu.Unlock()

	require.NoError(t, agg.Refresh(context.Background(), []int64{4}))
	assert.Equal(t, int64(2), agg.GetCount(4))
}

func TestRefresh_AbsentAndForeignIDsIgnored(t *testing.T) {
	backend := &mockBackend{
		fetchFn: func(ctx context.Context, entityIDs []int64) (map[int64]int64, error) {
			return map[int64]int64{1: 3, 500: 77, 2: -1}, nil
		},
	}
	agg := newTestAggregator(t, backend, Options{})

	agg.mu.Lock()
	agg.entryLocked(2).count = 6
	agg.mu.Unlock()

	require.NoError(t, agg.Refresh(context.Background(), []int64{1, 2, 3}))

	assert.Equal(t, model.ViewCached, agg.State(3), "requested ids are cached even when not reported")
	assert.Equal(t, int64(3), agg.GetCount(1))
	assert.Equal(t, int64(6), agg.GetCount(2), "negative counts are rejected")
	assert.Equal(t, int64(0), agg.GetCount(3))
	assert.Equal(t, model.ViewUnseen, agg.State(500), "ids outside the request are not cached")
}

func TestRefresh_BatchesAndDedupes(t *testing.T) {
	backend := &mockBackend{
		fetchFn: func(ctx context.Context, entityIDs []int64) (map[int64]int64, error) {
			counts := make(map[int64]int64, len(entityIDs))
			for _, id := range entityIDs {
				counts[id] = id * 10
			}
			return counts, nil
		},
	}
	agg := newTestAggregator(t, backend, Options{BatchSize: 2, Parallelism: 2})

	require.NoError(t, agg.Refresh(context.Background(), []int64{1, 2, 2, 3, 4, 5, 0}))

	assert.Equal(t, 3, backend.fetchCount())
	var fetched []int64
	for _, b := range backend.fetchBatches {
		assert.LessOrEqual(t, len(b), 2)
		fetched = append(fetched, b...)
	}
	sort.Slice(fetched, func(i, j int) bool { return fetched[i] < fetched[j] })
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, fetched)

	for id := int64(1); id <= 5; id++ {
		assert.Equal(t, id*10, agg.GetCount(id))
	}
}

func TestRefresh_BatchSizeCappedAtServerLimit(t *testing.T) {
	backend := &mockBackend{
		fetchFn: func(ctx context.Context, entityIDs []int64) (map[int64]int64, error) {
			if len(entityIDs) > model.MaxBatchIDs {
				return nil, model.ErrTooManyIDs
			}
			counts := make(map[int64]int64, len(entityIDs))
			for _, id := range entityIDs {
				counts[id] = 1
			}
			return counts, nil
		},
	}
	agg := newTestAggregator(t, backend, Options{BatchSize: 150})

	ids := make([]int64, 120)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	require.NoError(t, agg.Refresh(context.Background(), ids))

	assert.Equal(t, 2, backend.fetchCount())
	for _, b := range backend.fetchBatches {
		assert.LessOrEqual(t, len(b), model.MaxBatchIDs)
	}
	assert.Equal(t, int64(1), agg.GetCount(120))
}

func TestRefresh_PartialFailureAppliesSuccessfulBatches(t *testing.T) {
	backend := &mockBackend{
		fetchFn: func(ctx context.Context, entityIDs []int64) (map[int64]int64, error) {
			if entityIDs[0] == 1 {
				return nil, errors.New("boom")
			}
			return map[int64]int64{3: 30}, nil
		},
	}
	agg := newTestAggregator(t, backend, Options{BatchSize: 2})

	err := agg.Refresh(context.Background(), []int64{1, 2, 3})
	assert.Error(t, err)
	assert.Equal(t, int64(30), agg.GetCount(3))
}

func TestRefresh_EmptyIsNoop(t *testing.T) {
	backend := &mockBackend{}
	agg := newTestAggregator(t, backend, Options{})

	require.NoError(t, agg.Refresh(context.Background(), nil))
	assert.Zero(t, backend.fetchCount())
}

// =============================================================================
// BACKGROUND REFRESH TESTS
// =============================================================================

func TestObserve_StartsAndStopsBackgroundRefresh(t *testing.T) {
	var mu sync.Mutex
	serverCount := int64(1)
	backend := &mockBackend{
		fetchFn: func(ctx context.Context, entityIDs []int64) (map[int64]int64, error) {
			mu.Lock()
			defer mu.Unlock()
			return map[int64]int64{21: serverCount}, nil
		},
	}
	agg := newTestAggregator(t, backend, Options{RefreshInterval: 10 * time.Millisecond})

	release := agg.Observe(21)
	assert.Eventually(t, func() bool { return agg.GetCount(21) == 1 }, timeout, tick)

	mu.Lock()
	serverCount = 12
	mu.Unlock()
	assert.Eventually(t, func() bool { return agg.GetCount(21) == 12 }, timeout, tick)

	release()
	release()
	assert.Empty(t, agg.Tracked())

	agg.mu.Lock()
	running := agg.loopCancel != nil
	agg.mu.Unlock()
	assert.False(t, running)

	// No further fetches once nothing is observed.
	settled := backend.fetchCount()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, backend.fetchCount(), settled+1)
}

func TestObserve_ReferenceCounted(t *testing.T) {
	agg := newTestAggregator(t, &mockBackend{}, Options{RefreshInterval: time.Hour})

	releaseA := agg.Observe(1)
	releaseB := agg.Observe(1)
	releaseC := agg.Observe(2)

	releaseA()
	ids := agg.Tracked()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	assert.Equal(t, []int64{1, 2}, ids)

	releaseB()
	assert.Equal(t, []int64{2}, agg.Tracked())

	releaseC()
	assert.Empty(t, agg.Tracked())

	// Observing again restarts the loop.
	agg.Observe(3)
	agg.mu.Lock()
	running := agg.loopCancel != nil
	agg.mu.Unlock()
	assert.True(t, running)
}

func TestClose_StopsLoopAndRejectsObserve(t *testing.T) {
	agg := NewAggregator(&mockBackend{}, Options{RefreshInterval: 5 * time.Millisecond})
	agg.Observe(1)

	agg.Close()

	agg.mu.Lock()
	running := agg.loopCancel != nil
	agg.mu.Unlock()
	assert.False(t, running)

	release := agg.Observe(2)
	release()
	assert.Equal(t, []int64{1}, agg.Tracked())
}
