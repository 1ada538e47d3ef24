// Package views caches per-entity view counts for one client session.
//
// Each entity has its view recorded at most once per session, so re-renders
// never inflate the server-side counter. Displayed counts are reconciled with
// the server by Refresh, which always overwrites the cached value, and by a
// background loop that runs while at least one entity is observed.
package views

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"quizgram/internal/logging"
	"quizgram/internal/metrics"
	"quizgram/internal/model"
)

const (
	DefaultRefreshInterval = 30 * time.Second
	DefaultBatchSize       = 50
	DefaultParallelism     = 4
)

// Backend is the remote side of the aggregator. RecordEntityView is not
// idempotent; FetchEntityViewCounts is a plain read.
type Backend interface {
	RecordEntityView(ctx context.Context, entityID int64) error
	FetchEntityViewCounts(ctx context.Context, entityIDs []int64) (map[int64]int64, error)
}

// Options tunes an Aggregator. Zero values select the defaults.
type Options struct {
	RefreshInterval time.Duration
	BatchSize       int
	Parallelism     int
	Metrics         *metrics.Metrics
}

type entry struct {
	count    int64
	recorded bool
	inflight bool
}

type Aggregator struct {
	backend     Backend
	interval    time.Duration
	batchSize   int
	parallelism int
	metrics     *metrics.Metrics
	logger      *slog.Logger

	mu      sync.Mutex
	entries map[int64]*entry
	tracked map[int64]int
	closed  bool

	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

func NewAggregator(backend Backend, opts Options) *Aggregator {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchSize > model.MaxBatchIDs {
		opts.BatchSize = model.MaxBatchIDs
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}

	return &Aggregator{
		backend:     backend,
		interval:    opts.RefreshInterval,
		batchSize:   opts.BatchSize,
		parallelism: opts.Parallelism,
		metrics:     opts.Metrics,
		logger:      logging.Component("ViewAggregator"),
		entries:     make(map[int64]*entry),
		tracked:     make(map[int64]int),
	}
}

// GetCount returns the cached count, 0 for an entity never seen before.
func (a *Aggregator) GetCount(entityID int64) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.entryLocked(entityID).count
}

// State reports where the entity is in its session lifecycle.
func (a *Aggregator) State(entityID int64) model.ViewState {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.entries[entityID]
	switch {
	case !ok:
		return model.ViewUnseen
	case e.recorded:
		return model.ViewRecorded
	default:
		return model.ViewCached
	}
}

// Counter returns a snapshot of the cached counter.
func (a *Aggregator) Counter(entityID int64) (model.ViewCounter, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.entries[entityID]
	if !ok {
		return model.ViewCounter{}, false
	}
	return model.ViewCounter{EntityID: entityID, Count: e.count, Recorded: e.recorded}, true
}

// RecordView records one view of the entity unless this session already did,
// or is doing so right now. Failures are logged and leave the entity eligible
// for a later attempt.
func (a *Aggregator) RecordView(ctx context.Context, entityID int64) {
	if entityID <= 0 {
		return
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	e := a.entryLocked(entityID)
	if e.recorded || e.inflight {
		a.mu.Unlock()
		a.metrics.ViewRecord(metrics.ViewDuplicate)
		return
	}
	e.inflight = true
	a.mu.Unlock()

	err := a.backend.RecordEntityView(ctx, entityID)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	e.inflight = false
	if err == nil {
		e.count++
		e.recorded = true
	}
	a.mu.Unlock()

	if err != nil {
		a.logger.Warn("record view failed", "entity", entityID, "kind", model.KindOf(err), "error", err)
		a.metrics.ViewRecord(metrics.ViewFailed)
		return
	}
	a.metrics.ViewRecord(metrics.ViewRecorded)
}

// Refresh fetches authoritative counts for ids and overwrites the cache. Ids
// are fetched in batches, concurrently; each batch is applied as soon as it
// arrives. Every requested id becomes Cached; ids the server does not
// report keep their cached value. The first
// batch error is returned after all batches finished.
func (a *Aggregator) Refresh(ctx context.Context, entityIDs []int64) error {
	ids := dedupe(entityIDs)
	if len(ids) == 0 {
		return nil
	}
	a.metrics.RefreshSize(len(ids))

	var g errgroup.Group
	g.SetLimit(a.parallelism)

	for start := 0; start < len(ids); start += a.batchSize {
		end := min(start+a.batchSize, len(ids))
		batch := ids[start:end]

		g.Go(func() error {
			counts, err := a.backend.FetchEntityViewCounts(ctx, batch)
			if err != nil {
				a.metrics.RefreshBatch(metrics.RefreshFailed)
				return fmt.Errorf("fetch view counts for %d entities: %w", len(batch), err)
			}
			a.apply(batch, counts)
			a.metrics.RefreshBatch(metrics.RefreshOK)
			return nil
		})
	}

	return g.Wait()
}

// Observe marks the entity as on screen. While anything is observed the
// aggregator refreshes all observed entities every interval. The returned
// func releases the observation; calling it more than once is harmless.
func (a *Aggregator) Observe(entityID int64) (release func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || entityID <= 0 {
		return func() {}
	}

	a.entryLocked(entityID)
	a.tracked[entityID]++
	if a.loopCancel == nil {
		a.startLoopLocked()
	}
	a.metrics.Tracked(len(a.tracked))

	var once sync.Once
	return func() {
		once.Do(func() { a.release(entityID) })
	}
}

// Tracked returns the ids currently observed.
func (a *Aggregator) Tracked() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.trackedLocked()
}

// Close stops the background loop and discards results of calls still in
// flight. It blocks until the loop has exited.
func (a *Aggregator) Close() {
	a.mu.Lock()
	a.closed = true
	done := a.stopLoopLocked()
	a.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (a *Aggregator) release(entityID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tracked[entityID] <= 1 {
		delete(a.tracked, entityID)
	} else {
		a.tracked[entityID]--
	}
	if len(a.tracked) == 0 {
		a.stopLoopLocked()
	}
	a.metrics.Tracked(len(a.tracked))
}

func (a *Aggregator) apply(batch []int64, counts map[int64]int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	for _, id := range batch {
		e := a.entryLocked(id)
		c, ok := counts[id]
		if !ok || c < 0 {
			continue
		}
		e.count = c
	}
}

func (a *Aggregator) startLoopLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.loopCancel = cancel
	a.loopDone = done

	a.logger.Debug("background refresh started", "interval", a.interval)
	go a.runLoop(ctx, done)
}

// stopLoopLocked cancels the loop and returns its done channel, nil when no
// loop was running.
func (a *Aggregator) stopLoopLocked() chan struct{} {
	if a.loopCancel == nil {
		return nil
	}
	a.loopCancel()
	done := a.loopDone
	a.loopCancel = nil
	a.loopDone = nil
	a.logger.Debug("background refresh stopped")
	return done
}

func (a *Aggregator) runLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids := a.Tracked()
			if len(ids) == 0 {
				continue
			}
			refreshCtx, cancel := context.WithTimeout(ctx, a.interval)
			err := a.Refresh(refreshCtx, ids)
			cancel()
			if err != nil && ctx.Err() == nil {
				a.logger.Warn("background refresh failed", "ids", len(ids), "error", err)
			}
		}
	}
}

func (a *Aggregator) trackedLocked() []int64 {
	ids := make([]int64, 0, len(a.tracked))
	for id := range a.tracked {
		ids = append(ids, id)
	}
	return ids
}

func (a *Aggregator) entryLocked(entityID int64) *entry {
	e, ok := a.entries[entityID]
	if !ok {
		e = &entry{}
		a.entries[entityID] = e
	}
	return e
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
