package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"quizgram/internal/logging"
	"quizgram/internal/queue"
)

const (
	// DefaultWorkerCount is the default number of worker goroutines
	DefaultWorkerCount = 1

	// DefaultBatchSize is the number of messages to read per batch
	DefaultBatchSize = 10

	// DefaultBlockTimeout is how long to block waiting for new messages
	DefaultBlockTimeout = 5 * time.Second

	readBackoff = time.Second
)

// PendingReader is implemented by consumers that can replay messages
// delivered but never acknowledged.
type PendingReader interface {
	ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]queue.Message, error)
}

// Manager orchestrates worker goroutines that consume one Redis stream
// through a consumer group.
type Manager struct {
	consumer    queue.Consumer
	handler     Handler
	stream      string
	group       string
	start       string
	namePrefix  string
	workerCount int
	batchSize   int64
	blockTime   time.Duration
	logger      *slog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// ManagerConfig holds configuration for the worker manager.
type ManagerConfig struct {
	Stream       string
	Group        string
	Start        string        // group start id when created: "$" (new only) or "0"
	ConsumerName string        // consumer name prefix, suffixed with the worker number
	WorkerCount  int           // Number of worker goroutines
	BatchSize    int64         // Messages per read
	BlockTimeout time.Duration // Block time for XREADGROUP
}

// DefaultManagerConfig returns the settings for tailing the social stream.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Stream:       queue.StreamSocial,
		Group:        queue.ConsumerGroupWatchers,
		Start:        "$",
		ConsumerName: "worker",
		WorkerCount:  DefaultWorkerCount,
		BatchSize:    DefaultBatchSize,
		BlockTimeout: DefaultBlockTimeout,
	}
}

// NewManager creates a new worker manager. Zero fields of cfg take the
// defaults.
func NewManager(consumer queue.Consumer, handler Handler, cfg ManagerConfig) *Manager {
	def := DefaultManagerConfig()
	if cfg.Stream == "" {
		cfg.Stream = def.Stream
	}
	if cfg.Group == "" {
		cfg.Group = def.Group
	}
	if cfg.Start == "" {
		cfg.Start = def.Start
	}
	if cfg.ConsumerName == "" {
		cfg.ConsumerName = def.ConsumerName
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = def.BlockTimeout
	}

	return &Manager{
		consumer:    consumer,
		handler:     handler,
		stream:      cfg.Stream,
		group:       cfg.Group,
		start:       cfg.Start,
		namePrefix:  cfg.ConsumerName,
		workerCount: cfg.WorkerCount,
		batchSize:   cfg.BatchSize,
		blockTime:   cfg.BlockTimeout,
		logger:      logging.Component("Manager"),
	}
}

// Start begins the worker goroutines.
// Call Stop() to gracefully shut down.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.consumer.EnsureGroup(m.ctx, m.stream, m.group, m.start); err != nil {
		m.cancel()
		return err
	}

	m.logger.Info("starting workers", "count", m.workerCount, "stream", m.stream, "group", m.group)

	for i := 0; i < m.workerCount; i++ {
		workerID := i + 1
		m.wg.Add(1)
		go m.runWorker(workerID, m.consumerName(workerID))
	}

	return nil
}

// Stop gracefully shuts down all workers.
// Blocks until all workers have finished.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
	m.logger.Info("all workers stopped")
}

// Wait blocks until every worker has returned, e.g. after the context
// passed to Start is cancelled.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// runWorker is the main loop for a single worker goroutine.
func (m *Manager) runWorker(workerID int, consumerName string) {
	defer m.wg.Done()
	logger := m.logger.With("worker", workerID, "consumer", consumerName)

	// Messages from a previous run of this consumer come first
	m.processPending(logger, consumerName)

	for {
		select {
		case <-m.ctx.Done():
			logger.Debug("shutting down")
			return
		default:
			m.processMessages(logger, consumerName)
		}
	}
}

// processPending handles messages that were delivered but not acknowledged.
func (m *Manager) processPending(logger *slog.Logger, consumerName string) {
	pr, ok := m.consumer.(PendingReader)
	if !ok {
		return
	}

	for m.ctx.Err() == nil {
		messages, err := pr.ReadPending(m.ctx, m.stream, m.group, consumerName, m.batchSize)
		if err != nil {
			logger.Warn("error reading pending", "error", err)
			return
		}
		if len(messages) == 0 {
			return
		}

		logger.Info("processing pending messages", "count", len(messages))
		m.handleMessages(logger, messages)
	}
}

// processMessages reads and handles a batch of messages.
func (m *Manager) processMessages(logger *slog.Logger, consumerName string) {
	messages, err := m.consumer.Read(m.ctx, m.stream, m.group, consumerName, m.batchSize, m.blockTime)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		logger.Warn("error reading", "error", err)
		select {
		case <-time.After(readBackoff):
		case <-m.ctx.Done():
		}
		return
	}

	if len(messages) == 0 {
		return
	}

	m.handleMessages(logger, messages)
}

// handleMessages processes a batch of messages and acknowledges them.
func (m *Manager) handleMessages(logger *slog.Logger, messages []queue.Message) {
	for _, msg := range messages {
		if err := m.handler.HandleEvent(m.ctx, msg.Event); err != nil {
			// Still ACK to prevent infinite retry loops
			logger.Warn("handler error", "msg_id", msg.ID, "type", msg.Event.Type, "error", err)
		}

		if err := m.consumer.Ack(m.ctx, m.stream, m.group, msg.ID); err != nil {
			logger.Warn("ack error", "msg_id", msg.ID, "error", err)
		}
	}
}

func (m *Manager) consumerName(workerID int) string {
	return fmt.Sprintf("%s-%d", m.namePrefix, workerID)
}
