package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lokeshjavvadi/Smart-taskhub-React/domain"
)

// MessageEnqueuer writes one message to a durable queue.
type MessageEnqueuer interface {
	EnqueueMessage(ctx context.Context, content string) error
}

// ForwarderConfig sizes the QueueForwarder worker pool.
type ForwarderConfig struct {
	Workers        int
	Buffer         int
	EnqueueTimeout time.Duration
	HandoffTimeout time.Duration
}

func (c ForwarderConfig) withDefaults() ForwarderConfig {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Buffer <= 0 {
		c.Buffer = 1024
	}
	if c.EnqueueTimeout <= 0 {
		c.EnqueueTimeout = 30 * time.Second
	}
	if c.HandoffTimeout < 0 {
		c.HandoffTimeout = 0
	}
	return c
}

type forwardJob struct {
	projectID string
	envelope  []byte
}

// QueueForwarder copies task events onto a storage queue for downstream
// consumers. Events are handed to a bounded worker pool; when the pool stays
// saturated past the handoff timeout the event is dropped and logged.
type QueueForwarder struct {
	cfg    ForwarderConfig
	queue  MessageEnqueuer
	logger *log.Logger

	mu     sync.RWMutex
	jobs   chan forwardJob
	closed bool
	wg     sync.WaitGroup

	forwarded atomic.Uint64
	dropped   atomic.Uint64
}

// NewQueueForwarder starts the worker pool. Call Close to drain it.
func NewQueueForwarder(queue MessageEnqueuer, cfg ForwarderConfig, logger *log.Logger) *QueueForwarder {
	if logger == nil {
		panic("broadcast.NewQueueForwarder: logger is nil")
	}
	cfg = cfg.withDefaults()
	f := &QueueForwarder{
		cfg:    cfg,
		queue:  queue,
		logger: logger,
		jobs:   make(chan forwardJob, cfg.Buffer),
	}
	for i := 0; i < cfg.Workers; i++ {
		f.wg.Add(1)
		go f.worker(i)
	}
	logger.Infof("queue forwarder started, workers: %d, buffer: %d, timeout: %v, handoff: %v", cfg.Workers, cfg.Buffer, cfg.EnqueueTimeout, cfg.HandoffTimeout)
	return f
}

// Publish schedules ev for forwarding. It never blocks longer than the
// handoff timeout.
func (f *QueueForwarder) Publish(_ context.Context, projectID string, ev domain.TaskEvent) {
	_, env, err := encodeEnvelope(projectID, ev)
	if err != nil {
		f.logger.WithError(err).WithField("project", projectID).Error("encode task event")
		return
	}
	if !f.tryEnqueue(forwardJob{projectID: projectID, envelope: env}) {
		f.dropped.Add(1)
		f.logger.WithFields(log.Fields{"project": projectID, "type": ev.Type()}).Warn("forward buffer saturated; event dropped")
	}
}

func (f *QueueForwarder) tryEnqueue(job forwardJob) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return false
	}

	select {
	case f.jobs <- job:
		return true
	default:
	}

	if f.cfg.HandoffTimeout <= 0 {
		return false
	}
	timer := time.NewTimer(f.cfg.HandoffTimeout)
	defer timer.Stop()
	select {
	case f.jobs <- job:
		return true
	case <-timer.C:
		return false
	}
}

func (f *QueueForwarder) worker(id int) {
	defer f.wg.Done()
	for j := range f.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), f.cfg.EnqueueTimeout)
		err := f.queue.EnqueueMessage(ctx, string(j.envelope))
		cancel()
		if err != nil {
			f.dropped.Add(1)
			f.logger.Errorf("forward failed, err: %v, project: %s, worker: %d", err, j.projectID, id)
			continue
		}
		f.forwarded.Add(1)
	}
}

// Close stops accepting events and waits for queued ones to be written.
func (f *QueueForwarder) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.jobs)
	f.mu.Unlock()
	f.wg.Wait()
}

// Stats returns the number of forwarded and dropped events.
func (f *QueueForwarder) Stats() (forwarded, dropped uint64) {
	return f.forwarded.Load(), f.dropped.Load()
}
