// Package worker provides an asynchronous worker pool that publishes exchange
// events with the provided eventstream.Publisher.
//
// The pool decouples event delivery from the reply path so a slow or
// unavailable broker never delays an answer to the user.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/banter/pkg/eventstream"
	"github.com/papercomputeco/banter/pkg/logger"
)

var (
	defaultNumWorkers     uint = 2
	defaultJobQueueSize   uint = 256
	defaultPublishTimeout      = 10 * time.Second
)

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher delivers the events.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// PublishTimeout bounds each publish call (defaults to 10s).
	PublishTimeout time.Duration

	// OnDrop is called for every event dropped because the queue was full.
	OnDrop func(*eventstream.ExchangeCompletedEvent)

	Logger *slog.Logger
}

// Pool publishes exchange events asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan *eventstream.ExchangeCompletedEvent
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, errors.New("worker pool requires a publisher")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.PublishTimeout <= 0 {
		c.PublishTimeout = defaultPublishTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan *eventstream.ExchangeCompletedEvent, c.QueueSize),
		logger: logger.OrNop(c.Logger),
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits an event for publishing.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the event being dropped.
func (p *Pool) Enqueue(event *eventstream.ExchangeCompletedEvent) bool {
	if event == nil {
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.drop(event, "pool closed")
		return false
	}

	select {
	case p.queue <- event:
		p.logger.Debug("event queued",
			"event_id", event.EventID,
			"user_id", event.UserID,
		)
		return true
	default:
		p.drop(event, "queue full")
		return false
	}
}

func (p *Pool) drop(event *eventstream.ExchangeCompletedEvent, reason string) {
	p.logger.Error("event not queued, event dropped",
		"reason", reason,
		"event_id", event.EventID,
		"user_id", event.UserID,
	)
	if p.config.OnDrop != nil {
		p.config.OnDrop(event)
	}
}

// Close signals workers to stop and waits for queued events to drain.
// Close is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls events off the queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for event := range p.queue {
		p.publish(event)
	}

	p.logger.Debug("event worker stopped", "worker_id", id)
}

func (p *Pool) publish(event *eventstream.ExchangeCompletedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
	defer cancel()

	if err := p.config.Publisher.PublishExchange(ctx, event); err != nil {
		p.logger.Error("event publish failed",
			"event_id", event.EventID,
			"user_id", event.UserID,
			"error", err,
		)
		return
	}

	p.logger.Debug("event published", "event_id", event.EventID)
}
