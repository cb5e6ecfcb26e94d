package queue

import (
	"errors"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"propertypro/server/internal/metrics"
	"propertypro/server/internal/models"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// Handler consumes one batch of interaction events.
type Handler func([]models.InteractionRecord) error

// InteractionQueue buffers interaction batches between the API and the
// batch processor.
type InteractionQueue struct {
	items    chan []models.InteractionRecord
	done     chan struct{}
	stopped  chan struct{}
	maxSize  int
	closed   bool
	started  bool
	mu       sync.RWMutex
	logger   *logrus.Logger
	handlers []Handler
}

func NewInteractionQueue(bufferSize int, logger *logrus.Logger) *InteractionQueue {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &InteractionQueue{
		items:   make(chan []models.InteractionRecord, bufferSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		maxSize: bufferSize,
		logger:  logger,
	}
}

// Push enqueues a batch without blocking.
func (q *InteractionQueue) Push(batch []models.InteractionRecord) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		metrics.InteractionsQueued.WithLabelValues("closed").Add(float64(len(batch)))
		return ErrQueueClosed
	}

	select {
	case q.items <- batch:
		metrics.InteractionsQueued.WithLabelValues("accepted").Add(float64(len(batch)))
		q.logger.WithField("batch_size", len(batch)).Debug("Pushed interaction batch to queue")
		return nil
	default:
		metrics.InteractionsQueued.WithLabelValues("rejected").Add(float64(len(batch)))
		return ErrQueueFull
	}
}

func (q *InteractionQueue) Subscribe(handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start launches the consumer goroutine. Calling it twice is a no-op.
func (q *InteractionQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	go q.process()
}

func (q *InteractionQueue) process() {
	defer close(q.stopped)
	for {
		select {
		case <-q.done:
			q.drain()
			return
		case batch := <-q.items:
			q.processBatch(batch)
		}
	}
}

// drain flushes batches accepted before Close.
func (q *InteractionQueue) drain() {
	for {
		select {
		case batch := <-q.items:
			q.processBatch(batch)
		default:
			return
		}
	}
}

func (q *InteractionQueue) processBatch(batch []models.InteractionRecord) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(batch); err != nil {
			q.logger.WithError(err).WithField("batch_size", len(batch)).Error("Handler failed to process interaction batch")
		}
	}
}

// Close stops accepting batches and waits for the consumer to flush what
// is already buffered.
func (q *InteractionQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	started := q.started
	close(q.done)
	q.mu.Unlock()

	if started {
		<-q.stopped
	}
	return nil
}

func (q *InteractionQueue) Len() int {
	return len(q.items)
}

func (q *InteractionQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
