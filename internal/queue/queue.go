package queue

import (
	"errors"
	"sync"

	"immoradar/internal/models"

	"github.com/sirupsen/logrus"
)

var (
	ErrQueueFull   = errors.New("ingest queue is full")
	ErrQueueClosed = errors.New("ingest queue is closed")
)

// IngestQueue buffers batches of validated properties between the scrape
// pipeline and the batch processor. Adapters never write to the store
// directly; their results flow through here.
type IngestQueue struct {
	items    chan []*models.Property
	done     chan struct{}
	maxSize  int
	closed   bool
	mu       sync.RWMutex
	logger   *logrus.Logger
	handlers []func([]*models.Property) error
}

// NewIngestQueue creates a queue with the specified buffer size.
func NewIngestQueue(bufferSize int, logger *logrus.Logger) *IngestQueue {
	if logger == nil {
		logger = logrus.New()
	}
	return &IngestQueue{
		items:    make(chan []*models.Property, bufferSize),
		done:     make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]func([]*models.Property) error, 0),
	}
}

// Push adds a batch to the queue without blocking. A full queue is an error
// the caller decides how to handle, not a stall in the scrape pipeline.
func (q *IngestQueue) Push(batch []*models.Property) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	q.mu.RUnlock()

	select {
	case q.items <- batch:
		q.logger.WithField("batch_size", len(batch)).Debug("Pushed batch to ingest queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe adds a handler function that will be called for each batch.
func (q *IngestQueue) Subscribe(handler func([]*models.Property) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins draining the queue in a background goroutine.
func (q *IngestQueue) Start() {
	go q.process()
}

func (q *IngestQueue) process() {
	for {
		select {
		case <-q.done:
			return
		case batch := <-q.items:
			q.dispatch(batch)
		}
	}
}

// dispatch sends the batch to all subscribed handlers.
func (q *IngestQueue) dispatch(batch []*models.Property) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(batch); err != nil {
			q.logger.WithError(err).Error("Handler failed to process batch")
		}
	}
}

// Close stops the queue and prevents new batches from being added.
func (q *IngestQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.done)
	return nil
}

// Len returns the current number of batches waiting in the queue.
func (q *IngestQueue) Len() int {
	return len(q.items)
}

// IsClosed reports whether the queue has been closed.
func (q *IngestQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
