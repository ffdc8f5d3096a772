package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"immoradar/config"
	"immoradar/internal/database"
	"immoradar/internal/models"
	"immoradar/internal/queue"
)

// BatchProcessor drains the ingest queue and persists property batches. It is
// the only component that writes scrape results to the store, so concurrent
// pipeline runs cannot corrupt the dedup invariant.
type BatchProcessor struct {
	db        *gorm.DB
	logger    *logrus.Logger
	config    *config.Config
	queue     *queue.IngestQueue
	waitGroup sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewBatchProcessor creates a new batch processor instance
func NewBatchProcessor(db *gorm.DB, queue *queue.IngestQueue, config *config.Config, logger *logrus.Logger) *BatchProcessor {
	ctx, cancel := context.WithCancel(context.Background())
	return &BatchProcessor{
		db:     db,
		queue:  queue,
		config: config,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing batches from the queue
func (p *BatchProcessor) Start() {
	for i := 0; i < p.config.Ingestion.ProcessorCount; i++ {
		p.waitGroup.Add(1)
		go p.processLoop()
	}
}

// Stop gracefully shuts down the processor
func (p *BatchProcessor) Stop() {
	p.cancel()
	p.waitGroup.Wait()
}

func (p *BatchProcessor) processLoop() {
	defer p.waitGroup.Done()

	p.queue.Subscribe(func(batch []*models.Property) error {
		return p.processBatch(batch)
	})
}

// processBatch persists a single batch with transaction and retry logic. A
// batch either commits whole or not at all.
func (p *BatchProcessor) processBatch(batch []*models.Property) error {
	var err error
	for attempt := 0; attempt <= p.config.Ingestion.MaxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Infof("Retrying batch processing, attempt %d of %d", attempt, p.config.Ingestion.MaxRetries)
			time.Sleep(time.Duration(p.config.Ingestion.RetryDelay) * time.Second)
		}

		err = p.db.Transaction(func(tx *gorm.DB) error {
			if err := database.UpsertBatch(tx, batch); err != nil {
				return fmt.Errorf("failed to upsert property batch: %w", err)
			}
			return nil
		})

		if err == nil {
			p.logger.Infof("Successfully processed batch of %d properties", len(batch))
			return nil
		}

		p.logger.Errorf("Batch processing failed: %v", err)
	}

	return fmt.Errorf("failed to process batch after %d attempts: %w", p.config.Ingestion.MaxRetries, err)
}
