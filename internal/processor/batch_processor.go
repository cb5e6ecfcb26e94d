package processor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"propertypro/server/config"
	"propertypro/server/internal/database"
	"propertypro/server/internal/metrics"
	"propertypro/server/internal/models"
	"propertypro/server/internal/queue"
)

// Writer persists one interaction batch atomically.
type Writer interface {
	SaveInteractions(ctx context.Context, batch []models.InteractionRecord) error
}

// BatchProcessor drains the interaction queue into storage.
type BatchProcessor struct {
	writer     Writer
	logger     *logrus.Logger
	queue      *queue.InteractionQueue
	maxRetries int
	retryDelay time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewBatchProcessor(writer Writer, q *queue.InteractionQueue, cfg *config.Config, logger *logrus.Logger) *BatchProcessor {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &BatchProcessor{
		writer:     writer,
		queue:      q,
		logger:     logger,
		maxRetries: cfg.BatchProcessing.MaxRetries,
		retryDelay: cfg.BatchProcessing.RetryDelay,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes to the queue and starts consuming.
func (p *BatchProcessor) Start() {
	p.queue.Subscribe(p.processBatch)
	p.queue.Start()
}

// Stop flushes buffered batches and cancels pending retries.
func (p *BatchProcessor) Stop() {
	if err := p.queue.Close(); err != nil {
		p.logger.WithError(err).Warn("Failed to close interaction queue")
	}
	p.cancel()
}

func (p *BatchProcessor) processBatch(batch []models.InteractionRecord) error {
	valid := make([]models.InteractionRecord, 0, len(batch))
	for _, r := range batch {
		if !r.Action.Valid() || r.UserID == 0 || r.PropertyID == 0 {
			p.logger.WithFields(logrus.Fields{
				"user_id":     r.UserID,
				"property_id": r.PropertyID,
				"action":      r.Action,
			}).Warn("Dropping invalid interaction")
			continue
		}
		valid = append(valid, r)
	}
	if len(valid) == 0 {
		return nil
	}

	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Infof("Retrying interaction batch, attempt %d of %d", attempt, p.maxRetries)
			select {
			case <-p.ctx.Done():
				metrics.InteractionBatches.WithLabelValues("cancelled").Inc()
				return fmt.Errorf("batch retry cancelled: %w", err)
			case <-time.After(p.retryDelay):
			}
		}

		err = p.writer.SaveInteractions(p.ctx, valid)
		if err == nil {
			metrics.InteractionBatches.WithLabelValues("success").Inc()
			p.logger.WithField("batch_size", len(valid)).Debug("Persisted interaction batch")
			return nil
		}

		p.logger.WithError(err).WithField("attempt", attempt).Error("Interaction batch failed")
		if database.IsConstraintViolation(err) {
			metrics.InteractionBatches.WithLabelValues("rejected").Inc()
			return fmt.Errorf("interaction batch rejected: %w", err)
		}
	}

	metrics.InteractionBatches.WithLabelValues("failed").Inc()
	return fmt.Errorf("failed to process batch after %d attempts: %w", p.maxRetries+1, err)
}
