package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/voltventures961/Invoice-app-sub000/internal/domain/invoicing"
	"go.uber.org/zap"
)

// PendingReleaseFinder lists cancelled invoices whose payments still wait to be moved to the client account
type PendingReleaseFinder interface {
	FindPendingReleases(ctx context.Context, limit int) ([]invoicing.Document, error)
}

// SweepTriggerConfig holds configuration for the sweep trigger
type SweepTriggerConfig struct {
	Interval  time.Duration
	BatchSize int
}

// DefaultSweepTriggerConfig returns default sweep trigger configuration
func DefaultSweepTriggerConfig() SweepTriggerConfig {
	return SweepTriggerConfig{
		Interval:  time.Minute,
		BatchSize: 50,
	}
}

// SweepTrigger periodically looks for interrupted cancellations and submits a
// release job for each one
type SweepTrigger struct {
	config    SweepTriggerConfig
	scheduler *Scheduler
	finder    PendingReleaseFinder
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewSweepTrigger creates a new sweep trigger
func NewSweepTrigger(
	config SweepTriggerConfig,
	scheduler *Scheduler,
	finder PendingReleaseFinder,
	logger *zap.Logger,
) *SweepTrigger {
	return &SweepTrigger{
		config:    config,
		scheduler: scheduler,
		finder:    finder,
		logger:    logger,
	}
}

// Start starts the sweep loop. The first sweep runs immediately.
func (c *SweepTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Recovery sweep started",
		zap.Duration("interval", c.config.Interval),
		zap.Int("batch_size", c.config.BatchSize),
	)
	return nil
}

// Stop stops the sweep loop
func (c *SweepTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Recovery sweep stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *SweepTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	c.Sweep(ctx)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep submits a release job for every pending invoice it finds and returns
// how many were submitted
func (c *SweepTrigger) Sweep(ctx context.Context) int {
	docs, err := c.finder.FindPendingReleases(ctx, c.config.BatchSize)
	if err != nil {
		c.logger.Error("Failed to find pending payment releases", zap.Error(err))
		return 0
	}

	submitted := 0
	for _, doc := range docs {
		job := NewJob(JobKindReleaseCancelledInvoice, doc.UserID, doc.ID, doc.Number, c.scheduler.config.RetryAttempts)
		err := c.scheduler.SubmitJob(job)
		switch {
		case err == nil:
			submitted++
		case errors.Is(err, ErrJobAlreadyQueued):
		case errors.Is(err, ErrJobQueueFull):
			c.logger.Warn("Recovery queue full, remaining invoices wait for the next sweep",
				zap.Int("found", len(docs)),
				zap.Int("submitted", submitted),
			)
			return submitted
		default:
			c.logger.Error("Failed to submit release job",
				zap.String("document_id", doc.ID.String()),
				zap.Error(err),
			)
			return submitted
		}
	}

	if submitted > 0 {
		c.logger.Info("Submitted payment release jobs", zap.Int("count", submitted))
	}
	return submitted
}
