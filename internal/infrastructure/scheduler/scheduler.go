// Package scheduler runs background ledger recovery jobs on a bounded worker pool.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobStatus represents the status of a scheduled job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// JobKind identifies the recovery a job performs
type JobKind string

// JobKindReleaseCancelledInvoice finishes moving the payments of a cancelled invoice to the client account
const JobKindReleaseCancelledInvoice JobKind = "RELEASE_CANCELLED_INVOICE"

// Job is one recovery unit of work on a single invoice
type Job struct {
	ID          uuid.UUID
	Kind        JobKind
	UserID      uuid.UUID
	DocumentID  uuid.UUID
	Number      string
	Status      JobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time
}

// NewJob creates a new pending job
func NewJob(kind JobKind, userID, documentID uuid.UUID, number string, maxRetries int) *Job {
	return &Job{
		ID:         uuid.New(),
		Kind:       kind,
		UserID:     userID,
		DocumentID: documentID,
		Number:     number,
		Status:     JobStatusPending,
		MaxRetries: maxRetries,
	}
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as successful
func (j *Job) Complete() {
	now := time.Now()
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
}

// Fail marks the job as failed
func (j *Job) Fail(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job should be retried
func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry schedules the job for retry, doubling the delay on every attempt
func (j *Job) ScheduleRetry(baseDelay time.Duration) {
	delay := baseDelay << j.RetryCount
	j.RetryCount++
	j.Status = JobStatusPending
	nextRetry := time.Now().Add(delay)
	j.NextRetryAt = &nextRetry
	j.Error = ""
}

// JobExecutor is the interface for executing recovery jobs
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	MaxConcurrentJobs int
	QueueSize         int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxConcurrentJobs: 2,
		QueueSize:         100,
		JobTimeout:        time.Minute,
		RetryAttempts:     3,
		RetryDelay:        5 * time.Second,
	}
}

// Validate validates the scheduler configuration
func (c SchedulerConfig) Validate() error {
	if c.MaxConcurrentJobs <= 0 || c.QueueSize <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.RetryAttempts < 0 || c.RetryDelay < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Scheduler runs recovery jobs on a fixed pool of workers. At most one job
// per invoice is queued or running at a time.
type Scheduler struct {
	config   SchedulerConfig
	executor JobExecutor
	logger   *zap.Logger

	jobs      chan *Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	queued    map[uuid.UUID]struct{}
}

// NewScheduler creates a new scheduler instance
func NewScheduler(config SchedulerConfig, executor JobExecutor, logger *zap.Logger) (*Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{
		config:   config,
		executor: executor,
		logger:   logger,
		jobs:     make(chan *Job, config.QueueSize),
		queued:   make(map[uuid.UUID]struct{}),
	}, nil
}

// Start starts the worker pool
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Recovery scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop gracefully stops the scheduler. Queued jobs that have not started are dropped;
// the next sweep finds their invoices again.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Recovery scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Recovery scheduler stop timed out")
		return ctx.Err()
	}
}

// SubmitJob submits a job for execution
func (s *Scheduler) SubmitJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}
	if _, ok := s.queued[job.DocumentID]; ok {
		return ErrJobAlreadyQueued
	}

	select {
	case s.jobs <- job:
		s.queued[job.DocumentID] = struct{}{}
		s.logger.Debug("Job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", string(job.Kind)),
			zap.String("document_id", job.DocumentID.String()),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// Pending returns the number of jobs queued or running
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queued)
}

func (s *Scheduler) release(job *Job) {
	s.mu.Lock()
	delete(s.queued, job.DocumentID)
	s.mu.Unlock()
}

func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	s.logger.Debug("Worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Worker stopping", zap.Int("worker_id", workerID))
			return
		case job := <-s.jobs:
			s.processJob(ctx, job, workerID)
		}
	}
}

// processJob executes a job, retrying it in place until it succeeds, runs
// out of attempts or the scheduler stops
func (s *Scheduler) processJob(ctx context.Context, job *Job, workerID int) {
	defer s.release(job)

	for {
		if job.NextRetryAt != nil {
			timer := time.NewTimer(time.Until(*job.NextRetryAt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}

		job.Start()
		s.logger.Info("Processing job",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID.String()),
			zap.String("kind", string(job.Kind)),
			zap.String("number", job.Number),
		)

		jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
		err := s.executor.Execute(jobCtx, job)
		cancel()
		if err == nil {
			job.Complete()
			s.logger.Info("Job completed successfully",
				zap.Int("worker_id", workerID),
				zap.String("job_id", job.ID.String()),
				zap.String("number", job.Number),
			)
			return
		}

		job.Fail(err.Error())
		s.logger.Error("Job failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID.String()),
			zap.String("number", job.Number),
			zap.Error(err),
		)
		if !job.ShouldRetry() || ctx.Err() != nil {
			return
		}
		job.ScheduleRetry(s.config.RetryDelay)
		s.logger.Info("Job scheduled for retry",
			zap.String("job_id", job.ID.String()),
			zap.Int("retry_count", job.RetryCount),
			zap.Int("max_retries", job.MaxRetries),
		)
	}
}
