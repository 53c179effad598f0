package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/erp/fulfillment/internal/domain/workflow"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config holds job queue configuration
type Config struct {
	// LaneBuffer is the per-channel submission buffer size
	LaneBuffer int
	// JobTimeout is the maximum time one job attempt may run
	JobTimeout time.Duration
	// Retry is the requeue-on-conflict policy
	Retry RetryPolicy
}

// DefaultConfig returns default queue configuration
func DefaultConfig() Config {
	return Config{
		LaneBuffer: 256,
		JobTimeout: 5 * time.Minute,
		Retry:      DefaultRetryPolicy(),
	}
}

// Validate validates the configuration
func (c Config) Validate() error {
	if c.LaneBuffer <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	return c.Retry.Validate()
}

// task pairs a persisted job record with its in-process body
type task struct {
	job *Job
	run workflow.UnitOfWork
}

// Queue is a durable asynchronous job queue backed by the database. It
// gives the pipeline engine three guarantees: submissions under an
// identity key are coalesced while an equivalent job is still pending or
// executing; jobs on one channel execute in submission order relative to
// each other (one worker per channel lane); and a job body reporting a
// transient storage conflict is re-attempted from scratch per the retry
// policy.
type Queue struct {
	db     *gorm.DB
	config Config
	logger *zap.Logger

	mu        sync.Mutex
	lanes     map[string]chan task
	inflight  map[string]uuid.UUID
	isRunning bool
	runCtx    context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewQueue creates a new job queue
func NewQueue(db *gorm.DB, config Config, logger *zap.Logger) (*Queue, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Queue{
		db:       db,
		config:   config,
		logger:   logger,
		lanes:    make(map[string]chan task),
		inflight: make(map[string]uuid.UUID),
	}, nil
}

// Start starts the queue
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.isRunning {
		return nil
	}
	q.runCtx, q.cancel = context.WithCancel(ctx)
	q.isRunning = true

	q.logger.Info("Job queue started",
		zap.Int("lane_buffer", q.config.LaneBuffer),
		zap.Duration("job_timeout", q.config.JobTimeout),
	)
	return nil
}

// Stop gracefully stops the queue, waiting for in-flight jobs
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	for _, lane := range q.lanes {
		close(lane)
	}
	q.lanes = make(map[string]chan task)
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("Job queue stopped gracefully")
		return nil
	case <-ctx.Done():
		q.logger.Warn("Job queue stop timed out")
		return ctx.Err()
	}
}

// Submit implements workflow.Dispatcher. A submission whose identity key
// matches a job still pending or executing is absorbed without creating
// a second job.
func (q *Queue) Submit(ctx context.Context, sub workflow.Submission) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return ErrQueueNotRunning
	}

	if existing, ok := q.inflight[sub.IdentityKey]; ok {
		q.mu.Unlock()
		q.logger.Debug("Job submission coalesced",
			zap.String("identity_key", sub.IdentityKey),
			zap.String("job_id", existing.String()),
		)
		return nil
	}

	job := newJob(sub.IdentityKey, sub.Channel, sub.Description)
	if err := q.db.WithContext(ctx).Create(job).Error; err != nil {
		q.mu.Unlock()
		return err
	}

	// The buffered send stays under the lock so Stop cannot close the
	// lane between the running check and the send.
	lane := q.laneLocked(sub.Channel)
	select {
	case lane <- task{job: job, run: sub.Run}:
		q.inflight[sub.IdentityKey] = job.ID
		q.mu.Unlock()
	default:
		q.mu.Unlock()
		q.markFailed(job, ErrChannelFull.Error())
		return ErrChannelFull
	}

	q.logger.Debug("Job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("identity_key", sub.IdentityKey),
		zap.String("channel", sub.Channel),
	)
	return nil
}

// laneLocked returns the lane for a channel, starting its worker on first
// use. Caller holds q.mu.
func (q *Queue) laneLocked(channel string) chan task {
	if lane, ok := q.lanes[channel]; ok {
		return lane
	}
	lane := make(chan task, q.config.LaneBuffer)
	q.lanes[channel] = lane
	q.wg.Add(1)
	go q.worker(q.runCtx, channel, lane)
	return lane
}

// worker executes one channel lane in FIFO order
func (q *Queue) worker(ctx context.Context, channel string, lane chan task) {
	defer q.wg.Done()

	q.logger.Debug("Job queue lane started", zap.String("channel", channel))

	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-lane:
			if !ok {
				return
			}
			q.process(ctx, t)
		}
	}
}

// process runs a job body, re-attempting it from scratch on transient
// conflicts per the retry policy. Retrying in place keeps the lane's
// submission order intact.
func (q *Queue) process(ctx context.Context, t task) {
	defer q.release(t.job.IdentityKey)

	for attempt := 1; ; attempt++ {
		q.markStarted(t.job, attempt)

		jobCtx, cancel := context.WithTimeout(ctx, q.config.JobTimeout)
		result, err := t.run(jobCtx)
		cancel()

		if err == nil {
			q.markDone(t.job, result)
			q.logger.Info("Job completed",
				zap.String("job_id", t.job.ID.String()),
				zap.String("description", t.job.Description),
				zap.Int("attempts", attempt),
			)
			return
		}

		if q.config.Retry.IsConflict(err) && attempt < q.config.Retry.MaxAttempts {
			q.markPending(t.job, err.Error())
			q.logger.Warn("Job hit a write conflict, requeueing",
				zap.String("job_id", t.job.ID.String()),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(q.config.Retry.delay(attempt)):
			}
			continue
		}

		q.markFailed(t.job, err.Error())
		q.logger.Error("Job failed",
			zap.String("job_id", t.job.ID.String()),
			zap.String("description", t.job.Description),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		return
	}
}

// release clears the in-flight identity key
func (q *Queue) release(identityKey string) {
	q.mu.Lock()
	delete(q.inflight, identityKey)
	q.mu.Unlock()
}

func (q *Queue) markStarted(job *Job, attempt int) {
	now := time.Now()
	job.State = JobStateStarted
	job.Attempts = attempt
	job.StartedAt = &now
	q.persist(job)
}

func (q *Queue) markPending(job *Job, errMsg string) {
	job.State = JobStatePending
	job.Error = errMsg
	q.persist(job)
}

func (q *Queue) markDone(job *Job, result string) {
	now := time.Now()
	job.State = JobStateDone
	job.Result = result
	job.Error = ""
	job.CompletedAt = &now
	q.persist(job)
}

func (q *Queue) markFailed(job *Job, errMsg string) {
	now := time.Now()
	job.State = JobStateFailed
	job.Error = errMsg
	job.CompletedAt = &now
	q.persist(job)
}

func (q *Queue) persist(job *Job) {
	job.UpdatedAt = time.Now()
	if err := q.db.Save(job).Error; err != nil {
		q.logger.Error("Failed to persist job state",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}
}

// RecentJobs returns the most recent job records for the audit surface
func (q *Queue) RecentJobs(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []Job
	if err := q.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
