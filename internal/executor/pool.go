package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hookd/internal/config"
	"hookd/internal/logger"
	"hookd/pkg/errors"
	"hookd/pkg/metrics"
	"hookd/pkg/retry"
)

// Pool is the in-process Executor implementation. Task functions are
// registered by name; submitted jobs are claimed in the Store and fed
// to a fixed set of worker goroutines.
type Pool struct {
	store       Store
	logger      logger.Logger
	queue       chan Job
	retryPolicy retry.Policy

	tasksMu sync.RWMutex
	tasks   map[string]TaskFunc

	cancelMu sync.Mutex
	cancels  map[string]context.CancelFunc

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	workers int
}

func NewPool(cfg config.ExecutorConfig, store Store, log logger.Logger) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}

	policy := retry.DefaultPolicy()
	if cfg.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.InitialInterval > 0 {
		policy.InitialInterval = cfg.Retry.InitialInterval
	}
	if cfg.Retry.MaxInterval > 0 {
		policy.MaxInterval = cfg.Retry.MaxInterval
	}
	if cfg.Retry.Multiplier > 0 {
		policy.Multiplier = cfg.Retry.Multiplier
	}
	if cfg.Retry.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = cfg.Retry.MaxElapsedTime
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	return &Pool{
		store:       store,
		logger:      log,
		queue:       make(chan Job, queueSize),
		retryPolicy: policy,
		tasks:       make(map[string]TaskFunc),
		cancels:     make(map[string]context.CancelFunc),
		baseCtx:     baseCtx,
		cancel:      cancel,
		workers:     workers,
	}
}

// RegisterTask binds a task function to a name. Registration after
// Start is allowed.
func (p *Pool) RegisterTask(name string, fn TaskFunc) {
	p.tasksMu.Lock()
	defer p.tasksMu.Unlock()
	p.tasks[name] = fn
}

func (p *Pool) taskFunc(name string) (TaskFunc, bool) {
	p.tasksMu.RLock()
	defer p.tasksMu.RUnlock()
	fn, ok := p.tasks[name]
	return fn, ok
}

func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Infow("Executor pool started", "workers", p.workers)
}

// Stop drains the queue and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	close(p.queue)
	p.wg.Wait()
	p.cancel()
	p.logger.Info("Executor pool stopped")
}

func (p *Pool) Submit(ctx context.Context, jobID, task string, args map[string]interface{}) error {
	if _, ok := p.taskFunc(task); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, task)
	}

	if err := p.store.Claim(ctx, jobID, task); err != nil {
		return err
	}

	job := Job{ID: jobID, Task: task, Args: args}
	select {
	case p.queue <- job:
		metrics.ExecutorQueueSize.Set(float64(len(p.queue)))
		metrics.ExecutorJobsTotal.WithLabelValues(task, string(StatePending)).Inc()
		return nil
	default:
		_ = p.store.SetState(ctx, jobID, StateFailure, map[string]interface{}{
			"error": ErrQueueFull.Error(),
		})
		return ErrQueueFull
	}
}

func (p *Pool) Status(ctx context.Context, jobID string) (JobStatus, error) {
	return p.store.Get(ctx, jobID)
}

// Revoke cancels a running job or marks a queued one so workers skip
// it. Jobs already in a terminal state are left untouched.
func (p *Pool) Revoke(ctx context.Context, jobID string) error {
	status, err := p.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if status.State.Terminal() {
		return nil
	}

	p.cancelMu.Lock()
	cancel, running := p.cancels[jobID]
	p.cancelMu.Unlock()
	if running {
		cancel()
	}

	if err := p.store.SetState(ctx, jobID, StateRevoked, nil); err != nil {
		return err
	}
	metrics.ExecutorJobsTotal.WithLabelValues(status.Task, string(StateRevoked)).Inc()
	return nil
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for job := range p.queue {
		metrics.ExecutorQueueSize.Set(float64(len(p.queue)))
		p.runJob(id, job)
	}
}

func (p *Pool) runJob(workerID int, job Job) {
	status, err := p.store.Get(p.baseCtx, job.ID)
	if err != nil {
		p.logger.Errorw("Failed to load job state", "job_id", job.ID, "error", err)
		return
	}
	if status.State == StateRevoked {
		p.logger.Infow("Skipping revoked job", "job_id", job.ID, "task", job.Task)
		return
	}

	fn, ok := p.taskFunc(job.Task)
	if !ok {
		_ = p.store.SetState(p.baseCtx, job.ID, StateFailure, map[string]interface{}{
			"error": fmt.Sprintf("unknown task: %s", job.Task),
		})
		return
	}

	jobCtx, cancel := context.WithCancel(p.baseCtx)
	p.cancelMu.Lock()
	p.cancels[job.ID] = cancel
	p.cancelMu.Unlock()
	defer func() {
		cancel()
		p.cancelMu.Lock()
		delete(p.cancels, job.ID)
		p.cancelMu.Unlock()
	}()

	job.Progress = func(meta map[string]interface{}) {
		if err := p.store.SetState(jobCtx, job.ID, StateProgress, meta); err != nil {
			p.logger.Warnw("Failed to record job progress", "job_id", job.ID, "error", err)
		}
	}

	if err := p.store.SetState(jobCtx, job.ID, StateStarted, nil); err != nil {
		p.logger.Errorw("Failed to mark job started", "job_id", job.ID, "error", err)
		return
	}
	metrics.ExecutorJobsTotal.WithLabelValues(job.Task, string(StateStarted)).Inc()

	start := time.Now()
	var result map[string]interface{}

	runErr := retry.RetryWithCallback(jobCtx, p.retryPolicy, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.RecoverPanic(r)
				p.logger.Errorw("Panic recovered during job execution",
					"job_id", job.ID,
					"task", job.Task,
					"error", err,
				)
			}
		}()
		result, err = fn(jobCtx, job)
		return err
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(job.Task).Inc()
		if stateErr := p.store.SetState(jobCtx, job.ID, StateRetry, map[string]interface{}{
			"attempt": attempt,
			"error":   err.Error(),
		}); stateErr != nil {
			p.logger.Warnw("Failed to record retry state", "job_id", job.ID, "error", stateErr)
		}
		p.logger.Warnw("Retrying job",
			"job_id", job.ID,
			"task", job.Task,
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
		)
	})

	metrics.ExecutorJobDuration.WithLabelValues(job.Task).Observe(time.Since(start).Seconds())

	if runErr != nil {
		if jobCtx.Err() != nil {
			// Revoke already recorded the terminal state.
			p.logger.Infow("Job canceled", "job_id", job.ID, "task", job.Task, "worker_id", workerID)
			return
		}
		_ = p.store.SetState(p.baseCtx, job.ID, StateFailure, map[string]interface{}{
			"error": runErr.Error(),
		})
		metrics.ExecutorJobsTotal.WithLabelValues(job.Task, string(StateFailure)).Inc()
		p.logger.Errorw("Job failed", "job_id", job.ID, "task", job.Task, "error", runErr)
		return
	}

	if err := p.store.SetState(p.baseCtx, job.ID, StateSuccess, result); err != nil {
		p.logger.Errorw("Failed to mark job succeeded", "job_id", job.ID, "error", err)
		return
	}
	metrics.ExecutorJobsTotal.WithLabelValues(job.Task, string(StateSuccess)).Inc()
	p.logger.Infow("Job completed", "job_id", job.ID, "task", job.Task, "worker_id", workerID)
}
