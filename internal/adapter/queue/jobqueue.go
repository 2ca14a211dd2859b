// Package queue runs evaluation jobs one at a time in submission order.
//
// Submissions land in an unbounded FIFO so Submit never blocks or fails; a
// single consumer goroutine drains it and records every outcome in the job map.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github-repo-judge/internal/domain"
	"github-repo-judge/pkg/logger"
	"github-repo-judge/pkg/metrics"

	"github.com/google/uuid"
)

// Default retention policy.
const (
	defaultRetention = 24 * time.Hour
	defaultMaxJobs   = 10000
)

// ErrStopped is returned by Shutdown when the worker was already stopped.
var ErrStopped = errors.New("queue stopped")

// Handler is the body of one job.
type Handler func(ctx context.Context, payload domain.JobPayload) (*domain.EvaluationResult, error)

// JobQueue is an in-memory single-worker FIFO scheduler.
type JobQueue struct {
	handler Handler

	mu      sync.Mutex
	jobs    map[string]*domain.EvaluationJob
	order   []string // submission order, used for eviction
	pending []string

	wake     chan struct{}
	shutdown chan struct{}
	done     chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	started   bool

	now       func() time.Time
	newID     func() string
	retention time.Duration
	maxJobs   int
	logger    logger.Logger
}

// New creates a queue that runs handler for every submitted payload.
func New(handler Handler, opts ...Option) *JobQueue {
	q := &JobQueue{
		handler:   handler,
		jobs:      make(map[string]*domain.EvaluationJob),
		wake:      make(chan struct{}, 1),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		now:       time.Now,
		newID:     uuid.NewString,
		retention: defaultRetention,
		maxJobs:   defaultMaxJobs,
		logger:    logger.Get().Named("queue"),
	}

	for _, opt := range opts {
		opt(q)
	}

	metrics.UpdateQueueDepth(0)
	return q
}

// Start launches the worker goroutine. Calling it more than once is a no-op.
func (q *JobQueue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		q.mu.Lock()
		q.started = true
		q.mu.Unlock()
		go q.run(ctx)
	})
}

// Shutdown stops the worker after the job in flight (if any) returns.
// Pending jobs stay pending.
func (q *JobQueue) Shutdown(ctx context.Context) error {
	stopped := false
	q.stopOnce.Do(func() {
		close(q.shutdown)
		stopped = true
	})
	if !stopped {
		return ErrStopped
	}

	q.mu.Lock()
	started := q.started
	q.mu.Unlock()
	if !started {
		return nil
	}

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		q.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Submit records a pending job and returns its id immediately.
func (q *JobQueue) Submit(payload domain.JobPayload) string {
	q.mu.Lock()
	id := q.newID()
	for _, exists := q.jobs[id]; exists; _, exists = q.jobs[id] {
		id = q.newID()
	}
	q.jobs[id] = &domain.EvaluationJob{
		ID:        id,
		Status:    domain.JobPending,
		Payload:   payload,
		CreatedAt: q.now(),
	}
	q.order = append(q.order, id)
	q.pending = append(q.pending, id)
	depth := len(q.pending)
	q.mu.Unlock()

	metrics.RecordJobSubmitted()
	metrics.UpdateQueueDepth(depth)

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return id
}

// Status returns a copy of the job, or false when the id is unknown or evicted.
func (q *JobQueue) Status(jobID string) (domain.EvaluationJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok {
		return domain.EvaluationJob{}, false
	}
	return *job, true
}

// Len returns the number of jobs waiting for the worker.
func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Processing returns how many jobs are currently in the processing state.
func (q *JobQueue) Processing() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, job := range q.jobs {
		if job.Status == domain.JobProcessing {
			n++
		}
	}
	return n
}

func (q *JobQueue) run(ctx context.Context) {
	defer close(q.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.shutdown:
			return
		default:
		}

		id, ok := q.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.shutdown:
				return
			case <-q.wake:
			}
			continue
		}
		q.process(ctx, id)
	}
}

// dequeue pops the next pending id and marks it processing.
func (q *JobQueue) dequeue() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pending) > 0 {
		id := q.pending[0]
		q.pending = q.pending[1:]
		job, ok := q.jobs[id]
		if !ok || !domain.CanTransition(job.Status, domain.JobProcessing) {
			continue
		}
		job.Status = domain.JobProcessing
		job.StartedAt = q.now()
		metrics.UpdateQueueDepth(len(q.pending))
		return id, true
	}
	metrics.UpdateQueueDepth(0)
	return "", false
}

func (q *JobQueue) process(ctx context.Context, id string) {
	q.mu.Lock()
	payload := q.jobs[id].Payload
	q.mu.Unlock()

	log := q.logger.With(logger.String("job_id", id), logger.String("submission_id", payload.SubmissionID))
	log.Info(ctx, "job started")

	start := time.Now()
	result, err := q.invoke(ctx, payload)
	metrics.ObserveJobDuration(time.Since(start).Seconds())

	status := domain.JobCompleted
	msg := ""
	switch {
	case err != nil:
		status = domain.JobFailed
		msg = err.Error()
		if msg == "" {
			msg = "job failed"
		}
	case result == nil:
		status = domain.JobFailed
		msg = "job produced no result"
	}

	q.mu.Lock()
	job := q.jobs[id]
	job.Status = status
	job.FinishedAt = q.now()
	if status == domain.JobCompleted {
		job.Result = result
	} else {
		job.Error = msg
	}
	evicted := q.evictLocked()
	q.mu.Unlock()

	metrics.RecordJobFinished(string(status))
	if evicted > 0 {
		metrics.RecordJobEvicted(evicted)
	}

	if status == domain.JobFailed {
		log.Warn(ctx, "job failed", logger.String("error", msg))
		return
	}
	log.Info(ctx, "job completed", logger.Duration("elapsed", time.Since(start)))
}

// invoke runs the handler and turns a panic into an error.
func (q *JobQueue) invoke(ctx context.Context, payload domain.JobPayload) (result *domain.EvaluationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	if q.handler == nil {
		return nil, errors.New("no job handler configured")
	}
	return q.handler(ctx, payload)
}

// evictLocked drops terminal jobs past the retention TTL, then the oldest
// terminal jobs while the map is above maxJobs. Caller holds q.mu.
func (q *JobQueue) evictLocked() int {
	cutoff := q.now().Add(-q.retention)
	removed := 0

	kept := q.order[:0]
	for _, id := range q.order {
		job := q.jobs[id]
		if job.Status.IsTerminal() && job.FinishedAt.Before(cutoff) {
			delete(q.jobs, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	q.order = kept

	if len(q.jobs) <= q.maxJobs {
		return removed
	}

	excess := len(q.jobs) - q.maxJobs
	kept = q.order[:0]
	for _, id := range q.order {
		if excess > 0 && q.jobs[id].Status.IsTerminal() {
			delete(q.jobs, id)
			removed++
			excess--
			continue
		}
		kept = append(kept, id)
	}
	q.order = kept
	return removed
}
