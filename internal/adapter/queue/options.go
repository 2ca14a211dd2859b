package queue

import (
	"time"

	"github-repo-judge/pkg/logger"
)

// Option applies a configuration option to the JobQueue.
type Option func(*JobQueue)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(q *JobQueue) {
		if now != nil {
			q.now = now
		}
	}
}

// WithIDGenerator replaces the default uuid generator.
func WithIDGenerator(gen func() string) Option {
	return func(q *JobQueue) {
		if gen != nil {
			q.newID = gen
		}
	}
}

// WithRetention sets how long terminal jobs stay pollable.
func WithRetention(d time.Duration) Option {
	return func(q *JobQueue) {
		if d > 0 {
			q.retention = d
		}
	}
}

// WithMaxJobs caps the number of retained jobs. Only terminal jobs are evicted
// to honour the cap, so the live count can exceed it while work is pending.
func WithMaxJobs(n int) Option {
	return func(q *JobQueue) {
		if n > 0 {
			q.maxJobs = n
		}
	}
}

// WithLogger sets a custom logger for the queue.
func WithLogger(l logger.Logger) Option {
	return func(q *JobQueue) {
		if l != nil {
			q.logger = l
		}
	}
}
