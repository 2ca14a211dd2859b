package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github-repo-judge/internal/domain"
	"github-repo-judge/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okResult(p domain.JobPayload) *domain.EvaluationResult {
	return &domain.EvaluationResult{SubmissionID: p.SubmissionID, Verdict: &domain.Verdict{TotalScore: 70}}
}

func newTestQueue(t *testing.T, h Handler, opts ...Option) *JobQueue {
	t.Helper()
	opts = append([]Option{WithLogger(logger.Nop())}, opts...)
	q := New(h, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	t.Cleanup(func() {
		_ = q.Shutdown(context.Background())
		cancel()
	})
	return q
}

func waitTerminal(t *testing.T, q *JobQueue, id string) domain.EvaluationJob {
	t.Helper()
	var job domain.EvaluationJob
	require.Eventually(t, func() bool {
		var ok bool
		job, ok = q.Status(id)
		return ok && job.Status.IsTerminal()
	}, 2*time.Second, 5*time.Millisecond, "job %s never finished", id)
	return job
}

func TestSubmit_ReturnsIDImmediately(t *testing.T) {
	release := make(chan struct{})
	q := newTestQueue(t, func(ctx context.Context, p domain.JobPayload) (*domain.EvaluationResult, error) {
		<-release
		return okResult(p), nil
	})

	first := q.Submit(domain.JobPayload{SubmissionID: "s1"})
	second := q.Submit(domain.JobPayload{SubmissionID: "s2"})
	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)

	job, ok := q.Status(second)
	require.True(t, ok)
	assert.Equal(t, domain.JobPending, job.Status)
	assert.False(t, job.CreatedAt.IsZero())

	close(release)
	waitTerminal(t, q, first)
	waitTerminal(t, q, second)
}

func TestStatus_UnknownID(t *testing.T) {
	q := New(nil, WithLogger(logger.Nop()))
	_, ok := q.Status("nope")
	assert.False(t, ok)
}

func TestEveryJobReachesTerminalState(t *testing.T) {
	q := newTestQueue(t, func(ctx context.Context, p domain.JobPayload) (*domain.EvaluationResult, error) {
		if p.SubmissionID == "bad" {
			return nil, errors.New("boom")
		}
		return okResult(p), nil
	})

	var ids []string
	for i := 0; i < 20; i++ {
		sub := fmt.Sprintf("s%d", i)
		if i%4 == 0 {
			sub = "bad"
		}
		ids = append(ids, q.Submit(domain.JobPayload{SubmissionID: sub}))
	}

	for _, id := range ids {
		job := waitTerminal(t, q, id)
		assert.NotEqual(t, domain.JobProcessing, job.Status)
	}
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.Processing())
}

func TestAtMostOneJobProcessing(t *testing.T) {
	var active, peak int32
	var q *JobQueue
	var observed int32

	q = newTestQueue(t, func(ctx context.Context, p domain.JobPayload) (*domain.EvaluationResult, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		if q.Processing() > 1 {
			atomic.StoreInt32(&observed, 1)
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return okResult(p), nil
	})

	var wg sync.WaitGroup
	ids := make(chan string, 30)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids <- q.Submit(domain.JobPayload{SubmissionID: fmt.Sprintf("s%d", i)})
		}(i)
	}
	wg.Wait()
	close(ids)

	for id := range ids {
		waitTerminal(t, q, id)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
	assert.Equal(t, int32(0), atomic.LoadInt32(&observed))
}

func TestJobsRunInSubmissionOrder(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	q := newTestQueue(t, func(ctx context.Context, p domain.JobPayload) (*domain.EvaluationResult, error) {
		mu.Lock()
		seen = append(seen, p.SubmissionID)
		mu.Unlock()
		return okResult(p), nil
	})

	var last string
	for i := 0; i < 10; i++ {
		last = q.Submit(domain.JobPayload{SubmissionID: fmt.Sprintf("s%d", i)})
	}
	waitTerminal(t, q, last)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9"}, seen)
}

func TestFailedJobDoesNotStopQueue(t *testing.T) {
	q := newTestQueue(t, func(ctx context.Context, p domain.JobPayload) (*domain.EvaluationResult, error) {
		if p.RepoURL == "https://github.com/owner/missing" {
			return nil, errors.New("repository not found")
		}
		return okResult(p), nil
	})

	a := q.Submit(domain.JobPayload{SubmissionID: "a", RepoURL: "https://github.com/owner/repo"})
	b := q.Submit(domain.JobPayload{SubmissionID: "b", RepoURL: "https://github.com/owner/missing"})

	jobA := waitTerminal(t, q, a)
	assert.Equal(t, domain.JobCompleted, jobA.Status)
	require.NotNil(t, jobA.Result)

	jobB := waitTerminal(t, q, b)
	assert.Equal(t, domain.JobFailed, jobB.Status)
	assert.NotEmpty(t, jobB.Error)
	assert.Nil(t, jobB.Result)

	c := q.Submit(domain.JobPayload{SubmissionID: "c", RepoURL: "https://github.com/owner/other"})
	jobC := waitTerminal(t, q, c)
	assert.Equal(t, domain.JobCompleted, jobC.Status)
}

func TestPanicBecomesFailedJob(t *testing.T) {
	q := newTestQueue(t, func(ctx context.Context, p domain.JobPayload) (*domain.EvaluationResult, error) {
		if p.SubmissionID == "explode" {
			panic("nil map write")
		}
		return okResult(p), nil
	})

	bad := q.Submit(domain.JobPayload{SubmissionID: "explode"})
	good := q.Submit(domain.JobPayload{SubmissionID: "fine"})

	job := waitTerminal(t, q, bad)
	assert.Equal(t, domain.JobFailed, job.Status)
	assert.Contains(t, job.Error, "nil map write")

	assert.Equal(t, domain.JobCompleted, waitTerminal(t, q, good).Status)
}

func TestNilResultIsFailure(t *testing.T) {
	q := newTestQueue(t, func(ctx context.Context, p domain.JobPayload) (*domain.EvaluationResult, error) {
		return nil, nil
	})

	job := waitTerminal(t, q, q.Submit(domain.JobPayload{SubmissionID: "s"}))
	assert.Equal(t, domain.JobFailed, job.Status)
	assert.NotEmpty(t, job.Error)
}

func TestStatusReturnsCopy(t *testing.T) {
	q := newTestQueue(t, func(ctx context.Context, p domain.JobPayload) (*domain.EvaluationResult, error) {
		return okResult(p), nil
	})

	id := q.Submit(domain.JobPayload{SubmissionID: "s"})
	job := waitTerminal(t, q, id)
	job.Status = domain.JobPending
	job.Error = "tampered"

	again, ok := q.Status(id)
	require.True(t, ok)
	assert.Equal(t, domain.JobCompleted, again.Status)
	assert.Empty(t, again.Error)
}

func TestSubmitBeforeStart(t *testing.T) {
	q := New(func(ctx context.Context, p domain.JobPayload) (*domain.EvaluationResult, error) {
		return okResult(p), nil
	}, WithLogger(logger.Nop()))

	id := q.Submit(domain.JobPayload{SubmissionID: "early"})
	assert.Equal(t, 1, q.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	q.Start(ctx)

	assert.Equal(t, domain.JobCompleted, waitTerminal(t, q, id).Status)
	require.NoError(t, q.Shutdown(context.Background()))
	assert.ErrorIs(t, q.Shutdown(context.Background()), ErrStopped)
}

func TestInjectedClockAndIDs(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	q := New(nil,
		WithLogger(logger.Nop()),
		WithClock(func() time.Time { return fixed }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("job-%d", n)
		}),
	)

	id := q.Submit(domain.JobPayload{})
	assert.Equal(t, "job-1", id)
	job, _ := q.Status(id)
	assert.Equal(t, fixed, job.CreatedAt)
}

func TestDuplicateGeneratedIDIsRedrawn(t *testing.T) {
	ids := []string{"dup", "dup", "fresh"}
	i := 0
	q := New(nil, WithLogger(logger.Nop()), WithIDGenerator(func() string {
		id := ids[i]
		i++
		return id
	}))

	assert.Equal(t, "dup", q.Submit(domain.JobPayload{}))
	assert.Equal(t, "fresh", q.Submit(domain.JobPayload{}))
}

func TestRetentionEvictsOldTerminalJobs(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	q := newTestQueue(t, func(ctx context.Context, p domain.JobPayload) (*domain.EvaluationResult, error) {
		return okResult(p), nil
	}, WithClock(clock), WithRetention(time.Hour))

	old := q.Submit(domain.JobPayload{SubmissionID: "old"})
	waitTerminal(t, q, old)

	advance(2 * time.Hour)
	fresh := q.Submit(domain.JobPayload{SubmissionID: "fresh"})
	waitTerminal(t, q, fresh)

	_, ok := q.Status(old)
	assert.False(t, ok, "expired job should be evicted")
	_, ok = q.Status(fresh)
	assert.True(t, ok)
}

func TestMaxJobsNeverEvictsLiveJobs(t *testing.T) {
	release := make(chan struct{})
	q := newTestQueue(t, func(ctx context.Context, p domain.JobPayload) (*domain.EvaluationResult, error) {
		if p.SubmissionID == "slow" {
			<-release
		}
		return okResult(p), nil
	}, WithMaxJobs(2))

	first := q.Submit(domain.JobPayload{SubmissionID: "first"})
	second := q.Submit(domain.JobPayload{SubmissionID: "second"})
	waitTerminal(t, q, second)

	slow := q.Submit(domain.JobPayload{SubmissionID: "slow"})
	waiting := q.Submit(domain.JobPayload{SubmissionID: "waiting"})

	require.Eventually(t, func() bool {
		job, _ := q.Status(slow)
		return job.Status == domain.JobProcessing
	}, time.Second, 5*time.Millisecond)

	_, ok := q.Status(waiting)
	assert.True(t, ok)

	close(release)
	waitTerminal(t, q, waiting)

	_, ok = q.Status(first)
	assert.False(t, ok, "oldest terminal job should go first")
	_, ok = q.Status(waiting)
	assert.True(t, ok)
}
