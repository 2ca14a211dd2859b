package service

import (
	"context"
	"sync"

	"github-repo-judge/internal/domain"
	"github-repo-judge/pkg/logger"
)

// BatchOutcome is the result of one payload of a batch, in input order.
type BatchOutcome struct {
	Payload domain.JobPayload        `json:"payload"`
	Result  *domain.EvaluationResult `json:"result,omitempty"`
	Error   string                   `json:"error,omitempty"`
}

type batchItem struct {
	index   int
	payload domain.JobPayload
}

// EvaluateBatch 用固定数量的 worker 并发评审多个提交。单个提交失败不影响其它提交；
// ctx 取消后尚未开始的提交记为失败。
func (s *EvaluationService) EvaluateBatch(ctx context.Context, payloads []domain.JobPayload, workers int) []BatchOutcome {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(payloads) {
		workers = len(payloads)
	}

	out := make([]BatchOutcome, len(payloads))
	jobs := make(chan batchItem, len(payloads))
	for i, p := range payloads {
		out[i].Payload = p
		jobs <- batchItem{index: i, payload: p}
	}
	close(jobs)

	s.logger.Info(ctx, "batch started",
		logger.Int("submissions", len(payloads)),
		logger.Int("workers", workers),
	)

	var wg sync.WaitGroup
	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go s.batchWorker(ctx, w, jobs, out, &wg)
	}
	wg.Wait()

	failed := 0
	for _, o := range out {
		if o.Error != "" {
			failed++
		}
	}
	s.logger.Info(ctx, "batch finished",
		logger.Int("submissions", len(payloads)),
		logger.Int("failed", failed),
	)
	return out
}

// batchWorker writes only to the out slots of the items it receives.
func (s *EvaluationService) batchWorker(ctx context.Context, id int, jobs <-chan batchItem, out []BatchOutcome, wg *sync.WaitGroup) {
	defer wg.Done()
	log := s.logger.With(logger.Int("worker", id))

	for item := range jobs {
		if err := ctx.Err(); err != nil {
			out[item.index].Error = err.Error()
			continue
		}
		res, err := s.Evaluate(ctx, item.payload)
		if err != nil {
			log.Warn(ctx, "submission failed",
				logger.String("submission_id", item.payload.SubmissionID),
				logger.Error(err),
			)
			out[item.index].Error = err.Error()
			continue
		}
		out[item.index].Result = res
	}
}
