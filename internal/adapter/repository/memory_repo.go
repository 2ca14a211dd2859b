package repository

import (
	"context"
	"sort"
	"sync"

	"github-repo-judge/internal/common"
	"github-repo-judge/internal/domain"
)

// MemoryRepo keeps records in process memory, used when no DSN is configured.
type MemoryRepo struct {
	mu   sync.RWMutex
	recs map[string]domain.EvaluationRecord
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{recs: make(map[string]domain.EvaluationRecord)}
}

func (m *MemoryRepo) SaveEvaluation(_ context.Context, rec *domain.EvaluationRecord) error {
	if rec == nil || rec.SubmissionID == "" {
		return common.NewError(common.ErrCodeInvalidInput, "submission id is required")
	}
	m.mu.Lock()
	stored := *rec
	if prev, ok := m.recs[rec.SubmissionID]; ok {
		stored.CreatedAt = prev.CreatedAt
	}
	m.recs[rec.SubmissionID] = stored
	m.mu.Unlock()
	return nil
}

func (m *MemoryRepo) FindEvaluation(_ context.Context, submissionID string) (*domain.EvaluationRecord, error) {
	m.mu.RLock()
	rec, ok := m.recs[submissionID]
	m.mu.RUnlock()
	if !ok {
		return nil, common.NewError(common.ErrCodeNotFound, "评审结果不存在")
	}
	return &rec, nil
}

// TopEvaluations mirrors PostgresRepo.TopEvaluations, ties broken by id.
func (m *MemoryRepo) TopEvaluations(_ context.Context, limit int) ([]*domain.EvaluationRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.RLock()
	out := make([]*domain.EvaluationRecord, 0, len(m.recs))
	for _, r := range m.recs {
		r := r
		out = append(out, &r)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		return out[i].SubmissionID < out[j].SubmissionID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
