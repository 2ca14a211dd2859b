package port

import (
	"context"

	"github-repo-judge/internal/domain"
)

// Fetcher 负责从托管平台拉取仓库内容，生成有预算上限的评审上下文
// A nil snapshot means no evaluation is possible; the error says why.
type Fetcher interface {
	Fetch(ctx context.Context, repoURL string) (*domain.RepoSnapshot, error)
}

// Auditor 负责在沙箱里克隆仓库并做构建检查
type Auditor interface {
	Audit(ctx context.Context, repoURL, submissionID string) *domain.ForgeAuditResult
	// Cleanup is idempotent: an already absent sandbox is a success.
	Cleanup(submissionID string) bool
}

// Scorer (鉴定师): 把仓库上下文和评分标准交给 LLM，得到结构化结论
type Scorer interface {
	Score(ctx context.Context, rubric domain.Rubric, repoContext string) (*domain.Verdict, error)
}

// Repository (仓库管理员): 负责存储评审结果
type Repository interface {
	// SaveEvaluation replaces any prior record for the same submission.
	SaveEvaluation(ctx context.Context, record *domain.EvaluationRecord) error

	FindEvaluation(ctx context.Context, submissionID string) (*domain.EvaluationRecord, error)
}

// Leaderboard 按总分排序列出评审结果
type Leaderboard interface {
	TopEvaluations(ctx context.Context, limit int) ([]*domain.EvaluationRecord, error)
}

// Notifier (信使): 评审完成后推送通知
type Notifier interface {
	NotifyVerdict(ctx context.Context, payload domain.JobPayload, verdict *domain.Verdict) error
}

// JobQueue 是提交入口和状态轮询面
type JobQueue interface {
	Submit(payload domain.JobPayload) string
	Status(jobID string) (domain.EvaluationJob, bool)
}
