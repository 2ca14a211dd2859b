package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github-repo-judge/internal/common"
	"github-repo-judge/internal/domain"
	"github-repo-judge/internal/port"
	"github-repo-judge/pkg/logger"
	"github-repo-judge/pkg/metrics"
)

// DefaultJobTimeout bounds one evaluation end to end.
const DefaultJobTimeout = 15 * time.Minute

// EvaluationService 串起一次评审: 拉取 -> (沙箱审计) -> 打分 -> 存储 -> 通知
type EvaluationService struct {
	fetcher   port.Fetcher
	scorer    port.Scorer
	repoStore port.Repository
	auditor   port.Auditor
	notifier  port.Notifier

	jobTimeout time.Duration
	now        func() time.Time
	logger     logger.Logger
}

// Option configures an EvaluationService.
type Option func(*EvaluationService)

// WithAuditor enables sandbox audits for payloads that ask for them.
func WithAuditor(a port.Auditor) Option {
	return func(s *EvaluationService) { s.auditor = a }
}

func WithNotifier(n port.Notifier) Option {
	return func(s *EvaluationService) { s.notifier = n }
}

func WithJobTimeout(d time.Duration) Option {
	return func(s *EvaluationService) {
		if d > 0 {
			s.jobTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *EvaluationService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *EvaluationService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewEvaluationService 创建评审服务。scorer 可以为 nil，此时总是产出占位结论。
func NewEvaluationService(fetcher port.Fetcher, scorer port.Scorer, repoStore port.Repository, opts ...Option) *EvaluationService {
	s := &EvaluationService{
		fetcher:    fetcher,
		scorer:     scorer,
		repoStore:  repoStore,
		jobTimeout: DefaultJobTimeout,
		now:        time.Now,
		logger:     logger.Get().Named("evaluation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate runs one submission through the pipeline. It is the queue's job
// body: a returned error fails the job, a result completes it.
func (s *EvaluationService) Evaluate(ctx context.Context, p domain.JobPayload) (*domain.EvaluationResult, error) {
	if strings.TrimSpace(p.SubmissionID) == "" {
		return nil, common.NewError(common.ErrCodeInvalidInput, "submission id is required")
	}
	if s.fetcher == nil {
		return nil, common.NewError(common.ErrCodeInternal, "no fetcher configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()
	log := s.logger.With(logger.String("submission_id", p.SubmissionID))
	start := s.now()

	// 1. 拉取仓库内容
	snap, err := s.fetcher.Fetch(ctx, p.RepoURL)
	if err != nil {
		log.Warn(ctx, "fetch failed", logger.String("repo", p.RepoURL), logger.Error(err))
		return nil, err
	}
	if snap == nil {
		return nil, common.NewError(common.ErrCodeGitHubAPI, "fetcher returned no snapshot")
	}
	log.Info(ctx, "repository fetched",
		logger.String("repo", snap.Ref.FullName()),
		logger.Int("files", snap.Stats.FetchedFiles),
		logger.Int("chars", snap.Stats.TotalChars),
		logger.Bool("walk_fallback", snap.WalkFallback),
	)

	// 2. 沙箱审计 (可选)，打分之后再清理
	var audit *domain.ForgeAuditResult
	if p.VerifyBuild && s.auditor != nil {
		audit = s.auditor.Audit(ctx, p.RepoURL, p.SubmissionID)
		// a busy sandbox belongs to the audit that is still running
		if audit.ErrorKind != domain.CloneBusy {
			defer func() {
				if !s.auditor.Cleanup(p.SubmissionID) {
					log.Warn(ctx, "sandbox cleanup failed")
				}
			}()
		}
		if !audit.Success {
			log.Warn(ctx, "audit unsuccessful",
				logger.String("kind", string(audit.ErrorKind)),
				logger.String("error", audit.Error),
			)
		}
	}

	// 3. 打分，失败降级为占位结论
	verdict := s.score(ctx, log, p.Rubric, snap.Context+AuditContext(audit))

	// 4. 存储
	if s.repoStore != nil {
		rec := domain.NewEvaluationRecord(p, snap, verdict, audit, s.now())
		if err := s.repoStore.SaveEvaluation(ctx, rec); err != nil {
			log.Error(ctx, "persist failed", logger.Error(err))
			return nil, err
		}
	}

	// 5. 通知 (失败不影响任务结果)
	if s.notifier != nil {
		if err := s.notifier.NotifyVerdict(ctx, p, verdict); err != nil {
			log.Warn(ctx, "notify failed", logger.Error(err))
		}
	}

	log.Info(ctx, "evaluation finished",
		logger.Int("total_score", verdict.TotalScore),
		logger.Bool("placeholder", verdict.Placeholder),
		logger.Duration("elapsed", s.now().Sub(start)),
	)
	return &domain.EvaluationResult{
		SubmissionID: p.SubmissionID,
		Verdict:      verdict,
		Stats:        snap.Stats,
		Audit:        audit,
	}, nil
}

func (s *EvaluationService) score(ctx context.Context, log logger.Logger, rubric domain.Rubric, repoContext string) *domain.Verdict {
	if s.scorer == nil {
		metrics.RecordPlaceholderVerdict()
		return domain.PlaceholderVerdict("no scorer configured")
	}
	v, err := s.scorer.Score(ctx, rubric, repoContext)
	if err != nil || v == nil {
		if err == nil {
			err = fmt.Errorf("scorer returned no verdict")
		}
		log.Warn(ctx, "scoring failed, using placeholder", logger.Error(err))
		metrics.RecordPlaceholderVerdict()
		return domain.PlaceholderVerdict(common.MessageOf(err))
	}
	return v
}

// AuditContext renders the sandbox findings as an extra context section for
// the scorer. A nil audit renders nothing.
func AuditContext(a *domain.ForgeAuditResult) string {
	if a == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n## Build verification\n")
	if !a.Success {
		fmt.Fprintf(&b, "Clone failed: %s\n", a.Error)
		return b.String()
	}
	fmt.Fprintf(&b, "Project types: %s\n", strings.Join(a.ProjectTypes, ", "))
	if names := a.FrameworkNames(); len(names) > 0 {
		fmt.Fprintf(&b, "Frameworks: %s\n", strings.Join(names, ", "))
	}
	if a.Stats != nil {
		fmt.Fprintf(&b, "Files: %d, README: %t, tests: %t, CI: %t, Docker: %t\n",
			a.Stats.TotalFiles, a.Stats.HasReadme, a.Stats.HasTests, a.Stats.HasCI, a.Stats.HasDocker)
	}
	if a.BuildAttempted {
		result := "failed"
		if a.BuildSuccess {
			result = "passed"
		}
		fmt.Fprintf(&b, "Build `%s`: %s\n", a.BuildCommand, result)
		for _, l := range a.BuildLog {
			b.WriteString("    " + l + "\n")
		}
	}
	return b.String()
}
