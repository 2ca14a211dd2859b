package main

import (
	"context"
	"fmt"
	"io"

	"github-repo-judge/internal/adapter/feishu"
	"github-repo-judge/internal/adapter/forge"
	"github-repo-judge/internal/adapter/gemini"
	"github-repo-judge/internal/adapter/github"
	"github-repo-judge/internal/adapter/openai"
	"github-repo-judge/internal/adapter/repository"
	"github-repo-judge/internal/config"
	"github-repo-judge/internal/port"
	"github-repo-judge/internal/service"
	"github-repo-judge/pkg/logger"
)

// app 持有一次进程运行所需的全部组件
type app struct {
	cfg     *config.Config
	fetcher *github.Fetcher
	forge   *forge.Forge
	service *service.EvaluationService
	repo    port.Repository
	closers []io.Closer
	logger  logger.Logger
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn(context.Background(), "close failed", logger.Error(err))
		}
	}
}

func newFetcher(cfg *config.Config) *github.Fetcher {
	return github.NewFetcher(cfg.GitHubToken,
		github.WithMaxFiles(cfg.FetchMaxFiles),
		github.WithMaxTotalChars(cfg.FetchMaxTotalChars),
		github.WithMaxFileChars(cfg.FetchMaxFileChars),
		github.WithMaxWalkCalls(cfg.FetchMaxWalkCalls),
		github.WithRequestTimeout(cfg.FetchRequestTimeout),
		github.WithCommitChecks(cfg.FetchCommitChecks),
	)
}

// newForge returns nil when no sandbox root is configured.
func newForge(cfg *config.Config) (*forge.Forge, error) {
	if cfg.SandboxRoot == "" {
		return nil, nil
	}
	return forge.New(cfg.SandboxRoot,
		forge.WithCloneTimeout(cfg.CloneTimeout),
		forge.WithBuildTimeout(cfg.BuildTimeout),
		forge.WithBuild(cfg.SandboxBuild),
	)
}

// newScorer 按配置选择 LLM 提供方；返回 nil 表示使用占位结论
func newScorer(ctx context.Context, cfg *config.Config) (port.Scorer, io.Closer, error) {
	switch cfg.Scorer {
	case config.ScorerGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, nil, nil
		}
		s, err := gemini.NewScorer(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, fmt.Errorf("AI 初始化失败: %w", err)
		}
		return s, s, nil
	case config.ScorerOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, nil, nil
		}
		s, err := openai.NewScorer(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		if err != nil {
			return nil, nil, fmt.Errorf("AI 初始化失败: %w", err)
		}
		return s, nil, nil
	default:
		return nil, nil, nil
	}
}

// newRepository 有 DSN 时使用 Postgres，否则保存在内存里
func newRepository(cfg *config.Config) (port.Repository, io.Closer, error) {
	if cfg.DatabaseDSN == "" {
		return repository.NewMemoryRepo(), nil, nil
	}
	r, err := repository.NewPostgresRepo(cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("DB 初始化失败: %w", err)
	}
	return r, r, nil
}

func newNotifier(cfg *config.Config) port.Notifier {
	if cfg.FeishuWebhook == "" {
		return nil
	}
	return feishu.NewNotifier(cfg.FeishuWebhook)
}

// buildApp wires every component from cfg.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, logger: logger.Get().Named("app")}

	a.fetcher = newFetcher(cfg)

	fg, err := newForge(cfg)
	if err != nil {
		return nil, err
	}
	a.forge = fg

	scorer, closer, err := newScorer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	if scorer == nil {
		a.logger.Warn(ctx, "no scorer configured, verdicts will be placeholders",
			logger.String("scorer", cfg.Scorer))
	}

	repo, closer, err := newRepository(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	a.repo = repo

	opts := []service.Option{service.WithJobTimeout(cfg.JobTimeout)}
	if fg != nil {
		opts = append(opts, service.WithAuditor(fg))
	}
	if n := newNotifier(cfg); n != nil {
		opts = append(opts, service.WithNotifier(n))
	}
	a.service = service.NewEvaluationService(a.fetcher, scorer, repo, opts...)
	return a, nil
}
