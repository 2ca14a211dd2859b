// Package openai scores submissions through any OpenAI-compatible chat
// completions endpoint.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github-repo-judge/internal/adapter/prompt"
	"github-repo-judge/internal/common"
	"github-repo-judge/internal/domain"
	"github-repo-judge/pkg/logger"

	openai "github.com/sashabaranov/go-openai"
)

const DefaultModel = "gpt-4o-mini"

type Scorer struct {
	client *openai.Client
	model  string
	logger logger.Logger

	retryDelay time.Duration
}

// NewScorer builds a scorer. An empty baseURL targets api.openai.com.
func NewScorer(apiKey, baseURL, model string) (*Scorer, error) {
	if apiKey == "" {
		return nil, common.NewError(common.ErrCodeInvalidInput, "OpenAI API key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	if model == "" {
		model = DefaultModel
	}
	return &Scorer{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		logger:     logger.Get().Named("openai"),
		retryDelay: 2 * time.Second,
	}, nil
}

func (s *Scorer) Score(ctx context.Context, rubric domain.Rubric, repoContext string) (*domain.Verdict, error) {
	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.SystemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: prompt.Build(rubric, repoContext)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.2,
	}

	var resp openai.ChatCompletionResponse
	start := time.Now()
	err := common.Do(ctx, func() error {
		var callErr error
		resp, callErr = s.client.CreateChatCompletion(ctx, req)
		return callErr
	},
		common.WithMaxRetries(1),
		common.WithInitialDelay(s.retryDelay),
		common.WithRetryIf(isRetryable),
	)
	if err != nil {
		return nil, common.WrapError(common.ErrCodeScoring, "AI 调用失败", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, common.NewError(common.ErrCodeScoring, "AI 返回内容为空")
	}

	verdict, err := prompt.ParseVerdict(resp.Choices[0].Message.Content, rubric)
	if err != nil {
		return nil, common.WrapError(common.ErrCodeScoring, "AI 返回格式错误", err)
	}
	s.logger.Info(ctx, "verdict received",
		logger.String("model", s.model),
		logger.Int("total_score", verdict.TotalScore),
		logger.Int("prompt_tokens", resp.Usage.PromptTokens),
		logger.Duration("elapsed", time.Since(start)),
	)
	return verdict, nil
}

// isRetryable retries rate limits, server errors and transport failures.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}
