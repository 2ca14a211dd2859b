package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github-repo-judge/internal/adapter/prompt"
	"github-repo-judge/internal/common"
	"github-repo-judge/internal/domain"
	"github-repo-judge/pkg/logger"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultModel = "gemini-2.5-flash-lite"

// generator is the part of *genai.GenerativeModel the scorer uses.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type Scorer struct {
	client *genai.Client
	model  generator
	logger logger.Logger

	retryDelay time.Duration
}

func NewScorer(ctx context.Context, apiKey, modelName string) (*Scorer, error) {
	if apiKey == "" {
		return nil, common.NewError(common.ErrCodeInvalidInput, "Gemini API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = DefaultModel
	}
	model := client.GenerativeModel(modelName)
	// 强制要求返回 JSON，降低解析错误的概率
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = genai.NewUserContent(genai.Text(prompt.SystemInstruction))
	model.SetTemperature(0.2)

	return &Scorer{
		client:     client,
		model:      model,
		logger:     logger.Get().Named("gemini"),
		retryDelay: 2 * time.Second,
	}, nil
}

// Score 调用 Gemini 给仓库打分。失败时调用方负责降级为占位结论。
func (s *Scorer) Score(ctx context.Context, rubric domain.Rubric, repoContext string) (*domain.Verdict, error) {
	text := prompt.Build(rubric, repoContext)

	var resp *genai.GenerateContentResponse
	start := time.Now()
	err := common.Do(ctx, func() error {
		var callErr error
		resp, callErr = s.model.GenerateContent(ctx, genai.Text(text))
		return callErr
	},
		common.WithMaxRetries(1),
		common.WithInitialDelay(s.retryDelay),
		common.WithRetryIf(func(err error) bool { return ctx.Err() == nil }),
	)
	if err != nil {
		return nil, common.WrapError(common.ErrCodeScoring, "AI 调用失败", err)
	}

	raw, err := responseText(resp)
	if err != nil {
		return nil, common.WrapError(common.ErrCodeScoring, "AI 返回内容异常", err)
	}

	verdict, err := prompt.ParseVerdict(raw, rubric)
	if err != nil {
		return nil, common.WrapError(common.ErrCodeScoring, "AI 返回格式错误", err)
	}
	s.logger.Info(ctx, "verdict received",
		logger.Int("total_score", verdict.TotalScore),
		logger.Duration("elapsed", time.Since(start)),
	)
	return verdict, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("AI 返回内容为空")
	}
	c := resp.Candidates[0]
	if c.Content == nil || len(c.Content.Parts) == 0 {
		return "", fmt.Errorf("AI 返回内容为空 (finish reason: %s)", c.FinishReason)
	}

	var b strings.Builder
	for _, p := range c.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("AI 返回格式错误")
	}
	return b.String(), nil
}

func (s *Scorer) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
