package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github-repo-judge/internal/common"
	"github-repo-judge/internal/domain"
	"github-repo-judge/pkg/logger"
)

type Notifier struct {
	webhookURL string
	client     *http.Client
	retryDelay time.Duration
}

func NewNotifier(webhook string) *Notifier {
	if webhook == "" {
		logger.Get().Named("feishu").Warn(context.Background(), "飞书 Webhook 为空，推送功能将无法工作")
	}
	return &Notifier{
		webhookURL: webhook,
		client:     &http.Client{Timeout: 10 * time.Second},
		retryDelay: 500 * time.Millisecond,
	}
}

// NotifyVerdict 发送飞书卡片消息 (Schema 2.0)，宣布一次评审结果
func (n *Notifier) NotifyVerdict(ctx context.Context, p domain.JobPayload, v *domain.Verdict) error {
	if n.webhookURL == "" {
		return common.NewError(common.ErrCodeNotification, "Webhook URL 为空")
	}
	if v == nil {
		return common.NewError(common.ErrCodeInvalidInput, "verdict is nil")
	}

	// 1. 准备标题
	who := p.TeamName
	if who == "" {
		who = p.SubmissionID
	}
	title := fmt.Sprintf("🏁 评审完成: %s  %d/100", who, v.TotalScore)

	// 2. 构造 Schema 2.0 JSON 结构
	body, err := json.Marshal(buildCard(title, cardTemplate(v), verdictMarkdown(p, v), p.RepoURL))
	if err != nil {
		return common.WrapError(common.ErrCodeNotification, "构造卡片失败", err)
	}

	// 3. 发送请求 (带重试机制)
	err = common.Do(ctx, func() error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
		if reqErr != nil {
			return reqErr
		}
		req.Header.Set("Content-Type", "application/json")

		resp, postErr := n.client.Do(req)
		if postErr != nil {
			return postErr
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("飞书 API 报错: 状态码 %d", resp.StatusCode)
		}
		return nil
	},
		common.WithMaxRetries(3),
		common.WithInitialDelay(n.retryDelay),
	)
	if err != nil {
		return common.WrapError(common.ErrCodeNotification, "发送请求失败", err)
	}

	return nil
}

func cardTemplate(v *domain.Verdict) string {
	switch {
	case v.Placeholder:
		return "grey"
	case v.TotalScore >= 80:
		return "green"
	case v.TotalScore >= 60:
		return "blue"
	default:
		return "orange"
	}
}

func verdictMarkdown(p domain.JobPayload, v *domain.Verdict) string {
	var b strings.Builder
	if p.Rubric.Title != "" {
		fmt.Fprintf(&b, "**🎯 赛题:** %s\n", p.Rubric.Title)
	}
	fmt.Fprintf(&b, "**📊 质量:** %d  |  **满意度:** %d  |  **创新:** %d\n",
		v.QualityScore, v.SatisfactionScore, v.InnovationScore)
	fmt.Fprintf(&b, "**✅ 完成需求:** %d/%d\n", v.RequirementsMet, len(p.Rubric.Requirements))
	if v.Placeholder {
		b.WriteString("\n**⚠️ 自动评分不可用，结果为占位结论**\n")
	}
	if v.Feedback != "" {
		fmt.Fprintf(&b, "\n**🤖 AI评价:**\n%s\n", v.Feedback)
	}
	return b.String()
}

func buildCard(title, template, markdown, url string) map[string]interface{} {
	return map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"schema": "2.0",
			"config": map[string]interface{}{
				"update_multi": true,
			},
			"header": map[string]interface{}{
				"title": map[string]interface{}{
					"tag":     "plain_text",
					"content": title,
				},
				"template": template,
			},
			"body": map[string]interface{}{
				"direction": "vertical",
				"elements": []map[string]interface{}{
					{
						"tag":       "markdown",
						"content":   markdown,
						"text_size": "normal",
					},
					{
						"tag": "button",
						"text": map[string]interface{}{
							"tag":     "plain_text",
							"content": "🔗 查看源码",
						},
						"type": "primary",
						"behaviors": []map[string]interface{}{
							{
								"type":        "open_url",
								"default_url": url,
							},
						},
					},
				},
			},
		},
	}
}
