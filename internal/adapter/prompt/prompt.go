// Package prompt renders the judging prompt and parses model replies into
// verdicts. It is shared by every LLM-backed scorer.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github-repo-judge/internal/domain"
)

// SystemInstruction frames the model as a hackathon judge.
const SystemInstruction = `You are a strict but fair hackathon judge. You read a team's source code and score it against the challenge rubric. Reply with a single JSON object and nothing else.`

// Build 构造评审 Prompt: 评分标准 + 仓库上下文 + 输出格式约束
func Build(rubric domain.Rubric, repoContext string) string {
	var b strings.Builder

	b.WriteString("# Challenge\n\n")
	title := rubric.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(&b, "Title: %s\n", title)
	if rubric.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", strings.TrimSpace(rubric.Description))
	}

	b.WriteString("\n# Requirements\n\n")
	if len(rubric.Requirements) == 0 {
		b.WriteString("(none listed; judge overall quality only)\n")
	}
	for i, r := range rubric.Requirements {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r)
	}

	b.WriteString("\n# Repository\n\n")
	b.WriteString(repoContext)
	if !strings.HasSuffix(repoContext, "\n") {
		b.WriteString("\n")
	}

	b.WriteString(`
# Output

Return JSON with exactly these fields:
- quality_score (0-100): code quality, structure, tests.
- satisfaction_score (0-100): how well the requirements are met.
- innovation_score (0-100): originality of the idea and approach.
- total_score (0-100): your overall score.
- requirements_met (integer): how many listed requirements are satisfied.
- feedback (string): a short paragraph addressed to the team.
- breakdown (array): one {"requirement", "met", "comment"} object per requirement, in order.

Do not wrap the JSON in Markdown.
`)
	return b.String()
}

type reply struct {
	QualityScore      int                        `json:"quality_score"`
	SatisfactionScore int                        `json:"satisfaction_score"`
	InnovationScore   int                        `json:"innovation_score"`
	TotalScore        *int                       `json:"total_score"`
	RequirementsMet   *int                       `json:"requirements_met"`
	Feedback          string                     `json:"feedback"`
	Breakdown         []domain.RequirementResult `json:"breakdown"`
}

// ParseVerdict extracts the first JSON object in raw and turns it into a
// verdict. Scores are clamped to 0-100; a missing total is the mean of the
// three sub-scores, and a missing requirements_met is counted from breakdown.
func ParseVerdict(raw string, rubric domain.Rubric) (*domain.Verdict, error) {
	obj, ok := FirstObject(raw)
	if !ok {
		return nil, fmt.Errorf("no JSON object in model output: %s", excerpt(raw))
	}

	var r reply
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return nil, fmt.Errorf("JSON 解析失败: %w | 原文: %s", err, excerpt(obj))
	}

	v := &domain.Verdict{
		QualityScore:      clamp(r.QualityScore, 0, 100),
		SatisfactionScore: clamp(r.SatisfactionScore, 0, 100),
		InnovationScore:   clamp(r.InnovationScore, 0, 100),
		Feedback:          strings.TrimSpace(r.Feedback),
		Breakdown:         r.Breakdown,
	}
	if v.Breakdown == nil {
		v.Breakdown = []domain.RequirementResult{}
	}

	if r.TotalScore != nil {
		v.TotalScore = clamp(*r.TotalScore, 0, 100)
	} else {
		v.TotalScore = (v.QualityScore + v.SatisfactionScore + v.InnovationScore) / 3
	}

	if r.RequirementsMet != nil {
		v.RequirementsMet = *r.RequirementsMet
	} else {
		for _, item := range v.Breakdown {
			if item.Met {
				v.RequirementsMet++
			}
		}
	}
	upper := len(rubric.Requirements)
	if upper == 0 {
		upper = len(v.Breakdown)
	}
	v.RequirementsMet = clamp(v.RequirementsMet, 0, upper)

	return v, nil
}

// FirstObject returns the first balanced {...} in s, honouring JSON string
// escapes so braces inside strings are ignored.
func FirstObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func excerpt(s string) string {
	const max = 200
	r := []rune(s)
	if len(r) > max {
		return string(r[:max]) + "..."
	}
	return s
}
