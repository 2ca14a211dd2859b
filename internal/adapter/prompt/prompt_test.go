package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-repo-judge/internal/domain"
)

var rubric = domain.Rubric{
	Title:        "Carbon tracker",
	Description:  "Build an app that tracks footprint.",
	Requirements: []string{"user accounts", "charts", "export CSV"},
}

func TestBuild(t *testing.T) {
	p := Build(rubric, "## Directory: (root)\n===== FILE: main.go (1 lines) =====")

	assert.Contains(t, p, "Title: Carbon tracker")
	assert.Contains(t, p, "1. user accounts\n2. charts\n3. export CSV\n")
	assert.Contains(t, p, "===== FILE: main.go")
	assert.Contains(t, p, "quality_score (0-100)")
	assert.Less(t, strings.Index(p, "# Requirements"), strings.Index(p, "# Repository"))

	empty := Build(domain.Rubric{}, "ctx")
	assert.Contains(t, empty, "(untitled)")
	assert.Contains(t, empty, "(none listed")
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, v *domain.Verdict)
	}{
		{
			name: "标准 JSON",
			raw:  `{"quality_score":80,"satisfaction_score":70,"innovation_score":60,"total_score":72,"requirements_met":2,"feedback":" nice ","breakdown":[{"requirement":"user accounts","met":true,"comment":"jwt"}]}`,
			check: func(t *testing.T, v *domain.Verdict) {
				assert.Equal(t, 72, v.TotalScore)
				assert.Equal(t, 2, v.RequirementsMet)
				assert.Equal(t, "nice", v.Feedback)
				require.Len(t, v.Breakdown, 1)
				assert.Equal(t, "jwt", v.Breakdown[0].Comment)
				assert.False(t, v.Placeholder)
			},
		},
		{
			name: "Markdown 包裹和前后废话",
			raw:  "Sure! Here is the verdict:\n```json\n{\"quality_score\": 50, \"feedback\": \"uses {braces} in text\"}\n```\nThanks {not json}",
			check: func(t *testing.T, v *domain.Verdict) {
				assert.Equal(t, 50, v.QualityScore)
				assert.Equal(t, "uses {braces} in text", v.Feedback)
				assert.Equal(t, 16, v.TotalScore, "mean of sub-scores when total is absent")
			},
		},
		{
			name: "分数越界被钳制",
			raw:  `{"quality_score":150,"satisfaction_score":-5,"innovation_score":100,"total_score":101,"requirements_met":9}`,
			check: func(t *testing.T, v *domain.Verdict) {
				assert.Equal(t, 100, v.QualityScore)
				assert.Equal(t, 0, v.SatisfactionScore)
				assert.Equal(t, 100, v.TotalScore)
				assert.Equal(t, 3, v.RequirementsMet, "capped at the number of requirements")
			},
		},
		{
			name: "从 breakdown 统计 requirements_met",
			raw:  `{"total_score":40,"breakdown":[{"requirement":"a","met":true},{"requirement":"b","met":false},{"requirement":"c","met":true}]}`,
			check: func(t *testing.T, v *domain.Verdict) {
				assert.Equal(t, 2, v.RequirementsMet)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseVerdict(tt.raw, rubric)
			require.NoError(t, err)
			require.NotNil(t, v.Breakdown)
			tt.check(t, v)
		})
	}
}

func TestParseVerdict_Errors(t *testing.T) {
	_, err := ParseVerdict("I cannot score this repository.", rubric)
	assert.Error(t, err)

	_, err = ParseVerdict(`{"quality_score": "high"}`, rubric)
	assert.Error(t, err)

	_, err = ParseVerdict(`{"quality_score": 1`, rubric)
	assert.Error(t, err)
}

func TestFirstObject(t *testing.T) {
	obj, ok := FirstObject(`x {"a":{"b":"}\"{"}} y {"c":1}`)
	require.True(t, ok)
	assert.Equal(t, `{"a":{"b":"}\"{"}}`, obj)
}
