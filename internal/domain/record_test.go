package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewEvaluationRecord(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := JobPayload{
		SubmissionID: "sub-1",
		RepoURL:      "https://github.com/team/app",
		TeamName:     "Rocket",
		Rubric:       Rubric{Title: "Todo", Requirements: []string{"login", "share"}},
	}
	snap := &RepoSnapshot{
		Tree:  []TreeEntry{{Path: "main.go", Type: EntryFile}},
		Stats: RepoStats{TotalFiles: 1, FetchedFiles: 1},
	}
	v := &Verdict{
		QualityScore: 70, TotalScore: 66, RequirementsMet: 1, Feedback: "tidy",
		Breakdown: []RequirementResult{{Requirement: "login", Met: true, Comment: "oauth"}, {Requirement: "share"}},
	}
	audit := &ForgeAuditResult{
		Success:        true,
		Frameworks:     []Framework{{Name: "Gin", Category: CategoryBackend}},
		ProjectTypes:   []string{ProjectBackend},
		BuildAttempted: true,
		BuildSuccess:   true,
		BuildCommand:   "go build ./...",
		BuildLog:       []string{"$ go build ./...", "exit code: 0"},
	}

	rec := NewEvaluationRecord(p, snap, v, audit, at)

	assert.Equal(t, "sub-1", rec.SubmissionID)
	assert.Equal(t, 66, rec.TotalScore)
	assert.Equal(t, snap.Tree, rec.FileTree)
	assert.Equal(t, audit.Frameworks, rec.Frameworks)
	assert.True(t, rec.BuildVerified)
	assert.Equal(t, at, rec.EvaluatedAt)

	report := rec.DetailedReport
	assert.Contains(t, report, "# Evaluation: sub-1")
	assert.Contains(t, report, "Requirements met: 1/2")
	assert.Contains(t, report, "- [x] login: oauth")
	assert.Contains(t, report, "- [ ] share")
	assert.Contains(t, report, "- Frameworks: Gin")
	assert.Contains(t, report, "exit code: 0")
}

func TestNewEvaluationRecord_WithoutAudit(t *testing.T) {
	rec := NewEvaluationRecord(JobPayload{SubmissionID: "x"}, nil, PlaceholderVerdict("offline"), nil, time.Now())

	assert.True(t, rec.Placeholder)
	assert.False(t, rec.BuildVerified)
	assert.NotNil(t, rec.Frameworks)
	assert.Contains(t, rec.DetailedReport, "Placeholder verdict")
	assert.NotContains(t, rec.DetailedReport, "Build verification")
}

func TestDetailedReport_CloneFailure(t *testing.T) {
	report := DetailedReport(JobPayload{SubmissionID: "x"}, nil, &Verdict{}, &ForgeAuditResult{
		ErrorKind: CloneAuthRequired,
		Error:     "repository requires authentication",
	})
	assert.Contains(t, report, "Clone failed (auth_required)")
}

func TestDetailedReport_ReadmeOnlyActivity(t *testing.T) {
	snap := &RepoSnapshot{Activity: &CommitActivity{Commits: 3, Inspected: 3, ReadmeOnly: true}}
	report := DetailedReport(JobPayload{SubmissionID: "x"}, snap, &Verdict{}, nil)
	assert.Contains(t, report, "- Recent commits: 3 (README changes only)")
}
