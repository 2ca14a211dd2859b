package domain

import (
	"fmt"
	"strings"
	"time"
)

// EvaluationRecord 是持久化的评审结果，按 submission 唯一。
// 重新评审覆盖旧记录，created_at 保留首次写入的时间。
type EvaluationRecord struct {
	SubmissionID string `json:"submission_id" gorm:"primaryKey;size:128"`
	RepoURL      string `json:"repo_url" gorm:"size:512"`
	TeamName     string `json:"team_name" gorm:"size:256"`

	QualityScore      int                 `json:"quality_score"`
	SatisfactionScore int                 `json:"satisfaction_score"`
	InnovationScore   int                 `json:"innovation_score"`
	TotalScore        int                 `json:"total_score" gorm:"index"`
	RequirementsMet   int                 `json:"requirements_met"`
	Feedback          string              `json:"feedback" gorm:"type:text"`
	Breakdown         []RequirementResult `json:"breakdown" gorm:"type:jsonb;serializer:json"`
	Placeholder       bool                `json:"placeholder"`

	FileTree       []TreeEntry `json:"file_tree" gorm:"type:jsonb;serializer:json"`
	Frameworks     []Framework `json:"frameworks" gorm:"type:jsonb;serializer:json"`
	BuildVerified  bool        `json:"build_verified"`
	DetailedReport string      `json:"detailed_report" gorm:"type:text"`

	EvaluatedAt time.Time `json:"evaluated_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName 指定表名
func (EvaluationRecord) TableName() string { return "evaluations" }

// NewEvaluationRecord flattens one finished evaluation. audit may be nil.
func NewEvaluationRecord(p JobPayload, snap *RepoSnapshot, v *Verdict, audit *ForgeAuditResult, at time.Time) *EvaluationRecord {
	rec := &EvaluationRecord{
		SubmissionID:      p.SubmissionID,
		RepoURL:           p.RepoURL,
		TeamName:          p.TeamName,
		QualityScore:      v.QualityScore,
		SatisfactionScore: v.SatisfactionScore,
		InnovationScore:   v.InnovationScore,
		TotalScore:        v.TotalScore,
		RequirementsMet:   v.RequirementsMet,
		Feedback:          v.Feedback,
		Breakdown:         v.Breakdown,
		Placeholder:       v.Placeholder,
		Frameworks:        []Framework{},
		EvaluatedAt:       at,
	}
	if snap != nil {
		rec.FileTree = snap.Tree
	}
	if audit != nil {
		rec.Frameworks = audit.Frameworks
		rec.BuildVerified = audit.Success && audit.BuildAttempted && audit.BuildSuccess
	}
	rec.DetailedReport = DetailedReport(p, snap, v, audit)
	return rec
}

// DetailedReport renders a markdown summary of one evaluation.
func DetailedReport(p JobPayload, snap *RepoSnapshot, v *Verdict, audit *ForgeAuditResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Evaluation: %s\n\n", p.SubmissionID)
	if p.TeamName != "" {
		fmt.Fprintf(&b, "- Team: %s\n", p.TeamName)
	}
	fmt.Fprintf(&b, "- Repository: %s\n", p.RepoURL)
	if p.Rubric.Title != "" {
		fmt.Fprintf(&b, "- Challenge: %s\n", p.Rubric.Title)
	}

	b.WriteString("\n## Scores\n\n")
	if v.Placeholder {
		b.WriteString("_Placeholder verdict: automatic scoring was unavailable._\n\n")
	}
	fmt.Fprintf(&b, "| Quality | Satisfaction | Innovation | Total |\n|---|---|---|---|\n| %d | %d | %d | %d |\n",
		v.QualityScore, v.SatisfactionScore, v.InnovationScore, v.TotalScore)
	fmt.Fprintf(&b, "\nRequirements met: %d/%d\n", v.RequirementsMet, len(p.Rubric.Requirements))

	if len(v.Breakdown) > 0 {
		b.WriteString("\n## Requirements\n\n")
		for _, r := range v.Breakdown {
			mark := " "
			if r.Met {
				mark = "x"
			}
			fmt.Fprintf(&b, "- [%s] %s", mark, r.Requirement)
			if r.Comment != "" {
				fmt.Fprintf(&b, ": %s", r.Comment)
			}
			b.WriteString("\n")
		}
	}

	if v.Feedback != "" {
		fmt.Fprintf(&b, "\n## Feedback\n\n%s\n", v.Feedback)
	}

	if snap != nil {
		fmt.Fprintf(&b, "\n## Repository\n\n- Files: %d (fetched %d, truncated %d)\n- Directories: %d\n",
			snap.Stats.TotalFiles, snap.Stats.FetchedFiles, snap.Stats.TruncatedFiles, snap.Stats.TotalDirs)
		if snap.Metadata.Language != "" {
			fmt.Fprintf(&b, "- Language: %s\n", snap.Metadata.Language)
		}
		if a := snap.Activity; a != nil && a.Commits > 0 {
			fmt.Fprintf(&b, "- Recent commits: %d", a.Commits)
			if a.ReadmeOnly {
				b.WriteString(" (README changes only)")
			}
			b.WriteString("\n")
		}
	}

	if audit != nil {
		b.WriteString("\n## Build verification\n\n")
		switch {
		case !audit.Success:
			fmt.Fprintf(&b, "Clone failed (%s): %s\n", audit.ErrorKind, audit.Error)
		default:
			fmt.Fprintf(&b, "- Project types: %s\n", strings.Join(audit.ProjectTypes, ", "))
			if names := audit.FrameworkNames(); len(names) > 0 {
				fmt.Fprintf(&b, "- Frameworks: %s\n", strings.Join(names, ", "))
			}
			if audit.BuildAttempted {
				fmt.Fprintf(&b, "- Build `%s`: %s\n", audit.BuildCommand, passFail(audit.BuildSuccess))
			}
			if len(audit.BuildLog) > 0 {
				fmt.Fprintf(&b, "\n```\n%s\n```\n", strings.Join(audit.BuildLog, "\n"))
			}
		}
	}
	return b.String()
}

func passFail(ok bool) string {
	if ok {
		return "passed"
	}
	return "failed"
}
