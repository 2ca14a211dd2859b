package domain

import "time"

// JobStatus is the lifecycle state of an EvaluationJob.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransition reports whether from -> to is a legal forward move.
// pending -> processing -> {completed, failed}; nothing goes backwards.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobPending:
		return to == JobProcessing
	case JobProcessing:
		return to == JobCompleted || to == JobFailed
	default:
		return false
	}
}

// Rubric is the judging context a submission is scored against.
type Rubric struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Requirements []string `json:"requirements"`
}

// JobPayload is the input of one queued evaluation.
type JobPayload struct {
	SubmissionID string `json:"submission_id"`
	RepoURL      string `json:"repo_url"`
	TeamName     string `json:"team_name,omitempty"`
	Rubric       Rubric `json:"rubric"`

	// VerifyBuild asks for a sandbox clone + build check alongside scoring.
	VerifyBuild bool `json:"verify_build"`
}

// EvaluationJob is one queued unit of evaluation work.
type EvaluationJob struct {
	ID         string            `json:"id"`
	Status     JobStatus         `json:"status"`
	Payload    JobPayload        `json:"payload"`
	Result     *EvaluationResult `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	StartedAt  time.Time         `json:"started_at,omitempty"`
	FinishedAt time.Time         `json:"finished_at,omitempty"`
}

// EvaluationResult is what a completed job carries back to the poller.
type EvaluationResult struct {
	SubmissionID string            `json:"submission_id"`
	Verdict      *Verdict          `json:"verdict"`
	Stats        RepoStats         `json:"stats"`
	Audit        *ForgeAuditResult `json:"audit,omitempty"`
}

// RequirementResult is the per-requirement line of a verdict.
type RequirementResult struct {
	Requirement string `json:"requirement"`
	Met         bool   `json:"met"`
	Comment     string `json:"comment"`
}

// Verdict is the structured output of the scoring collaborator.
type Verdict struct {
	QualityScore      int                 `json:"quality_score"`
	SatisfactionScore int                 `json:"satisfaction_score"`
	InnovationScore   int                 `json:"innovation_score"`
	TotalScore        int                 `json:"total_score"`
	RequirementsMet   int                 `json:"requirements_met"`
	Feedback          string              `json:"feedback"`
	Breakdown         []RequirementResult `json:"breakdown"`

	// Placeholder marks a verdict that was not produced by a scorer.
	Placeholder bool `json:"placeholder"`
}

// PlaceholderVerdict is used when the scorer is absent or failed.
func PlaceholderVerdict(reason string) *Verdict {
	return &Verdict{
		Feedback:    "[placeholder] automatic scoring unavailable: " + reason,
		Breakdown:   []RequirementResult{},
		Placeholder: true,
	}
}
