package forge

import (
	"fmt"
	"strings"
	"time"

	"github-repo-judge/internal/domain"
)

// Checked in order; auth wins over not-found because hosts often print both.
var clonePatterns = []struct {
	kind     domain.CloneErrorKind
	patterns []string
}{
	{domain.CloneAuthRequired, []string{
		"authentication failed",
		"could not read username",
		"could not read password",
		"terminal prompts disabled",
		"invalid username or password",
		"permission denied (publickey)",
		"access denied",
		"returned error: 401",
		"returned error: 403",
	}},
	{domain.CloneNotFound, []string{
		"repository not found",
		"does not exist",
		"not found",
		"returned error: 404",
	}},
	{domain.CloneTimeout, []string{
		"timed out",
		"timeout",
	}},
}

// ClassifyCloneError maps raw git stderr to a clone failure kind. Text that
// matches nothing known is a generic clone failure.
func ClassifyCloneError(stderr string) domain.CloneErrorKind {
	lower := strings.ToLower(stderr)
	for _, group := range clonePatterns {
		for _, p := range group.patterns {
			if strings.Contains(lower, p) {
				return group.kind
			}
		}
	}
	return domain.CloneFailed
}

// cloneMessage is the user-facing text for a failed clone.
func cloneMessage(kind domain.CloneErrorKind, stderr string, timeout time.Duration) string {
	switch kind {
	case domain.CloneNotFound:
		return "repository not found: it does not exist, was deleted, or the URL is wrong"
	case domain.CloneAuthRequired:
		return "repository requires authentication: it is private or access is restricted"
	case domain.CloneTimeout:
		return fmt.Sprintf("clone timed out after %s", timeout)
	default:
		if line := lastLine(stderr); line != "" {
			return "clone failed: " + line
		}
		return "clone failed"
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
