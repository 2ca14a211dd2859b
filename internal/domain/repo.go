package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// RepoRef identifies a hosted repository.
type RepoRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// FullName returns "owner/name".
func (r RepoRef) FullName() string {
	return r.Owner + "/" + r.Name
}

// URL returns the canonical web URL.
func (r RepoRef) URL() string {
	return "https://github.com/" + r.FullName()
}

// CloneURL returns the https clone URL.
func (r RepoRef) CloneURL() string {
	return r.URL() + ".git"
}

var ErrInvalidRepoURL = errors.New("invalid repository url")

// ParseRepoURL recovers owner/name from the URL forms users paste:
//
//	https://github.com/owner/repo
//	https://github.com/owner/repo.git/
//	https://github.com/owner/repo/tree/main/src
//	github.com/owner/repo/blob/main/README.md
//	git@github.com:owner/repo.git
//
// Anything after owner/name is dropped, so ParseRepoURL(ref.URL()) == ref.
func ParseRepoURL(raw string) (RepoRef, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return RepoRef{}, fmt.Errorf("%w: empty", ErrInvalidRepoURL)
	}

	if strings.HasPrefix(s, "git@") {
		// git@host:owner/repo.git
		idx := strings.Index(s, ":")
		if idx < 0 {
			return RepoRef{}, fmt.Errorf("%w: %s", ErrInvalidRepoURL, raw)
		}
		s = "https://" + s[len("git@"):idx] + "/" + s[idx+1:]
	} else if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return RepoRef{}, fmt.Errorf("%w: %s", ErrInvalidRepoURL, raw)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return RepoRef{}, fmt.Errorf("%w: missing owner or name in %s", ErrInvalidRepoURL, raw)
	}

	owner := parts[0]
	name := strings.TrimSuffix(parts[1], ".git")
	if owner == "" || name == "" {
		return RepoRef{}, fmt.Errorf("%w: missing owner or name in %s", ErrInvalidRepoURL, raw)
	}
	return RepoRef{Owner: owner, Name: name}, nil
}

// TreeEntry is one path of the repository listing.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // "file" or "dir"
	Size int64  `json:"size,omitempty"`
}

const (
	EntryFile = "file"
	EntryDir  = "dir"
)

// RepoFileEntry is a download candidate produced by the tree walk.
type RepoFileEntry struct {
	Path    string
	Name    string
	Size    int64
	Tier    int
	Locator string
}

// FetchedFileContent is one downloaded (possibly truncated) file.
// Truncated == (original length > per-file ceiling).
type FetchedFileContent struct {
	Path         string `json:"path"`
	Content      string `json:"content"`
	Truncated    bool   `json:"truncated"`
	OriginalSize int    `json:"original_size"`
	Lines        int    `json:"lines"`
}

// RepoStats summarises a snapshot.
type RepoStats struct {
	TotalFiles      int            `json:"total_files"`
	TotalDirs       int            `json:"total_dirs"`
	FetchedFiles    int            `json:"fetched_files"`
	TotalChars      int            `json:"total_chars"`
	TruncatedFiles  int            `json:"truncated_files"`
	ExtensionCounts map[string]int `json:"extension_counts"`
	Directories     []string       `json:"directories"`
}

// RepoMetadata is the best-effort repository information.
type RepoMetadata struct {
	Owner         string    `json:"owner"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	DefaultBranch string    `json:"default_branch"`
	Language      string    `json:"language"`
	Stars         int       `json:"stars"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Contributors  []string  `json:"contributors"`
}

// CommitActivity summarises the most recent commits on the default branch.
// ReadmeOnly is set only when every inspected commit touched README files
// and nothing else.
type CommitActivity struct {
	Commits        int       `json:"commits"`
	Inspected      int       `json:"inspected"`
	ReadmeOnly     bool      `json:"readme_only"`
	LatestCommitAt time.Time `json:"latest_commit_at"`
}

// RepoSnapshot is the fetcher's output. The summed length of Files
// never exceeds the configured character budget.
type RepoSnapshot struct {
	Ref      RepoRef              `json:"ref"`
	Tree     []TreeEntry          `json:"tree"`
	Files    []FetchedFileContent `json:"files"`
	Stats    RepoStats            `json:"stats"`
	Metadata RepoMetadata         `json:"metadata"`
	Context  string               `json:"-"`

	// Activity is nil when commit inspection is disabled or unavailable.
	Activity *CommitActivity `json:"activity,omitempty"`

	WalkFallback bool `json:"walk_fallback"`
	APICalls     int  `json:"api_calls"`
}
