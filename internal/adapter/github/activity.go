package github

import (
	"context"
	"path"
	"strings"

	"github.com/google/go-github/v53/github"

	"github-repo-judge/internal/domain"
	"github-repo-judge/pkg/logger"
)

// WithCommitChecks inspects the n most recent commits for README-only
// submissions. 0 disables the check.
func WithCommitChecks(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.commitChecks = n
		}
	}
}

var readmeNames = map[string]bool{
	"readme":          true,
	"readme.md":       true,
	"readme.txt":      true,
	"readme.rst":      true,
	"readme.markdown": true,
	"readme.mdown":    true,
	"readme.mkdn":     true,
}

// isReadmeFile 判断文件名是否为 README，任意目录层级都算
func isReadmeFile(filename string) bool {
	return readmeNames[strings.ToLower(path.Base(filename))]
}

// activity lists recent commits and inspects them until one changes a
// non-README file. A commit whose details cannot be fetched counts as
// unknown, which rules out ReadmeOnly.
func (f *Fetcher) activity(ctx context.Context, ref domain.RepoRef, branch string, calls *int32) (*domain.CommitActivity, error) {
	var commits []*github.RepositoryCommit
	opts := &github.CommitsListOptions{
		SHA:         branch,
		ListOptions: github.ListOptions{PerPage: f.commitChecks},
	}
	err := f.call(ctx, "commits", calls, func(ctx context.Context) error {
		var apiErr error
		commits, _, apiErr = f.client.Repositories.ListCommits(ctx, ref.Owner, ref.Name, opts)
		return apiErr
	})
	if err != nil {
		return nil, err
	}
	if len(commits) > f.commitChecks {
		commits = commits[:f.commitChecks]
	}

	act := &domain.CommitActivity{Commits: len(commits)}
	if len(commits) == 0 {
		return act, nil
	}
	act.LatestCommitAt = commits[0].GetCommit().GetCommitter().GetDate().Time

	readmeOnly := true
	for _, c := range commits {
		code, err := f.commitTouchesCode(ctx, ref, c.GetSHA(), calls)
		act.Inspected++
		if err != nil {
			f.logger.Debug(ctx, "commit details unavailable",
				logger.String("sha", c.GetSHA()), logger.Error(err))
			readmeOnly = false
			continue
		}
		if code {
			readmeOnly = false
			break
		}
	}
	act.ReadmeOnly = readmeOnly
	return act, nil
}

// commitTouchesCode 检查单个提交是否修改了 README 以外的文件。
// 没有文件变更信息时保守地认为是代码提交
func (f *Fetcher) commitTouchesCode(ctx context.Context, ref domain.RepoRef, sha string, calls *int32) (bool, error) {
	var commit *github.RepositoryCommit
	err := f.call(ctx, "commit", calls, func(ctx context.Context) error {
		var apiErr error
		commit, _, apiErr = f.client.Repositories.GetCommit(ctx, ref.Owner, ref.Name, sha, nil)
		return apiErr
	})
	if err != nil {
		return false, err
	}
	if commit == nil || len(commit.Files) == 0 {
		return true, nil
	}
	for _, file := range commit.Files {
		if name := file.GetFilename(); name != "" && !isReadmeFile(name) {
			return true, nil
		}
	}
	return false, nil
}
