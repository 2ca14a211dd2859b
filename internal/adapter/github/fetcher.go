package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github-repo-judge/internal/common"
	"github-repo-judge/internal/domain"
	"github-repo-judge/pkg/logger"
	"github-repo-judge/pkg/metrics"

	"github.com/google/go-github/v53/github"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

// 默认预算
const (
	DefaultMaxFiles       = 40
	DefaultMaxTotalChars  = 120000
	DefaultMaxFileChars   = 8000
	DefaultMaxFileBytes   = 512 * 1024
	DefaultMaxWalkCalls   = 30
	DefaultRequestTimeout = 20 * time.Second

	defaultRawBaseURL = "https://raw.githubusercontent.com/"
)

// Fetcher 实现了 port.Fetcher 接口
type Fetcher struct {
	client     *github.Client
	rawBaseURL string

	maxFiles       int
	maxTotalChars  int
	maxFileChars   int
	maxFileBytes   int64
	maxWalkCalls   int
	requestTimeout time.Duration
	retryDelay     time.Duration
	commitChecks   int

	logger logger.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

func WithMaxFiles(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxFiles = n
		}
	}
}

func WithMaxTotalChars(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxTotalChars = n
		}
	}
}

func WithMaxFileChars(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxFileChars = n
		}
	}
}

func WithMaxFileBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxFileBytes = n
		}
	}
}

// WithMaxWalkCalls bounds the contents-API calls of the directory walk fallback.
func WithMaxWalkCalls(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxWalkCalls = n
		}
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.requestTimeout = d
		}
	}
}

// WithRetryDelay sets the backoff before the single retry of a transient failure.
func WithRetryDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.retryDelay = d
		}
	}
}

// WithBaseURLs points the client at another API host and raw-content host,
// e.g. GitHub Enterprise or a test server.
func WithBaseURLs(apiURL, rawURL string) Option {
	return func(f *Fetcher) {
		if apiURL != "" {
			if !strings.HasSuffix(apiURL, "/") {
				apiURL += "/"
			}
			if u, err := url.Parse(apiURL); err == nil {
				f.client.BaseURL = u
			}
		}
		if rawURL != "" {
			if !strings.HasSuffix(rawURL, "/") {
				rawURL += "/"
			}
			f.rawBaseURL = rawURL
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFetcher 初始化 GitHub 客户端。token 为空时走匿名额度。
func NewFetcher(token string, opts ...Option) *Fetcher {
	var client *github.Client

	if token == "" {
		client = github.NewClient(nil)
	} else {
		ctx := context.Background()
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		tc := oauth2.NewClient(ctx, ts)
		client = github.NewClient(tc)
	}

	f := &Fetcher{
		client:         client,
		rawBaseURL:     defaultRawBaseURL,
		maxFiles:       DefaultMaxFiles,
		maxTotalChars:  DefaultMaxTotalChars,
		maxFileChars:   DefaultMaxFileChars,
		maxFileBytes:   DefaultMaxFileBytes,
		maxWalkCalls:   DefaultMaxWalkCalls,
		requestTimeout: DefaultRequestTimeout,
		retryDelay:     time.Second,
		logger:         logger.Get().Named("fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// listing is a repository file listing plus per-path download locators.
type listing struct {
	entries  []domain.TreeEntry
	locators map[string]string
}

// Fetch builds a budgeted snapshot of the repository. A nil snapshot means no
// evaluation is possible; the AppError code says why.
func (f *Fetcher) Fetch(ctx context.Context, repoURL string) (*domain.RepoSnapshot, error) {
	ref, err := domain.ParseRepoURL(repoURL)
	if err != nil {
		return nil, common.WrapError(common.ErrCodeInvalidInput, "无法解析仓库地址", err)
	}

	log := f.logger.With(logger.String("repo", ref.FullName()))
	var calls int32

	// 1. 元数据和贡献者并发获取，失败只降级
	meta := domain.RepoMetadata{Owner: ref.Owner, Name: ref.Name, Contributors: []string{}}
	var contributors []string
	var g errgroup.Group
	g.Go(func() error {
		m, err := f.metadata(ctx, ref, &calls)
		if err != nil {
			log.Warn(ctx, "repository metadata unavailable", logger.Error(err))
			return nil
		}
		meta = m
		return nil
	})
	g.Go(func() error {
		c, err := f.contributors(ctx, ref, &calls)
		if err != nil {
			log.Warn(ctx, "contributor list unavailable", logger.Error(err))
			return nil
		}
		contributors = c
		return nil
	})
	_ = g.Wait()
	if contributors != nil {
		meta.Contributors = contributors
	}

	// 2. 一次性拉取完整目录树，不可用时退回逐目录遍历
	branch := meta.DefaultBranch
	lst, treeErr := f.tree(ctx, ref, branch, &calls)
	walked := false
	if treeErr != nil {
		switch common.CodeOf(treeErr) {
		case common.ErrCodeNotFound, common.ErrCodeRateLimited:
			return nil, treeErr
		}
		log.Warn(ctx, "bulk tree unavailable, walking directories", logger.Error(treeErr))
	}
	if treeErr != nil || len(lst.entries) == 0 {
		walked = true
		lst, err = f.walk(ctx, ref, branch, &calls)
		if err != nil {
			return nil, err
		}
	}

	// 3. 排序 + 按预算下载
	locate := func(p string) string {
		if loc := lst.locators[p]; loc != "" {
			return loc
		}
		return f.rawURL(ref, branch, p)
	}
	candidates := rankCandidates(lst.entries, locate, f.maxFileBytes)
	files := f.downloadAll(ctx, log, candidates)

	// 4. 近期提交检查，失败只降级
	var activity *domain.CommitActivity
	if f.commitChecks > 0 {
		activity, err = f.activity(ctx, ref, branch, &calls)
		if err != nil {
			log.Warn(ctx, "commit activity unavailable", logger.Error(err))
		}
	}

	snap := &domain.RepoSnapshot{
		Ref:          ref,
		Tree:         lst.entries,
		Files:        files,
		Stats:        ComputeStats(lst.entries, files),
		Metadata:     meta,
		Activity:     activity,
		WalkFallback: walked,
		APICalls:     int(atomic.LoadInt32(&calls)),
	}
	snap.Context = RenderContext(snap)

	log.Info(ctx, "repository fetched",
		logger.Int("tree_entries", len(lst.entries)),
		logger.Int("candidates", len(candidates)),
		logger.Int("files", len(files)),
		logger.Int("chars", snap.Stats.TotalChars),
		logger.Bool("walk_fallback", walked),
		logger.Int("api_calls", snap.APICalls),
	)
	return snap, nil
}

func (f *Fetcher) metadata(ctx context.Context, ref domain.RepoRef, calls *int32) (domain.RepoMetadata, error) {
	var repo *github.Repository
	err := f.call(ctx, "repository", calls, func(ctx context.Context) error {
		var apiErr error
		repo, _, apiErr = f.client.Repositories.Get(ctx, ref.Owner, ref.Name)
		return apiErr
	})
	if err != nil {
		return domain.RepoMetadata{}, err
	}

	owner := repo.GetOwner().GetLogin()
	if owner == "" {
		owner = ref.Owner
	}
	name := repo.GetName()
	if name == "" {
		name = ref.Name
	}
	return domain.RepoMetadata{
		Owner:         owner,
		Name:          name,
		Description:   repo.GetDescription(),
		DefaultBranch: repo.GetDefaultBranch(),
		Language:      repo.GetLanguage(),
		Stars:         repo.GetStargazersCount(),
		CreatedAt:     repo.GetCreatedAt().Time,
		UpdatedAt:     repo.GetUpdatedAt().Time,
		Contributors:  []string{},
	}, nil
}

func (f *Fetcher) contributors(ctx context.Context, ref domain.RepoRef, calls *int32) ([]string, error) {
	var list []*github.Contributor
	opts := &github.ListContributorsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	err := f.call(ctx, "contributors", calls, func(ctx context.Context) error {
		var apiErr error
		list, _, apiErr = f.client.Repositories.ListContributors(ctx, ref.Owner, ref.Name, opts)
		return apiErr
	})
	if err != nil {
		return nil, err
	}

	logins := make([]string, 0, len(list))
	for _, c := range list {
		if login := c.GetLogin(); login != "" {
			logins = append(logins, login)
		}
	}
	return logins, nil
}

func (f *Fetcher) tree(ctx context.Context, ref domain.RepoRef, branch string, calls *int32) (listing, error) {
	sha := branch
	if sha == "" {
		sha = "HEAD"
	}

	var tree *github.Tree
	err := f.call(ctx, "tree", calls, func(ctx context.Context) error {
		var apiErr error
		tree, _, apiErr = f.client.Git.GetTree(ctx, ref.Owner, ref.Name, sha, true)
		return apiErr
	})
	if err != nil {
		return listing{}, err
	}

	lst := listing{locators: map[string]string{}}
	for _, e := range tree.Entries {
		p := e.GetPath()
		if p == "" || isExcluded(p) {
			continue
		}
		switch e.GetType() {
		case "blob":
			lst.entries = append(lst.entries, domain.TreeEntry{Path: p, Type: domain.EntryFile, Size: int64(e.GetSize())})
		case "tree":
			lst.entries = append(lst.entries, domain.TreeEntry{Path: p, Type: domain.EntryDir})
		}
	}
	if tree.GetTruncated() {
		f.logger.Warn(ctx, "tree listing truncated by the API", logger.String("repo", ref.FullName()))
	}
	return lst, nil
}

// walk lists the repository breadth-first through the contents API, issuing
// at most maxWalkCalls requests. A retried attempt counts against the cap too.
func (f *Fetcher) walk(ctx context.Context, ref domain.RepoRef, branch string, calls *int32) (listing, error) {
	lst := listing{entries: []domain.TreeEntry{}, locators: map[string]string{}}
	opts := &github.RepositoryContentGetOptions{Ref: branch}

	queue := []string{""}
	issued := 0
	for len(queue) > 0 && issued < f.maxWalkCalls {
		dir := queue[0]
		queue = queue[1:]

		var entries []*github.RepositoryContent
		err := f.call(ctx, "contents", calls, func(ctx context.Context) error {
			issued++
			var apiErr error
			_, entries, _, apiErr = f.client.Repositories.GetContents(ctx, ref.Owner, ref.Name, dir, opts)
			return apiErr
		}, common.WithRetryIf(func(err error) bool {
			return issued < f.maxWalkCalls && isTransient(err)
		}))
		if err != nil {
			if dir == "" {
				return listing{}, err
			}
			f.logger.Warn(ctx, "directory listing failed", logger.String("dir", dir), logger.Error(err))
			continue
		}

		for _, e := range entries {
			p := e.GetPath()
			if p == "" || isExcluded(p) {
				continue
			}
			switch e.GetType() {
			case "dir":
				lst.entries = append(lst.entries, domain.TreeEntry{Path: p, Type: domain.EntryDir})
				queue = append(queue, p)
			case "file":
				lst.entries = append(lst.entries, domain.TreeEntry{Path: p, Type: domain.EntryFile, Size: int64(e.GetSize())})
				if dl := e.GetDownloadURL(); dl != "" {
					lst.locators[p] = dl
				}
			}
		}
	}

	if len(queue) > 0 {
		f.logger.Warn(ctx, "directory walk stopped at call limit",
			logger.String("repo", ref.FullName()),
			logger.Int("unvisited", len(queue)),
		)
	}
	return lst, nil
}

// call runs one API request under the request timeout, retrying a transient
// failure once, and maps the final error to an AppError. extra overrides the
// default retry options.
func (f *Fetcher) call(ctx context.Context, endpoint string, calls *int32, fn func(context.Context) error, extra ...common.Option) error {
	opts := append([]common.Option{
		common.WithMaxRetries(1),
		common.WithInitialDelay(f.retryDelay),
		common.WithRetryIf(isTransient),
	}, extra...)
	err := common.Do(ctx, func() error {
		atomic.AddInt32(calls, 1)
		callCtx, cancel := context.WithTimeout(ctx, f.requestTimeout)
		defer cancel()
		return fn(callCtx)
	}, opts...)
	if err == nil {
		metrics.RecordGitHubCall(endpoint, "ok")
		return nil
	}

	code := classifyAPIError(err)
	outcome := "error"
	if code == common.ErrCodeRateLimited {
		outcome = "rate_limited"
	}
	metrics.RecordGitHubCall(endpoint, outcome)

	switch code {
	case common.ErrCodeRateLimited:
		return common.WrapError(code, "GitHub API 额度已耗尽", err)
	case common.ErrCodeNotFound:
		return common.WrapError(code, "仓库不存在或无权访问", err)
	default:
		return common.WrapError(code, fmt.Sprintf("GitHub API 调用失败 (%s)", endpoint), err)
	}
}

func (f *Fetcher) rawURL(ref domain.RepoRef, branch, p string) string {
	if branch == "" {
		branch = "HEAD"
	}
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return f.rawBaseURL + ref.Owner + "/" + ref.Name + "/" + url.PathEscape(branch) + "/" + strings.Join(segs, "/")
}

// classifyAPIError separates an exhausted quota and a missing repository from
// every other failure.
func classifyAPIError(err error) string {
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return common.ErrCodeRateLimited
	}
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		return common.ErrCodeRateLimited
	}

	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		switch er.Response.StatusCode {
		case http.StatusNotFound:
			return common.ErrCodeNotFound
		case http.StatusForbidden, http.StatusTooManyRequests:
			if er.Response.Header.Get("X-RateLimit-Remaining") == "0" {
				return common.ErrCodeRateLimited
			}
		}
	}
	return common.ErrCodeGitHubAPI
}

// isTransient reports whether a retry could plausibly succeed.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if classifyAPIError(err) != common.ErrCodeGitHubAPI {
		return false
	}
	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		return er.Response.StatusCode >= http.StatusInternalServerError
	}
	return true
}
