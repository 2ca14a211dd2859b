// Package forge clones a submission into a local sandbox and inspects it:
// marker files, frameworks, project types and an optional build check.
package forge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github-repo-judge/internal/common"
	"github-repo-judge/internal/domain"
	"github-repo-judge/pkg/logger"
	"github-repo-judge/pkg/metrics"
)

// cleanupTimeout bounds a Cleanup call, which runs without a caller context.
const cleanupTimeout = 30 * time.Second

// Forge owns one scratch root with one subdirectory per submission id.
type Forge struct {
	root   string
	runner CommandRunner
	logger logger.Logger

	cloneTimeout time.Duration
	buildTimeout time.Duration
	buildEnabled bool
	logTail      int

	removeAttempts int
	removeBackoff  time.Duration
	removeAll      func(string) error

	mu     sync.Mutex
	active map[string]bool
}

// New creates a Forge rooted at root. The root is created lazily on first audit.
func New(root string, opts ...Option) (*Forge, error) {
	if strings.TrimSpace(root) == "" {
		return nil, common.NewError(common.ErrCodeInvalidInput, "sandbox root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, common.WrapError(common.ErrCodeInvalidInput, "invalid sandbox root", err)
	}

	f := &Forge{
		root:           filepath.Clean(abs),
		runner:         ExecRunner{},
		logger:         logger.Get().Named("forge"),
		cloneTimeout:   DefaultCloneTimeout,
		buildTimeout:   DefaultBuildTimeout,
		logTail:        DefaultLogTail,
		removeAttempts: DefaultRemoveAttempts,
		removeBackoff:  DefaultRemoveBackoff,
		removeAll:      os.RemoveAll,
		active:         make(map[string]bool),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Root returns the absolute scratch root.
func (f *Forge) Root() string { return f.root }

// SandboxPath maps a submission id to its directory under the root. Ids are
// reduced to [A-Za-z0-9._-]; when that changes the id, a short hash of the
// original is appended so distinct ids never share a directory.
func (f *Forge) SandboxPath(submissionID string) (string, error) {
	name := sanitizeID(submissionID)
	if name == "" || name == "." || name == ".." {
		return "", common.NewError(common.ErrCodeInvalidInput, "invalid submission id")
	}
	p := filepath.Join(f.root, name)
	if !IsSubpath(p, f.root) {
		return "", common.NewError(common.ErrCodeInvalidInput, "sandbox path escapes root")
	}
	return p, nil
}

func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := strings.Trim(b.String(), ".")
	if name == "" {
		return ""
	}
	if name != id {
		sum := sha256.Sum256([]byte(id))
		name += "-" + hex.EncodeToString(sum[:4])
	}
	return name
}

// IsSubpath reports whether target lies strictly below prefix.
func IsSubpath(target, prefix string) bool {
	target = filepath.Clean(target)
	prefix = filepath.Clean(prefix)
	withSep := prefix
	if !strings.HasSuffix(withSep, string(filepath.Separator)) {
		withSep += string(filepath.Separator)
	}
	return strings.HasPrefix(target, withSep) && len(target) > len(withSep)
}

func (f *Forge) acquire(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active[id] {
		return false
	}
	f.active[id] = true
	return true
}

func (f *Forge) inUse(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[id]
}

func (f *Forge) release(id string) {
	f.mu.Lock()
	delete(f.active, id)
	f.mu.Unlock()
}

// Audit clones repoURL into the submission's sandbox and inspects it.
// Every failure is reported in the result; the result is never nil.
func (f *Forge) Audit(ctx context.Context, repoURL, submissionID string) *domain.ForgeAuditResult {
	res := &domain.ForgeAuditResult{
		Frameworks:   []domain.Framework{},
		ProjectTypes: []string{},
		BuildLog:     []string{},
	}
	log := f.logger.With(logger.String("submission_id", submissionID))

	ref, err := domain.ParseRepoURL(repoURL)
	if err != nil {
		return failed(res, domain.CloneFailed, "invalid repository URL: "+err.Error())
	}

	path, err := f.SandboxPath(submissionID)
	if err != nil {
		return failed(res, domain.CloneFailed, common.MessageOf(err))
	}
	res.SandboxPath = path

	if !f.acquire(submissionID) {
		log.Warn(ctx, "sandbox already in use")
		metrics.RecordClone(string(domain.CloneBusy))
		return failed(res, domain.CloneBusy, "an audit for this submission is already running")
	}
	defer f.release(submissionID)

	if err := os.MkdirAll(f.root, 0o755); err != nil {
		return failed(res, domain.CloneFailed, "cannot create sandbox root: "+err.Error())
	}
	if err := f.RemoveTree(ctx, path); err != nil {
		// git refuses a non-empty target, so the clone below reports it.
		log.Warn(ctx, "stale sandbox not removed", logger.Error(err))
	}

	start := time.Now()
	out, err := f.runner.Run(ctx, "git",
		[]string{"clone", "--depth", "1", "--single-branch", "--no-tags", ref.CloneURL(), path},
		RunOpts{
			Env:     append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GCM_INTERACTIVE=never"),
			Timeout: f.cloneTimeout,
		})

	kind := domain.CloneOK
	switch {
	case err != nil:
		kind = domain.CloneFailed
		out.Stderr = err.Error()
	case out.TimedOut:
		kind = domain.CloneTimeout
	case out.ExitCode != 0:
		kind = ClassifyCloneError(out.Stderr)
	}
	metrics.RecordClone(cloneLabel(kind))

	if kind != domain.CloneOK {
		log.Warn(ctx, "clone failed",
			logger.String("repo", ref.FullName()),
			logger.String("kind", string(kind)),
			logger.String("stderr", lastLine(out.Stderr)),
		)
		if rmErr := f.RemoveTree(ctx, path); rmErr != nil {
			log.Warn(ctx, "partial clone not removed", logger.Error(rmErr))
		}
		return failed(res, kind, cloneMessage(kind, out.Stderr, f.cloneTimeout))
	}
	log.Info(ctx, "clone finished",
		logger.String("repo", ref.FullName()),
		logger.Duration("elapsed", time.Since(start)),
	)

	stats, err := Inspect(path)
	if err != nil {
		return failed(res, domain.CloneFailed, "cannot read cloned tree: "+err.Error())
	}
	res.Stats = stats
	res.Frameworks = DetectFrameworks(path, stats)
	res.ProjectTypes = ProjectTypes(stats)

	if f.buildEnabled {
		f.build(ctx, path, res)
	}

	res.Success = true
	log.Info(ctx, "audit finished",
		logger.Int("files", stats.TotalFiles),
		logger.Any("project_types", res.ProjectTypes),
		logger.Any("frameworks", res.FrameworkNames()),
	)
	return res
}

func failed(res *domain.ForgeAuditResult, kind domain.CloneErrorKind, msg string) *domain.ForgeAuditResult {
	res.Success = false
	res.ErrorKind = kind
	res.Error = msg
	return res
}

func cloneLabel(kind domain.CloneErrorKind) string {
	if kind == domain.CloneOK {
		return "ok"
	}
	return string(kind)
}

// Cleanup removes the submission's sandbox. It is idempotent: an absent
// directory reports true. It refuses, reporting false, while an audit still
// holds the sandbox.
func (f *Forge) Cleanup(submissionID string) bool {
	path, err := f.SandboxPath(submissionID)
	if err != nil {
		return false
	}
	if f.inUse(submissionID) {
		f.logger.Warn(context.Background(), "sandbox cleanup skipped: audit in progress",
			logger.String("submission_id", submissionID),
		)
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if err := f.RemoveTree(ctx, path); err != nil {
		f.logger.Warn(ctx, "sandbox cleanup incomplete",
			logger.String("submission_id", submissionID),
			logger.Error(err),
		)
		return false
	}
	return true
}

// ErrOutsideRoot is returned when RemoveTree is asked to touch a path that is
// not inside the sandbox root.
var ErrOutsideRoot = errors.New("path is outside the sandbox root")

func exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
}
