package forge

import (
	"time"

	"github-repo-judge/pkg/logger"
)

const (
	DefaultCloneTimeout   = 120 * time.Second
	DefaultBuildTimeout   = 300 * time.Second
	DefaultLogTail        = 40
	DefaultRemoveAttempts = 5
	DefaultRemoveBackoff  = 200 * time.Millisecond
)

// Option configures a Forge.
type Option func(*Forge)

// WithRunner replaces the os/exec runner.
func WithRunner(r CommandRunner) Option {
	return func(f *Forge) {
		if r != nil {
			f.runner = r
		}
	}
}

func WithCloneTimeout(d time.Duration) Option {
	return func(f *Forge) {
		if d > 0 {
			f.cloneTimeout = d
		}
	}
}

func WithBuildTimeout(d time.Duration) Option {
	return func(f *Forge) {
		if d > 0 {
			f.buildTimeout = d
		}
	}
}

// WithBuild enables the install/build step after inspection.
func WithBuild(enabled bool) Option {
	return func(f *Forge) { f.buildEnabled = enabled }
}

// WithLogTail sets how many trailing build output lines are kept.
func WithLogTail(n int) Option {
	return func(f *Forge) {
		if n > 0 {
			f.logTail = n
		}
	}
}

// WithRemoveAttempts sets the total number of in-process removal attempts
// before the shell fallback.
func WithRemoveAttempts(n int) Option {
	return func(f *Forge) {
		if n > 0 {
			f.removeAttempts = n
		}
	}
}

func WithRemoveBackoff(d time.Duration) Option {
	return func(f *Forge) {
		if d > 0 {
			f.removeBackoff = d
		}
	}
}

// WithRemoveFunc swaps os.RemoveAll, mostly to inject contention in tests.
func WithRemoveFunc(fn func(string) error) Option {
	return func(f *Forge) {
		if fn != nil {
			f.removeAll = fn
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(f *Forge) {
		if l != nil {
			f.logger = l
		}
	}
}
