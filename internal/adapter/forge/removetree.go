package forge

import (
	"context"
	"time"

	"github-repo-judge/internal/common"
	"github-repo-judge/pkg/logger"
	"github-repo-judge/pkg/metrics"
)

const fallbackTimeout = 60 * time.Second

// RemoveTree deletes path and everything below it. Contention errors are
// retried with growing backoff, releasing lock holders between attempts,
// before falling back to the platform's forced-removal command. A path that
// is already absent is success at every stage.
func (f *Forge) RemoveTree(ctx context.Context, path string) error {
	if !IsSubpath(path, f.root) {
		return common.WrapError(common.ErrCodeInvalidInput, "refusing to remove "+path, ErrOutsideRoot)
	}
	if present, err := exists(path); err == nil && !present {
		return nil
	}

	err := common.Do(ctx, func() error {
		rmErr := f.removeAll(path)
		if rmErr == nil {
			return nil
		}
		if present, statErr := exists(path); statErr == nil && !present {
			return nil
		}
		return rmErr
	},
		common.WithMaxRetries(f.removeAttempts-1),
		common.WithInitialDelay(f.removeBackoff),
		common.WithMaxDelay(f.removeBackoff*16),
		common.WithRetryIf(isContention),
		common.WithOnRetry(func(attempt int, err error) {
			metrics.RecordRemovalRetry()
			f.logger.Debug(ctx, "sandbox removal contended",
				logger.String("path", path),
				logger.Int("attempt", attempt),
				logger.Error(err),
			)
			releaseLocks(ctx, f.runner, path)
		}),
	)
	if err == nil {
		return nil
	}

	metrics.RecordRemovalFallback()
	name, args := forceRemoveCommand(path)
	if out, runErr := f.runner.Run(ctx, name, args, RunOpts{Timeout: fallbackTimeout}); runErr != nil || out.ExitCode != 0 {
		f.logger.Warn(ctx, "forced removal failed",
			logger.String("path", path),
			logger.String("stderr", lastLine(out.Stderr)),
			logger.Error(runErr),
		)
	}

	if present, statErr := exists(path); statErr == nil && !present {
		return nil
	}
	return common.WrapError(common.ErrCodeFSContention, "sandbox directory could not be removed", err)
}
