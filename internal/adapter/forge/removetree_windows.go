//go:build windows

package forge

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sys/windows"
)

var contentionErrnos = []error{
	windows.ERROR_SHARING_VIOLATION,
	windows.ERROR_LOCK_VIOLATION,
	windows.ERROR_ACCESS_DENIED,
	windows.ERROR_DIR_NOT_EMPTY,
}

func isContention(err error) bool {
	for _, e := range contentionErrnos {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// releaseLocks kills stray git processes that keep pack files open and
// clears the read-only bit git sets on object files.
func releaseLocks(ctx context.Context, runner CommandRunner, path string) {
	_, _ = runner.Run(ctx, "taskkill", []string{"/F", "/T", "/IM", "git.exe"}, RunOpts{Timeout: 10 * time.Second})
	_, _ = runner.Run(ctx, "attrib", []string{"-R", path + `\*`, "/S", "/D"}, RunOpts{Timeout: 30 * time.Second})
}

func forceRemoveCommand(path string) (string, []string) {
	return "cmd", []string{"/C", "rmdir", "/S", "/Q", path}
}
