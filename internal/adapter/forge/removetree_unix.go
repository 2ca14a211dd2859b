//go:build unix

package forge

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

var contentionErrnos = []error{unix.EBUSY, unix.ENOTEMPTY, unix.EACCES, unix.EPERM}

func isContention(err error) bool {
	for _, e := range contentionErrnos {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// releaseLocks makes every directory below path writable again. Read-only
// directories left behind by package managers are the usual EACCES source.
func releaseLocks(_ context.Context, _ CommandRunner, path string) {
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() {
			_ = os.Chmod(p, 0o755)
		}
		return nil
	})
}

func forceRemoveCommand(path string) (string, []string) {
	return "rm", []string{"-rf", path}
}
