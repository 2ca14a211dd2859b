//go:build windows

package forge

import "golang.org/x/sys/windows"

func contentionErrno() error { return windows.ERROR_SHARING_VIOLATION }
