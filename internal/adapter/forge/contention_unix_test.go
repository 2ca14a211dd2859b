//go:build unix

package forge

import "golang.org/x/sys/unix"

func contentionErrno() error { return unix.EBUSY }
