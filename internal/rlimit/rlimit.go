// +build linux darwin

// Package rlimit raises the process's open-file limit so the router can
// hold one file descriptor per concurrently spliced connection without
// running into the kernel default.
package rlimit

import (
	"context"
	"syscall"

	"github.com/datawire/dlib/dlog"
)

const want = 999999

// Raise tries to set both the soft and hard RLIMIT_NOFILE to a fixed 999999,
// logging but not failing on error. If the kernel refuses that value, the
// limit is left as it was; no lower value is tried. A conservative default
// limit still lets the router run, just with fewer concurrent connections.
func Raise(ctx context.Context) {
	var limit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		dlog.Warnf(ctx, "rlimit: getting RLIMIT_NOFILE: %v", err)
		return
	}

	limit.Cur = want
	limit.Max = want
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		dlog.Debugf(ctx, "rlimit: raising RLIMIT_NOFILE to %d: %v", want, err)
	}

	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err == nil {
		dlog.Debugf(ctx, "rlimit: RLIMIT_NOFILE now cur=%d max=%d", limit.Cur, limit.Max)
	}
}
