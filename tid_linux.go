//go:build linux

package vmthread

import (
	"golang.org/x/sys/unix"
)

// currentOSThreadID returns the kernel thread id of the calling OS thread.
// The caller must be locked to its OS thread for the value to be stable.
func currentOSThreadID() int64 {
	return int64(unix.Gettid())
}
