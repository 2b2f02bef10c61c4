//go:build !linux

package vmthread

// currentOSThreadID is not supported on this platform.
func currentOSThreadID() int64 {
	return 0
}
