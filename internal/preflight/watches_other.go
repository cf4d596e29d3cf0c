//go:build !linux

package preflight

// kqueue has no per-user watch limit; file descriptors bound it instead.
func maxUserWatches() (int, bool) {
	return 0, false
}
