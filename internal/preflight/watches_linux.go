package preflight

import (
	"os"
	"strconv"
	"strings"
)

const maxUserWatchesPath = "/proc/sys/fs/inotify/max_user_watches"

// maxUserWatches reads the inotify watch limit.
func maxUserWatches() (int, bool) {
	data, err := os.ReadFile(maxUserWatchesPath)
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return n, true
}
