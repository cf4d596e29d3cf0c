package preflight

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/Aman-CERP/fileindex/internal/ui"
)

// CheckDiskSpace requires MinDiskSpaceBytes free on the data directory's
// filesystem. Run CheckDataDir first so the directory exists.
func (c *Checker) CheckDiskSpace() Result {
	r := Result{Name: "disk_space", Required: true}

	var st unix.Statfs_t
	if err := unix.Statfs(c.cfg.Storage.DataDir, &st); err != nil {
		r.Status = StatusFail
		r.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return r
	}

	free := int64(st.Bavail) * int64(st.Bsize)
	r.Message = fmt.Sprintf("%s free (minimum %s)", ui.FormatBytes(free), ui.FormatBytes(MinDiskSpaceBytes))
	if free < MinDiskSpaceBytes {
		r.Status = StatusFail
	}
	return r
}

// CheckFileDescriptors warns on a low open file limit. The watcher holds a
// descriptor per directory on kqueue platforms and each SQLite store holds
// several.
func (c *Checker) CheckFileDescriptors() Result {
	r := Result{Name: "file_descriptors"}

	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		r.Status = StatusWarn
		r.Message = fmt.Sprintf("failed to read limit: %v", err)
		return r
	}

	r.Message = fmt.Sprintf("%d (minimum %d)", lim.Cur, MinFileDescriptors)
	if lim.Cur < MinFileDescriptors {
		r.Status = StatusWarn
		r.Hint = "Run 'ulimit -n 10240' before starting the watcher"
	}
	return r
}
