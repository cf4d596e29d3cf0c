//go:build darwin

package extract

import (
	"os"

	"golang.org/x/sys/unix"
)

// statTimes returns ctime and atime in Unix seconds, falling back to mtime
// when stat fails.
func statTimes(path string, info os.FileInfo) (created, accessed int64) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		mod := info.ModTime().Unix()
		return mod, mod
	}
	ctime, _ := st.Ctimespec.Unix()
	atime, _ := st.Atimespec.Unix()
	return ctime, atime
}
