//go:build !linux && !darwin

package extract

import "os"

func statTimes(_ string, info os.FileInfo) (created, accessed int64) {
	mod := info.ModTime().Unix()
	return mod, mod
}
