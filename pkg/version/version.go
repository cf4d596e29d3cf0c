// Package version exposes build information for fileindex.
package version

import (
	"fmt"
	"runtime"
)

// Version is set via ldflags at release time:
//
//	-X github.com/Aman-CERP/fileindex/pkg/version.Version=$(VERSION)
var Version = "dev"

var (
	// Commit is the short git hash (-X .../pkg/version.Commit).
	Commit = "unknown"

	// Date is the build date in RFC3339 format (-X .../pkg/version.Date).
	Date = "unknown"

	GoVersion = runtime.Version()
)

// BuildInfo is the JSON form printed by `fileindex version --json`.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns a single line with all build info.
func String() string {
	return fmt.Sprintf("fileindex %s (commit: %s, built: %s, go: %s, %s/%s)",
		Version, Commit, Date, GoVersion, runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version.
func Short() string {
	return Version
}

func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// UserAgent identifies fileindex to remote embedding providers.
func UserAgent() string {
	return "fileindex/" + Version
}
