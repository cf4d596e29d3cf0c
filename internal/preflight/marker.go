package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// markerFile in the data directory records that the checks passed once, so
// the watcher does not repeat them on every start.
const markerFile = ".preflight-passed"

// NeedsCheck reports whether the checks have not yet passed for dataDir.
func NeedsCheck(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, markerFile))
	return os.IsNotExist(err)
}

// MarkPassed records a successful run.
func MarkPassed(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create marker directory: %w", err)
	}
	stamp := []byte(time.Now().UTC().Format(time.RFC3339))
	return os.WriteFile(filepath.Join(dataDir, markerFile), stamp, 0o644)
}

// ClearMarker forces the checks on the next start.
func ClearMarker(dataDir string) error {
	err := os.Remove(filepath.Join(dataDir, markerFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove marker file: %w", err)
	}
	return nil
}
