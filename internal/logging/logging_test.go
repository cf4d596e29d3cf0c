package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
	assert.False(t, ValidLevel("verbose"))
	assert.True(t, ValidLevel("Warning"))
}

func TestSetup_WritesJSONLinesToFile(t *testing.T) {
	// Given: file-only logging at debug level
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.Level = "debug"
	cfg.Stderr = false

	// When: logging a job outcome
	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	logger.Debug("job complete", slog.String("outcome", "INDEXED"), slog.String("path", "/a.txt"))
	cleanup()

	// Then: the file holds one parseable JSON line
	data, err := os.ReadFile(LogPath(dir))
	require.NoError(t, err)
	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &line))
	assert.Equal(t, "INDEXED", line["outcome"])
	assert.Equal(t, "DEBUG", line["level"])
}

func TestSetup_NoOutputsDiscards(t *testing.T) {
	logger, cleanup, err := Setup(Config{Level: "info"})
	require.NoError(t, err)
	defer cleanup()

	assert.NotPanics(t, func() { logger.Info("dropped") })
}

func TestRotatingWriter_RotatesAndCapsFiles(t *testing.T) {
	// Given: a writer with a 1 MB limit keeping two rotated files
	path := filepath.Join(t.TempDir(), "app.log")
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer w.Close()

	chunk := []byte(strings.Repeat("x", 600*1024) + "\n")

	// When: writing enough to rotate three times
	for i := 0; i < 4; i++ {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}

	// Then: the live file plus exactly two rotated copies exist
	assert.FileExists(t, path)
	assert.FileExists(t, path+".1")
	assert.FileExists(t, path+".2")
	assert.NoFileExists(t, fmt.Sprintf("%s.%d", path, 3))
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "app.log"), 1, 1)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
}
