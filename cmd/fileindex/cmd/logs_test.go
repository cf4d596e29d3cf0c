package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fierrors "github.com/Aman-CERP/fileindex/internal/errors"
)

func TestLogs_TailWithLevel(t *testing.T) {
	// Given: a log file with info and error lines
	isolate(t)
	path := filepath.Join(t.TempDir(), "fileindex.log")
	content := `{"time":"2026-03-01T10:00:00Z","level":"INFO","msg":"pipeline ready"}
{"time":"2026-03-01T10:00:01Z","level":"ERROR","msg":"job failed","path":"/w/x.pdf"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	// When: showing errors only
	out, err := execute(t, "logs", "--file", path, "--level", "error")

	// Then: one plain line is printed
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "job failed path=/w/x.pdf")
	assert.NotContains(t, out, "\x1b[")
}

func TestLogs_MissingFile(t *testing.T) {
	isolate(t)
	_, err := execute(t, "logs", "--data-dir", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, fierrors.ErrCodeFileNotFound, fierrors.GetCode(err))
}

func TestLogs_BadArguments(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "x.log")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := execute(t, "logs", "--file", path, "--level", "loud")
	assert.Equal(t, fierrors.ErrCodeInvalidInput, fierrors.GetCode(err))

	_, err = execute(t, "logs", "--file", path, "--filter", "([")
	assert.Equal(t, fierrors.ErrCodeInvalidInput, fierrors.GetCode(err))
}
