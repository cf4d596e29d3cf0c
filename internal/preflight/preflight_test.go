package preflight

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fileindex/internal/config"
	"github.com/Aman-CERP/fileindex/internal/embed"
)

func testChecker(t *testing.T, roots ...string) *Checker {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Storage.DataDir = filepath.Join(t.TempDir(), "data")
	return New(cfg, roots...)
}

func find(t *testing.T, results []Result, name string) Result {
	t.Helper()
	for _, r := range results {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no %s result", name)
	return Result{}
}

func TestRun_HealthyEnvironment(t *testing.T) {
	// Given: a readable root and a fresh data dir with the static embedder
	root := t.TempDir()
	c := testChecker(t, root)

	// When: running every check
	results := c.Run(context.Background())

	// Then: nothing critical fails and the data dir now exists
	assert.False(t, HasCriticalFailures(results))
	assert.NotEqual(t, "failed", Summary(results))
	assert.DirExists(t, c.cfg.Storage.DataDir)
	assert.Equal(t, StatusPass, find(t, results, "data_dir").Status)
	assert.Equal(t, StatusPass, find(t, results, "root").Status)
	assert.Contains(t, find(t, results, "embedder").Message, embed.StaticSpace)
}

func TestCheckDataDir_Unwritable(t *testing.T) {
	// Given: a data dir path below a regular file
	parent := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(parent, nil, 0o644))
	c := testChecker(t)
	c.cfg.Storage.DataDir = filepath.Join(parent, "data")

	// When: checking it
	r := c.CheckDataDir()

	// Then: the required check fails with a hint
	assert.True(t, r.IsCritical())
	assert.NotEmpty(t, r.Hint)
}

func TestCheckRoot(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	c := testChecker(t)

	assert.Equal(t, StatusPass, c.CheckRoot(dir).Status)
	assert.Equal(t, StatusFail, c.CheckRoot(file).Status)
	assert.Equal(t, StatusFail, c.CheckRoot(filepath.Join(dir, "missing")).Status)
}

func TestCheckWatchLimit(t *testing.T) {
	// Given: a tree with three directories, one of them ignored
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "objects"), 0o755))
	c := testChecker(t, root)

	t.Run("under the limit", func(t *testing.T) {
		c.watchLimit = func() (int, bool) { return 100, true }
		r := c.CheckWatchLimit()
		assert.Equal(t, StatusPass, r.Status)
		assert.Equal(t, "3 directories, limit 100", r.Message)
	})

	t.Run("at the limit", func(t *testing.T) {
		c.watchLimit = func() (int, bool) { return 3, true }
		r := c.CheckWatchLimit()
		assert.Equal(t, StatusWarn, r.Status)
		assert.Contains(t, r.Hint, "--poll")
	})

	t.Run("no limit", func(t *testing.T) {
		c.watchLimit = func() (int, bool) { return 0, false }
		assert.Equal(t, StatusPass, c.CheckWatchLimit().Status)
	})

	t.Run("non-recursive counts roots only", func(t *testing.T) {
		c.watchLimit = func() (int, bool) { return 100, true }
		c.cfg.Pipeline.Recursive = false
		defer func() { c.cfg.Pipeline.Recursive = true }()
		assert.Equal(t, "1 directories, limit 100", c.CheckWatchLimit().Message)
	})
}

type downEmbedder struct{ embed.Embedder }

func (downEmbedder) Available(context.Context) bool { return false }
func (downEmbedder) ModelName() string              { return "nomic-embed-text" }
func (downEmbedder) Close() error                   { return nil }

func TestCheckEmbedder_Failures(t *testing.T) {
	c := testChecker(t)
	c.cfg.Embeddings.Provider = config.ProviderOllama

	t.Run("construction fails", func(t *testing.T) {
		c.newEmbedder = func(context.Context, config.EmbeddingsConfig) (embed.Embedder, error) {
			return nil, errors.New("connection refused")
		}
		r := c.CheckEmbedder(context.Background())
		assert.True(t, r.IsCritical())
		assert.Contains(t, r.Hint, "ollama pull nomic-embed-text")
	})

	t.Run("not responding", func(t *testing.T) {
		c.newEmbedder = func(context.Context, config.EmbeddingsConfig) (embed.Embedder, error) {
			return downEmbedder{}, nil
		}
		r := c.CheckEmbedder(context.Background())
		assert.True(t, r.IsCritical())
		assert.Contains(t, r.Message, "not responding")
	})
}

func TestSummary(t *testing.T) {
	pass := Result{Status: StatusPass, Required: true}
	warn := Result{Status: StatusWarn}
	optionalFail := Result{Status: StatusFail}
	fail := Result{Status: StatusFail, Required: true}

	assert.Equal(t, "ready", Summary([]Result{pass}))
	assert.Equal(t, "ready_with_warnings", Summary([]Result{pass, warn}))
	assert.Equal(t, "ready_with_warnings", Summary([]Result{optionalFail}))
	assert.Equal(t, "failed", Summary([]Result{warn, fail}))
	assert.True(t, HasCriticalFailures([]Result{fail}))
	assert.False(t, HasCriticalFailures([]Result{optionalFail}))
}

func TestResult_JSONStatusName(t *testing.T) {
	data, err := json.Marshal(Result{Name: "disk_space", Status: StatusWarn})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"WARN"`)
}

func TestMarker(t *testing.T) {
	// Given: a data dir that has never passed
	dir := filepath.Join(t.TempDir(), "data")
	assert.True(t, NeedsCheck(dir))

	// When: marking it passed
	require.NoError(t, MarkPassed(dir))

	// Then: no check is needed until the marker is cleared
	assert.False(t, NeedsCheck(dir))
	require.NoError(t, ClearMarker(dir))
	assert.True(t, NeedsCheck(dir))
	assert.NoError(t, ClearMarker(dir))
}
