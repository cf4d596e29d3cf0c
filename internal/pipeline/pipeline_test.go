package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fileindex/internal/config"
	"github.com/Aman-CERP/fileindex/internal/embed"
	fierrors "github.com/Aman-CERP/fileindex/internal/errors"
	"github.com/Aman-CERP/fileindex/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Pipeline.Debounce = "20ms"
	cfg.Pipeline.PollInterval = "50ms"
	return cfg
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openPipeline(t *testing.T, cfg *config.Config, roots ...string) *Pipeline {
	t.Helper()
	p, err := Open(context.Background(), cfg, Options{Roots: roots, Logger: quiet()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func record(t *testing.T, p *Pipeline, path string) *store.FileRecord {
	t.Helper()
	rec, err := p.meta.Get(context.Background(), path)
	require.NoError(t, err)
	return rec
}

func TestIndex_WritesMetadataAndVector(t *testing.T) {
	// Given: a root with one text file
	root := t.TempDir()
	a := filepath.Join(root, "a.txt")
	write(t, a, "quarterly sales report for the northern region")
	p := openPipeline(t, testConfig(t), root)

	// When: indexing once
	sum, err := p.Index(context.Background())

	// Then: one FileRecord and one 256-dim static vector exist for the file
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.Queued)

	rec := record(t, p, a)
	require.NotNil(t, rec)
	assert.Equal(t, "text", rec.Category)
	assert.Contains(t, rec.Description, "Context: quarterly sales report")

	vec, err := p.vectors.Get(context.Background(), a, embed.StaticSpace)
	require.NoError(t, err)
	require.NotNil(t, vec)
	assert.Equal(t, embed.StaticDimensions, vec.Dim)

	snap := p.Progress().Snapshot()
	assert.Equal(t, string(StatusReady), snap.Status)
	assert.Equal(t, int64(1), snap.Indexed)
	assert.Equal(t, float64(100), snap.ProgressPct)
}

func TestIndex_PrunesFilesDeletedWhileStopped(t *testing.T) {
	// Given: two files indexed by an earlier run, one deleted since
	cfg := testConfig(t)
	root := t.TempDir()
	keep := filepath.Join(root, "keep.txt")
	gone := filepath.Join(root, "gone.txt")
	write(t, keep, "keep me")
	write(t, gone, "delete me")

	first := openPipeline(t, cfg, root)
	_, err := first.Index(context.Background())
	require.NoError(t, err)
	require.NoError(t, first.Close())
	require.NoError(t, os.Remove(gone))

	// When: indexing again
	second := openPipeline(t, cfg, root)
	sum, err := second.Index(context.Background())

	// Then: the deleted file's records are gone and the other remains
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.Pruned)
	assert.Nil(t, record(t, second, gone))
	assert.NotNil(t, record(t, second, keep))
	vec, err := second.vectors.Get(context.Background(), gone, embed.StaticSpace)
	require.NoError(t, err)
	assert.Nil(t, vec)
}

func TestIndex_RemovesOrphanVectors(t *testing.T) {
	// Given: a vector with no metadata record
	cfg := testConfig(t)
	root := t.TempDir()
	p := openPipeline(t, cfg, root)
	orphan := filepath.Join(root, "orphan.txt")
	vec := make([]float32, embed.StaticDimensions)
	vec[0] = 1
	require.NoError(t, p.vectors.Upsert(context.Background(), &store.VectorRecord{
		Path: orphan, Space: embed.StaticSpace, Dim: embed.StaticDimensions, Vec: vec,
	}))

	// When: indexing
	_, err := p.Index(context.Background())

	// Then: reconciliation deleted the orphan
	require.NoError(t, err)
	got, err := p.vectors.Get(context.Background(), orphan, embed.StaticSpace)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIndex_SkipsIgnoredAndUnsupported(t *testing.T) {
	// Given: an ignored swap file, an unknown extension and a user pattern
	cfg := testConfig(t)
	cfg.Ignore.Patterns = []string{"secret/"}
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "secret"), 0o755))
	write(t, filepath.Join(root, "secret", "plan.txt"), "hidden")
	write(t, filepath.Join(root, ".notes.txt.swp"), "swap")
	write(t, filepath.Join(root, "binary.xyz"), "?")
	p := openPipeline(t, cfg, root)

	// When: indexing
	_, err := p.Index(context.Background())

	// Then: nothing reaches the store
	require.NoError(t, err)
	n, err := p.meta.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWatch_IndexesNewFilesAndFollowsRenames(t *testing.T) {
	// Given: a watcher running on an empty root
	root := t.TempDir()
	p := openPipeline(t, testConfig(t), root)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Watch(ctx) }()
	require.Eventually(t, func() bool { return p.SourceMode() != "" }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	// When: a file is created and later renamed
	a := filepath.Join(root, "a.txt")
	b := filepath.Join(root, "b.txt")
	write(t, a, "meeting notes about the product launch")
	require.Eventually(t, func() bool { return record(t, p, a) != nil }, 5*time.Second, 20*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	require.Eventually(t, func() bool { return p.queue.Pending() == 0 }, 5*time.Second, 20*time.Millisecond)
	before := record(t, p, a)
	beforeVec, err := p.vectors.Get(context.Background(), a, embed.StaticSpace)
	require.NoError(t, err)
	require.NotNil(t, beforeVec)
	require.NoError(t, os.Rename(a, b))

	// Then: the record follows the file with its id, description and vector
	require.Eventually(t, func() bool {
		return record(t, p, b) != nil && record(t, p, a) == nil
	}, 5*time.Second, 20*time.Millisecond)
	after := record(t, p, b)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, before.Description, after.Description)
	vec, err := p.vectors.Get(context.Background(), b, embed.StaticSpace)
	require.NoError(t, err)
	require.NotNil(t, vec)
	assert.Equal(t, beforeVec.Vec, vec.Vec)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
	assert.Zero(t, p.queue.Pending())
	assert.Equal(t, string(StatusReady), p.Progress().Snapshot().Status)
}

func TestWatch_PollingFallbackConvergesDeletes(t *testing.T) {
	// Given: a polling watcher over a root with one existing file
	root := t.TempDir()
	a := filepath.Join(root, "a.txt")
	write(t, a, "existing")
	cfg := testConfig(t)
	p, err := Open(context.Background(), cfg, Options{Roots: []string{root}, ForcePolling: true, Logger: quiet()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Watch(ctx) }()
	require.Eventually(t, func() bool { return record(t, p, a) != nil }, 5*time.Second, 20*time.Millisecond)

	// When: the file is deleted
	require.NoError(t, os.Remove(a))

	// Then: the next poll removes it from the index
	require.Eventually(t, func() bool { return record(t, p, a) == nil }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "polling", p.SourceMode())

	cancel()
	require.NoError(t, <-done)
}

func TestOpen_RejectsBadRoots(t *testing.T) {
	cfg := testConfig(t)
	file := filepath.Join(t.TempDir(), "f.txt")
	write(t, file, "x")

	_, err := Open(context.Background(), cfg, Options{Logger: quiet()})
	assert.Equal(t, fierrors.ErrCodeInvalidInput, fierrors.GetCode(err))

	_, err = Open(context.Background(), cfg, Options{Roots: []string{filepath.Join(t.TempDir(), "missing")}, Logger: quiet()})
	assert.Equal(t, fierrors.ErrCodeInvalidPath, fierrors.GetCode(err))

	_, err = Open(context.Background(), cfg, Options{Roots: []string{file}, Logger: quiet()})
	assert.Equal(t, fierrors.ErrCodeInvalidPath, fierrors.GetCode(err))
}

func TestPipeline_RunsOnlyOnce(t *testing.T) {
	p := openPipeline(t, testConfig(t), t.TempDir())

	_, err := p.Index(context.Background())
	require.NoError(t, err)

	_, err = p.Index(context.Background())
	assert.Error(t, err)
	assert.Error(t, p.Watch(context.Background()))
}

func TestOpen_DeduplicatesRoots(t *testing.T) {
	root := t.TempDir()
	p := openPipeline(t, testConfig(t), root, root+string(filepath.Separator))
	assert.Equal(t, []string{root}, p.Roots())
	assert.True(t, p.underRoot(filepath.Join(root, "x", "y.txt")))
	assert.False(t, p.underRoot(filepath.Dir(root)))
}
