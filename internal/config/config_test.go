package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config and home lookups at empty temp dirs.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, k := range []string{
		"FILEINDEX_DEBOUNCE", "FILEINDEX_QUEUE_SIZE", "FILEINDEX_WORKERS",
		"FILEINDEX_DATA_DIR", "FILEINDEX_DRIVER", "FILEINDEX_EMBEDDER",
		"FILEINDEX_EMBEDDINGS_MODEL", "FILEINDEX_OLLAMA_HOST", "FILEINDEX_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, 400*time.Millisecond, cfg.DebounceDelay())
	assert.Equal(t, 100*time.Millisecond, cfg.RenameWindow())
	assert.Equal(t, 10000, cfg.Pipeline.QueueSize)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.True(t, cfg.Pipeline.Recursive)
	assert.False(t, cfg.Pipeline.PathAffinity)
	assert.Equal(t, DriverModernc, cfg.Storage.Driver)
	assert.Equal(t, ProviderStatic, cfg.Embeddings.Provider)
	assert.Equal(t, 600, cfg.Extract.DescriptionLimit)
	assert.Contains(t, cfg.Extract.Types.Text, ".txt")
	assert.Contains(t, cfg.Extract.Types.Document, ".pdf")
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
}

func TestLoad_ProjectFileOverridesUserFile(t *testing.T) {
	// Given: a user config and a project config that disagree
	isolate(t)
	userPath := GetUserConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(userPath), 0o755))
	require.NoError(t, os.WriteFile(userPath, []byte(`
pipeline:
  workers: 2
  queue_size: 50
ignore:
  patterns: ["*.bak"]
`), 0o644))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".fileindex.yaml"), []byte(`
pipeline:
  workers: 8
  recursive: false
ignore:
  patterns: ["build/"]
`), 0o644))

	// When: loading
	cfg, err := Load(dir)

	// Then: project wins per key, untouched keys keep the user value, patterns accumulate
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.Equal(t, 50, cfg.Pipeline.QueueSize)
	assert.False(t, cfg.Pipeline.Recursive)
	assert.Equal(t, []string{"*.bak", "build/"}, cfg.Ignore.Patterns)
}

func TestLoad_YmlExtensionIsRecognized(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".fileindex.yml"), []byte("pipeline:\n  debounce: 1s\n"), 0o644))

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.DebounceDelay())
}

func TestLoad_InvalidYaml_ReturnsError(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".fileindex.yaml"), []byte("pipeline: [oops"), 0o644))

	_, err := Load(dir)

	assert.Error(t, err)
}

func TestLoad_EnvOverridesFiles(t *testing.T) {
	// Given: a project file and env overrides for the same keys
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".fileindex.yaml"), []byte("pipeline:\n  workers: 8\n"), 0o644))
	t.Setenv("FILEINDEX_WORKERS", "3")
	t.Setenv("FILEINDEX_DRIVER", DriverMattn)
	t.Setenv("FILEINDEX_DATA_DIR", filepath.Join(dir, "data"))

	// When: loading
	cfg, err := Load(dir)

	// Then: env wins
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Pipeline.Workers)
	assert.Equal(t, DriverMattn, cfg.Storage.Driver)
	assert.Equal(t, filepath.Join(dir, "data", "metadata.db"), cfg.MetadataDBPath())
	assert.Equal(t, filepath.Join(dir, "data", "vectors.db"), cfg.VectorDBPath())
}

func TestLoadFile_UsesExplicitFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embeddings:\n  provider: ollama\n  model: all-minilm\n"), 0o644))

	cfg, err := LoadFile(path)

	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, cfg.Embeddings.Provider)
	assert.Equal(t, "all-minilm", cfg.Embeddings.Model)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero queue", func(c *Config) { c.Pipeline.QueueSize = 0 }},
		{"negative workers", func(c *Config) { c.Pipeline.Workers = -1 }},
		{"bad debounce", func(c *Config) { c.Pipeline.Debounce = "soon" }},
		{"negative debounce", func(c *Config) { c.Pipeline.Debounce = "-1s" }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "openai" }},
		{"tiny description limit", func(c *Config) { c.Extract.DescriptionLimit = 10 }},
		{"extension without dot", func(c *Config) { c.Extract.Types.Text = []string{"txt"} }},
		{"extension in two categories", func(c *Config) { c.Extract.Types.Document = []string{".pdf", ".md"} }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "trace" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGetUserConfigPath_RespectsXDGConfigHome(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	assert.Equal(t, filepath.Join(xdg, "fileindex", "config.yaml"), GetUserConfigPath())
}

func TestWriteYAML_RoundTripsThroughLoadFile(t *testing.T) {
	// Given: a customised config written to disk
	isolate(t)
	cfg := NewConfig()
	cfg.Pipeline.Workers = 7
	cfg.Ignore.Patterns = []string{"*.iso"}
	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.WriteYAML(path))

	// When: loading it back
	loaded, err := LoadFile(path)

	// Then: values survive
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Pipeline.Workers)
	assert.Equal(t, []string{"*.iso"}, loaded.Ignore.Patterns)
}

func TestLogFilePath_DefaultsIntoDataDir(t *testing.T) {
	cfg := NewConfig()
	cfg.Storage.DataDir = "/var/lib/fileindex"

	assert.Equal(t, "/var/lib/fileindex/logs/fileindex.log", cfg.LogFilePath())

	cfg.Logging.File = "/tmp/x.log"
	assert.Equal(t, "/tmp/x.log", cfg.LogFilePath())
}
