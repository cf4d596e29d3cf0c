// Package config loads layered fileindex configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Driver names accepted by storage.driver.
const (
	DriverModernc = "sqlite"  // modernc.org/sqlite, pure Go
	DriverMattn   = "sqlite3" // github.com/mattn/go-sqlite3, cgo
)

// Embedding providers accepted by embeddings.provider.
const (
	ProviderStatic = "static"
	ProviderOllama = "ollama"
)

// Config is the full fileindex configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Pipeline   PipelineConfig   `yaml:"pipeline" json:"pipeline"`
	Ignore     IgnoreConfig     `yaml:"ignore" json:"ignore"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Extract    ExtractConfig    `yaml:"extract" json:"extract"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// PipelineConfig sizes the queue and workers and tunes event handling.
type PipelineConfig struct {
	// Debounce is the per-path quiet window for created/modified events.
	Debounce string `yaml:"debounce" json:"debounce"`
	// DebounceMaxPaths bounds the debounce map; least recently seen paths are evicted.
	DebounceMaxPaths int `yaml:"debounce_max_paths" json:"debounce_max_paths"`
	// RenameWindow is how long a rename waits for its matching create.
	RenameWindow string `yaml:"rename_window" json:"rename_window"`
	QueueSize    int    `yaml:"queue_size" json:"queue_size"`
	Workers      int    `yaml:"workers" json:"workers"`
	// PathAffinity pins every path to one worker for strict per-path ordering.
	PathAffinity bool `yaml:"path_affinity" json:"path_affinity"`
	Recursive    bool `yaml:"recursive" json:"recursive"`
	// PruneMissing enqueues deletes for indexed files gone from disk at startup.
	PruneMissing bool `yaml:"prune_missing" json:"prune_missing"`
	// PollInterval is used when native file notifications are unavailable.
	PollInterval string `yaml:"poll_interval" json:"poll_interval"`
}

// IgnoreConfig holds user ignore patterns on top of the built-in rules.
type IgnoreConfig struct {
	Patterns []string `yaml:"patterns" json:"patterns"`
}

// StorageConfig locates and tunes the SQLite stores.
type StorageConfig struct {
	DataDir string `yaml:"data_dir" json:"data_dir"`
	Driver  string `yaml:"driver" json:"driver"`
	CacheMB int    `yaml:"cache_mb" json:"cache_mb"`
}

// EmbeddingsConfig selects the embedding provider.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// Dimensions of 0 means detect from the model.
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
	Timeout    string `yaml:"timeout" json:"timeout"`
}

// ExtractConfig controls description generation.
type ExtractConfig struct {
	DescriptionLimit int       `yaml:"description_limit" json:"description_limit"`
	MaxFileSize      int64     `yaml:"max_file_size" json:"max_file_size"`
	Types            TypeTable `yaml:"types" json:"types"`
}

// TypeTable maps file categories to the extensions that select them.
type TypeTable struct {
	Text     []string `yaml:"text" json:"text"`
	Image    []string `yaml:"image" json:"image"`
	Audio    []string `yaml:"audio" json:"audio"`
	Video    []string `yaml:"video" json:"video"`
	Document []string `yaml:"document" json:"document"`
}

// LoggingConfig mirrors logging.Config in YAML form.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
	Stderr    bool   `yaml:"stderr" json:"stderr"`
}

// NewConfig returns a Config with all defaults applied.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Pipeline: PipelineConfig{
			Debounce:         "400ms",
			DebounceMaxPaths: 100000,
			RenameWindow:     "100ms",
			QueueSize:        10000,
			Workers:          4,
			Recursive:        true,
			PruneMissing:     true,
			PollInterval:     "5s",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
			Driver:  DriverModernc,
			CacheMB: 64,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   ProviderStatic,
			Model:      "nomic-embed-text",
			OllamaHost: "http://localhost:11434",
			CacheSize:  1000,
			Timeout:    "30s",
		},
		Extract: ExtractConfig{
			DescriptionLimit: 600,
			MaxFileSize:      100 * 1024 * 1024,
			Types: TypeTable{
				Text:     []string{".txt", ".md", ".markdown", ".rst", ".csv", ".json", ".yaml", ".yml", ".xml", ".html", ".log", ".ini", ".toml"},
				Image:    []string{".png", ".jpg", ".jpeg", ".gif"},
				Audio:    []string{".wav", ".mp3", ".flac", ".ogg", ".m4a", ".aac"},
				Video:    []string{".mp4", ".mkv", ".mov", ".avi", ".webm"},
				Document: []string{".pdf"},
			},
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
			Stderr:    true,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".fileindex")
	}
	return filepath.Join(home, ".fileindex")
}

// GetUserConfigPath returns the user configuration file:
//   - $XDG_CONFIG_HOME/fileindex/config.yaml when XDG_CONFIG_HOME is set
//   - ~/.config/fileindex/config.yaml otherwise
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fileindex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "fileindex", "config.yaml")
	}
	return filepath.Join(home, ".config", "fileindex", "config.yaml")
}

// Load builds the configuration for a working directory. Precedence, lowest first:
//  1. defaults
//  2. user config (GetUserConfigPath)
//  3. project config (.fileindex.yaml or .fileindex.yml in dir)
//  4. FILEINDEX_* environment variables
func Load(dir string) (*Config, error) {
	return load(func(c *Config) error { return c.loadFromDir(dir) })
}

// LoadFile is Load with an explicit file in place of the project config.
func LoadFile(path string) (*Config, error) {
	return load(func(c *Config) error { return c.loadYAML(path) })
}

func load(project func(*Config) error) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}
	if err := project(cfg); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	cfg.Storage.DataDir = expandHome(cfg.Storage.DataDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromDir(dir string) error {
	for _, name := range []string{".fileindex.yaml", ".fileindex.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML decodes path over c. Keys absent from the file keep their current
// values; ignore patterns accumulate across layers.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	inherited := c.Ignore.Patterns
	c.Ignore.Patterns = nil
	if err := yaml.Unmarshal(data, c); err != nil {
		c.Ignore.Patterns = inherited
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.Ignore.Patterns = append(inherited, c.Ignore.Patterns...)
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FILEINDEX_DEBOUNCE"); v != "" {
		c.Pipeline.Debounce = v
	}
	if v := os.Getenv("FILEINDEX_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Pipeline.QueueSize = n
		}
	}
	if v := os.Getenv("FILEINDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Pipeline.Workers = n
		}
	}
	if v := os.Getenv("FILEINDEX_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("FILEINDEX_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("FILEINDEX_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("FILEINDEX_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("FILEINDEX_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("FILEINDEX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Pipeline.QueueSize <= 0 {
		return fmt.Errorf("pipeline.queue_size must be positive, got %d", c.Pipeline.QueueSize)
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.DebounceMaxPaths <= 0 {
		return fmt.Errorf("pipeline.debounce_max_paths must be positive, got %d", c.Pipeline.DebounceMaxPaths)
	}
	for name, v := range map[string]string{
		"pipeline.debounce":      c.Pipeline.Debounce,
		"pipeline.rename_window": c.Pipeline.RenameWindow,
		"pipeline.poll_interval": c.Pipeline.PollInterval,
		"embeddings.timeout":     c.Embeddings.Timeout,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, v)
		}
	}

	switch c.Storage.Driver {
	case DriverModernc, DriverMattn:
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", DriverModernc, DriverMattn, c.Storage.Driver)
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir must be set")
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case ProviderStatic, ProviderOllama:
	default:
		return fmt.Errorf("embeddings.provider must be %q or %q, got %q", ProviderStatic, ProviderOllama, c.Embeddings.Provider)
	}
	if c.Embeddings.Dimensions < 0 {
		return fmt.Errorf("embeddings.dimensions must not be negative, got %d", c.Embeddings.Dimensions)
	}

	if c.Extract.DescriptionLimit < 60 {
		return fmt.Errorf("extract.description_limit must be at least 60, got %d", c.Extract.DescriptionLimit)
	}
	if err := c.Extract.Types.validate(); err != nil {
		return err
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

func (t TypeTable) validate() error {
	owner := make(map[string]string)
	for category, exts := range t.Categories() {
		for _, ext := range exts {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				return fmt.Errorf("extract.types.%s: extension %q must start with a dot", category, ext)
			}
			if prev, ok := owner[ext]; ok && prev != category {
				return fmt.Errorf("extension %q is listed under both %s and %s", ext, prev, category)
			}
			owner[ext] = category
		}
	}
	return nil
}

// Categories returns the table keyed by category name.
func (t TypeTable) Categories() map[string][]string {
	return map[string][]string{
		"text":     t.Text,
		"image":    t.Image,
		"audio":    t.Audio,
		"video":    t.Video,
		"document": t.Document,
	}
}

// DebounceDelay returns the parsed debounce window.
func (c *Config) DebounceDelay() time.Duration {
	return mustDuration(c.Pipeline.Debounce, 400*time.Millisecond)
}

// RenameWindow returns the parsed rename pairing window.
func (c *Config) RenameWindow() time.Duration {
	return mustDuration(c.Pipeline.RenameWindow, 100*time.Millisecond)
}

// PollInterval returns the parsed polling interval.
func (c *Config) PollInterval() time.Duration {
	return mustDuration(c.Pipeline.PollInterval, 5*time.Second)
}

// EmbedTimeout returns the parsed per-request embedding timeout.
func (c *Config) EmbedTimeout() time.Duration {
	return mustDuration(c.Embeddings.Timeout, 30*time.Second)
}

// MetadataDBPath is the metadata store file inside the data directory.
func (c *Config) MetadataDBPath() string {
	return filepath.Join(c.Storage.DataDir, "metadata.db")
}

// VectorDBPath is the vector store file inside the data directory.
func (c *Config) VectorDBPath() string {
	return filepath.Join(c.Storage.DataDir, "vectors.db")
}

// LogFilePath resolves logging.file, defaulting into the data directory.
func (c *Config) LogFilePath() string {
	if c.Logging.File != "" {
		return expandHome(c.Logging.File)
	}
	return filepath.Join(c.Storage.DataDir, "logs", "fileindex.log")
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func mustDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
