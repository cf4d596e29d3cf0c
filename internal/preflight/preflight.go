// Package preflight checks that the environment can run a watcher before it
// starts: the data directory is writable with room to grow, the process
// may open enough files, the kernel can watch every directory, and the
// configured embedder answers.
//
//	c := preflight.New(cfg, roots...)
//	results := c.Run(ctx)
//	if preflight.HasCriticalFailures(results) {
//	    // refuse to start
//	}
package preflight

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/fileindex/internal/config"
	"github.com/Aman-CERP/fileindex/internal/embed"
	"github.com/Aman-CERP/fileindex/internal/ignore"
)

// Thresholds.
const (
	MinDiskSpaceBytes  = 100 * 1024 * 1024
	MinFileDescriptors = 1024
	embedderTimeout    = 10 * time.Second
)

// Status is the outcome of one check.
type Status int

const (
	StatusPass Status = iota
	StatusWarn
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the status by name in JSON output.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is one check.
type Result struct {
	Name     string `json:"name"`
	Status   Status `json:"status"`
	Message  string `json:"message"`
	Hint     string `json:"hint,omitempty"`
	Required bool   `json:"required"`
}

// IsCritical reports a failed required check.
func (r Result) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker runs the checks for one configuration and set of roots.
type Checker struct {
	cfg   *config.Config
	roots []string

	// newEmbedder is swapped in tests.
	newEmbedder func(context.Context, config.EmbeddingsConfig) (embed.Embedder, error)
	// watchLimit reports the per-user directory watch limit, if the
	// platform has one.
	watchLimit func() (int, bool)
}

func New(cfg *config.Config, roots ...string) *Checker {
	return &Checker{
		cfg:         cfg,
		roots:       roots,
		newEmbedder: embed.New,
		watchLimit:  maxUserWatches,
	}
}

// Run executes every check in a fixed order.
func (c *Checker) Run(ctx context.Context) []Result {
	results := []Result{
		c.CheckDataDir(),
		c.CheckDiskSpace(),
		c.CheckFileDescriptors(),
	}
	for _, root := range c.roots {
		results = append(results, c.CheckRoot(root))
	}
	if len(c.roots) > 0 {
		results = append(results, c.CheckWatchLimit())
	}
	return append(results, c.CheckEmbedder(ctx))
}

// HasCriticalFailures reports whether any required check failed.
func HasCriticalFailures(results []Result) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// Summary is "failed", "ready_with_warnings" or "ready".
func Summary(results []Result) string {
	warn := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status != StatusPass {
			warn = true
		}
	}
	if warn {
		return "ready_with_warnings"
	}
	return "ready"
}

// CheckDataDir creates the data directory if needed and writes a probe file.
func (c *Checker) CheckDataDir() Result {
	r := Result{Name: "data_dir", Required: true}
	dir := c.cfg.Storage.DataDir

	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.Status = StatusFail
		r.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		r.Hint = "Choose another location with --data-dir"
		return r
	}
	f, err := os.CreateTemp(dir, ".preflight-*")
	if err != nil {
		r.Status = StatusFail
		r.Message = fmt.Sprintf("%s is not writable: %v", dir, err)
		r.Hint = "Choose another location with --data-dir"
		return r
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	r.Message = dir
	return r
}

// CheckRoot verifies a root is a readable directory.
func (c *Checker) CheckRoot(root string) Result {
	r := Result{Name: "root", Required: true}

	info, err := os.Stat(root)
	switch {
	case err != nil:
		r.Status = StatusFail
		r.Message = fmt.Sprintf("%s: %v", root, err)
	case !info.IsDir():
		r.Status = StatusFail
		r.Message = root + " is not a directory"
	default:
		if _, err := os.ReadDir(root); err != nil {
			r.Status = StatusFail
			r.Message = fmt.Sprintf("%s is not readable: %v", root, err)
			return r
		}
		r.Message = root
	}
	return r
}

// CheckWatchLimit counts the directories a recursive watch would register
// and compares them with the kernel limit.
func (c *Checker) CheckWatchLimit() Result {
	r := Result{Name: "watch_limit"}

	limit, ok := c.watchLimit()
	if !ok {
		r.Message = "no per-user watch limit on this platform"
		return r
	}

	dirs, err := c.countDirs()
	if err != nil {
		r.Status = StatusWarn
		r.Message = fmt.Sprintf("could not count directories: %v", err)
		return r
	}

	r.Message = fmt.Sprintf("%d directories, limit %d", dirs, limit)
	if dirs >= limit {
		r.Status = StatusWarn
		r.Hint = "Raise fs.inotify.max_user_watches, or run 'fileindex watch --poll'"
	}
	return r
}

func (c *Checker) countDirs() (int, error) {
	m, err := ignore.New(ignore.Options{
		Patterns: c.cfg.Ignore.Patterns,
		Roots:    c.roots,
		Reserved: []string{c.cfg.Storage.DataDir},
	})
	if err != nil {
		return 0, err
	}

	n := 0
	for _, root := range c.roots {
		if !c.cfg.Pipeline.Recursive {
			n++
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && m.MatchDir(path) {
				return filepath.SkipDir
			}
			n++
			return nil
		})
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// CheckEmbedder builds the configured embedder and asks whether it is ready.
func (c *Checker) CheckEmbedder(ctx context.Context) Result {
	r := Result{Name: "embedder", Required: true}

	ctx, cancel := context.WithTimeout(ctx, embedderTimeout)
	defer cancel()

	e, err := c.newEmbedder(ctx, c.cfg.Embeddings)
	if err != nil {
		r.Status = StatusFail
		r.Message = err.Error()
		if c.cfg.Embeddings.Provider == config.ProviderOllama {
			r.Hint = fmt.Sprintf("Start Ollama and run 'ollama pull %s', or set embeddings.provider: static", c.cfg.Embeddings.Model)
		}
		return r
	}
	defer func() { _ = e.Close() }()

	if !e.Available(ctx) {
		r.Status = StatusFail
		r.Message = e.ModelName() + " is not responding"
		return r
	}
	r.Message = fmt.Sprintf("%s (%d dimensions)", e.Space(), e.Dimensions())
	return r
}
