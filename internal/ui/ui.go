// Package ui renders sync progress and index status in the terminal:
// a bubbletea view on interactive terminals and plain lines elsewhere.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage is a phase of a one-shot index run.
type Stage int

const (
	StageReconciling Stage = iota
	StageScanning
	StageDraining
	StageComplete
)

// StageFromName maps a pipeline stage name to a Stage. Unknown names map
// to StageScanning.
func StageFromName(name string) Stage {
	switch name {
	case "starting", "reconciling":
		return StageReconciling
	case "draining":
		return StageDraining
	default:
		return StageScanning
	}
}

func (s Stage) String() string {
	switch s {
	case StageReconciling:
		return "Reconcile"
	case StageScanning:
		return "Scan"
	case StageDraining:
		return "Drain"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon is the tag printed by the plain renderer.
func (s Stage) Icon() string {
	switch s {
	case StageReconciling:
		return "CHECK"
	case StageScanning:
		return "SCAN"
	case StageDraining:
		return "DRAIN"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent is a point-in-time view of the run.
type ProgressEvent struct {
	Stage Stage
	// Processed jobs out of Queued so far. Queued grows while scanning.
	Processed   int
	Queued      int
	CurrentFile string
}

// ErrorEvent is a failed job.
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool
}

// CompletionStats summarise a finished run.
type CompletionStats struct {
	Queued   int
	Indexed  int
	Removed  int
	Moved    int
	Skipped  int
	Failed   int
	Pruned   int
	Duration time.Duration
	Space    string
}

// Renderer displays progress.
type Renderer interface {
	Start(ctx context.Context) error
	UpdateProgress(event ProgressEvent)
	AddError(event ErrorEvent)
	Complete(stats CompletionStats)
	Stop() error
}

// Config configures a renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	// Title is shown in the TUI header, typically the roots.
	Title string
}

// ConfigOption modifies a Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

// WithTitle sets the TUI header.
func WithTitle(title string) ConfigOption {
	return func(c *Config) { c.Title = title }
}

// NewConfig creates a Config for output.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer returns the TUI renderer on an interactive terminal and the
// plain renderer for pipes, CI, or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks for common CI environment variables.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
