package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer writes progress as lines, for pipes and CI logs. Progress
// lines are throttled; stage changes always print.
type PlainRenderer struct {
	mu        sync.Mutex
	out       io.Writer
	interval  time.Duration
	stage     Stage
	started   bool
	lastPrint time.Time
	lastCount int
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output, interval: time.Second}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(ev ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := !r.started || ev.Stage != r.stage
	due := ev.Processed != r.lastCount && time.Since(r.lastPrint) >= r.interval
	if !changed && !due {
		return
	}
	r.started = true
	r.stage = ev.Stage
	r.lastPrint = time.Now()
	r.lastCount = ev.Processed

	if ev.Queued > 0 {
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d %s\n", ev.Stage.Icon(), ev.Processed, ev.Queued, ev.CurrentFile)
	} else {
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", ev.Stage.Icon(), ev.Stage)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(ev ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := "ERROR"
	if ev.IsWarn {
		prefix = "WARN"
	}
	if ev.File != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, ev.File, ev.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, ev.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(s CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d indexed, %d removed, %d moved, %d skipped in %s",
		s.Indexed, s.Removed, s.Moved, s.Skipped, s.Duration.Round(100*time.Millisecond))
	if s.Failed > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d failed)", s.Failed)
	}
	_, _ = fmt.Fprintln(r.out)
	if s.Pruned > 0 {
		_, _ = fmt.Fprintf(r.out, "Pruned %d files no longer on disk\n", s.Pruned)
	}
	if s.Space != "" {
		_, _ = fmt.Fprintf(r.out, "Embedding space: %s\n", s.Space)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}
