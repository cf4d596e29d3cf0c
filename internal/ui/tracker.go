package ui

import (
	"strings"
	"sync"
	"time"
)

// sampleEvery is the minimum spacing of throughput samples.
const sampleEvery = 500 * time.Millisecond

// Tracker accumulates progress events for the TUI. It is safe for
// concurrent use.
type Tracker struct {
	mu          sync.RWMutex
	stage       Stage
	processed   int
	queued      int
	currentFile string
	start       time.Time
	errors      int
	warnings    int

	lastProcessed int
	lastSample    time.Time
	speed         float64
	avgSpeed      float64
	peakSpeed     float64
	history       *throughput
}

// TrackerStats is a snapshot of a Tracker.
type TrackerStats struct {
	Stage       Stage
	Processed   int
	Queued      int
	Fraction    float64
	CurrentFile string
	Errors      int
	Warnings    int
	Speed       float64
	AvgSpeed    float64
	PeakSpeed   float64
	Elapsed     time.Duration
}

// NewTracker creates a tracker in the reconciling stage.
func NewTracker() *Tracker {
	now := time.Now()
	return &Tracker{
		stage:      StageReconciling,
		start:      now,
		lastSample: now,
		history:    newThroughput(60),
	}
}

// Update applies a progress event and samples throughput.
func (t *Tracker) Update(ev ProgressEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stage = ev.Stage
	t.processed = ev.Processed
	t.queued = ev.Queued
	if ev.CurrentFile != "" {
		t.currentFile = ev.CurrentFile
	}

	now := time.Now()
	elapsed := now.Sub(t.lastSample)
	if elapsed < sampleEvery {
		return
	}
	speed := float64(ev.Processed-t.lastProcessed) / elapsed.Seconds()
	if speed < 0 {
		speed = 0
	}
	t.speed = speed
	if t.avgSpeed == 0 {
		t.avgSpeed = speed
	} else {
		t.avgSpeed = 0.2*speed + 0.8*t.avgSpeed
	}
	if speed > t.peakSpeed {
		t.peakSpeed = speed
	}
	t.history.add(speed)
	t.lastProcessed = ev.Processed
	t.lastSample = now
}

// AddError counts a failed job.
func (t *Tracker) AddError(ev ErrorEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ev.IsWarn {
		t.warnings++
	} else {
		t.errors++
	}
}

// Stats returns the current snapshot.
func (t *Tracker) Stats() TrackerStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var frac float64
	if t.queued > 0 {
		frac = float64(t.processed) / float64(t.queued)
		if frac > 1 {
			frac = 1
		}
	}
	return TrackerStats{
		Stage:       t.stage,
		Processed:   t.processed,
		Queued:      t.queued,
		Fraction:    frac,
		CurrentFile: t.currentFile,
		Errors:      t.errors,
		Warnings:    t.warnings,
		Speed:       t.speed,
		AvgSpeed:    t.avgSpeed,
		PeakSpeed:   t.peakSpeed,
		Elapsed:     time.Since(t.start),
	}
}

// Sparkline renders recent throughput in at most width cells.
func (t *Tracker) Sparkline(width int) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.history.render(width)
}

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// throughput is a ring of speed samples.
type throughput struct {
	samples []float64
	head    int
	count   int
}

func newThroughput(size int) *throughput {
	return &throughput{samples: make([]float64, size)}
}

func (r *throughput) add(v float64) {
	r.samples[r.head] = v
	r.head = (r.head + 1) % len(r.samples)
	if r.count < len(r.samples) {
		r.count++
	}
}

// recent returns up to n samples, oldest first.
func (r *throughput) recent(n int) []float64 {
	if n > r.count {
		n = r.count
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		idx := (r.head - n + i + len(r.samples)) % len(r.samples)
		out[i] = r.samples[idx]
	}
	return out
}

func (r *throughput) render(width int) string {
	if width <= 0 {
		width = len(r.samples)
	}
	vals := r.recent(width)
	peak := 1.0
	for _, v := range vals {
		if v > peak {
			peak = v
		}
	}

	var sb strings.Builder
	for _, v := range vals {
		idx := int(v / peak * float64(len(sparkChars)-1))
		sb.WriteRune(sparkChars[max(0, min(idx, len(sparkChars)-1))])
	}
	sb.WriteString(strings.Repeat(" ", width-len(vals)))
	return sb.String()
}
