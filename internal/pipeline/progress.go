package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	fierrors "github.com/Aman-CERP/fileindex/internal/errors"
	"github.com/Aman-CERP/fileindex/internal/index"
	"github.com/Aman-CERP/fileindex/internal/worker"
)

// Status is the overall pipeline state.
type Status string

const (
	StatusRunning Status = "running"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// Stage is the phase a running pipeline is in.
type Stage string

const (
	StageStarting    Stage = "starting"
	StageReconciling Stage = "reconciling"
	StageScanning    Stage = "scanning"
	StageWatching    Stage = "watching"
	StageDraining    Stage = "draining"
)

// Snapshot is an immutable copy of pipeline progress.
type Snapshot struct {
	Status         string  `json:"status"`
	Stage          string  `json:"stage"`
	Queued         int64   `json:"queued"`
	Processed      int64   `json:"processed"`
	Indexed        int64   `json:"indexed"`
	Removed        int64   `json:"removed"`
	Moved          int64   `json:"moved"`
	Skipped        int64   `json:"skipped"`
	Failed         int64   `json:"failed"`
	ProgressPct    float64 `json:"progress_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	LastPath       string  `json:"last_path,omitempty"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}

// Progress tracks jobs entering the queue and the outcomes workers report.
// It is safe for concurrent use.
type Progress struct {
	queued    atomic.Int64
	processed atomic.Int64
	indexed   atomic.Int64
	removed   atomic.Int64
	moved     atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64

	mu       sync.RWMutex
	status   Status
	stage    Stage
	start    time.Time
	lastPath string
	errMsg   string
}

// NewProgress creates a tracker in the starting stage.
func NewProgress() *Progress {
	return &Progress{status: StatusRunning, stage: StageStarting, start: time.Now()}
}

// SetStage moves the pipeline to a new stage.
func (p *Progress) SetStage(stage Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = stage
}

// AddQueued counts jobs accepted by the queue.
func (p *Progress) AddQueued(n int64) {
	p.queued.Add(n)
}

// Observe records one worker result.
func (p *Progress) Observe(r worker.Result) {
	p.processed.Add(1)
	switch {
	case fierrors.IsNotFound(r.Err):
		p.skipped.Add(1)
	case r.Err != nil:
		p.failed.Add(1)
	case r.Outcome == index.OutcomeIndexed:
		p.indexed.Add(1)
	case r.Outcome == index.OutcomeRemoved:
		p.removed.Add(1)
	case r.Outcome == index.OutcomeMoved:
		p.moved.Add(1)
	default:
		p.skipped.Add(1)
	}

	p.mu.Lock()
	p.lastPath = r.Job.Path
	p.mu.Unlock()
}

// SetError marks the pipeline as failed.
func (p *Progress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = StatusError
	p.errMsg = message
}

// SetReady marks the pipeline as finished without error.
func (p *Progress) SetReady() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != StatusError {
		p.status = StatusReady
	}
}

// Done reports whether the pipeline has stopped.
func (p *Progress) Done() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status != StatusRunning
}

// Snapshot returns the current state.
func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	queued := p.queued.Load()
	processed := p.processed.Load()
	var pct float64
	if queued > 0 {
		pct = float64(processed) / float64(queued) * 100.0
	}

	return Snapshot{
		Status:         string(p.status),
		Stage:          string(p.stage),
		Queued:         queued,
		Processed:      processed,
		Indexed:        p.indexed.Load(),
		Removed:        p.removed.Load(),
		Moved:          p.moved.Load(),
		Skipped:        p.skipped.Load(),
		Failed:         p.failed.Load(),
		ProgressPct:    pct,
		ElapsedSeconds: int(time.Since(p.start).Seconds()),
		LastPath:       p.lastPath,
		ErrorMessage:   p.errMsg,
	}
}
