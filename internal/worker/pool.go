// Package worker drains the job queue with a fixed set of goroutines and
// applies each job to the index.
//
// A job never takes a worker down: errors and panics are logged with the
// job's kind and path, and the job is acknowledged either way. Nothing is
// retried.
package worker

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"runtime/debug"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	fierrors "github.com/Aman-CERP/fileindex/internal/errors"
	"github.com/Aman-CERP/fileindex/internal/index"
	"github.com/Aman-CERP/fileindex/internal/queue"
)

// DefaultWorkers is the default pool size.
const DefaultWorkers = 4

// Handler applies jobs to the index. *index.Indexer implements it.
type Handler interface {
	IndexPath(ctx context.Context, path string) (index.Outcome, error)
	RemovePath(ctx context.Context, path string) (index.Outcome, error)
	MovePath(ctx context.Context, oldPath, newPath string) (index.Outcome, error)
}

// Ignorer reports whether a path is excluded from the index.
type Ignorer interface {
	Match(path string) bool
}

// Result is the outcome of one job, passed to Options.OnResult.
type Result struct {
	Job      queue.Job
	Outcome  index.Outcome
	Err      error
	Duration time.Duration
}

// Options configures a Pool.
type Options struct {
	// Workers is the number of concurrent workers. Default: 4
	Workers int

	// PathAffinity routes every job for the same path to the same worker,
	// so jobs for one path complete in arrival order.
	PathAffinity bool

	// LaneSize buffers each worker's lane in affinity mode. Default: 64
	LaneSize int

	// OnResult, if set, is called after every job from the worker goroutine.
	OnResult func(Result)

	Logger *slog.Logger
}

// Stats are cumulative job counters.
type Stats struct {
	Processed int64
	Failed    int64
	Skipped   int64
}

// Pool is a fixed-size set of workers draining one queue.
type Pool struct {
	q       *queue.Queue
	handler Handler
	ignore  Ignorer
	opts    Options
	log     *slog.Logger

	processed atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
}

// New creates a pool. ignore may be nil.
func New(q *queue.Queue, handler Handler, ignore Ignorer, opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.LaneSize <= 0 {
		opts.LaneSize = 64
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{q: q, handler: handler, ignore: ignore, opts: opts, log: logger}
}

// Stats returns a snapshot of the counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
		Skipped:   p.skipped.Load(),
	}
}

// Run blocks until ctx is cancelled. It returns nil on cancellation.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if p.opts.PathAffinity {
		lanes := make([]chan queue.Job, p.opts.Workers)
		for i := range lanes {
			lanes[i] = make(chan queue.Job, p.opts.LaneSize)
		}
		g.Go(func() error {
			p.dispatch(gctx, lanes)
			return nil
		})
		for i, lane := range lanes {
			g.Go(func() error {
				p.runLane(gctx, i, lane)
				return nil
			})
		}
	} else {
		for i := 0; i < p.opts.Workers; i++ {
			g.Go(func() error {
				p.runShared(gctx, i)
				return nil
			})
		}
	}

	p.log.Debug("worker pool started",
		slog.Int("workers", p.opts.Workers),
		slog.Bool("path_affinity", p.opts.PathAffinity))
	err := g.Wait()
	p.log.Debug("worker pool stopped")
	return err
}

func (p *Pool) runShared(ctx context.Context, id int) {
	for {
		job, err := p.q.Get(ctx)
		if err != nil {
			return
		}
		p.process(ctx, id, job)
		p.q.Done()
	}
}

// dispatch moves jobs from the queue to the lane owned by their path.
// A job stays unacknowledged until its lane worker finishes it.
func (p *Pool) dispatch(ctx context.Context, lanes []chan queue.Job) {
	defer func() {
		for _, lane := range lanes {
			close(lane)
		}
	}()
	for {
		job, err := p.q.Get(ctx)
		if err != nil {
			return
		}
		select {
		case lanes[laneFor(job.Key(), len(lanes))] <- job:
		case <-ctx.Done():
			p.q.Done()
			return
		}
	}
}

func (p *Pool) runLane(ctx context.Context, id int, lane <-chan queue.Job) {
	for job := range lane {
		if ctx.Err() == nil {
			p.process(ctx, id, job)
		}
		p.q.Done()
	}
}

func laneFor(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}

// process runs one job. It never panics and never returns an error.
func (p *Pool) process(ctx context.Context, id int, job queue.Job) {
	start := time.Now()
	var (
		outcome index.Outcome
		err     error
	)

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fierrors.InternalError(fmt.Sprintf("panic handling %s: %v", job, r), nil)
				p.log.Debug("recovered panic", slog.String("stack", string(debug.Stack())))
			}
		}()
		outcome, err = p.apply(ctx, job)
	}()

	p.report(id, job, outcome, err)
	if p.opts.OnResult != nil {
		p.opts.OnResult(Result{Job: job, Outcome: outcome, Err: err, Duration: time.Since(start)})
	}
}

func (p *Pool) apply(ctx context.Context, job queue.Job) (index.Outcome, error) {
	switch job.Kind {
	case queue.Created, queue.Modified:
		// The file may have changed since it was queued.
		info, err := os.Lstat(job.Path)
		if err != nil || !info.Mode().IsRegular() {
			return index.OutcomeSkipped, nil
		}
		if p.ignore != nil && p.ignore.Match(job.Path) {
			return index.OutcomeSkipped, nil
		}
		return p.handler.IndexPath(ctx, job.Path)
	case queue.Deleted:
		return p.handler.RemovePath(ctx, job.Path)
	case queue.Moved:
		return p.handler.MovePath(ctx, job.Src, job.Dst)
	default:
		return index.OutcomeSkipped, fierrors.InternalError("unknown job kind "+job.Kind.String(), nil)
	}
}

func (p *Pool) report(id int, job queue.Job, outcome index.Outcome, err error) {
	attrs := []slog.Attr{
		slog.String("kind", job.Kind.String()),
		slog.String("path", job.Path),
		slog.Int("worker", id),
	}
	if job.Kind == queue.Moved {
		attrs = append(attrs, slog.String("src", job.Src), slog.String("dst", job.Dst))
	}

	switch {
	case err != nil && fierrors.IsNotFound(err):
		p.skipped.Add(1)
		p.log.LogAttrs(context.Background(), slog.LevelDebug, "job skipped",
			append(attrs, slog.String("outcome", index.OutcomeSkipped.String()), slog.String("reason", "not found"))...)
	case err != nil:
		p.failed.Add(1)
		attrs = append(attrs, slog.String("outcome", "ERROR"))
		p.log.LogAttrs(context.Background(), slog.LevelError, "job failed", append(attrs, fierrors.LogAttrs(err)...)...)
	case outcome == index.OutcomeSkipped:
		p.skipped.Add(1)
		p.log.LogAttrs(context.Background(), slog.LevelDebug, "job skipped",
			append(attrs, slog.String("outcome", outcome.String()))...)
	default:
		p.processed.Add(1)
		p.log.LogAttrs(context.Background(), slog.LevelInfo, "job done",
			append(attrs, slog.String("outcome", outcome.String()))...)
	}
}
