package watcher

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/fileindex/internal/queue"
)

// Sink receives translated jobs. *queue.Queue implements it.
type Sink interface {
	Put(ctx context.Context, job queue.Job) error
}

// Ignorer is the ignore predicate applied to every path.
type Ignorer interface {
	Match(path string) bool
}

// Translator converts Events into Jobs. Directory events are dropped: only
// regular files produce jobs, and the worker re-checks file type because the
// translator never touches the filesystem.
type Translator struct {
	ignore   Ignorer
	debounce *Debouncer
	sink     Sink
	now      func() time.Time

	enqueued   atomic.Uint64
	suppressed atomic.Uint64
}

// NewTranslator wires an ignore predicate, a debouncer and a job sink.
func NewTranslator(ignore Ignorer, debounce *Debouncer, sink Sink) *Translator {
	return &Translator{
		ignore:   ignore,
		debounce: debounce,
		sink:     sink,
		now:      time.Now,
	}
}

// Run translates events until the channel closes or ctx is done.
func (t *Translator) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := t.Handle(ctx, ev); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// Handle translates one event, blocking while the sink is full.
func (t *Translator) Handle(ctx context.Context, ev Event) error {
	if ev.IsDir {
		return nil
	}

	var job queue.Job
	switch ev.Op {
	case OpCreate:
		job = queue.NewJob(queue.Created, ev.Path)
	case OpModify:
		job = queue.NewJob(queue.Modified, ev.Path)
	case OpDelete:
		job = queue.NewJob(queue.Deleted, ev.Path)
	case OpMove:
		var ok bool
		if job, ok = t.translateMove(ev); !ok {
			return nil
		}
	default:
		return nil
	}

	if job.Kind != queue.Moved && t.ignore.Match(job.Path) {
		return nil
	}
	if job.Kind == queue.Created || job.Kind == queue.Modified {
		at := ev.Time
		if at.IsZero() {
			at = t.now()
		}
		if !t.debounce.Accept(job.Path, at) {
			t.suppressed.Add(1)
			slog.Debug("debounced", slog.String("kind", job.Kind.String()), slog.String("path", job.Path))
			return nil
		}
	}

	if err := t.sink.Put(ctx, job); err != nil {
		return err
	}
	t.enqueued.Add(1)
	return nil
}

// translateMove handles moves across the ignore boundary: a move out of
// ignored space is a create (an editor's temp-file save), a move into it
// is a delete.
func (t *Translator) translateMove(ev Event) (queue.Job, bool) {
	srcIgnored := t.ignore.Match(ev.OldPath)
	dstIgnored := t.ignore.Match(ev.Path)
	switch {
	case srcIgnored && dstIgnored:
		return queue.Job{}, false
	case srcIgnored:
		return queue.NewJob(queue.Created, ev.Path), true
	case dstIgnored:
		return queue.NewJob(queue.Deleted, ev.OldPath), true
	default:
		return queue.NewMove(ev.OldPath, ev.Path), true
	}
}

// Stats returns the number of jobs enqueued and events suppressed by debounce.
func (t *Translator) Stats() (enqueued, suppressed uint64) {
	return t.enqueued.Load(), t.suppressed.Load()
}
