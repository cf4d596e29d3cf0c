// Package scanner walks watched roots once at startup and queues a created
// job for every file already on disk, so the index catches up with changes
// made while nothing was watching.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/fileindex/internal/queue"
)

// Sink receives jobs. *queue.Queue implements it.
type Sink interface {
	Put(ctx context.Context, job queue.Job) error
}

// Ignorer filters files and prunes directories.
type Ignorer interface {
	Match(path string) bool
	MatchDir(path string) bool
}

// PathLister lists indexed paths below a root. The metadata store
// implements it.
type PathLister interface {
	PathsUnder(ctx context.Context, root string) ([]string, error)
}

// Options configures a Scanner.
type Options struct {
	// Recursive walks the whole tree; otherwise only direct children.
	Recursive bool

	// Indexed enables pruning: indexed paths under a root that no longer
	// exist, or are now ignored, get a deleted job. Nil disables pruning.
	Indexed PathLister

	Logger *slog.Logger
}

// Summary totals a scan.
type Summary struct {
	Roots    int
	Queued   int64
	Pruned   int64
	Errors   int64
	Duration time.Duration
}

// Scanner feeds existing files into a Sink. It does not debounce.
type Scanner struct {
	sink   Sink
	ignore Ignorer
	opts   Options
	log    *slog.Logger
}

// New creates a Scanner. ignore may be nil.
func New(sink Sink, ignore Ignorer, opts Options) *Scanner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{sink: sink, ignore: ignore, opts: opts, log: logger}
}

type counters struct {
	queued atomic.Int64
	pruned atomic.Int64
	errors atomic.Int64
}

// Scan walks every root concurrently and returns once all jobs are queued.
// It fails if a root is not a directory or the sink rejects a job.
func (s *Scanner) Scan(ctx context.Context, roots ...string) (Summary, error) {
	start := time.Now()
	var c counters

	abs := make([]string, 0, len(roots))
	for _, root := range roots {
		a, err := validateRoot(root)
		if err != nil {
			return Summary{}, err
		}
		abs = append(abs, a)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, root := range abs {
		g.Go(func() error {
			if err := s.walk(gctx, root, &c); err != nil {
				return err
			}
			if s.opts.Indexed != nil {
				return s.prune(gctx, root, &c)
			}
			return nil
		})
	}
	err := g.Wait()

	sum := Summary{
		Roots:    len(abs),
		Queued:   c.queued.Load(),
		Pruned:   c.pruned.Load(),
		Errors:   c.errors.Load(),
		Duration: time.Since(start),
	}
	s.log.Info("initial scan complete",
		slog.Int("roots", sum.Roots),
		slog.Int64("queued", sum.Queued),
		slog.Int64("pruned", sum.Pruned),
		slog.Int64("errors", sum.Errors),
		slog.Duration("duration", sum.Duration))
	return sum, err
}

func validateRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("stat root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("root is not a directory: %s", abs)
	}
	return abs, nil
}

func (s *Scanner) walk(ctx context.Context, root string, c *counters) error {
	if !s.opts.Recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return fmt.Errorf("read root %s: %w", root, err)
		}
		for _, d := range entries {
			if d.IsDir() {
				continue
			}
			queued, err := s.visitFile(ctx, filepath.Join(root, d.Name()), d)
			if err != nil {
				return err
			}
			if queued {
				c.queued.Add(1)
			}
		}
		return nil
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			c.errors.Add(1)
			s.log.Debug("scan: skipping unreadable path",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		if d.IsDir() {
			if s.ignore != nil && s.ignore.MatchDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		queued, err := s.visitFile(ctx, path, d)
		if queued {
			c.queued.Add(1)
		}
		return err
	})
}

// visitFile queues a created job for a regular, non-ignored file.
// Symlinks are never followed.
func (s *Scanner) visitFile(ctx context.Context, path string, d fs.DirEntry) (bool, error) {
	if !d.Type().IsRegular() {
		return false, nil
	}
	if s.ignore != nil && s.ignore.Match(path) {
		return false, nil
	}
	if err := s.sink.Put(ctx, queue.NewJob(queue.Created, path)); err != nil {
		return false, fmt.Errorf("queue %s: %w", path, err)
	}
	return true, nil
}

// prune queues deleted jobs for indexed paths under root that are gone
// from disk or now excluded.
func (s *Scanner) prune(ctx context.Context, root string, c *counters) error {
	paths, err := s.opts.Indexed.PathsUnder(ctx, root)
	if err != nil {
		return fmt.Errorf("list indexed paths under %s: %w", root, err)
	}
	for _, p := range paths {
		if !s.opts.Recursive && filepath.Dir(p) != root {
			continue
		}
		if !s.stale(p) {
			continue
		}
		if err := s.sink.Put(ctx, queue.NewJob(queue.Deleted, p)); err != nil {
			return fmt.Errorf("queue removal of %s: %w", p, err)
		}
		c.pruned.Add(1)
	}
	return nil
}

func (s *Scanner) stale(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return errors.Is(err, fs.ErrNotExist)
	}
	if !info.Mode().IsRegular() {
		return true
	}
	return s.ignore != nil && s.ignore.Match(path)
}
