// Package pipeline wires the sync pipeline together: stores, extractor,
// embedder, indexer, job queue, worker pool, initial scanner, and for
// watch mode the event source and translator.
//
// Startup order is stores, workers, reconciliation, then producers.
// Shutdown runs the other way: producers stop, the queue is closed and
// drained, workers stop, and Close releases the stores.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/fileindex/internal/config"
	"github.com/Aman-CERP/fileindex/internal/embed"
	fierrors "github.com/Aman-CERP/fileindex/internal/errors"
	"github.com/Aman-CERP/fileindex/internal/extract"
	"github.com/Aman-CERP/fileindex/internal/ignore"
	"github.com/Aman-CERP/fileindex/internal/index"
	"github.com/Aman-CERP/fileindex/internal/queue"
	"github.com/Aman-CERP/fileindex/internal/scanner"
	"github.com/Aman-CERP/fileindex/internal/store"
	"github.com/Aman-CERP/fileindex/internal/watcher"
	"github.com/Aman-CERP/fileindex/internal/worker"
)

// Options configures a Pipeline beyond what the config file holds.
type Options struct {
	// Roots are the directories to index or watch.
	Roots []string

	// Embedder replaces the configured provider. The pipeline takes
	// ownership and closes it.
	Embedder embed.Embedder

	// ForcePolling disables native file notifications.
	ForcePolling bool

	// DrainTimeout bounds the wait for queued jobs at shutdown.
	// Zero waits until the queue is empty.
	DrainTimeout time.Duration

	// OnResult is called after every job, from the worker goroutine.
	OnResult func(worker.Result)

	Logger *slog.Logger
}

// Pipeline runs once: call Index or Watch, then Close.
type Pipeline struct {
	cfg   *config.Config
	opts  Options
	roots []string
	log   *slog.Logger

	queue    *queue.Queue
	sink     *countingSink
	ignore   *ignore.Matcher
	meta     *store.SQLiteMetadataStore
	vectors  *store.SQLiteVectorStore
	embedder embed.Embedder
	indexer  *index.Indexer
	pool     *worker.Pool
	scanner  *scanner.Scanner
	progress *Progress

	mu      sync.Mutex
	started bool
	source  *watcher.Source
	closed  bool
}

// countingSink forwards jobs to the queue and counts the accepted ones.
type countingSink struct {
	q        *queue.Queue
	progress *Progress
}

func (s *countingSink) Put(ctx context.Context, job queue.Job) error {
	if err := s.q.Put(ctx, job); err != nil {
		return err
	}
	s.progress.AddQueued(1)
	return nil
}

// Open validates roots and builds every component. A store that cannot be
// opened is fatal.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Pipeline, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	roots, err := resolveRoots(opts.Roots)
	if err != nil {
		return nil, err
	}

	matcher, err := ignore.New(ignore.Options{
		Patterns: cfg.Ignore.Patterns,
		Roots:    roots,
		Reserved: []string{cfg.Storage.DataDir},
	})
	if err != nil {
		return nil, fierrors.ConfigError("invalid ignore pattern", err)
	}

	storeOpts := store.Options{Driver: cfg.Storage.Driver, CacheMB: cfg.Storage.CacheMB}
	meta, err := store.NewMetadataStore(cfg.MetadataDBPath(), storeOpts)
	if err != nil {
		return nil, fierrors.New(fierrors.ErrCodeStoreOpen, "open metadata store", err).
			WithDetail("path", cfg.MetadataDBPath())
	}
	vectors, err := store.NewVectorStore(cfg.VectorDBPath(), storeOpts)
	if err != nil {
		_ = meta.Close()
		return nil, fierrors.New(fierrors.ErrCodeStoreOpen, "open vector store", err).
			WithDetail("path", cfg.VectorDBPath())
	}

	embedder := opts.Embedder
	if embedder == nil {
		embedder, err = embed.New(ctx, cfg.Embeddings)
		if err != nil {
			_ = vectors.Close()
			_ = meta.Close()
			return nil, err
		}
	}

	p := &Pipeline{
		cfg:      cfg,
		opts:     opts,
		roots:    roots,
		log:      logger,
		queue:    queue.New(cfg.Pipeline.QueueSize),
		ignore:   matcher,
		meta:     meta,
		vectors:  vectors,
		embedder: embedder,
		progress: NewProgress(),
	}
	p.sink = &countingSink{q: p.queue, progress: p.progress}
	p.indexer = index.New(meta, vectors, extract.NewFromConfig(cfg.Extract), embedder)
	p.pool = worker.New(p.queue, p.indexer, matcher, worker.Options{
		Workers:      cfg.Pipeline.Workers,
		PathAffinity: cfg.Pipeline.PathAffinity,
		OnResult:     p.observe,
		Logger:       logger,
	})

	scanOpts := scanner.Options{Recursive: cfg.Pipeline.Recursive, Logger: logger}
	if cfg.Pipeline.PruneMissing {
		scanOpts.Indexed = meta
	}
	p.scanner = scanner.New(p.sink, matcher, scanOpts)

	logger.Info("pipeline ready",
		slog.Any("roots", roots),
		slog.String("space", embedder.Space()),
		slog.Int("workers", cfg.Pipeline.Workers),
		slog.Int("queue_size", p.queue.Cap()),
		slog.String("driver", cfg.Storage.Driver))
	return p, nil
}

func resolveRoots(roots []string) ([]string, error) {
	if len(roots) == 0 {
		return nil, fierrors.ValidationError("at least one root is required", nil)
	}
	out := make([]string, 0, len(roots))
	seen := make(map[string]bool, len(roots))
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fierrors.New(fierrors.ErrCodeInvalidPath, "resolve root "+r, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fierrors.New(fierrors.ErrCodeInvalidPath, "root does not exist: "+abs, err)
		}
		if !info.IsDir() {
			return nil, fierrors.New(fierrors.ErrCodeInvalidPath, "root is not a directory: "+abs, nil)
		}
		if !seen[abs] {
			seen[abs] = true
			out = append(out, abs)
		}
	}
	return out, nil
}

func (p *Pipeline) observe(r worker.Result) {
	p.progress.Observe(r)
	if p.opts.OnResult != nil {
		p.opts.OnResult(r)
	}
}

// Roots returns the absolute, de-duplicated roots.
func (p *Pipeline) Roots() []string {
	return append([]string(nil), p.roots...)
}

// Space is the embedding space vectors are written to.
func (p *Pipeline) Space() string {
	return p.indexer.Space()
}

// Progress exposes live counters for progress rendering.
func (p *Pipeline) Progress() *Progress {
	return p.progress
}

// Stats returns the worker pool counters.
func (p *Pipeline) Stats() worker.Stats {
	return p.pool.Stats()
}

// SourceMode reports "fsnotify" or "polling" while watching, "" otherwise.
func (p *Pipeline) SourceMode() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.source == nil {
		return ""
	}
	return p.source.Mode()
}

func (p *Pipeline) begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fierrors.InternalError("pipeline is closed", nil)
	}
	if p.started {
		return fierrors.InternalError("pipeline already ran", nil)
	}
	p.started = true
	return nil
}

// Index scans the roots once and returns after every queued job has been
// processed. Cancelling ctx abandons the jobs still queued.
func (p *Pipeline) Index(ctx context.Context) (scanner.Summary, error) {
	if err := p.begin(); err != nil {
		return scanner.Summary{}, err
	}
	stopWorkers := p.startWorkers(ctx)
	defer stopWorkers()

	p.reconcile(ctx)

	p.progress.SetStage(StageScanning)
	sum, scanErr := p.scanner.Scan(ctx, p.roots...)

	p.progress.SetStage(StageDraining)
	drainErr := p.drain(ctx)
	_ = stopWorkers()

	err := scanErr
	if err == nil {
		err = drainErr
	}
	p.finish(err)
	return sum, err
}

// Watch runs the initial scan and the event source concurrently until ctx
// is cancelled, then stops admitting events and drains the queue before
// returning.
func (p *Pipeline) Watch(ctx context.Context) error {
	if err := p.begin(); err != nil {
		return err
	}
	stopWorkers := p.startWorkers(ctx)
	defer stopWorkers()

	p.reconcile(ctx)

	source := watcher.NewSource(watcher.Options{
		Recursive:    p.cfg.Pipeline.Recursive,
		RenameWindow: p.cfg.RenameWindow(),
		PollInterval: p.cfg.PollInterval(),
		SkipDir:      p.ignore.MatchDir,
		ForcePolling: p.opts.ForcePolling,
	})
	translator := watcher.NewTranslator(p.ignore,
		watcher.NewDebouncer(p.cfg.DebounceDelay(), p.cfg.Pipeline.DebounceMaxPaths),
		p.sink)
	p.mu.Lock()
	p.source = source
	p.mu.Unlock()

	p.progress.SetStage(StageWatching)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return source.Run(gctx, p.roots...)
	})
	g.Go(func() error {
		return translator.Run(gctx, source.Events())
	})
	g.Go(func() error {
		if _, err := p.scanner.Scan(gctx, p.roots...); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})
	runErr := g.Wait()
	if runErr == nil && ctx.Err() == nil {
		p.log.Warn("event source stopped unexpectedly")
	}

	enqueued, suppressed := translator.Stats()
	p.log.Info("stopping watcher, draining queue",
		slog.Int("pending", p.queue.Pending()),
		slog.Uint64("events_enqueued", enqueued),
		slog.Uint64("events_debounced", suppressed))

	p.progress.SetStage(StageDraining)
	drainErr := p.drain(context.WithoutCancel(ctx))
	_ = stopWorkers()

	err := runErr
	if err == nil {
		err = drainErr
	}
	p.finish(err)
	return err
}

// startWorkers runs the pool on a context that outlives ctx so queued jobs
// can drain after cancellation. The returned func stops the pool and waits.
func (p *Pipeline) startWorkers(ctx context.Context) func() error {
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan error, 1)
	go func() { done <- p.pool.Run(wctx) }()

	var (
		once sync.Once
		err  error
	)
	return func() error {
		once.Do(func() {
			cancel()
			err = <-done
		})
		return err
	}
}

// drain closes the queue to producers and waits for it to empty.
func (p *Pipeline) drain(ctx context.Context) error {
	p.queue.Close()
	if p.opts.DrainTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.DrainTimeout)
		defer cancel()
	}
	if err := p.queue.Wait(ctx); err != nil {
		p.log.Warn("queue not drained",
			slog.Int("pending", p.queue.Pending()),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

// reconcile removes orphan vectors and re-queues files whose vector is
// missing in the current space, such as after a failed vector write or a
// switch of embedding provider.
func (p *Pipeline) reconcile(ctx context.Context) {
	p.progress.SetStage(StageReconciling)
	checker := index.NewConsistencyChecker(p.meta, p.vectors, p.indexer.Space())
	res, err := checker.Check(ctx)
	if err != nil {
		p.log.Warn("consistency check failed", slog.String("error", err.Error()))
		return
	}
	if len(res.Inconsistencies) == 0 {
		return
	}

	requeued := 0
	for _, path := range checker.Repair(ctx, res.Inconsistencies) {
		if !p.underRoot(path) {
			continue
		}
		if err := p.sink.Put(ctx, queue.NewJob(queue.Modified, path)); err != nil {
			p.log.Warn("failed to requeue file", slog.String("path", path), slog.String("error", err.Error()))
			return
		}
		requeued++
	}
	p.log.Info("consistency repaired",
		slog.Int("checked", res.Checked),
		slog.Int("missing_vectors", res.Count(index.InconsistencyMissingVector)),
		slog.Int("orphan_vectors", res.Count(index.InconsistencyOrphanVector)),
		slog.Int("requeued", requeued))
}

func (p *Pipeline) underRoot(path string) bool {
	for _, root := range p.roots {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (p *Pipeline) finish(err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		p.progress.SetError(err.Error())
		return
	}
	p.progress.SetReady()
}

// Close releases the embedder and both stores. It is safe to call twice.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var errs []error
	if err := p.embedder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close embedder: %w", err))
	}
	if err := p.vectors.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close vector store: %w", err))
	}
	if err := p.meta.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close metadata store: %w", err))
	}
	return errors.Join(errs...)
}
