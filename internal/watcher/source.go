package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	fierrors "github.com/Aman-CERP/fileindex/internal/errors"
)

// Options configures a Source.
type Options struct {
	// Recursive watches subdirectories, including ones created later.
	Recursive bool
	// RenameWindow is how long a rename waits for its matching create.
	// Default: 100ms
	RenameWindow time.Duration
	// PollInterval is the polling fallback interval. Default: 5s
	PollInterval time.Duration
	// EventBufferSize is the Events channel buffer. Default: 256
	EventBufferSize int
	// SkipDir prunes directories from the watch set.
	SkipDir func(path string) bool
	// ForcePolling disables fsnotify.
	ForcePolling bool
}

func (o Options) withDefaults() Options {
	if o.RenameWindow <= 0 {
		o.RenameWindow = 100 * time.Millisecond
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = 256
	}
	if o.SkipDir == nil {
		o.SkipDir = func(string) bool { return false }
	}
	return o
}

// watchList is the subset of *fsnotify.Watcher the source manages.
type watchList interface {
	Add(name string) error
	Remove(name string) error
}

type pendingRename struct {
	path  string
	isDir bool
	at    time.Time
}

// Source delivers normalized Events for a set of roots.
type Source struct {
	opts   Options
	events chan Event
	now    func() time.Time

	watches watchList
	dirs    map[string]bool
	pending []pendingRename

	mu   sync.Mutex
	mode string
}

// NewSource creates a Source. Call Run to start it.
func NewSource(opts Options) *Source {
	opts = opts.withDefaults()
	return &Source{
		opts:   opts,
		events: make(chan Event, opts.EventBufferSize),
		now:    time.Now,
		dirs:   make(map[string]bool),
	}
}

// Events is closed when Run returns.
func (s *Source) Events() <-chan Event {
	return s.events
}

// Mode reports "fsnotify" or "polling" once Run has started.
func (s *Source) Mode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Source) setMode(mode string) {
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
}

// Run watches roots until ctx is cancelled. It falls back to polling when
// fsnotify cannot be initialised.
func (s *Source) Run(ctx context.Context, roots ...string) error {
	defer close(s.events)

	abs := make([]string, 0, len(roots))
	for _, r := range roots {
		a, err := filepath.Abs(r)
		if err != nil {
			return fmt.Errorf("resolve root %s: %w", r, err)
		}
		abs = append(abs, a)
	}

	if !s.opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			defer fsw.Close()
			return s.runFsnotify(ctx, fsw, abs)
		}
		slog.Warn("fsnotify unavailable, falling back to polling",
			slog.String("error", err.Error()))
	}

	s.setMode("polling")
	p := newPoller(s.opts)
	return p.run(ctx, abs, func(ev Event) bool { return s.emit(ctx, ev) })
}

func (s *Source) runFsnotify(ctx context.Context, fsw *fsnotify.Watcher, roots []string) error {
	s.setMode("fsnotify")
	s.watches = fsw
	for _, root := range roots {
		if err := s.watchTree(root); err != nil {
			return fierrors.New(fierrors.ErrCodeWatchFailed, "watch "+root, err).
				WithSuggestion("check the path exists and the inotify watch limit (fs.inotify.max_user_watches)")
		}
	}
	slog.Info("watching", slog.Any("roots", roots), slog.Int("directories", len(s.dirs)))

	for {
		var expire <-chan time.Time
		if len(s.pending) > 0 {
			expire = time.After(s.pending[0].at.Add(s.opts.RenameWindow).Sub(s.now()))
		}

		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !s.handle(ctx, ev) {
				return nil
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", slog.String("error", err.Error()))
		case <-expire:
			if !s.flushExpired(ctx) {
				return nil
			}
		}
	}
}

// handle translates one fsnotify event. It returns false once ctx is done.
func (s *Source) handle(ctx context.Context, ev fsnotify.Event) bool {
	path := filepath.Clean(ev.Name)
	switch {
	case ev.Has(fsnotify.Create):
		return s.handleCreate(ctx, path)
	case ev.Has(fsnotify.Write):
		if s.dirs[path] {
			return true
		}
		return s.emit(ctx, Event{Op: OpModify, Path: path, Time: s.now()})
	case ev.Has(fsnotify.Remove):
		isDir := s.forget(path)
		return s.emit(ctx, Event{Op: OpDelete, Path: path, IsDir: isDir, Time: s.now()})
	case ev.Has(fsnotify.Rename):
		isDir := s.forget(path)
		for _, p := range s.pending {
			if p.path == path {
				// inotify reports a moved directory twice: from its parent and from itself
				return true
			}
		}
		s.pending = append(s.pending, pendingRename{path: path, isDir: isDir, at: s.now()})
		return true
	default:
		// Chmod
		return true
	}
}

func (s *Source) handleCreate(ctx context.Context, path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		// Gone again already; a later Remove reports it if it was ever seen.
		return true
	}
	isDir := info.IsDir()

	if !s.flushExpired(ctx) {
		return false
	}
	if old, ok := s.takePending(path, isDir); ok {
		if isDir && s.opts.Recursive {
			_ = s.watchTree(path)
			return s.expandDir(ctx, path, func(file string) Event {
				rel, _ := filepath.Rel(path, file)
				return Event{Op: OpMove, OldPath: filepath.Join(old.path, rel), Path: file, Time: s.now()}
			})
		}
		return s.emit(ctx, Event{Op: OpMove, OldPath: old.path, Path: path, IsDir: isDir, Time: s.now()})
	}

	if isDir {
		if !s.opts.Recursive || s.opts.SkipDir(path) {
			return s.emit(ctx, Event{Op: OpCreate, Path: path, IsDir: true, Time: s.now()})
		}
		_ = s.watchTree(path)
		return s.expandDir(ctx, path, func(file string) Event {
			return Event{Op: OpCreate, Path: file, Time: s.now()}
		})
	}
	return s.emit(ctx, Event{Op: OpCreate, Path: path, Time: s.now()})
}

// takePending pairs a create with a rename still inside its window. Only a
// rename of the same kind (file or directory) qualifies; one with the same
// base name wins over the oldest. Callers flush expired renames first.
//
// fsnotify drops inotify's rename cookie, so an unrelated file arriving
// right after another one left can still pair. The indexer checks the moved
// record against the file on disk and re-indexes when they differ.
func (s *Source) takePending(path string, isDir bool) (pendingRename, bool) {
	now := s.now()
	pick := -1
	for i, p := range s.pending {
		if p.isDir != isDir || now.Sub(p.at) > s.opts.RenameWindow {
			continue
		}
		if filepath.Base(p.path) == filepath.Base(path) {
			pick = i
			break
		}
		if pick < 0 {
			pick = i
		}
	}
	if pick < 0 {
		return pendingRename{}, false
	}
	p := s.pending[pick]
	s.pending = append(s.pending[:pick], s.pending[pick+1:]...)
	return p, true
}

// flushExpired reports renames that found no matching create as deletes:
// the file left the watched tree.
func (s *Source) flushExpired(ctx context.Context) bool {
	now := s.now()
	for len(s.pending) > 0 && now.Sub(s.pending[0].at) >= s.opts.RenameWindow {
		p := s.pending[0]
		s.pending = s.pending[1:]
		if !s.emit(ctx, Event{Op: OpDelete, Path: p.path, IsDir: p.isDir, Time: now}) {
			return false
		}
	}
	return true
}

// expandDir emits one event per regular file below dir.
func (s *Source) expandDir(ctx context.Context, dir string, mk func(string) Event) bool {
	ok := true
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && s.opts.SkipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !s.emit(ctx, mk(path)) {
			ok = false
			return filepath.SkipAll
		}
		return nil
	})
	return ok
}

// watchTree adds dir, and its subdirectories in recursive mode, to the watch list.
func (s *Source) watchTree(dir string) error {
	if !s.opts.Recursive {
		if err := s.watches.Add(dir); err != nil {
			return err
		}
		s.dirs[dir] = true
		return nil
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && s.opts.SkipDir(path) {
			return filepath.SkipDir
		}
		if err := s.watches.Add(path); err != nil {
			if path == dir {
				return err
			}
			slog.Warn("failed to watch directory", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		s.dirs[path] = true
		return nil
	})
}

// forget drops path and everything below it from the watch set and reports
// whether path was a watched directory.
func (s *Source) forget(path string) bool {
	if !s.dirs[path] {
		return false
	}
	prefix := path + string(filepath.Separator)
	for d := range s.dirs {
		if d == path || strings.HasPrefix(d, prefix) {
			_ = s.watches.Remove(d)
			delete(s.dirs, d)
		}
	}
	return true
}

// emit blocks until the consumer takes ev or ctx is done.
func (s *Source) emit(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
