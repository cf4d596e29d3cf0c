package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"
)

type snapshot struct {
	modTime time.Time
	size    int64
}

// poller diffs periodic snapshots of regular files. It cannot see renames,
// which surface as a delete plus a create.
type poller struct {
	opts  Options
	state map[string]snapshot
}

func newPoller(opts Options) *poller {
	return &poller{opts: opts, state: make(map[string]snapshot)}
}

func (p *poller) run(ctx context.Context, roots []string, emit func(Event) bool) error {
	p.state = p.snapshot(roots)

	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !p.diff(roots, emit) {
				return nil
			}
		}
	}
}

// diff emits the changes since the previous snapshot. It returns false once
// emit refuses an event.
func (p *poller) diff(roots []string, emit func(Event) bool) bool {
	current := p.snapshot(roots)
	now := time.Now()

	for path, cur := range current {
		prev, ok := p.state[path]
		switch {
		case !ok:
			if !emit(Event{Op: OpCreate, Path: path, Time: now}) {
				return false
			}
		case !prev.modTime.Equal(cur.modTime) || prev.size != cur.size:
			if !emit(Event{Op: OpModify, Path: path, Time: now}) {
				return false
			}
		}
	}
	for path := range p.state {
		if _, ok := current[path]; !ok {
			if !emit(Event{Op: OpDelete, Path: path, Time: now}) {
				return false
			}
		}
	}

	p.state = current
	return true
}

func (p *poller) snapshot(roots []string) map[string]snapshot {
	out := make(map[string]snapshot)
	for _, root := range roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if path == root {
					return nil
				}
				if !p.opts.Recursive || p.opts.SkipDir(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				// removed between listing and stat
				return nil
			}
			out[path] = snapshot{modTime: info.ModTime(), size: info.Size()}
			return nil
		})
	}
	return out
}
