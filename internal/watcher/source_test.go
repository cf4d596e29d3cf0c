package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWatches struct {
	added   []string
	removed []string
}

func (f *fakeWatches) Add(name string) error {
	f.added = append(f.added, name)
	return nil
}

func (f *fakeWatches) Remove(name string) error {
	f.removed = append(f.removed, name)
	return nil
}

// newManualSource builds a Source driven by handle() calls and a fake clock.
func newManualSource(t *testing.T) (*Source, *fakeWatches, *time.Time) {
	t.Helper()
	now := time.Unix(1_700_000_000, 0)
	s := NewSource(Options{Recursive: true, EventBufferSize: 64})
	s.now = func() time.Time { return now }
	fw := &fakeWatches{}
	s.watches = fw
	return s, fw, &now
}

func drain(s *Source) []Event {
	var out []Event
	for {
		select {
		case ev := <-s.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestSource_PairsRenameWithCreate(t *testing.T) {
	// Given: a renamed file whose new name exists
	dir := t.TempDir()
	newPath := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(newPath, []byte("hello"), 0o644))
	s, _, _ := newManualSource(t)
	ctx := context.Background()

	// When: fsnotify reports Rename(old) then Create(new)
	s.handle(ctx, fsnotify.Event{Name: filepath.Join(dir, "a.txt"), Op: fsnotify.Rename})
	s.handle(ctx, fsnotify.Event{Name: newPath, Op: fsnotify.Create})

	// Then: one move is emitted
	events := drain(s)
	require.Len(t, events, 1)
	assert.Equal(t, OpMove, events[0].Op)
	assert.Equal(t, filepath.Join(dir, "a.txt"), events[0].OldPath)
	assert.Equal(t, newPath, events[0].Path)
}

func TestSource_UnpairedRenameBecomesDelete(t *testing.T) {
	// Given: a rename with no create
	s, _, now := newManualSource(t)
	ctx := context.Background()
	s.handle(ctx, fsnotify.Event{Name: "/r/gone.txt", Op: fsnotify.Rename})
	assert.Empty(t, drain(s))

	// When: the window expires
	*now = now.Add(150 * time.Millisecond)
	require.True(t, s.flushExpired(ctx))

	// Then: it is reported as a delete
	events := drain(s)
	require.Len(t, events, 1)
	assert.Equal(t, OpDelete, events[0].Op)
	assert.Equal(t, "/r/gone.txt", events[0].Path)
}

func TestSource_LateCreateIsNotPaired(t *testing.T) {
	dir := t.TempDir()
	fresh := filepath.Join(dir, "fresh.txt")
	require.NoError(t, os.WriteFile(fresh, nil, 0o644))
	s, _, now := newManualSource(t)
	ctx := context.Background()

	s.handle(ctx, fsnotify.Event{Name: "/r/old.txt", Op: fsnotify.Rename})
	*now = now.Add(time.Second)
	s.handle(ctx, fsnotify.Event{Name: fresh, Op: fsnotify.Create})

	events := drain(s)
	require.Len(t, events, 2)
	assert.Equal(t, Event{Op: OpDelete, Path: "/r/old.txt", Time: *now}, events[0])
	assert.Equal(t, OpCreate, events[1].Op)
	assert.Equal(t, fresh, events[1].Path)
}

func TestSource_DirectoryRenameDoesNotPairWithFileCreate(t *testing.T) {
	// Given: a watched directory renamed out of the tree
	root := t.TempDir()
	oldDir := filepath.Join(root, "olddir")
	note := filepath.Join(root, "note.txt")
	require.NoError(t, os.WriteFile(note, []byte("hello"), 0o644))
	s, _, now := newManualSource(t)
	s.dirs[oldDir] = true
	ctx := context.Background()

	// When: a new file appears inside the rename window
	s.handle(ctx, fsnotify.Event{Name: oldDir, Op: fsnotify.Rename})
	s.handle(ctx, fsnotify.Event{Name: note, Op: fsnotify.Create})

	// Then: the file is created on its own
	events := drain(s)
	require.Len(t, events, 1)
	assert.Equal(t, Event{Op: OpCreate, Path: note, Time: *now}, events[0])

	// And: the directory rename later expires as a directory delete
	*now = now.Add(150 * time.Millisecond)
	require.True(t, s.flushExpired(ctx))
	events = drain(s)
	require.Len(t, events, 1)
	assert.Equal(t, Event{Op: OpDelete, Path: oldDir, IsDir: true, Time: *now}, events[0])
}

func TestSource_FileRenameDoesNotPairWithDirectoryCreate(t *testing.T) {
	root := t.TempDir()
	newDir := filepath.Join(root, "incoming")
	require.NoError(t, os.Mkdir(newDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(newDir, "a.txt"), nil, 0o644))
	s, _, _ := newManualSource(t)
	ctx := context.Background()

	s.handle(ctx, fsnotify.Event{Name: filepath.Join(root, "gone.txt"), Op: fsnotify.Rename})
	s.handle(ctx, fsnotify.Event{Name: newDir, Op: fsnotify.Create})

	events := drain(s)
	require.Len(t, events, 1)
	assert.Equal(t, OpCreate, events[0].Op)
	assert.Equal(t, filepath.Join(newDir, "a.txt"), events[0].Path)
	require.Len(t, s.pending, 1)
	assert.Equal(t, filepath.Join(root, "gone.txt"), s.pending[0].path)
}

func TestSource_PairsRenameWithSameNameFirst(t *testing.T) {
	// Given: two pending file renames, the older one with a different name
	root := t.TempDir()
	dst := filepath.Join(root, "report.txt")
	require.NoError(t, os.WriteFile(dst, []byte("q3"), 0o644))
	s, _, _ := newManualSource(t)
	ctx := context.Background()
	s.handle(ctx, fsnotify.Event{Name: filepath.Join(root, "other.txt"), Op: fsnotify.Rename})
	s.handle(ctx, fsnotify.Event{Name: filepath.Join(root, "sub", "report.txt"), Op: fsnotify.Rename})

	// When: report.txt appears at the root
	s.handle(ctx, fsnotify.Event{Name: dst, Op: fsnotify.Create})

	// Then: it pairs with the rename that shares its name
	events := drain(s)
	require.Len(t, events, 1)
	assert.Equal(t, OpMove, events[0].Op)
	assert.Equal(t, filepath.Join(root, "sub", "report.txt"), events[0].OldPath)
	assert.Equal(t, dst, events[0].Path)
	require.Len(t, s.pending, 1)
	assert.Equal(t, filepath.Join(root, "other.txt"), s.pending[0].path)
}

func TestSource_DirectoryRenameExpandsToFileMoves(t *testing.T) {
	// Given: a watched directory renamed to a new name with two files inside
	root := t.TempDir()
	oldDir := filepath.Join(root, "old")
	newDir := filepath.Join(root, "new")
	require.NoError(t, os.MkdirAll(filepath.Join(newDir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(newDir, "a.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(newDir, "sub", "b.txt"), nil, 0o644))

	s, fw, _ := newManualSource(t)
	s.dirs[oldDir] = true
	s.dirs[filepath.Join(oldDir, "sub")] = true
	ctx := context.Background()

	// When: the rename pair arrives, including inotify's duplicate self-rename
	s.handle(ctx, fsnotify.Event{Name: oldDir, Op: fsnotify.Rename})
	s.handle(ctx, fsnotify.Event{Name: oldDir, Op: fsnotify.Rename})
	s.handle(ctx, fsnotify.Event{Name: newDir, Op: fsnotify.Create})

	// Then: each file moves, old watches are dropped and new ones added
	events := drain(s)
	require.Len(t, events, 2)
	moves := map[string]string{}
	for _, ev := range events {
		assert.Equal(t, OpMove, ev.Op)
		moves[ev.OldPath] = ev.Path
	}
	assert.Equal(t, filepath.Join(newDir, "a.txt"), moves[filepath.Join(oldDir, "a.txt")])
	assert.Equal(t, filepath.Join(newDir, "sub", "b.txt"), moves[filepath.Join(oldDir, "sub", "b.txt")])
	assert.ElementsMatch(t, []string{oldDir, filepath.Join(oldDir, "sub")}, fw.removed)
	assert.Contains(t, fw.added, newDir)
	assert.Contains(t, fw.added, filepath.Join(newDir, "sub"))
	assert.Empty(t, s.pending)
}

func TestSource_NewDirectoryWithContentEmitsCreates(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "incoming")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "HEAD"), nil, 0o644))

	s, _, _ := newManualSource(t)
	s.opts.SkipDir = func(p string) bool { return filepath.Base(p) == ".git" }

	s.handle(context.Background(), fsnotify.Event{Name: dir, Op: fsnotify.Create})

	events := drain(s)
	require.Len(t, events, 1)
	assert.Equal(t, Event{Op: OpCreate, Path: filepath.Join(dir, "a.txt"), Time: s.now()}, events[0])
}

func TestSource_WriteRemoveAndChmod(t *testing.T) {
	s, _, _ := newManualSource(t)
	ctx := context.Background()
	s.dirs["/r/dir"] = true

	s.handle(ctx, fsnotify.Event{Name: "/r/a.txt", Op: fsnotify.Write})
	s.handle(ctx, fsnotify.Event{Name: "/r/a.txt", Op: fsnotify.Chmod})
	s.handle(ctx, fsnotify.Event{Name: "/r/a.txt", Op: fsnotify.Remove})
	s.handle(ctx, fsnotify.Event{Name: "/r/dir", Op: fsnotify.Remove})

	events := drain(s)
	require.Len(t, events, 3)
	assert.Equal(t, OpModify, events[0].Op)
	assert.Equal(t, OpDelete, events[1].Op)
	assert.False(t, events[1].IsDir)
	assert.True(t, events[2].IsDir)
}

func TestSource_EmitStopsOnCancelledContext(t *testing.T) {
	s := NewSource(Options{EventBufferSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, s.emit(ctx, Event{Op: OpCreate, Path: "/a"}))

	cancel()

	assert.False(t, s.emit(ctx, Event{Op: OpCreate, Path: "/b"}))
}

func TestSource_RunDetectsLiveChanges(t *testing.T) {
	// Given: a running source on a temp dir
	root := t.TempDir()
	s := NewSource(Options{Recursive: true, RenameWindow: 200 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, root) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)

	// When: a file is written and then renamed
	a := filepath.Join(root, "a.txt")
	b := filepath.Join(root, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("hello"), 0o644))
	waitFor(t, s.Events(), func(ev Event) bool { return ev.Op == OpCreate && ev.Path == a })
	require.NoError(t, os.Rename(a, b))

	// Then: the rename arrives as a single move
	waitFor(t, s.Events(), func(ev Event) bool {
		return ev.Op == OpMove && ev.OldPath == a && ev.Path == b
	})
	assert.Equal(t, "fsnotify", s.Mode())
}

func TestSource_PollingFallback(t *testing.T) {
	root := t.TempDir()
	s := NewSource(Options{Recursive: true, ForcePolling: true, PollInterval: 20 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, root) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(50 * time.Millisecond)

	path := filepath.Join(root, "p.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	waitFor(t, s.Events(), func(ev Event) bool { return ev.Op == OpCreate && ev.Path == path })

	require.NoError(t, os.Remove(path))
	waitFor(t, s.Events(), func(ev Event) bool { return ev.Op == OpDelete && ev.Path == path })
	assert.Equal(t, "polling", s.Mode())
}

func waitFor(t *testing.T, events <-chan Event, match func(Event) bool) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "events channel closed")
			if match(ev) {
				return
			}
		case <-deadline:
			t.Fatal("timeout waiting for event")
		}
	}
}
