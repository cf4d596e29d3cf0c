package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fileindex/internal/ignore"
	"github.com/Aman-CERP/fileindex/internal/queue"
)

type recordingSink struct {
	mu   sync.Mutex
	jobs []queue.Job
}

func (s *recordingSink) Put(_ context.Context, job queue.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *recordingSink) Jobs() []queue.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]queue.Job(nil), s.jobs...)
}

func newTestTranslator() (*Translator, *recordingSink) {
	sink := &recordingSink{}
	return NewTranslator(ignore.Default(), NewDebouncer(400*time.Millisecond, 0), sink), sink
}

func TestTranslator_MapsOperationsToJobs(t *testing.T) {
	tr, sink := newTestTranslator()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, tr.Handle(ctx, Event{Op: OpCreate, Path: "/r/a.txt", Time: now}))
	require.NoError(t, tr.Handle(ctx, Event{Op: OpModify, Path: "/r/b.txt", Time: now}))
	require.NoError(t, tr.Handle(ctx, Event{Op: OpDelete, Path: "/r/c.txt", Time: now}))
	require.NoError(t, tr.Handle(ctx, Event{Op: OpMove, OldPath: "/r/d.txt", Path: "/r/e.txt", Time: now}))

	assert.Equal(t, []queue.Job{
		queue.NewJob(queue.Created, "/r/a.txt"),
		queue.NewJob(queue.Modified, "/r/b.txt"),
		queue.NewJob(queue.Deleted, "/r/c.txt"),
		queue.NewMove("/r/d.txt", "/r/e.txt"),
	}, sink.Jobs())
}

func TestTranslator_IgnoredPathsNeverProduceJobs(t *testing.T) {
	tr, sink := newTestTranslator()
	ctx := context.Background()

	for _, p := range []string{"/r/.git/HEAD", "/r/Thumbs.db", "/r/notes.txt.swp"} {
		for _, op := range []Operation{OpCreate, OpModify, OpDelete} {
			require.NoError(t, tr.Handle(ctx, Event{Op: op, Path: p, Time: time.Now()}))
		}
	}

	assert.Empty(t, sink.Jobs())
}

func TestTranslator_DropsDirectoryEvents(t *testing.T) {
	tr, sink := newTestTranslator()

	require.NoError(t, tr.Handle(context.Background(), Event{Op: OpDelete, Path: "/r/dir", IsDir: true}))

	assert.Empty(t, sink.Jobs())
}

func TestTranslator_DebouncesCreateAndModifyOnly(t *testing.T) {
	// Given: rapid events on one path
	tr, sink := newTestTranslator()
	ctx := context.Background()
	t0 := time.Now()

	// When: create, modify and delete arrive within the window
	require.NoError(t, tr.Handle(ctx, Event{Op: OpCreate, Path: "/r/a.txt", Time: t0}))
	require.NoError(t, tr.Handle(ctx, Event{Op: OpModify, Path: "/r/a.txt", Time: t0.Add(50 * time.Millisecond)}))
	require.NoError(t, tr.Handle(ctx, Event{Op: OpDelete, Path: "/r/a.txt", Time: t0.Add(60 * time.Millisecond)}))

	// Then: the modify is suppressed but the delete always passes
	assert.Equal(t, []queue.Job{
		queue.NewJob(queue.Created, "/r/a.txt"),
		queue.NewJob(queue.Deleted, "/r/a.txt"),
	}, sink.Jobs())
	enq, sup := tr.Stats()
	assert.Equal(t, uint64(2), enq)
	assert.Equal(t, uint64(1), sup)
}

func TestTranslator_MovesAcrossIgnoreBoundary(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want []queue.Job
	}{
		{
			name: "temp file saved over target becomes create",
			ev:   Event{Op: OpMove, OldPath: "/r/a.txt.tmp", Path: "/r/a.txt"},
			want: []queue.Job{queue.NewJob(queue.Created, "/r/a.txt")},
		},
		{
			name: "move into ignored dir becomes delete",
			ev:   Event{Op: OpMove, OldPath: "/r/a.txt", Path: "/r/.cache/a.txt"},
			want: []queue.Job{queue.NewJob(queue.Deleted, "/r/a.txt")},
		},
		{
			name: "both ignored is dropped",
			ev:   Event{Op: OpMove, OldPath: "/r/x.swp", Path: "/r/y.swp"},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, sink := newTestTranslator()
			require.NoError(t, tr.Handle(context.Background(), tt.ev))
			assert.Equal(t, tt.want, sink.Jobs())
		})
	}
}

func TestTranslator_BlocksOnFullQueue(t *testing.T) {
	// Given: a queue of capacity 1 that already holds a job
	q := queue.New(1)
	tr := NewTranslator(ignore.Default(), NewDebouncer(time.Millisecond, 0), q)
	ctx := context.Background()
	require.NoError(t, tr.Handle(ctx, Event{Op: OpDelete, Path: "/r/first.txt"}))

	// When: another event arrives
	done := make(chan error, 1)
	go func() { done <- tr.Handle(ctx, Event{Op: OpDelete, Path: "/r/second.txt"}) }()

	// Then: the translator blocks until a worker takes a job
	select {
	case <-done:
		t.Fatal("Handle returned while queue was full")
	case <-time.After(50 * time.Millisecond):
	}
	_, err := q.Get(ctx)
	require.NoError(t, err)
	q.Done()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Handle did not unblock")
	}
	assert.Equal(t, 1, q.Len())
}

func TestTranslator_RunStopsWhenChannelCloses(t *testing.T) {
	tr, sink := newTestTranslator()
	events := make(chan Event, 2)
	events <- Event{Op: OpCreate, Path: "/r/a.txt"}
	close(events)

	require.NoError(t, tr.Run(context.Background(), events))
	assert.Len(t, sink.Jobs(), 1)
}
