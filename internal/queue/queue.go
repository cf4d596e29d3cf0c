package queue

import (
	"context"
	"sync"

	fierrors "github.com/Aman-CERP/fileindex/internal/errors"
)

// DefaultCapacity is the default bound on outstanding jobs.
const DefaultCapacity = 10000

// ErrClosed is returned by Put once the queue stops admitting jobs.
var ErrClosed = fierrors.New(fierrors.ErrCodeQueueClosed, "job queue is closed", nil)

// Queue is a bounded FIFO of jobs. Put blocks while the queue is full and Get
// blocks while it is empty. Every job taken with Get must be acknowledged with
// Done; Wait returns once every job put has been acknowledged.
type Queue struct {
	ch chan Job

	mu         sync.Mutex
	unfinished int
	closed     bool
	idle       []chan struct{}
}

// New creates a queue holding at most capacity pending jobs.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{ch: make(chan Job, capacity)}
}

// Put enqueues job, blocking until there is room or ctx is done.
func (q *Queue) Put(ctx context.Context, job Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.unfinished++
	q.mu.Unlock()

	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		q.Done()
		return ctx.Err()
	}
}

// Get takes the oldest job, blocking until one is available or ctx is done.
func (q *Queue) Get(ctx context.Context) (Job, error) {
	select {
	case job := <-q.ch:
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Done acknowledges one job taken with Get as fully processed.
func (q *Queue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unfinished <= 0 {
		panic("queue: Done called more times than Put")
	}
	q.unfinished--
	if q.unfinished == 0 {
		for _, ch := range q.idle {
			close(ch)
		}
		q.idle = nil
	}
}

// Wait blocks until every job put so far has been acknowledged, or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	if q.unfinished == 0 {
		q.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	q.idle = append(q.idle, ch)
	q.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue from admitting new jobs. Jobs already queued can
// still be taken and acknowledged.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// Len is the number of jobs waiting to be taken.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap is the queue's capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Pending is the number of jobs put but not yet acknowledged.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unfinished
}
