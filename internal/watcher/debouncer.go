package watcher

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultDebounce is the default per-path quiet window.
const DefaultDebounce = 400 * time.Millisecond

// DefaultDebounceMaxPaths bounds the number of paths the Debouncer remembers.
const DefaultDebounceMaxPaths = 100000

// Debouncer suppresses rapid repeat events for the same path. The window
// slides: a rejected event still refreshes the path's timestamp, so a
// continuous burst stays suppressed until the path has been quiet for the
// full delay.
//
// The path map is an LRU bounded by maxPaths. Evicting a path only means its
// next event is accepted, the same outcome as a quiet period.
type Debouncer struct {
	delay time.Duration

	mu   sync.Mutex
	last *simplelru.LRU[string, time.Time]
}

// NewDebouncer creates a Debouncer. maxPaths <= 0 uses DefaultDebounceMaxPaths.
func NewDebouncer(delay time.Duration, maxPaths int) *Debouncer {
	if maxPaths <= 0 {
		maxPaths = DefaultDebounceMaxPaths
	}
	last, err := simplelru.NewLRU[string, time.Time](maxPaths, nil)
	if err != nil {
		panic(err) // unreachable: size is positive
	}
	return &Debouncer{delay: delay, last: last}
}

// Accept reports whether an event for path at now should pass.
func (d *Debouncer) Accept(path string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev, seen := d.last.Get(path)
	d.last.Add(path, now)
	if seen && now.Sub(prev) < d.delay {
		return false
	}
	return true
}

// Len is the number of tracked paths.
func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last.Len()
}
