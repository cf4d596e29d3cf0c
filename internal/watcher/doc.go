// Package watcher turns filesystem notifications into pipeline jobs.
//
// A Source delivers normalized Events for one or more roots, using fsnotify
// when available and a polling snapshot differ otherwise. fsnotify reports a
// rename as Rename(old) followed by Create(new); the Source pairs the two into
// a single OpMove and reports an unpaired rename as a delete once its window
// expires.
//
// The Translator consumes Events, drops directories and ignored paths,
// filters created/modified events through the Debouncer and enqueues Jobs.
// Enqueueing blocks when the job queue is full, and the Source blocks behind
// it, so backpressure reaches the notification stream instead of dropping
// events.
//
// Usage:
//
//	src := watcher.NewSource(watcher.Options{Recursive: true, SkipDir: m.MatchDir})
//	tr := watcher.NewTranslator(m, watcher.NewDebouncer(400*time.Millisecond, 0), q)
//	go func() { _ = src.Run(ctx, roots...) }()
//	err := tr.Run(ctx, src.Events())
package watcher
