package daemon

import (
	"sync"
	"time"
)

// debouncer collapses multiple events on the same path into one within
// window, flushing each path's latest event once it has settled
// (spec.md §4.7: "a map from path to the latest event plus a timer that
// flushes after the window elapses").
type debouncer struct {
	window time.Duration
	out    chan<- FileChange

	mu      sync.Mutex
	pending map[string]FileChange
	timers  map[string]*time.Timer
	closed  bool
}

func newDebouncer(window time.Duration, out chan<- FileChange) *debouncer {
	return &debouncer{
		window:  window,
		out:     out,
		pending: make(map[string]FileChange),
		timers:  make(map[string]*time.Timer),
	}
}

// Add records ev as the latest event for its path, (re)starting that
// path's settle timer.
func (d *debouncer) Add(ev FileChange) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	d.pending[ev.Path] = ev
	if t, ok := d.timers[ev.Path]; ok {
		t.Stop()
	}
	d.timers[ev.Path] = time.AfterFunc(d.window, func() { d.flush(ev.Path) })
}

func (d *debouncer) flush(path string) {
	d.mu.Lock()
	ev, ok := d.pending[path]
	if ok {
		delete(d.pending, path)
		delete(d.timers, path)
	}
	closed := d.closed
	d.mu.Unlock()

	if ok && !closed {
		d.out <- ev
	}
}

// Close stops all pending timers without flushing them, used on
// shutdown so in-flight debounces don't race a closed output channel.
func (d *debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for _, t := range d.timers {
		t.Stop()
	}
}
