package session

import (
	"sync"
	"time"
)

// debouncer coalesces bursts of state changes into one persist call. Each
// trigger restarts the window; the callback runs once the window expires with
// no further triggers, always observing the latest state at fire time.
// Re-triggering after a fire is safe and starts a new cycle.
type debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	timer   *time.Timer
	pending bool
	fn      func()
}

func newDebouncer(window time.Duration, fn func()) *debouncer {
	if window <= 0 {
		window = 500 * time.Millisecond
	}
	return &debouncer{window: window, fn: fn}
}

// trigger (re)starts the debounce window.
func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *debouncer) fire() {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.mu.Unlock()

	d.fn()
}

// flush runs the callback immediately if a write is pending. Used on
// teardown so the last burst is never lost.
func (d *debouncer) flush() {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()

	d.fn()
}
