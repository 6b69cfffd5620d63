package watch

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces rapid file events into settled batches, adapted
// turbogrep doesn't need
// per-event semantics (a resync re-derives everything from a full
// diff), so it tracks only that *something* changed in the window
// rather than coalescing create/modify/delete per path.
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending int
	timer   *time.Timer
	output  chan int
	stopCh  chan struct{}
	stopped bool
}

func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window: window,
		output: make(chan int, 10),
		stopCh: make(chan struct{}),
	}
}

// Mark records that a path changed, (re)starting the settle timer.
func (d *Debouncer) Mark() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending++
	d.scheduleFlush()
}

func (d *Debouncer) scheduleFlush() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || d.pending == 0 {
		return
	}
	count := d.pending
	d.pending = 0

	select {
	case d.output <- count:
	default:
		slog.Warn("watch debouncer output full, dropping settle signal", slog.Int("events", count))
	}
}

// Output emits the number of marks coalesced into each settled batch.
func (d *Debouncer) Output() <-chan int {
	return d.output
}

func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.stopCh)
	close(d.output)
}
