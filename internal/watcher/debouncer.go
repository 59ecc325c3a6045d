package watcher

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Debouncer groups rapid file changes together. A batch is emitted once no
// new change has arrived for the configured delay.
type Debouncer struct {
	delay   time.Duration
	output  chan []ChangeEvent
	timer   *time.Timer
	pending map[string]ChangeEvent
	seq     uint64
	stopped bool
	mutex   sync.Mutex
}

// NewDebouncer creates a debouncer with the given quiet period.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		output:  make(chan []ChangeEvent, 1),
		pending: make(map[string]ChangeEvent),
	}
}

// Output delivers debounced batches, one event per path, ordered by path.
func (d *Debouncer) Output() <-chan []ChangeEvent {
	return d.output
}

func (d *Debouncer) start(ctx context.Context, done <-chan struct{}) {
	select {
	case <-ctx.Done():
	case <-done:
	}
	d.stop()
}

func (d *Debouncer) add(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.stopped {
		return
	}
	d.pending[event.Path] = event
	d.arm()
}

// arm restarts the quiet period. Callers hold the mutex.
func (d *Debouncer) arm() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(d.delay, func() {
		d.flush(seq)
	})
}

func (d *Debouncer) flush(seq uint64) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	// A newer change re-armed the timer after this one fired.
	if d.stopped || seq != d.seq || len(d.pending) == 0 {
		return
	}

	events := make([]ChangeEvent, 0, len(d.pending))
	for _, event := range d.pending {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })

	select {
	case d.output <- events:
		d.pending = make(map[string]ChangeEvent)
	default:
		// The consumer is still busy with the previous batch; keep the
		// changes and try again after another quiet period.
		d.arm()
	}
}

func (d *Debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
