package watcher

import (
	"context"
	"time"
)

// Debouncer groups rapid file changes together. Events for the same path
// inside one window collapse to the latest one.
type Debouncer struct {
	delay time.Duration
}

// NewDebouncer creates a debouncer with the given quiet period.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Run reads events from in and emits a batch on out once no new event has
// arrived for the debounce delay. Pending events are flushed when in closes.
// out is closed when Run returns.
func (d *Debouncer) Run(ctx context.Context, in <-chan ChangeEvent, out chan<- []ChangeEvent) {
	defer close(out)

	var (
		pending = make(map[string]int)
		batch   []ChangeEvent
		timer   *time.Timer
		fire    <-chan time.Time
	)

	emit := func() bool {
		if len(batch) == 0 {
			return true
		}
		select {
		case out <- batch:
		case <-ctx.Done():
			return false
		}
		batch = nil
		pending = make(map[string]int)
		return true
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-in:
			if !ok {
				if timer != nil {
					timer.Stop()
				}
				emit()
				return
			}
			if i, seen := pending[event.Path]; seen {
				batch[i] = event
			} else {
				pending[event.Path] = len(batch)
				batch = append(batch, event)
			}
			if timer == nil {
				timer = time.NewTimer(d.delay)
			} else {
				timer.Reset(d.delay)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if !emit() {
				return
			}
		}
	}
}
