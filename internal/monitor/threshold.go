// Package monitor implements the threshold-crossing watcher: a producer side
// fed by every hull-area recomputation and a dedicated consumer goroutine that
// reports exactly one notification per crossing of the configured threshold.
package monitor

import (
	"log"
	"sync"
)

// DefaultThreshold is the area boundary watched when none is configured.
const DefaultThreshold = 100.0

const (
	msgAboveThreshold = "At Least 100 units belongs to CH"
	msgBelowThreshold = "At Least 100 units no longer belongs to CH"
)

// Crossing describes one threshold transition. Up is true when the area moved
// from below the threshold to at or above it.
type Crossing struct {
	Up   bool
	Area float64
}

// Message returns the fixed notification text for the crossing direction.
func (c Crossing) Message() string {
	if c.Up {
		return msgAboveThreshold
	}
	return msgBelowThreshold
}

// ThresholdWatcher tracks the most recent hull area and wakes its watcher
// goroutine only on actual threshold flips; same-side recomputations are
// absorbed silently. Publish is safe to call from any number of goroutines.
type ThresholdWatcher struct {
	threshold float64
	notify    func(Crossing)

	mu      sync.Mutex
	area    float64
	above   bool
	started bool
	closed  bool

	events chan Crossing
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewThresholdWatcher creates a watcher for the given boundary. notify is
// invoked on the watcher goroutine for every crossing; nil logs the fixed
// message to the standard logger.
func NewThresholdWatcher(threshold float64, notify func(Crossing)) *ThresholdWatcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	w := &ThresholdWatcher{
		threshold: threshold,
		notify:    notify,
		events:    make(chan Crossing, 16),
		done:      make(chan struct{}),
	}
	if w.notify == nil {
		w.notify = func(c Crossing) { log.Printf("%s (area %.1f)", c.Message(), c.Area) }
	}
	return w
}

// Start launches the watcher goroutine. Calling Start more than once is a
// no-op.
func (w *ThresholdWatcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.watch()
}

// Publish records a recomputed area and, if the threshold was crossed, wakes
// the watcher. The lock is held across the channel send so concurrent flips
// reach the watcher in the order they were observed; the buffer keeps the
// send from blocking in practice.
func (w *ThresholdWatcher) Publish(area float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.area = area
	above := area >= w.threshold
	if above == w.above {
		return
	}
	w.above = above

	select {
	case w.events <- Crossing{Up: above, Area: area}:
	case <-w.done:
	}
}

// Area returns the most recently published area and whether it is at or above
// the threshold.
func (w *ThresholdWatcher) Area() (float64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.area, w.above
}

// Close wakes the watcher with the shutdown flag set and waits for it to
// exit. Pending crossings that were already recorded are still delivered.
// Safe to call more than once and without a prior Start.
func (w *ThresholdWatcher) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	started := w.started
	w.started = true // block a late Start from spawning a goroutine
	w.mu.Unlock()

	close(w.done)
	if started {
		w.wg.Wait()
	}
}

func (w *ThresholdWatcher) watch() {
	defer w.wg.Done()
	for {
		select {
		case c := <-w.events:
			w.notify(c)
		case <-w.done:
			// Drain whatever was queued before the shutdown signal.
			for {
				select {
				case c := <-w.events:
					w.notify(c)
				default:
					return
				}
			}
		}
	}
}
