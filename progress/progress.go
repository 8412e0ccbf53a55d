// Package progress reports how far a batch of trials has advanced.
package progress

import (
	"context"
	"sync"
	"time"
)

// Snapshot is the state of a tracker at one tick.
type Snapshot struct {
	Total   int
	Done    int
	Failed  int
	Elapsed time.Duration
}

// Finished reports whether every trial has been accounted for.
func (s Snapshot) Finished() bool { return s.Done+s.Failed >= s.Total }

// Tracker counts finished trials and notifies registered listeners on
// every tick.
type Tracker struct {
	mu       sync.RWMutex
	Total    int
	Interval time.Duration

	start  time.Time
	done   int
	failed int
	now    func() time.Time

	listeners []func(Snapshot)
}

// NewTracker constructs a tracker for total trials.
func NewTracker(total int, interval time.Duration) *Tracker {
	return &Tracker{Total: total, Interval: interval, now: time.Now, start: time.Now()}
}

// AddListener registers a callback invoked on every tick and once more
// when the tracker stops.
func (t *Tracker) AddListener(fn func(Snapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Observe records one finished trial.
func (t *Tracker) Observe(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.failed++
		return
	}
	t.done++
}

// Snapshot returns the current counts.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{Total: t.Total, Done: t.done, Failed: t.failed, Elapsed: t.now().Sub(t.start)}
}

// Start ticks every Interval until ctx is done or every trial has
// finished. The returned channel is closed after the final notification.
func (t *Tracker) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	t.mu.Lock()
	t.start = t.now()
	t.mu.Unlock()

	go func() {
		defer close(done)
		defer t.notify()

		if t.Interval <= 0 {
			<-ctx.Done()
			return
		}
		ticker := time.NewTicker(t.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if t.Snapshot().Finished() {
				return
			}
			t.notify()
		}
	}()
	return done
}

func (t *Tracker) notify() {
	snap := t.Snapshot()
	t.mu.RLock()
	listeners := append([]func(Snapshot){}, t.listeners...)
	t.mu.RUnlock()
	for _, fn := range listeners {
		fn(snap)
	}
}
