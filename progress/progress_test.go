package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestTrackerCounts(t *testing.T) {
	tr := NewTracker(3, time.Second)
	tr.Observe(nil)
	tr.Observe(errors.New("boom"))

	snap := tr.Snapshot()
	if snap.Done != 1 || snap.Failed != 1 || snap.Total != 3 {
		t.Fatalf("snapshot = %+v, want 1 done, 1 failed of 3", snap)
	}
	if snap.Finished() {
		t.Fatalf("tracker finished with one trial outstanding")
	}
	tr.Observe(nil)
	if !tr.Snapshot().Finished() {
		t.Fatalf("tracker not finished after every trial")
	}
}

func TestTrackerStartTicksUntilCancelled(t *testing.T) {
	tr := NewTracker(10, 2*time.Millisecond)

	var mu sync.Mutex
	ticks := 0
	tr.AddListener(func(Snapshot) {
		mu.Lock()
		ticks++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := tr.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if ticks < 2 {
		t.Fatalf("ticks = %d, want at least 2", ticks)
	}
}

func TestTrackerStopsWhenFinished(t *testing.T) {
	tr := NewTracker(1, time.Millisecond)
	var last Snapshot
	tr.AddListener(func(s Snapshot) { last = s })

	done := tr.Start(context.Background())
	tr.Observe(nil)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("tracker did not stop after the last trial")
	}
	if !last.Finished() {
		t.Fatalf("final snapshot = %+v, want finished", last)
	}
}
