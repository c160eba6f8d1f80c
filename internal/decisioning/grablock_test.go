package decisioning

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGrabTracker_TryAcquire(t *testing.T) {
	now := testNow
	tracker := NewGrabTracker(time.Hour)
	tracker.SetClock(func() time.Time { return now })

	key := UnitKey{ItemID: 1, UnitID: 1}
	if !tracker.TryAcquire(key) {
		t.Fatal("first TryAcquire() = false, want true")
	}
	if tracker.TryAcquire(key) {
		t.Error("second TryAcquire() within TTL = true, want false")
	}

	now = now.Add(time.Hour)
	if !tracker.TryAcquire(key) {
		t.Error("TryAcquire() after TTL = false, want true")
	}
}

func TestGrabTracker_TryAcquireAllIsAtomic(t *testing.T) {
	tracker := NewGrabTracker(time.Hour)
	tracker.SetClock(func() time.Time { return testNow })

	held := UnitKey{ItemID: 2, UnitID: 22}
	tracker.TryAcquire(held)

	free := UnitKey{ItemID: 2, UnitID: 21}
	if tracker.TryAcquireAll([]UnitKey{free, held}) {
		t.Fatal("TryAcquireAll() with a held key = true, want false")
	}
	if _, ok := tracker.Active()[free]; ok {
		t.Error("free key was acquired although the batch failed")
	}

	tracker.Release(held)
	if !tracker.TryAcquireAll([]UnitKey{free, held}) {
		t.Error("TryAcquireAll() after Release = false, want true")
	}
}

func TestGrabTracker_ConcurrentAcquire(t *testing.T) {
	tracker := NewGrabTracker(time.Hour)
	key := UnitKey{ItemID: 1, UnitID: 1}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tracker.TryAcquire(key) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Errorf("successful acquisitions = %d, want 1", got)
	}
}

func TestGrabTracker_PruneAndPending(t *testing.T) {
	now := testNow
	tracker := NewGrabTracker(30 * time.Minute)
	tracker.SetClock(func() time.Time { return now })

	tracker.TryAcquire(UnitKey{ItemID: 3, UnitID: 1})
	now = now.Add(20 * time.Minute)
	tracker.TryAcquire(UnitKey{ItemID: 1, UnitID: 1})
	tracker.TryAcquire(UnitKey{ItemID: 1, UnitID: 2})

	pending := tracker.Pending()
	if len(pending) != 3 {
		t.Fatalf("len(Pending()) = %d, want 3", len(pending))
	}
	if pending[0].ItemID != 3 {
		t.Errorf("Pending()[0].ItemID = %d, want 3 (oldest first)", pending[0].ItemID)
	}
	if pending[1].UnitID != 1 || pending[2].UnitID != 2 {
		t.Errorf("Pending() tie order = %+v", pending[1:])
	}
	if want := testNow.Add(30 * time.Minute); !pending[0].ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", pending[0].ExpiresAt, want)
	}

	now = now.Add(15 * time.Minute)
	if removed := tracker.Prune(); removed != 1 {
		t.Errorf("Prune() = %d, want 1", removed)
	}
	if got := len(tracker.Active()); got != 2 {
		t.Errorf("len(Active()) = %d, want 2", got)
	}
}
