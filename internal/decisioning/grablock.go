package decisioning

import (
	"sort"
	"sync"
	"time"
)

// GrabTracker remembers units that were grabbed recently so a second release
// for the same unit is held back until the first is imported or the entry
// expires. It also serialises concurrent grab attempts for the same unit.
type GrabTracker struct {
	mu    sync.Mutex
	ttl   time.Duration
	grabs map[UnitKey]time.Time
	now   func() time.Time
}

// NewGrabTracker creates a tracker whose entries expire after ttl.
func NewGrabTracker(ttl time.Duration) *GrabTracker {
	return &GrabTracker{
		ttl:   ttl,
		grabs: make(map[UnitKey]time.Time),
		now:   time.Now,
	}
}

// SetClock overrides the time source. Used by tests.
func (g *GrabTracker) SetClock(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// TryAcquire marks key as grabbed now. It returns false, leaving the
// existing entry untouched, if the key was grabbed within the TTL.
func (g *GrabTracker) TryAcquire(key UnitKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if at, held := g.grabs[key]; held && now.Sub(at) < g.ttl {
		return false
	}
	g.grabs[key] = now
	return true
}

// TryAcquireAll acquires every key or none of them.
func (g *GrabTracker) TryAcquireAll(keys []UnitKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for _, key := range keys {
		if at, held := g.grabs[key]; held && now.Sub(at) < g.ttl {
			return false
		}
	}
	for _, key := range keys {
		g.grabs[key] = now
	}
	return true
}

// Release forgets the grab for key, e.g. after the download failed or was imported.
func (g *GrabTracker) Release(key UnitKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.grabs, key)
}

// Active returns a copy of the unexpired grabs.
func (g *GrabTracker) Active() map[UnitKey]time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	out := make(map[UnitKey]time.Time, len(g.grabs))
	for key, at := range g.grabs {
		if now.Sub(at) < g.ttl {
			out[key] = at
		}
	}
	return out
}

// Prune drops expired entries and returns how many were removed.
func (g *GrabTracker) Prune() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	removed := 0
	for key, at := range g.grabs {
		if now.Sub(at) >= g.ttl {
			delete(g.grabs, key)
			removed++
		}
	}
	return removed
}

// PendingGrab is an unexpired grab, as reported over the API.
type PendingGrab struct {
	ItemID    int64     `json:"itemId"`
	UnitID    int64     `json:"unitId"`
	GrabbedAt time.Time `json:"grabbedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Pending lists the unexpired grabs ordered by grab time.
func (g *GrabTracker) Pending() []PendingGrab {
	active := g.Active()
	out := make([]PendingGrab, 0, len(active))
	for key, at := range active {
		out = append(out, PendingGrab{ItemID: key.ItemID, UnitID: key.UnitID, GrabbedAt: at, ExpiresAt: at.Add(g.ttl)})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].GrabbedAt.Equal(out[j].GrabbedAt) {
			return out[i].GrabbedAt.Before(out[j].GrabbedAt)
		}
		if out[i].ItemID != out[j].ItemID {
			return out[i].ItemID < out[j].ItemID
		}
		return out[i].UnitID < out[j].UnitID
	})
	return out
}
