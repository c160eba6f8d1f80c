package specifications

import (
	"github.com/slipstream/decisionengine/internal/decisioning"
)

// Delay holds back releases younger than the protocol delay of the item's
// delay profile, giving a better release the chance to appear.
type Delay struct{}

func (Delay) Name() string { return "delay" }

func (Delay) Evaluate(c *decisioning.Candidate, snap *decisioning.Snapshot, search decisioning.SearchContext) decisioning.Result {
	if search.IsUserInvoked() {
		return decisioning.Accept()
	}
	dp := snap.DelayProfileFor(c.Item)
	if dp == nil {
		return decisioning.Accept()
	}
	delay := dp.Delay(c.Release.Protocol)
	if delay <= 0 {
		return decisioning.Accept()
	}

	// Without a publish date the age is unknown and nothing can be held.
	if c.Release.PublishDate.IsZero() {
		return decisioning.Accept()
	}

	if c.Release.Protocol == dp.PreferredProtocol {
		if dp.BypassIfHighestQuality && isHighestAllowed(c) {
			return decisioning.Accept()
		}
		if dp.BypassIfAboveFormatScore && c.FormatScore >= dp.MinimumFormatScore {
			return decisioning.Accept()
		}
	}

	cmp := snap.Settings.Comparator()
	for _, f := range snap.FilesFor(c) {
		if cmp.IsRevisionUpgrade(f.Quality, c.Quality) {
			return decisioning.Accept()
		}
	}

	if c.Release.Age(snap.Now) < delay {
		return decisioning.RejectTemporarily("Waiting for better quality release")
	}
	return decisioning.Accept()
}

// isHighestAllowed reports whether the candidate's quality is the last
// allowed entry of its profile ladder. Reaching the cutoff is not enough.
func isHighestAllowed(c *decisioning.Candidate) bool {
	idx, err := c.Profile.IndexOf(c.Quality.Quality)
	if err != nil {
		return false
	}
	return idx >= c.Profile.LastAllowed()
}

// RecentlyGrabbed holds back releases for units grabbed moments ago.
type RecentlyGrabbed struct{}

func (RecentlyGrabbed) Name() string { return "recentlyGrabbed" }

func (RecentlyGrabbed) Evaluate(c *decisioning.Candidate, snap *decisioning.Snapshot, _ decisioning.SearchContext) decisioning.Result {
	for _, key := range c.UnitKeys() {
		if _, ok := snap.RecentGrabs[key]; ok {
			return decisioning.RejectTemporarily("Another release for this item was grabbed recently")
		}
	}
	return decisioning.Accept()
}
