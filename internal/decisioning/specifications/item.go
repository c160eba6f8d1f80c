package specifications

import (
	"time"

	"github.com/slipstream/decisionengine/internal/decisioning"
	"github.com/slipstream/decisionengine/internal/library/catalog"
)

// Monitored rejects releases for unmonitored items or units unless a user
// asked for them.
type Monitored struct{}

func (Monitored) Name() string { return "monitored" }

func (Monitored) Evaluate(c *decisioning.Candidate, _ *decisioning.Snapshot, search decisioning.SearchContext) decisioning.Result {
	if search.IsUserInvoked() {
		return decisioning.Accept()
	}
	if c.Item.MediaType == catalog.MediaTypeMovie {
		if !c.Item.Monitored {
			return decisioning.Reject("Movie is not monitored")
		}
		return decisioning.Accept()
	}
	if !c.Item.Monitored {
		return decisioning.Reject("Series is not monitored")
	}
	for _, u := range c.Units {
		if !u.Monitored {
			return decisioning.Reject("One or more episodes is not monitored")
		}
	}
	return decisioning.Accept()
}

// EarlyRelease rejects releases published too long before their unit aired.
type EarlyRelease struct{}

func (EarlyRelease) Name() string { return "earlyRelease" }

func (EarlyRelease) Evaluate(c *decisioning.Candidate, snap *decisioning.Snapshot, search decisioning.SearchContext) decisioning.Result {
	limit := snap.Settings.EarlyReleaseLimitDays
	if search.IsUserInvoked() || limit == nil || c.Release.PublishDate.IsZero() {
		return decisioning.Accept()
	}
	latest := c.Release.PublishDate.AddDate(0, 0, *limit)
	for _, u := range c.Units {
		if u.AirDate.IsZero() {
			continue
		}
		if latest.Before(u.AirDate) {
			return decisioning.Reject("Release published date, %s, is outside of %d day early grab limit allowed by user",
				c.Release.PublishDate.UTC().Format(time.DateOnly), *limit)
		}
	}
	return decisioning.Accept()
}
