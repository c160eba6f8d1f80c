package specifications

import (
	"strings"
	"time"

	"github.com/slipstream/decisionengine/internal/decisioning"
	"github.com/slipstream/decisionengine/internal/library/quality"
)

// historyGrabWindow is how long a grab without an import blocks equal
// releases while completed download handling is on.
const historyGrabWindow = 12 * time.Hour

// AlreadyImported rejects a release that was grabbed and imported before at
// equal or better quality. Matching is by download ID, or by title when the
// release has none.
type AlreadyImported struct{}

func (AlreadyImported) Name() string { return "alreadyImported" }

func (AlreadyImported) Evaluate(c *decisioning.Candidate, snap *decisioning.Snapshot, _ decisioning.SearchContext) decisioning.Result {
	if !snap.Settings.CompletedDownloadHandling {
		return decisioning.Accept()
	}
	candidateIdx, err := c.Profile.IndexOf(c.Quality.Quality)
	if err != nil {
		return decisioning.Accept()
	}

	for _, st := range snap.ExistingFor(c) {
		grab := lastOfType(st.History, decisioning.HistoryGrabbed)
		if grab == nil || grab.DownloadID == "" {
			continue
		}
		var imported *decisioning.HistoryEvent
		for i := range st.History {
			ev := &st.History[i]
			if ev.Type == decisioning.HistoryImported && ev.DownloadID == grab.DownloadID {
				imported = ev
				break
			}
		}
		if imported == nil {
			continue
		}
		importedIdx, err := c.Profile.IndexOf(imported.Quality.Quality)
		if err != nil || importedIdx < candidateIdx {
			continue
		}

		if c.Release.DownloadID != "" {
			if strings.EqualFold(c.Release.DownloadID, grab.DownloadID) {
				return decisioning.Reject("Has same download ID as a grabbed and imported release")
			}
			continue
		}
		if strings.EqualFold(c.Release.Title, grab.SourceTitle) {
			return decisioning.Reject("Has same release name as a grabbed and imported release")
		}
	}
	return decisioning.Accept()
}

func lastOfType(events []decisioning.HistoryEvent, t decisioning.HistoryEventType) *decisioning.HistoryEvent {
	var latest *decisioning.HistoryEvent
	for i := range events {
		ev := &events[i]
		if ev.Type == t && (latest == nil || ev.Date.After(latest.Date)) {
			latest = ev
		}
	}
	return latest
}

// History rejects feed releases that do not improve on the most recent grab.
// Searches skip this rule.
type History struct{}

func (History) Name() string { return "history" }

func (History) Evaluate(c *decisioning.Candidate, snap *decisioning.Snapshot, search decisioning.SearchContext) decisioning.Result {
	if search.IsSearch() {
		return decisioning.Accept()
	}
	cdh := snap.Settings.CompletedDownloadHandling
	cmp := snap.Settings.Comparator()

	for _, st := range snap.ExistingFor(c) {
		ev := st.MostRecent()
		if ev == nil || ev.Type != decisioning.HistoryGrabbed {
			continue
		}
		if cdh && snap.Now.Sub(ev.Date) > historyGrabWindow {
			continue
		}

		_, score := snap.Score(c.Profile, ev.FormatInput())
		if !cmp.CutoffNotMet(c.Profile, ev.Quality, score, &c.Quality) {
			if cdh {
				return decisioning.Reject("Recent grab event in history already meets cutoff: %s", ev.Quality)
			}
			return decisioning.Reject("CDH is disabled and grab event in history already meets cutoff: %s", ev.Quality)
		}
		if !cmp.IsUpgrade(c.Profile, ev.Quality, score, c.Quality, c.FormatScore) {
			if cdh {
				return decisioning.Reject("Recent grab event in history is of equal or higher preference: %s", ev.Quality)
			}
			return decisioning.Reject("CDH is disabled and grab event in history is of equal or higher preference: %s", ev.Quality)
		}
	}
	return decisioning.Accept()
}

// Queue rejects releases that do not improve on what is already downloading.
// A queued release below cutoff may still be replaced by an upgrade. Failed
// downloads no longer count as queued.
type Queue struct{}

func (Queue) Name() string { return "queue" }

func (Queue) Evaluate(c *decisioning.Candidate, snap *decisioning.Snapshot, _ decisioning.SearchContext) decisioning.Result {
	cmp := snap.Settings.Comparator()
	for _, st := range snap.ExistingFor(c) {
		for _, q := range st.Queue {
			if q.Failed() {
				continue
			}
			_, score := snap.Score(c.Profile, q.FormatInput())
			if !cmp.CutoffNotMet(c.Profile, q.Quality, score, &c.Quality) {
				return decisioning.Reject("Release in queue already meets cutoff: %s", q.Quality)
			}
			if !cmp.IsUpgrade(c.Profile, q.Quality, score, c.Quality, c.FormatScore) {
				return decisioning.Reject("Release in queue is of equal or higher preference: %s", q.Quality)
			}
			current := []quality.Scored{{Model: q.Quality, Score: score}}
			if !cmp.IsUpgradeAllowed(c.Profile, current, c.Quality, c.FormatScore) {
				return decisioning.Reject("Another release is queued and the quality profile does not allow upgrades")
			}
		}
	}
	return decisioning.Accept()
}
