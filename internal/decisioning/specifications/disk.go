package specifications

import (
	"strings"

	"github.com/slipstream/decisionengine/internal/decisioning"
	"github.com/slipstream/decisionengine/internal/library/quality"
)

// UpgradeDisk rejects releases that do not improve on every file they would replace.
type UpgradeDisk struct{}

func (UpgradeDisk) Name() string { return "upgradeDisk" }

func (UpgradeDisk) Evaluate(c *decisioning.Candidate, snap *decisioning.Snapshot, _ decisioning.SearchContext) decisioning.Result {
	cmp := snap.Settings.Comparator()
	for _, f := range snap.FilesFor(c) {
		_, score := snap.Score(c.Profile, f.FormatInput())
		if !cmp.IsUpgrade(c.Profile, f.Quality, score, c.Quality, c.FormatScore) {
			return decisioning.Reject("Existing file on disk is of equal or higher preference: %s", f.Quality)
		}
	}
	return decisioning.Accept()
}

// Cutoff rejects releases for units whose files already meet the profile cutoff.
type Cutoff struct{}

func (Cutoff) Name() string { return "cutoff" }

func (Cutoff) Evaluate(c *decisioning.Candidate, snap *decisioning.Snapshot, _ decisioning.SearchContext) decisioning.Result {
	cmp := snap.Settings.Comparator()
	for _, f := range snap.FilesFor(c) {
		_, score := snap.Score(c.Profile, f.FormatInput())
		if !cmp.CutoffNotMet(c.Profile, f.Quality, score, &c.Quality) {
			return decisioning.Reject("Existing file meets cutoff: %s", f.Quality)
		}
	}
	return decisioning.Accept()
}

// UpgradeAllowed rejects upgrades over existing files when the profile
// forbids upgrading.
type UpgradeAllowed struct{}

func (UpgradeAllowed) Name() string { return "upgradeAllowed" }

func (UpgradeAllowed) Evaluate(c *decisioning.Candidate, snap *decisioning.Snapshot, _ decisioning.SearchContext) decisioning.Result {
	files := snap.FilesFor(c)
	if len(files) == 0 {
		return decisioning.Accept()
	}
	currents := make([]quality.Scored, len(files))
	for i, f := range files {
		_, score := snap.Score(c.Profile, f.FormatInput())
		currents[i] = quality.Scored{Model: f.Quality, Score: score}
	}
	if !snap.Settings.Comparator().IsUpgradeAllowed(c.Profile, currents, c.Quality, c.FormatScore) {
		return decisioning.Reject("Quality profile does not allow upgrades")
	}
	return decisioning.Accept()
}

// Repack only lets a repack replace files of the same quality when it comes
// from the release group that made them.
type Repack struct{}

func (Repack) Name() string { return "repack" }

func (Repack) Evaluate(c *decisioning.Candidate, snap *decisioning.Snapshot, _ decisioning.SearchContext) decisioning.Result {
	if !c.Quality.Revision.IsRepack {
		return decisioning.Accept()
	}
	propers := snap.Settings.Comparator().Propers
	if propers == quality.PropersDoNotPrefer {
		return decisioning.Accept()
	}

	group := ""
	if c.Release.Parsed != nil {
		group = c.Release.Parsed.ReleaseGroup
	}

	for _, f := range snap.FilesFor(c) {
		if f.Quality.Quality.ID != c.Quality.Quality.ID || f.Quality.Revision.Compare(c.Quality.Revision) >= 0 {
			continue
		}
		if propers == quality.PropersDoNotUpgrade {
			return decisioning.Reject("Repack downloading is disabled")
		}
		if f.ReleaseGroup == "" {
			return decisioning.Reject("Unable to determine release group for the existing file")
		}
		if group == "" {
			return decisioning.Reject("Unable to determine release group for this release")
		}
		if !strings.EqualFold(f.ReleaseGroup, group) {
			return decisioning.Reject("Release is a repack for a different release group. Release Group: %s. File release group: %s", group, f.ReleaseGroup)
		}
	}
	return decisioning.Accept()
}
