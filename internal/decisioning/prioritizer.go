package decisioning

import (
	"sort"
	"time"

	"github.com/slipstream/decisionengine/internal/indexer/types"
	"github.com/slipstream/decisionengine/internal/library/lang"
)

const (
	DefaultSizeBucketMB = 200
	DefaultAgeTolerance = 24 * time.Hour
)

// Prioritizer orders accepted decisions for download attempts.
//
// Decisions are grouped by library item in order of first appearance and
// each group is sorted by, most significant first: preferred protocol,
// revision, quality (then custom format score), preferred words in the
// title, indexer flags when Settings.PreferIndexerFlags is set, number of
// units covered, freshness against size, seeders then peers, and language
// preference. Ties keep their input order.
type Prioritizer struct {
	// SizeBucketMB is the width of the size bands compared when two
	// releases are about the same age.
	SizeBucketMB int64
	// AgeTolerance is how far apart two publish dates may be before the
	// newer release wins outright.
	AgeTolerance time.Duration
}

// NewPrioritizer returns a prioritizer, substituting defaults for zero values.
func NewPrioritizer(sizeBucketMB int64, ageTolerance time.Duration) *Prioritizer {
	if sizeBucketMB <= 0 {
		sizeBucketMB = DefaultSizeBucketMB
	}
	if ageTolerance <= 0 {
		ageTolerance = DefaultAgeTolerance
	}
	return &Prioritizer{SizeBucketMB: sizeBucketMB, AgeTolerance: ageTolerance}
}

// Prioritize returns the accepted decisions in download order and sets each
// one's Rank, starting at 1. Rejected decisions are ignored.
func (p *Prioritizer) Prioritize(decisions []*Decision, snap *Snapshot) []*Decision {
	var order []int64
	groups := make(map[int64][]*Decision)
	for _, d := range decisions {
		if !d.Accepted() || d.Candidate == nil {
			continue
		}
		id := d.Candidate.Item.ID
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], d)
	}

	ranked := make([]*Decision, 0, len(decisions))
	for _, id := range order {
		group := groups[id]
		sort.SliceStable(group, func(i, j int) bool {
			return p.compare(group[i], group[j], snap) > 0
		})
		ranked = append(ranked, group...)
	}
	for i, d := range ranked {
		d.Rank = i + 1
	}
	return ranked
}

// compare returns a positive value when a should be attempted before b.
func (p *Prioritizer) compare(a, b *Decision, snap *Snapshot) int {
	for _, key := range []func(a, b *Decision, snap *Snapshot) int{
		p.compareProtocol,
		p.compareRevision,
		p.compareQuality,
		p.comparePreferredWords,
		p.compareIndexerFlags,
		p.compareUnits,
		p.compareFreshness,
		p.compareHealth,
		p.compareLanguage,
	} {
		if c := key(a, b, snap); c != 0 {
			return c
		}
	}
	return 0
}

func cmpInt(a, b int) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	}
	return 0
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (p *Prioritizer) compareProtocol(a, b *Decision, snap *Snapshot) int {
	dp := snap.DelayProfileFor(a.Candidate.Item)
	if dp == nil || dp.PreferredProtocol == "" {
		return 0
	}
	return cmpInt(boolInt(a.Release.Protocol == dp.PreferredProtocol), boolInt(b.Release.Protocol == dp.PreferredProtocol))
}

func (p *Prioritizer) compareRevision(a, b *Decision, _ *Snapshot) int {
	return a.Candidate.Quality.Revision.Compare(b.Candidate.Quality.Revision)
}

func (p *Prioritizer) compareQuality(a, b *Decision, _ *Snapshot) int {
	profile := a.Candidate.Profile
	ai, aErr := profile.IndexOf(a.Candidate.Quality.Quality)
	bi, bErr := profile.IndexOf(b.Candidate.Quality.Quality)
	if aErr == nil && bErr == nil {
		if c := cmpInt(ai, bi); c != 0 {
			return c
		}
	}
	return cmpInt(a.Candidate.FormatScore, b.Candidate.FormatScore)
}

func (p *Prioritizer) comparePreferredWords(a, b *Decision, _ *Snapshot) int {
	profile := a.Candidate.Profile
	return cmpInt(profile.PreferredWordCount(a.Release.Title), profile.PreferredWordCount(b.Release.Title))
}

func (p *Prioritizer) compareIndexerFlags(a, b *Decision, snap *Snapshot) int {
	if !snap.Settings.PreferIndexerFlags {
		return 0
	}
	return cmpInt(a.Release.FlagScore(), b.Release.FlagScore())
}

func (p *Prioritizer) compareUnits(a, b *Decision, _ *Snapshot) int {
	return cmpInt(len(a.Candidate.Units), len(b.Candidate.Units))
}

func (p *Prioritizer) compareFreshness(a, b *Decision, snap *Snapshot) int {
	// An unknown publish date ranks as the oldest.
	knownA, knownB := !a.Release.PublishDate.IsZero(), !b.Release.PublishDate.IsZero()
	switch {
	case knownA && !knownB:
		return 1
	case !knownA && knownB:
		return -1
	case !knownA && !knownB:
		return p.compareSize(a, b)
	}

	ageA, ageB := a.Release.Age(snap.Now), b.Release.Age(snap.Now)
	diff := ageA - ageB
	if diff < 0 {
		diff = -diff
	}
	if diff > p.AgeTolerance {
		// Younger wins.
		if ageA < ageB {
			return 1
		}
		return -1
	}
	return p.compareSize(a, b)
}

func (p *Prioritizer) compareSize(a, b *Decision) int {
	bucket := p.SizeBucketMB * 1024 * 1024
	sa, sb := a.Release.Size/bucket, b.Release.Size/bucket
	switch {
	case sa > sb:
		return 1
	case sa < sb:
		return -1
	}
	return 0
}

func (p *Prioritizer) compareHealth(a, b *Decision, _ *Snapshot) int {
	if a.Release.Protocol != types.ProtocolTorrent || b.Release.Protocol != types.ProtocolTorrent {
		return 0
	}
	if c := cmpInt(a.Release.Seeders, b.Release.Seeders); c != 0 {
		return c
	}
	return cmpInt(a.Release.Peers, b.Release.Peers)
}

func (p *Prioritizer) compareLanguage(a, b *Decision, snap *Snapshot) int {
	prefs := snap.Settings.PreferredLanguages
	if len(prefs) == 0 {
		return 0
	}
	// Lower preference position wins.
	return cmpInt(languageRank(b.Candidate.Languages, prefs), languageRank(a.Candidate.Languages, prefs))
}

func languageRank(languages, prefs []string) int {
	best := len(prefs)
	for i, pref := range prefs {
		code := lang.Normalize(pref)
		for _, l := range languages {
			if l == code && i < best {
				best = i
			}
		}
	}
	return best
}
