package specifications

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slipstream/decisionengine/internal/customformat"
	"github.com/slipstream/decisionengine/internal/decisioning"
	"github.com/slipstream/decisionengine/internal/indexer/types"
	"github.com/slipstream/decisionengine/internal/library/catalog"
	"github.com/slipstream/decisionengine/internal/library/lang"
	"github.com/slipstream/decisionengine/internal/library/quality"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

const (
	mb = 1024 * 1024
	gb = 1024 * mb
)

var (
	rss  = decisioning.SearchContext{Source: decisioning.SourceRSS}
	auto = decisioning.SearchContext{Source: decisioning.SourceSearch}
	user = decisioning.SearchContext{Source: decisioning.SourceInteractiveSearch}
)

// newSnapshot returns a library with one movie (item 1, unit 1) and one
// series (item 2, units 21 and 22) on the HD-1080p profile. The profile
// scores the "Preferred Group" format (release group FLUX) at 5.
func newSnapshot() *decisioning.Snapshot {
	profile := quality.HD1080pProfile()
	profile.ID = 1
	profile.FormatItems = []quality.FormatItem{{FormatID: 1, Score: 5}}

	items := []catalog.Item{
		{
			ID: 1, MediaType: catalog.MediaTypeMovie, Title: "Dune Part Two", Year: 2024,
			ProfileID: 1, Monitored: true, RuntimeMinutes: 160,
		},
		{
			ID: 2, MediaType: catalog.MediaTypeSeries, Title: "The Expanse", ProfileID: 1, Monitored: true,
			RuntimeMinutes: 45,
			Units: []catalog.Unit{
				{ID: 21, Season: 1, Episode: 1, Monitored: true, AirDate: now.AddDate(0, 0, -7)},
				{ID: 22, Season: 1, Episode: 2, Monitored: true, AirDate: now.AddDate(0, 0, 7)},
			},
		},
	}

	definitions := make(map[int]quality.Definition)
	for _, d := range quality.DefaultDefinitions() {
		definitions[d.QualityID] = d
	}

	return &decisioning.Snapshot{
		Now:         now,
		Settings:    decisioning.Settings{Propers: quality.PropersPreferAndUpgrade, CompletedDownloadHandling: true},
		Profiles:    map[int64]*quality.Profile{1: &profile},
		Definitions: definitions,
		CustomFormats: []customformat.Format{{
			ID:         1,
			Name:       "Preferred Group",
			Conditions: []customformat.Condition{{Type: customformat.ConditionReleaseGroup, Value: "FLUX"}},
		}},
		Items:    items,
		Mapper:   catalog.NewMapper(items),
		Existing: map[decisioning.UnitKey]*decisioning.ExistingState{},
	}
}

func movie(opts ...func(r *types.ReleaseInfo)) types.ReleaseInfo {
	r := types.ReleaseInfo{
		GUID:        "guid-1",
		Title:       "Dune.Part.Two.2024.1080p.WEB-DL.x264-GRP",
		Size:        6 * gb,
		PublishDate: now.Add(-2 * time.Hour),
		IndexerID:   1,
		IndexerName: "geek",
		Protocol:    types.ProtocolTorrent,
		Seeders:     20,
		Parsed: &types.ParsedRelease{
			Title:        "Dune Part Two",
			Year:         2024,
			Source:       "WEB-DL",
			Resolution:   "1080p",
			ReleaseGroup: "GRP",
		},
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func episodes(eps []int, opts ...func(r *types.ReleaseInfo)) types.ReleaseInfo {
	r := movie(opts...)
	r.Title = "The.Expanse.S01.1080p.WEB-DL.x264-GRP"
	r.Parsed.Title = "The Expanse"
	r.Parsed.Year = 0
	r.Parsed.Season = 1
	r.Parsed.Episodes = eps
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func withQuality(source, resolution string, version int) func(r *types.ReleaseInfo) {
	return func(r *types.ReleaseInfo) {
		r.Parsed.Source = source
		r.Parsed.Resolution = resolution
		r.Parsed.Revision.Version = version
	}
}

func withGroup(group string) func(r *types.ReleaseInfo) {
	return func(r *types.ReleaseInfo) { r.Parsed.ReleaseGroup = group }
}

func withProtocol(p types.Protocol) func(r *types.ReleaseInfo) {
	return func(r *types.ReleaseInfo) { r.Protocol = p }
}

func withAge(age time.Duration) func(r *types.ReleaseInfo) {
	return func(r *types.ReleaseInfo) { r.PublishDate = now.Add(-age) }
}

func newCandidate(t *testing.T, snap *decisioning.Snapshot, r types.ReleaseInfo) *decisioning.Candidate {
	t.Helper()
	mapping, err := snap.Mapper.Map(&r)
	require.NoError(t, err)

	c := &decisioning.Candidate{
		Release:   &r,
		Item:      mapping.Item,
		Units:     mapping.Units,
		Profile:   snap.Profiles[mapping.Item.ProfileID],
		Quality:   r.Parsed.Quality(),
		Languages: lang.NormalizeAll(r.Parsed.Languages),
	}
	c.CustomFormats, c.FormatScore = snap.Score(c.Profile, c.FormatInput())
	return c
}

func model(t *testing.T, name string, version int) quality.Model {
	t.Helper()
	q, ok := quality.GetQualityByName(name)
	require.True(t, ok, "unknown quality %s", name)
	return quality.Model{Quality: q, Revision: quality.Revision{Version: version}}
}

func existing(snap *decisioning.Snapshot, itemID, unitID int64) *decisioning.ExistingState {
	key := decisioning.UnitKey{ItemID: itemID, UnitID: unitID}
	st, ok := snap.Existing[key]
	if !ok {
		st = &decisioning.ExistingState{}
		snap.Existing[key] = st
	}
	return st
}
