package decisioning

import (
	"context"
	"time"

	"github.com/slipstream/decisionengine/internal/indexer/types"
	"github.com/slipstream/decisionengine/internal/library/catalog"
	"github.com/slipstream/decisionengine/internal/library/lang"
	"github.com/slipstream/decisionengine/internal/library/quality"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

const gb = 1024 * 1024 * 1024

type staticProvider struct {
	snap *Snapshot
	err  error
}

func (p staticProvider) Snapshot(context.Context) (*Snapshot, error) {
	return p.snap, p.err
}

func testSnapshot() *Snapshot {
	profile := quality.HD1080pProfile()
	profile.ID = 1

	items := []catalog.Item{
		{
			ID: 1, MediaType: catalog.MediaTypeMovie, Title: "Dune Part Two", Year: 2024,
			ProfileID: 1, Monitored: true, RuntimeMinutes: 166,
		},
		{
			ID: 2, MediaType: catalog.MediaTypeSeries, Title: "The Expanse", ProfileID: 1, Monitored: true,
			RuntimeMinutes: 45,
			Units: []catalog.Unit{
				{ID: 21, Season: 1, Episode: 1, Monitored: true},
				{ID: 22, Season: 1, Episode: 2, Monitored: true},
			},
		},
	}

	return &Snapshot{
		Now:      testNow,
		Settings: Settings{Propers: quality.PropersPreferAndUpgrade},
		Profiles: map[int64]*quality.Profile{1: &profile},
		Items:    items,
		Mapper:   catalog.NewMapper(items),
		Existing: map[UnitKey]*ExistingState{},
	}
}

func movieRelease(guid, source, resolution string) types.ReleaseInfo {
	return types.ReleaseInfo{
		GUID:        guid,
		Title:       "Dune.Part.Two.2024." + resolution + "." + source + ".x264-GRP",
		Size:        8 * gb,
		PublishDate: testNow.Add(-2 * time.Hour),
		IndexerID:   1,
		IndexerName: "geek",
		Protocol:    types.ProtocolTorrent,
		Seeders:     10,
		Parsed: &types.ParsedRelease{
			Title:        "Dune Part Two",
			Year:         2024,
			Source:       source,
			Resolution:   resolution,
			ReleaseGroup: "GRP",
		},
	}
}

func episodeRelease(guid string, episodes ...int) types.ReleaseInfo {
	return types.ReleaseInfo{
		GUID:        guid,
		Title:       "The.Expanse.S01.1080p.WEB-DL-GRP",
		Size:        2 * gb,
		PublishDate: testNow.Add(-2 * time.Hour),
		IndexerID:   1,
		IndexerName: "geek",
		Protocol:    types.ProtocolTorrent,
		Seeders:     10,
		Parsed: &types.ParsedRelease{
			Title:      "The Expanse",
			Season:     1,
			Episodes:   episodes,
			Source:     "WEB-DL",
			Resolution: "1080p",
		},
	}
}

// acceptedDecision builds an accepted decision for prioritizer tests without
// going through the engine.
func acceptedDecision(snap *Snapshot, r types.ReleaseInfo) *Decision {
	mapping, err := snap.Mapper.Map(&r)
	if err != nil {
		panic(err)
	}
	c := &Candidate{
		Release: &r,
		Item:    mapping.Item,
		Units:   mapping.Units,
		Profile: snap.Profiles[mapping.Item.ProfileID],
		Quality: r.Parsed.Quality(),
	}
	c.Languages = lang.NormalizeAll(r.Parsed.Languages)
	c.CustomFormats, c.FormatScore = snap.Score(c.Profile, c.FormatInput())
	return &Decision{Release: &r, Candidate: c}
}
