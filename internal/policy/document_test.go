package policy

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/decisionengine/internal/decisioning"
	"github.com/slipstream/decisionengine/internal/indexer/types"
	"github.com/slipstream/decisionengine/internal/library/catalog"
	"github.com/slipstream/decisionengine/internal/library/quality"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func loadFixture(t *testing.T) *Document {
	t.Helper()
	data, err := os.ReadFile("testdata/policy.yaml")
	require.NoError(t, err)
	doc, err := Decode(data, FormatYAML)
	require.NoError(t, err)
	return doc
}

func TestDocument_Snapshot(t *testing.T) {
	doc := loadFixture(t)

	snap, err := doc.Snapshot(now)
	require.NoError(t, err)

	assert.Equal(t, now, snap.Now)
	require.Contains(t, snap.Profiles, int64(1))
	profile := snap.Profiles[1]

	// Quality references are resolved to the predefined qualities.
	webdl, _ := quality.GetQualityByName("WEBDL-1080p")
	bluray, _ := quality.GetQualityByID(11)
	assert.Equal(t, bluray, *profile.Items[3].Quality)
	assert.True(t, profile.IsAcceptable(webdl.ID))
	assert.True(t, profile.IsAtOrAboveCutoff(bluray))
	assert.False(t, profile.IsAtOrAboveCutoff(webdl))
	assert.Equal(t, 1, profile.PreferredWordCount("Dune.2024.IMAX.1080p.WEB-DL-GRP"))
	assert.True(t, snap.Settings.PreferIndexerFlags)

	// Overridden definitions replace the default, the rest stay.
	assert.Equal(t, 5.0, snap.Definitions[10].MinSize)
	assert.Equal(t, 4.0, snap.Definitions[11].MinSize)

	// Delay profiles are ordered.
	require.Len(t, snap.DelayProfiles, 2)
	assert.Equal(t, int64(1), snap.DelayProfiles[0].ID)
	assert.Equal(t, types.ProtocolUsenet, snap.DelayProfileFor(&snap.Items[0]).PreferredProtocol)

	// Restrictions are compiled.
	require.Len(t, snap.Restrictions, 1)
	assert.True(t, snap.Restrictions[0].IgnoredTerms.Any("Dune.2024.CAM.x264"))

	// Custom formats match after compilation.
	require.Len(t, snap.CustomFormats, 1)

	st := snap.Existing[decisioning.UnitKey{ItemID: 1, UnitID: 1}]
	require.NotNil(t, st)
	require.Len(t, st.Files, 1)
	assert.Equal(t, "WEBDL-720p", st.Files[0].Quality.Quality.Name)
	assert.Equal(t, 6, st.Files[0].Quality.Quality.ID)

	mapping, err := snap.Mapper.Map(&types.ReleaseInfo{
		Title:  "The.Expanse.S01E02.1080p.WEB-DL-GRP",
		Parsed: &types.ParsedRelease{Title: "The Expanse", Season: 1, Episodes: []int{2}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), mapping.Item.ID)
	assert.Equal(t, []int64{22}, mapping.UnitIDs())
}

func TestDocument_SnapshotDoesNotShareState(t *testing.T) {
	doc := loadFixture(t)

	snap, err := doc.Snapshot(now)
	require.NoError(t, err)

	doc.Profiles[0].Cutoff = 6
	doc.Profiles[0].Items[0].Quality.Name = "changed"
	doc.Items[0].Title = "changed"
	doc.Existing[0].Files[0].ReleaseGroup = "changed"

	assert.Equal(t, 11, snap.Profiles[1].Cutoff)
	assert.Equal(t, "HDTV-720p", snap.Profiles[1].Items[0].Quality.Name)
	assert.Equal(t, "Dune Part Two", snap.Items[0].Title)
	assert.Equal(t, "GRP", snap.Existing[decisioning.UnitKey{ItemID: 1, UnitID: 1}].Files[0].ReleaseGroup)
}

func TestDocument_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *Document)
	}{
		{"unknown propers policy", func(d *Document) { d.Settings.Propers = "sometimes" }},
		{"duplicate profile", func(d *Document) { d.Profiles = append(d.Profiles, d.Profiles[0]) }},
		{"unknown quality name", func(d *Document) { d.Profiles[0].Items[0].Quality = &quality.Quality{Name: "VHS"} }},
		{"unknown quality id", func(d *Document) { d.Profiles[0].Items[0].Quality = &quality.Quality{ID: 99} }},
		{"invalid cutoff", func(d *Document) { d.Profiles[0].Cutoff = 17 }},
		{"definition for unknown quality", func(d *Document) {
			d.Definitions = append(d.Definitions, quality.Definition{QualityID: 42})
		}},
		{"inverted definition", func(d *Document) { d.Definitions[0].MinSize = 200 }},
		{"format without conditions", func(d *Document) { d.CustomFormats[0].Conditions = nil }},
		{"bad restriction regex", func(d *Document) { d.Restrictions[0].Ignored = []string{"/([a-z/"} }},
		{"unknown delay protocol", func(d *Document) { d.DelayProfiles[0].PreferredProtocol = "ftp" }},
		{"unknown profile reference", func(d *Document) { d.Items[0].ProfileID = 9 }},
		{"unknown media type", func(d *Document) { d.Items[0].MediaType = "book" }},
		{"duplicate item", func(d *Document) { d.Items = append(d.Items, d.Items[0]) }},
		{"existing for unknown item", func(d *Document) { d.Existing[0].ItemID = 9 }},
		{"existing with unknown quality", func(d *Document) {
			d.Existing[0].Files[0].Quality = quality.Model{Quality: quality.Quality{Name: "VHS"}}
		}},
		{"queue entry with unknown state", func(d *Document) {
			d.Existing[0].Queue = []decisioning.QueueEntry{{
				Title:   "queued",
				Quality: quality.Model{Quality: quality.Quality{Name: "WEBDL-1080p"}},
				State:   "stalled",
			}}
		}},
	}

	require.NoError(t, loadFixture(t).Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := loadFixture(t)
			tt.mutate(doc)
			err := doc.Validate()
			if !errors.Is(err, ErrInvalidPolicy) {
				t.Errorf("Validate() error = %v, want ErrInvalidPolicy", err)
			}
		})
	}
}

func TestDocument_SnapshotMergesExistingEntries(t *testing.T) {
	doc := loadFixture(t)
	doc.Existing = append(doc.Existing, ExistingEntry{
		ItemID: 1,
		UnitID: 1,
		History: []decisioning.HistoryEvent{{
			Type:        decisioning.HistoryGrabbed,
			Date:        now.Add(-time.Hour),
			SourceTitle: "Dune.Part.Two.2024.1080p.BluRay.x264-GRP",
			Quality:     quality.Model{Quality: quality.Quality{Name: "Bluray-1080p"}},
		}},
	})

	snap, err := doc.Snapshot(now)
	require.NoError(t, err)

	st := snap.Existing[decisioning.UnitKey{ItemID: 1, UnitID: 1}]
	require.Len(t, st.Files, 1)
	require.Len(t, st.History, 1)
	assert.Equal(t, 11, st.History[0].Quality.Quality.ID)
	assert.Equal(t, 1, st.History[0].Quality.Revision.Version)
}

func TestDocument_SnapshotMovieUnitDefaultsToItem(t *testing.T) {
	doc := loadFixture(t)
	snap, err := doc.Snapshot(now)
	require.NoError(t, err)

	var movie *catalog.Item
	for i := range snap.Items {
		if snap.Items[i].MediaType == catalog.MediaTypeMovie {
			movie = &snap.Items[i]
		}
	}
	require.NotNil(t, movie)
	assert.Equal(t, movie.ID, movie.MovieUnit().ID)
}
