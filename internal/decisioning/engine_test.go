package decisioning

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/decisionengine/internal/indexer/types"
)

func acceptAll(name string) Specification {
	return SpecFunc(name, func(*Candidate, *Snapshot, SearchContext) Result { return Accept() })
}

func TestEngine_UnidentifiedReleasesSkipSpecifications(t *testing.T) {
	var calls atomic.Int32
	counting := SpecFunc("counting", func(*Candidate, *Snapshot, SearchContext) Result {
		calls.Add(1)
		return Accept()
	})

	unparsed := movieRelease("a", "BluRay", "1080p")
	unparsed.Parsed = nil

	unknown := movieRelease("b", "BluRay", "1080p")
	unknown.Parsed.Title = "Some Other Movie"

	missingEpisode := episodeRelease("c", 9)

	engine := NewEngine(staticProvider{snap: testSnapshot()}, []Specification{counting}, Config{}, zerolog.Nop())
	batch, err := engine.Evaluate(context.Background(), []types.ReleaseInfo{unparsed, unknown, missingEpisode}, SearchContext{Source: SourceRSS})
	require.NoError(t, err)

	want := []string{
		"Unable to parse release",
		"Unknown item. Unable to identify correct item using release name",
		"Unable to identify correct episode(s) using release name",
	}
	for i, d := range batch.Decisions {
		require.Len(t, d.Rejections, 1, "decision %d", i)
		assert.Equal(t, want[i], d.Rejections[0].Reason)
		assert.Equal(t, RejectionPermanent, d.Rejections[0].Type)
		assert.Nil(t, d.Candidate)
	}
	assert.Zero(t, calls.Load(), "specifications must not run for unidentified releases")
	assert.Empty(t, batch.Ranked)
}

func TestEngine_CollectsEveryRejection(t *testing.T) {
	specs := []Specification{
		SpecFunc("first", func(*Candidate, *Snapshot, SearchContext) Result { return Reject("first reason") }),
		acceptAll("middle"),
		SpecFunc("last", func(*Candidate, *Snapshot, SearchContext) Result { return RejectTemporarily("last reason") }),
	}
	engine := NewEngine(staticProvider{snap: testSnapshot()}, specs, Config{}, zerolog.Nop())

	batch, err := engine.Evaluate(context.Background(), []types.ReleaseInfo{movieRelease("a", "BluRay", "1080p")}, SearchContext{Source: SourceRSS})
	require.NoError(t, err)

	d := batch.Decisions[0]
	assert.False(t, d.Accepted())
	assert.False(t, d.TemporarilyRejected())
	assert.Equal(t, []Rejection{
		{Reason: "first reason", Type: RejectionPermanent, Specification: "first"},
		{Reason: "last reason", Type: RejectionTemporary, Specification: "last"},
	}, d.Rejections)
}

func TestEngine_FaultIsolation(t *testing.T) {
	fragile := SpecFunc("fragile", func(c *Candidate, _ *Snapshot, _ SearchContext) Result {
		if c.Release.GUID == "boom" {
			panic("nil map write")
		}
		return Accept()
	})
	engine := NewEngine(staticProvider{snap: testSnapshot()}, []Specification{acceptAll("before"), fragile}, Config{Workers: 2}, zerolog.Nop())

	releases := []types.ReleaseInfo{
		movieRelease("ok-1", "BluRay", "1080p"),
		movieRelease("boom", "BluRay", "1080p"),
		movieRelease("ok-2", "WEB-DL", "1080p"),
	}
	batch, err := engine.Evaluate(context.Background(), releases, SearchContext{Source: SourceRSS})
	require.NoError(t, err)
	require.Len(t, batch.Decisions, 3)

	assert.True(t, batch.Decisions[0].Accepted())
	assert.True(t, batch.Decisions[2].Accepted())

	faulted := batch.Decisions[1]
	require.Len(t, faulted.Rejections, 1)
	assert.Equal(t, "Unexpected error processing release", faulted.Rejections[0].Reason)
	assert.Equal(t, "fragile", faulted.Rejections[0].Specification)
	assert.Equal(t, RejectionPermanent, faulted.Rejections[0].Type)

	assert.Len(t, batch.Ranked, 2)
}

func TestEngine_PolicyUnavailableFailsBatch(t *testing.T) {
	engine := NewEngine(staticProvider{err: errors.New("database is locked")}, nil, Config{}, zerolog.Nop())

	batch, err := engine.Evaluate(context.Background(), []types.ReleaseInfo{movieRelease("a", "BluRay", "1080p")}, SearchContext{})
	assert.Nil(t, batch)
	assert.ErrorIs(t, err, ErrPolicyUnavailable)
	assert.True(t, strings.Contains(err.Error(), "database is locked"))

	engine = NewEngine(staticProvider{}, nil, Config{}, zerolog.Nop())
	_, err = engine.Evaluate(context.Background(), nil, SearchContext{})
	assert.ErrorIs(t, err, ErrPolicyUnavailable)
}

func TestEngine_Idempotent(t *testing.T) {
	snap := testSnapshot()
	specs := []Specification{
		SpecFunc("webOnly", func(c *Candidate, _ *Snapshot, _ SearchContext) Result {
			if c.Quality.Quality.Source != "webdl" {
				return Reject("Not a web release: %s", c.Quality)
			}
			return Accept()
		}),
	}
	engine := NewEngine(staticProvider{snap: snap}, specs, Config{Workers: 3}, zerolog.Nop())

	releases := []types.ReleaseInfo{
		movieRelease("a", "BluRay", "1080p"),
		movieRelease("b", "WEB-DL", "1080p"),
		movieRelease("c", "WEB-DL", "720p"),
	}

	first, err := engine.EvaluateSnapshot(context.Background(), snap, releases, SearchContext{Source: SourceRSS})
	require.NoError(t, err)
	second, err := engine.EvaluateSnapshot(context.Background(), snap, releases, SearchContext{Source: SourceRSS})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	require.Len(t, second.Decisions, len(first.Decisions))
	for i := range first.Decisions {
		a, b := first.Decisions[i], second.Decisions[i]
		assert.Equal(t, a.Rejections, b.Rejections, "decision %d", i)
		assert.Equal(t, a.Rank, b.Rank, "decision %d", i)
		assert.Equal(t, a.Candidate.Quality, b.Candidate.Quality, "decision %d", i)
		assert.Equal(t, a.Candidate.FormatScore, b.Candidate.FormatScore, "decision %d", i)
	}
}

func TestEngine_MissingProfile(t *testing.T) {
	snap := testSnapshot()
	delete(snap.Profiles, 1)
	engine := NewEngine(staticProvider{snap: snap}, nil, Config{}, zerolog.Nop())

	batch, err := engine.Evaluate(context.Background(), []types.ReleaseInfo{movieRelease("a", "BluRay", "1080p")}, SearchContext{})
	require.NoError(t, err)
	require.Len(t, batch.Decisions[0].Rejections, 1)
	assert.Equal(t, "Quality profile 1 not found", batch.Decisions[0].Rejections[0].Reason)
}

func TestEngine_RanksAcceptedDecisions(t *testing.T) {
	engine := NewEngine(staticProvider{snap: testSnapshot()}, []Specification{acceptAll("all")}, Config{}, zerolog.Nop())

	releases := []types.ReleaseInfo{
		movieRelease("720", "WEB-DL", "720p"),
		movieRelease("1080", "BluRay", "1080p"),
	}
	batch, err := engine.Evaluate(context.Background(), releases, SearchContext{Source: SourceSearch})
	require.NoError(t, err)

	require.Len(t, batch.Ranked, 2)
	assert.Equal(t, "1080", batch.Ranked[0].Release.GUID)
	assert.Equal(t, 1, batch.Ranked[0].Rank)
	assert.Equal(t, 2, batch.Decisions[0].Rank)
	assert.Equal(t, 2, batch.AcceptedCount())
}

func TestEngine_CancelledContext(t *testing.T) {
	engine := NewEngine(staticProvider{snap: testSnapshot()}, nil, Config{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.EvaluateSnapshot(ctx, testSnapshot(), []types.ReleaseInfo{movieRelease("a", "BluRay", "1080p")}, SearchContext{})
	assert.ErrorIs(t, err, context.Canceled)
}

type recorderFunc func(ctx context.Context, batch *Batch) error

func (f recorderFunc) Record(ctx context.Context, batch *Batch) error { return f(ctx, batch) }

func TestEngine_RecorderFailureKeepsBatch(t *testing.T) {
	engine := NewEngine(staticProvider{snap: testSnapshot()}, nil, Config{}, zerolog.New(zerolog.NewTestWriter(t)))

	var recorded string
	engine.SetRecorder(recorderFunc(func(_ context.Context, b *Batch) error {
		recorded = b.ID
		return errors.New("disk full")
	}))

	batch, err := engine.Evaluate(context.Background(), []types.ReleaseInfo{movieRelease("a", "BluRay", "1080p")}, SearchContext{})
	require.NoError(t, err)
	assert.Equal(t, batch.ID, recorded)
}

func TestEngine_FoldsRecentGrabsIntoSnapshot(t *testing.T) {
	tracker := NewGrabTracker(time.Hour)
	tracker.SetClock(func() time.Time { return testNow })
	require.True(t, tracker.TryAcquire(UnitKey{ItemID: 1, UnitID: 1}))

	recent := SpecFunc("recent", func(c *Candidate, snap *Snapshot, _ SearchContext) Result {
		for _, key := range c.UnitKeys() {
			if _, ok := snap.RecentGrabs[key]; ok {
				return RejectTemporarily("Recently grabbed")
			}
		}
		return Accept()
	})

	snap := testSnapshot()
	engine := NewEngine(staticProvider{snap: snap}, []Specification{recent}, Config{}, zerolog.Nop())
	engine.SetGrabTracker(tracker)

	batch, err := engine.Evaluate(context.Background(), []types.ReleaseInfo{movieRelease("a", "BluRay", "1080p")}, SearchContext{})
	require.NoError(t, err)
	assert.True(t, batch.Decisions[0].TemporarilyRejected())
	assert.Nil(t, snap.RecentGrabs, "provider snapshot must not be modified")
}

func TestEngine_Specifications(t *testing.T) {
	engine := NewEngine(staticProvider{}, []Specification{acceptAll("a"), acceptAll("b")}, Config{}, zerolog.Nop())
	assert.Equal(t, []string{"a", "b"}, engine.Specifications())
}
