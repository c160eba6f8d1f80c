package decisioning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/slipstream/decisionengine/internal/indexer/types"
	"github.com/slipstream/decisionengine/internal/library/catalog"
	"github.com/slipstream/decisionengine/internal/library/lang"
)

const unexpectedErrorReason = "Unexpected error processing release"

// Recorder persists evaluated batches for auditing.
type Recorder interface {
	Record(ctx context.Context, batch *Batch) error
}

// Config holds engine tuning.
type Config struct {
	Workers      int
	SizeBucketMB int64
	AgeTolerance time.Duration
}

// Batch is the result of evaluating a set of releases together.
type Batch struct {
	ID          string        `json:"id"`
	Search      SearchContext `json:"search"`
	EvaluatedAt time.Time     `json:"evaluatedAt"`
	// Decisions holds one decision per input release, in input order.
	Decisions []*Decision `json:"decisions"`
	// Ranked holds the accepted decisions in download order.
	Ranked []*Decision `json:"ranked"`
}

// AcceptedCount returns the number of accepted decisions.
func (b *Batch) AcceptedCount() int {
	return len(b.Ranked)
}

// Engine maps releases to library items, runs every specification against
// them and ranks the accepted ones.
type Engine struct {
	provider    SnapshotProvider
	specs       []Specification
	prioritizer *Prioritizer
	tracker     *GrabTracker
	recorder    Recorder
	workers     int
	logger      zerolog.Logger
}

// NewEngine creates a decision engine. The specification list is used as
// given for every batch.
func NewEngine(provider SnapshotProvider, specs []Specification, cfg Config, logger zerolog.Logger) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		provider:    provider,
		specs:       specs,
		prioritizer: NewPrioritizer(cfg.SizeBucketMB, cfg.AgeTolerance),
		workers:     workers,
		logger:      logger.With().Str("component", "decision-engine").Logger(),
	}
}

// SetGrabTracker attaches the tracker whose recent grabs are folded into
// every batch snapshot.
func (e *Engine) SetGrabTracker(t *GrabTracker) {
	e.tracker = t
}

// SetRecorder attaches an audit recorder.
func (e *Engine) SetRecorder(r Recorder) {
	e.recorder = r
}

// Specifications returns the names of the registered specifications.
func (e *Engine) Specifications() []string {
	names := make([]string, len(e.specs))
	for i, s := range e.specs {
		names[i] = s.Name()
	}
	return names
}

// Evaluate fetches one snapshot and evaluates the batch against it. A
// snapshot failure fails the whole batch with ErrPolicyUnavailable.
func (e *Engine) Evaluate(ctx context.Context, releases []types.ReleaseInfo, search SearchContext) (*Batch, error) {
	snap, err := e.provider.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPolicyUnavailable, err)
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: provider returned no snapshot", ErrPolicyUnavailable)
	}
	if e.tracker != nil {
		snap = snap.withRecentGrabs(e.tracker.Active())
	}

	batch, err := e.EvaluateSnapshot(ctx, snap, releases, search)
	if err != nil {
		return nil, err
	}

	if e.recorder != nil {
		if err := e.recorder.Record(ctx, batch); err != nil {
			e.logger.Warn().Err(err).Str("batchId", batch.ID).Msg("Failed to record decision batch")
		}
	}
	return batch, nil
}

// EvaluateSnapshot evaluates releases against a caller supplied snapshot.
// Releases are evaluated concurrently; a cancelled context abandons the batch.
func (e *Engine) EvaluateSnapshot(ctx context.Context, snap *Snapshot, releases []types.ReleaseInfo, search SearchContext) (*Batch, error) {
	start := time.Now()
	batch := &Batch{
		ID:          uuid.New().String(),
		Search:      search,
		EvaluatedAt: snap.Now,
		Decisions:   make([]*Decision, len(releases)),
	}

	log := e.logger.With().Str("batchId", batch.ID).Logger()

	p := pool.New().WithMaxGoroutines(e.workers).WithContext(ctx)
	for i := range releases {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			batch.Decisions[i] = e.decide(snap, &releases[i], search, log)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.Info().Err(err).Msg("Decision batch abandoned")
		}
		return nil, fmt.Errorf("decision batch %s: %w", batch.ID, err)
	}

	batch.Ranked = e.prioritizer.Prioritize(batch.Decisions, snap)

	log.Info().
		Str("source", string(search.Source)).
		Int("releases", len(releases)).
		Int("accepted", len(batch.Ranked)).
		Dur("duration", time.Since(start)).
		Msg("Evaluated release batch")

	return batch, nil
}

// decide evaluates one release. A panic in any specification is converted
// into a single rejection for this release only.
func (e *Engine) decide(snap *Snapshot, r *types.ReleaseInfo, search SearchContext, log zerolog.Logger) (d *Decision) {
	current := "mapping"
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Str("release", r.Title).
				Str("indexer", r.IndexerName).
				Str("specification", current).
				Interface("panic", rec).
				Msg(unexpectedErrorReason)
			d = &Decision{
				Release: r,
				Rejections: []Rejection{{
					Reason:        unexpectedErrorReason,
					Type:          RejectionPermanent,
					Specification: current,
				}},
			}
		}
	}()

	c, rejection := e.candidate(snap, r)
	if rejection != nil {
		log.Debug().Str("release", r.Title).Str("reason", rejection.Reason).Msg("Release not identified")
		return &Decision{Release: r, Rejections: []Rejection{*rejection}}
	}

	d = &Decision{Release: r, Candidate: c}
	for _, spec := range e.specs {
		current = spec.Name()
		res := spec.Evaluate(c, snap, search)
		if !res.Accepted() {
			d.Rejections = append(d.Rejections, res.rejection(current))
		}
	}

	if d.Accepted() {
		log.Debug().Str("release", r.Title).Str("quality", c.Quality.String()).Int("score", c.FormatScore).Msg("Release accepted")
	} else {
		log.Debug().Str("release", r.Title).Strs("rejections", d.Reasons()).Msg("Release rejected")
	}
	return d
}

// candidate maps a release and precomputes its quality and formats. A nil
// candidate comes with the single rejection explaining why.
func (e *Engine) candidate(snap *Snapshot, r *types.ReleaseInfo) (*Candidate, *Rejection) {
	notIdentified := func(reason string) *Rejection {
		return &Rejection{Reason: reason, Type: RejectionPermanent, Specification: "mapping"}
	}

	if snap.Mapper == nil {
		return nil, notIdentified("No library available to identify release")
	}
	mapping, err := snap.Mapper.Map(r)
	switch {
	case errors.Is(err, catalog.ErrNotParsable):
		return nil, notIdentified("Unable to parse release")
	case errors.Is(err, catalog.ErrUnitsNotFound):
		return nil, notIdentified("Unable to identify correct episode(s) using release name")
	case errors.Is(err, catalog.ErrItemNotFound):
		return nil, notIdentified("Unknown item. Unable to identify correct item using release name")
	case err != nil:
		return nil, notIdentified(err.Error())
	}

	profile, ok := snap.Profiles[mapping.Item.ProfileID]
	if !ok || profile == nil {
		return nil, notIdentified(fmt.Sprintf("Quality profile %d not found", mapping.Item.ProfileID))
	}

	c := &Candidate{
		Release:   r,
		Item:      mapping.Item,
		Units:     mapping.Units,
		Profile:   profile,
		Quality:   r.Parsed.Quality(),
		Languages: lang.NormalizeAll(r.Parsed.Languages),
	}
	c.CustomFormats, c.FormatScore = snap.Score(profile, c.FormatInput())
	return c, nil
}
