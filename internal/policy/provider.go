package policy

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/slipstream/decisionengine/internal/decisioning"
)

// BlockedIndexers reports indexers currently in failure backoff.
type BlockedIndexers interface {
	Blocked(ctx context.Context) (map[int64]time.Time, error)
}

// Provider builds evaluation snapshots from the stored policy. The compiled
// policy is cached per revision and only rebuilt after a new import.
type Provider struct {
	store   *Store
	indexer BlockedIndexers
	logger  zerolog.Logger
	now     func() time.Time

	mu       sync.Mutex
	revision int64
	base     *decisioning.Snapshot
}

// NewProvider creates a snapshot provider. indexer may be nil.
func NewProvider(store *Store, indexer BlockedIndexers, logger zerolog.Logger) *Provider {
	return &Provider{
		store:   store,
		indexer: indexer,
		logger:  logger.With().Str("component", "policy-provider").Logger(),
		now:     time.Now,
	}
}

// SetClock overrides the clock used for snapshot times.
func (p *Provider) SetClock(now func() time.Time) {
	p.now = now
}

// Snapshot implements decisioning.SnapshotProvider.
func (p *Provider) Snapshot(ctx context.Context) (*decisioning.Snapshot, error) {
	base, err := p.compiled(ctx)
	if err != nil {
		return nil, err
	}

	snap := *base
	snap.Now = p.now().UTC()
	if p.indexer != nil {
		blocked, err := p.indexer.Blocked(ctx)
		if err != nil {
			return nil, err
		}
		snap.BlockedIndexers = blocked
	}
	return &snap, nil
}

// Invalidate drops the cached policy.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revision = 0
	p.base = nil
}

func (p *Provider) compiled(ctx context.Context) (*decisioning.Snapshot, error) {
	rev, err := p.store.Current(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.base != nil && p.revision == rev.ID {
		return p.base, nil
	}

	// Import may have landed since Current; cache under the revision read
	// with the document.
	rev, doc, err := p.store.LoadCurrent(ctx)
	if err != nil {
		return nil, err
	}
	base, err := doc.Snapshot(p.now().UTC())
	if err != nil {
		return nil, err
	}
	p.revision = rev.ID
	p.base = base
	p.logger.Debug().Int64("revision", rev.ID).Msg("Compiled policy")
	return base, nil
}
