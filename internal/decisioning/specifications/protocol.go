package specifications

import (
	"time"

	"github.com/slipstream/decisionengine/internal/decisioning"
	"github.com/slipstream/decisionengine/internal/indexer/types"
)

// Retention rejects usenet posts older than the configured retention.
type Retention struct{}

func (Retention) Name() string { return "retention" }

func (Retention) Evaluate(c *decisioning.Candidate, snap *decisioning.Snapshot, _ decisioning.SearchContext) decisioning.Result {
	days := snap.Settings.RetentionDays
	if c.Release.Protocol != types.ProtocolUsenet || days <= 0 || c.Release.PublishDate.IsZero() {
		return decisioning.Accept()
	}
	age := int(c.Release.Age(snap.Now) / (24 * time.Hour))
	if age > days {
		return decisioning.Reject("%d days old, exceeds retention of %d days", age, days)
	}
	return decisioning.Accept()
}

// MinimumAge holds back usenet posts until they have had time to propagate.
type MinimumAge struct{}

func (MinimumAge) Name() string { return "minimumAge" }

func (MinimumAge) Evaluate(c *decisioning.Candidate, snap *decisioning.Snapshot, _ decisioning.SearchContext) decisioning.Result {
	minimum := time.Duration(snap.Settings.MinimumAgeMinutes) * time.Minute
	if c.Release.Protocol != types.ProtocolUsenet || minimum <= 0 || c.Release.PublishDate.IsZero() {
		return decisioning.Accept()
	}
	if age := c.Release.Age(snap.Now); age < minimum {
		return decisioning.RejectTemporarily("Only %s old, minimum age is %s", age.Round(time.Minute), minimum)
	}
	return decisioning.Accept()
}

// ProtocolEnabled rejects protocols the item's delay profile disables.
type ProtocolEnabled struct{}

func (ProtocolEnabled) Name() string { return "protocolEnabled" }

func (ProtocolEnabled) Evaluate(c *decisioning.Candidate, snap *decisioning.Snapshot, _ decisioning.SearchContext) decisioning.Result {
	dp := snap.DelayProfileFor(c.Item)
	if dp == nil {
		return decisioning.Accept()
	}
	if !dp.Enabled(c.Release.Protocol) {
		return decisioning.Reject("Protocol %s is not enabled for this item", protocolName(c.Release.Protocol))
	}
	return decisioning.Accept()
}

func protocolName(p types.Protocol) string {
	if p == "" {
		return "unknown"
	}
	return string(p)
}

// IndexerHealth holds back releases from indexers in failure back-off.
type IndexerHealth struct{}

func (IndexerHealth) Name() string { return "indexerHealth" }

func (IndexerHealth) Evaluate(c *decisioning.Candidate, snap *decisioning.Snapshot, _ decisioning.SearchContext) decisioning.Result {
	until, blocked := snap.BlockedIndexers[c.Release.IndexerID]
	if !blocked {
		return decisioning.Accept()
	}
	if !until.IsZero() && !until.After(snap.Now) {
		return decisioning.Accept()
	}
	name := c.Release.IndexerName
	if name == "" {
		name = "Indexer"
	}
	if until.IsZero() {
		return decisioning.RejectTemporarily("%s is unavailable due to recent failures", name)
	}
	return decisioning.RejectTemporarily("%s is unavailable due to recent failures until %s", name, until.UTC().Format(time.RFC3339))
}
