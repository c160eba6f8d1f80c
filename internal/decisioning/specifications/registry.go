// Package specifications holds the acceptance rules a release must pass
// before it can be grabbed. Every rule is independent and reads only the
// candidate and the batch snapshot.
package specifications

import "github.com/slipstream/decisionengine/internal/decisioning"

// Default returns the standard rule set in evaluation order.
func Default() []decisioning.Specification {
	return []decisioning.Specification{
		QualityAllowed{},
		AcceptableSize{},
		MaximumSize{},
		Retention{},
		MinimumAge{},
		ProtocolEnabled{},
		IndexerHealth{},
		Blocklist{},
		Restrictions{},
		RawDisk{},
		Language{},
		CustomFormatScore{},
		Monitored{},
		EarlyRelease{},
		UpgradeAllowed{},
		UpgradeDisk{},
		Cutoff{},
		Repack{},
		AlreadyImported{},
		History{},
		Queue{},
		Delay{},
		RecentlyGrabbed{},
	}
}

// Names returns the names of specs in order.
func Names(specs []decisioning.Specification) []string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name()
	}
	return names
}
