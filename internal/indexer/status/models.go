// Package status tracks indexer failures and holds back releases from
// indexers that are inside their back-off window.
package status

import (
	"time"
)

// IndexerStatus is the persisted failure state of one indexer.
type IndexerStatus struct {
	IndexerID         int64      `json:"indexerId"`
	IndexerName       string     `json:"indexerName,omitempty"`
	InitialFailure    *time.Time `json:"initialFailure,omitempty"`
	MostRecentFailure *time.Time `json:"mostRecentFailure,omitempty"`
	EscalationLevel   int        `json:"escalationLevel"`
	DisabledTill      *time.Time `json:"disabledTill,omitempty"`
	LastError         string     `json:"lastError,omitempty"`
	IsDisabled        bool       `json:"isDisabled"`
}

// HealthStatus is the coarse health of an indexer as reported over the API.
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusWarning  HealthStatus = "warning"
	HealthStatusDisabled HealthStatus = "disabled"
)

// IndexerHealth summarises an IndexerStatus for display.
type IndexerHealth struct {
	IndexerID   int64        `json:"indexerId"`
	IndexerName string       `json:"indexerName"`
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	LastFailure *time.Time   `json:"lastFailure,omitempty"`
	DisabledFor *Duration    `json:"disabledFor,omitempty"`
}

// Duration marshals as a Go duration string.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// Backoff is an escalation ladder: the n-th consecutive failure blocks the
// indexer for Backoff[n-1]. Failures past the end reuse the last step.
type Backoff []time.Duration

// DefaultBackoff is the ladder used unless SetBackoff overrides it.
var DefaultBackoff = Backoff{
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
	time.Hour,
	3 * time.Hour,
}

// MaxLevel is the highest escalation level the ladder distinguishes.
func (b Backoff) MaxLevel() int {
	return len(b)
}

// For returns the block period for an escalation level.
func (b Backoff) For(level int) time.Duration {
	if level <= 0 || len(b) == 0 {
		return 0
	}
	return b[min(level, len(b))-1]
}

// StatusStats counts tracked indexers by health.
type StatusStats struct {
	TrackedIndexers  int `json:"trackedIndexers"`
	WarningIndexers  int `json:"warningIndexers"`
	DisabledIndexers int `json:"disabledIndexers"`
}
