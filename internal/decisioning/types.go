package decisioning

import (
	"encoding/json"
	"errors"

	"github.com/slipstream/decisionengine/internal/customformat"
	"github.com/slipstream/decisionengine/internal/indexer/types"
	"github.com/slipstream/decisionengine/internal/library/catalog"
	"github.com/slipstream/decisionengine/internal/library/quality"
)

// ErrPolicyUnavailable is returned when a batch cannot obtain a policy snapshot.
var ErrPolicyUnavailable = errors.New("decision policy unavailable")

// Source identifies what triggered an evaluation.
type Source string

const (
	SourceRSS               Source = "rss"
	SourceSearch            Source = "search"
	SourceUserSearch        Source = "userSearch"
	SourceInteractiveSearch Source = "interactiveSearch"
	SourcePush              Source = "push"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceRSS, SourceSearch, SourceUserSearch, SourceInteractiveSearch, SourcePush:
		return true
	}
	return false
}

// SearchContext describes the search a batch of releases came from.
type SearchContext struct {
	Source Source `json:"source"`
}

// IsUserInvoked reports whether a user explicitly asked for this search.
func (s SearchContext) IsUserInvoked() bool {
	return s.Source == SourceUserSearch || s.Source == SourceInteractiveSearch
}

// IsSearch reports whether the releases came from a search rather than a feed.
func (s SearchContext) IsSearch() bool {
	return s.Source == SourceSearch || s.IsUserInvoked()
}

// RejectionType classifies a rejection.
type RejectionType string

const (
	// RejectionPermanent will not change without a policy or library change.
	RejectionPermanent RejectionType = "permanent"
	// RejectionTemporary may clear on its own, e.g. when a delay or backoff ends.
	RejectionTemporary RejectionType = "temporary"
)

// Rejection is one reason a release was not accepted.
type Rejection struct {
	Reason        string        `json:"reason"`
	Type          RejectionType `json:"type"`
	Specification string        `json:"specification,omitempty"`
}

// Candidate is a release resolved to a library item, with everything the
// specifications need precomputed. It is immutable once built.
type Candidate struct {
	Release       *types.ReleaseInfo
	Item          *catalog.Item
	Units         []catalog.Unit
	Profile       *quality.Profile
	Quality       quality.Model
	Languages     []string
	CustomFormats []customformat.Format
	FormatScore   int
}

// UnitKeys returns the snapshot keys of the candidate's units.
func (c *Candidate) UnitKeys() []UnitKey {
	keys := make([]UnitKey, len(c.Units))
	for i, u := range c.Units {
		keys[i] = UnitKey{ItemID: c.Item.ID, UnitID: u.ID}
	}
	return keys
}

// FormatInput returns the attributes custom formats are matched against.
func (c *Candidate) FormatInput() customformat.Input {
	in := customformat.Input{
		Title:   c.Release.Title,
		Indexer: c.Release.IndexerName,
		Quality: c.Quality.Quality,
		Size:    c.Release.Size,

		IndexerFlags: c.Release.IndexerFlags,
	}
	if p := c.Release.Parsed; p != nil {
		in.Edition = p.Edition
		in.ReleaseGroup = p.ReleaseGroup
		in.Languages = p.Languages
	}
	return in
}

// Decision is the outcome of evaluating one release. It is accepted exactly
// when it carries no rejections.
type Decision struct {
	Release    *types.ReleaseInfo
	Candidate  *Candidate
	Rejections []Rejection
	Rank       int
}

// Accepted reports whether every specification accepted the release.
func (d *Decision) Accepted() bool {
	return len(d.Rejections) == 0
}

// TemporarilyRejected reports whether the release was rejected only for
// reasons that may clear on their own.
func (d *Decision) TemporarilyRejected() bool {
	if len(d.Rejections) == 0 {
		return false
	}
	for _, r := range d.Rejections {
		if r.Type != RejectionTemporary {
			return false
		}
	}
	return true
}

// Reasons returns the human readable rejection reasons.
func (d *Decision) Reasons() []string {
	out := make([]string, len(d.Rejections))
	for i, r := range d.Rejections {
		out[i] = r.Reason
	}
	return out
}

type decisionJSON struct {
	GUID                string      `json:"guid"`
	Title               string      `json:"title"`
	Indexer             string      `json:"indexer,omitempty"`
	Protocol            string      `json:"protocol,omitempty"`
	ItemID              int64       `json:"itemId,omitempty"`
	UnitIDs             []int64     `json:"unitIds,omitempty"`
	Quality             string      `json:"quality,omitempty"`
	CustomFormats       []string    `json:"customFormats,omitempty"`
	CustomFormatScore   int         `json:"customFormatScore"`
	Accepted            bool        `json:"accepted"`
	TemporarilyRejected bool        `json:"temporarilyRejected"`
	Rank                int         `json:"rank,omitempty"`
	Rejections          []Rejection `json:"rejections"`
}

// MarshalJSON renders the decision for reporting.
func (d *Decision) MarshalJSON() ([]byte, error) {
	out := decisionJSON{
		Accepted:            d.Accepted(),
		TemporarilyRejected: d.TemporarilyRejected(),
		Rank:                d.Rank,
		Rejections:          d.Rejections,
	}
	if out.Rejections == nil {
		out.Rejections = []Rejection{}
	}
	if d.Release != nil {
		out.GUID = d.Release.GUID
		out.Title = d.Release.Title
		out.Indexer = d.Release.IndexerName
		out.Protocol = string(d.Release.Protocol)
	}
	if c := d.Candidate; c != nil {
		out.ItemID = c.Item.ID
		for _, u := range c.Units {
			out.UnitIDs = append(out.UnitIDs, u.ID)
		}
		out.Quality = c.Quality.String()
		out.CustomFormats = customformat.Names(c.CustomFormats)
		out.CustomFormatScore = c.FormatScore
	}
	return json.Marshal(out)
}
