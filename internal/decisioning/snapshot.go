package decisioning

import (
	"context"
	"time"

	"github.com/slipstream/decisionengine/internal/customformat"
	"github.com/slipstream/decisionengine/internal/indexer/types"
	"github.com/slipstream/decisionengine/internal/library/catalog"
	"github.com/slipstream/decisionengine/internal/library/quality"
	"github.com/slipstream/decisionengine/internal/textmatch"
)

// SnapshotProvider supplies the policy and existing state for one batch.
// Implementations must return a snapshot that is not mutated afterwards.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Mapper resolves a release to a library item.
type Mapper interface {
	Map(r *types.ReleaseInfo) (*catalog.Mapping, error)
}

// Settings holds the global decision settings.
type Settings struct {
	RetentionDays             int                  `json:"retentionDays" yaml:"retentionDays" toml:"retentionDays"`             // usenet, 0 = unlimited
	MaximumSizeMB             int64                `json:"maximumSizeMB" yaml:"maximumSizeMB" toml:"maximumSizeMB"`             // 0 = unlimited
	MinimumAgeMinutes         int                  `json:"minimumAgeMinutes" yaml:"minimumAgeMinutes" toml:"minimumAgeMinutes"` // usenet
	Propers                   quality.ProperPolicy `json:"propers" yaml:"propers" toml:"propers"`
	CompletedDownloadHandling bool                 `json:"completedDownloadHandling" yaml:"completedDownloadHandling" toml:"completedDownloadHandling"`
	EarlyReleaseLimitDays     *int                 `json:"earlyReleaseLimitDays,omitempty" yaml:"earlyReleaseLimitDays,omitempty" toml:"earlyReleaseLimitDays,omitempty"`
	AllowRawDisk              bool                 `json:"allowRawDisk" yaml:"allowRawDisk" toml:"allowRawDisk"`
	PreferredLanguages        []string             `json:"preferredLanguages,omitempty" yaml:"preferredLanguages,omitempty" toml:"preferredLanguages,omitempty"`
	PreferIndexerFlags        bool                 `json:"preferIndexerFlags" yaml:"preferIndexerFlags" toml:"preferIndexerFlags"`
}

// Comparator returns the upgrade comparator for the configured proper policy.
func (s Settings) Comparator() quality.Comparator {
	return quality.NewComparator(s.Propers)
}

// DelayProfile holds per-protocol delays and protocol enablement for the
// items whose tags it matches. A profile without tags is the default.
type DelayProfile struct {
	ID                       int64          `json:"id" yaml:"id" toml:"id"`
	Order                    int            `json:"order" yaml:"order" toml:"order"`
	Tags                     []string       `json:"tags,omitempty" yaml:"tags,omitempty" toml:"tags,omitempty"`
	PreferredProtocol        types.Protocol `json:"preferredProtocol" yaml:"preferredProtocol" toml:"preferredProtocol"`
	EnableUsenet             bool           `json:"enableUsenet" yaml:"enableUsenet" toml:"enableUsenet"`
	EnableTorrent            bool           `json:"enableTorrent" yaml:"enableTorrent" toml:"enableTorrent"`
	UsenetDelayMinutes       int            `json:"usenetDelay" yaml:"usenetDelay" toml:"usenetDelay"`
	TorrentDelayMinutes      int            `json:"torrentDelay" yaml:"torrentDelay" toml:"torrentDelay"`
	BypassIfHighestQuality   bool           `json:"bypassIfHighestQuality" yaml:"bypassIfHighestQuality" toml:"bypassIfHighestQuality"`
	BypassIfAboveFormatScore bool           `json:"bypassIfAboveFormatScore" yaml:"bypassIfAboveFormatScore" toml:"bypassIfAboveFormatScore"`
	MinimumFormatScore       int            `json:"minimumFormatScore" yaml:"minimumFormatScore" toml:"minimumFormatScore"`
}

// Delay returns the configured delay for a protocol.
func (d *DelayProfile) Delay(p types.Protocol) time.Duration {
	switch p {
	case types.ProtocolUsenet:
		return time.Duration(d.UsenetDelayMinutes) * time.Minute
	case types.ProtocolTorrent:
		return time.Duration(d.TorrentDelayMinutes) * time.Minute
	}
	return 0
}

// Enabled reports whether a protocol may be downloaded.
func (d *DelayProfile) Enabled(p types.Protocol) bool {
	switch p {
	case types.ProtocolUsenet:
		return d.EnableUsenet
	case types.ProtocolTorrent:
		return d.EnableTorrent
	}
	return false
}

// Restriction is a required/ignored term pair scoped by tags.
type Restriction struct {
	ID       int64    `json:"id" yaml:"id" toml:"id"`
	Required []string `json:"required,omitempty" yaml:"required,omitempty" toml:"required,omitempty"`
	Ignored  []string `json:"ignored,omitempty" yaml:"ignored,omitempty" toml:"ignored,omitempty"`
	Tags     []string `json:"tags,omitempty" yaml:"tags,omitempty" toml:"tags,omitempty"`

	RequiredTerms textmatch.Set `json:"-" yaml:"-" toml:"-"`
	IgnoredTerms  textmatch.Set `json:"-" yaml:"-" toml:"-"`
}

// Compile prepares the restriction's terms.
func (r *Restriction) Compile() error {
	var err error
	if r.RequiredTerms, err = textmatch.CompileSet(r.Required); err != nil {
		return err
	}
	r.IgnoredTerms, err = textmatch.CompileSet(r.Ignored)
	return err
}

// BlocklistEntry is a release that failed before and must not be grabbed again.
type BlocklistEntry struct {
	GUID       string         `json:"guid,omitempty" yaml:"guid,omitempty" toml:"guid,omitempty"`
	DownloadID string         `json:"downloadId,omitempty" yaml:"downloadId,omitempty" toml:"downloadId,omitempty"`
	Title      string         `json:"title" yaml:"title" toml:"title"`
	IndexerID  int64          `json:"indexerId,omitempty" yaml:"indexerId,omitempty" toml:"indexerId,omitempty"`
	Protocol   types.Protocol `json:"protocol,omitempty" yaml:"protocol,omitempty" toml:"protocol,omitempty"`
	Date       time.Time      `json:"date" yaml:"date" toml:"date"`
}

// ExistingFile is a file already in the library.
type ExistingFile struct {
	ID           int64         `json:"id" yaml:"id" toml:"id"`
	SceneName    string        `json:"sceneName,omitempty" yaml:"sceneName,omitempty" toml:"sceneName,omitempty"`
	Quality      quality.Model `json:"quality" yaml:"quality" toml:"quality"`
	ReleaseGroup string        `json:"releaseGroup,omitempty" yaml:"releaseGroup,omitempty" toml:"releaseGroup,omitempty"`
	Edition      string        `json:"edition,omitempty" yaml:"edition,omitempty" toml:"edition,omitempty"`
	Languages    []string      `json:"languages,omitempty" yaml:"languages,omitempty" toml:"languages,omitempty"`
	Size         int64         `json:"size,omitempty" yaml:"size,omitempty" toml:"size,omitempty"`
	Indexer      string        `json:"indexer,omitempty" yaml:"indexer,omitempty" toml:"indexer,omitempty"`
}

// FormatInput returns the attributes custom formats are matched against.
func (f *ExistingFile) FormatInput() customformat.Input {
	return customformat.Input{
		Title:        f.SceneName,
		Edition:      f.Edition,
		ReleaseGroup: f.ReleaseGroup,
		Indexer:      f.Indexer,
		Quality:      f.Quality.Quality,
		Languages:    f.Languages,
		Size:         f.Size,
	}
}

// HistoryEventType classifies a history event.
type HistoryEventType string

const (
	HistoryGrabbed        HistoryEventType = "grabbed"
	HistoryImported       HistoryEventType = "imported"
	HistoryDownloadFailed HistoryEventType = "downloadFailed"
)

// HistoryEvent is a past grab, import or failure for a unit.
type HistoryEvent struct {
	Type         HistoryEventType `json:"type" yaml:"type" toml:"type"`
	Date         time.Time        `json:"date" yaml:"date" toml:"date"`
	SourceTitle  string           `json:"sourceTitle" yaml:"sourceTitle" toml:"sourceTitle"`
	DownloadID   string           `json:"downloadId,omitempty" yaml:"downloadId,omitempty" toml:"downloadId,omitempty"`
	Quality      quality.Model    `json:"quality" yaml:"quality" toml:"quality"`
	ReleaseGroup string           `json:"releaseGroup,omitempty" yaml:"releaseGroup,omitempty" toml:"releaseGroup,omitempty"`
	Languages    []string         `json:"languages,omitempty" yaml:"languages,omitempty" toml:"languages,omitempty"`
	Indexer      string           `json:"indexer,omitempty" yaml:"indexer,omitempty" toml:"indexer,omitempty"`
}

// FormatInput returns the attributes custom formats are matched against.
func (h *HistoryEvent) FormatInput() customformat.Input {
	return customformat.Input{
		Title:        h.SourceTitle,
		ReleaseGroup: h.ReleaseGroup,
		Indexer:      h.Indexer,
		Quality:      h.Quality.Quality,
		Languages:    h.Languages,
	}
}

// QueueState is the tracked state of a queued download.
type QueueState string

const (
	QueueDownloading   QueueState = "downloading"
	QueueImportPending QueueState = "importPending"
	QueueFailedPending QueueState = "failedPending"
)

// Valid reports whether s is a known state. Empty is valid.
func (s QueueState) Valid() bool {
	switch s {
	case "", QueueDownloading, QueueImportPending, QueueFailedPending:
		return true
	}
	return false
}

// QueueEntry is a download currently in flight.
type QueueEntry struct {
	Title        string         `json:"title" yaml:"title" toml:"title"`
	DownloadID   string         `json:"downloadId,omitempty" yaml:"downloadId,omitempty" toml:"downloadId,omitempty"`
	Protocol     types.Protocol `json:"protocol,omitempty" yaml:"protocol,omitempty" toml:"protocol,omitempty"`
	Quality      quality.Model  `json:"quality" yaml:"quality" toml:"quality"`
	ReleaseGroup string         `json:"releaseGroup,omitempty" yaml:"releaseGroup,omitempty" toml:"releaseGroup,omitempty"`
	Languages    []string       `json:"languages,omitempty" yaml:"languages,omitempty" toml:"languages,omitempty"`
	Size         int64          `json:"size,omitempty" yaml:"size,omitempty" toml:"size,omitempty"`
	Indexer      string         `json:"indexer,omitempty" yaml:"indexer,omitempty" toml:"indexer,omitempty"`
	State        QueueState     `json:"state,omitempty" yaml:"state,omitempty" toml:"state,omitempty"` // empty means downloading
}

// Failed reports whether the download failed and is waiting to be removed.
func (q *QueueEntry) Failed() bool {
	return q.State == QueueFailedPending
}

// FormatInput returns the attributes custom formats are matched against.
func (q *QueueEntry) FormatInput() customformat.Input {
	return customformat.Input{
		Title:        q.Title,
		ReleaseGroup: q.ReleaseGroup,
		Indexer:      q.Indexer,
		Quality:      q.Quality.Quality,
		Languages:    q.Languages,
		Size:         q.Size,
	}
}

// ExistingState is what a unit already has: files on disk, its history and
// anything queued for it.
type ExistingState struct {
	Files   []ExistingFile `json:"files,omitempty" yaml:"files,omitempty" toml:"files,omitempty"`
	History []HistoryEvent `json:"history,omitempty" yaml:"history,omitempty" toml:"history,omitempty"`
	Queue   []QueueEntry   `json:"queue,omitempty" yaml:"queue,omitempty" toml:"queue,omitempty"`
}

// MostRecent returns the newest history event, or nil.
func (s *ExistingState) MostRecent() *HistoryEvent {
	var latest *HistoryEvent
	for i := range s.History {
		if latest == nil || s.History[i].Date.After(latest.Date) {
			latest = &s.History[i]
		}
	}
	return latest
}

// UnitKey addresses one unit of one item.
type UnitKey struct {
	ItemID int64
	UnitID int64
}

// Snapshot is the read-only policy and library state a batch is evaluated
// against. Nothing in a snapshot may change while a batch uses it.
type Snapshot struct {
	Now             time.Time
	Settings        Settings
	Profiles        map[int64]*quality.Profile
	Definitions     map[int]quality.Definition
	CustomFormats   []customformat.Format
	Restrictions    []Restriction
	DelayProfiles   []DelayProfile // ordered by Order
	BlockedIndexers map[int64]time.Time
	Blocklist       []BlocklistEntry
	Items           []catalog.Item
	Mapper          Mapper
	Existing        map[UnitKey]*ExistingState
	RecentGrabs     map[UnitKey]time.Time
}

// ExistingFor returns the existing state of every unit the candidate covers.
// Units with no recorded state are skipped.
func (s *Snapshot) ExistingFor(c *Candidate) []*ExistingState {
	var out []*ExistingState
	for _, key := range c.UnitKeys() {
		if st, ok := s.Existing[key]; ok && st != nil {
			out = append(out, st)
		}
	}
	return out
}

// FilesFor returns the distinct files the candidate would replace.
func (s *Snapshot) FilesFor(c *Candidate) []ExistingFile {
	seen := make(map[int64]bool)
	var files []ExistingFile
	for _, st := range s.ExistingFor(c) {
		for _, f := range st.Files {
			if f.ID != 0 && seen[f.ID] {
				continue
			}
			seen[f.ID] = true
			files = append(files, f)
		}
	}
	return files
}

// Score matches custom formats against in and sums them with the profile.
func (s *Snapshot) Score(p *quality.Profile, in customformat.Input) ([]customformat.Format, int) {
	return customformat.Score(p, in, s.CustomFormats)
}

// DelayProfileFor returns the first delay profile whose tags intersect the
// item's, falling back to the first untagged profile. It returns nil when
// no profile applies.
func (s *Snapshot) DelayProfileFor(item *catalog.Item) *DelayProfile {
	var fallback *DelayProfile
	for i := range s.DelayProfiles {
		dp := &s.DelayProfiles[i]
		if len(dp.Tags) == 0 {
			if fallback == nil {
				fallback = dp
			}
			continue
		}
		for _, tag := range dp.Tags {
			if item.HasTag(tag) {
				return dp
			}
		}
	}
	return fallback
}

// RestrictionsFor returns the restrictions that apply to the item: untagged
// ones and those sharing a tag with it.
func (s *Snapshot) RestrictionsFor(item *catalog.Item) []*Restriction {
	var out []*Restriction
	for i := range s.Restrictions {
		r := &s.Restrictions[i]
		if len(r.Tags) == 0 {
			out = append(out, r)
			continue
		}
		for _, tag := range r.Tags {
			if item.HasTag(tag) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// withRecentGrabs returns a shallow copy carrying the given grabs.
func (s *Snapshot) withRecentGrabs(grabs map[UnitKey]time.Time) *Snapshot {
	cp := *s
	cp.RecentGrabs = grabs
	return &cp
}
