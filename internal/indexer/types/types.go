// Package types contains shared type definitions for indexer releases.
package types

import (
	"time"

	"github.com/slipstream/decisionengine/internal/library/quality"
)

// Protocol represents the download protocol.
type Protocol string

const (
	ProtocolTorrent Protocol = "torrent"
	ProtocolUsenet  Protocol = "usenet"
)

// Valid reports whether p is a known protocol.
func (p Protocol) Valid() bool {
	return p == ProtocolTorrent || p == ProtocolUsenet
}

// ReleaseInfo represents a release discovered on an indexer, together with
// the fields parsed from its title. Parsed is nil when the title could not be
// parsed.
type ReleaseInfo struct {
	GUID        string    `json:"guid" yaml:"guid" toml:"guid"`
	Title       string    `json:"title" yaml:"title" toml:"title"`
	DownloadURL string    `json:"downloadUrl,omitempty" yaml:"downloadUrl,omitempty" toml:"downloadUrl,omitempty"`
	DownloadID  string    `json:"downloadId,omitempty" yaml:"downloadId,omitempty" toml:"downloadId,omitempty"` // info hash or client id once known
	Size        int64     `json:"size" yaml:"size" toml:"size"`
	PublishDate time.Time `json:"publishDate" yaml:"publishDate" toml:"publishDate"`

	// Indexer info
	IndexerID       int64    `json:"indexerId" yaml:"indexerId" toml:"indexerId"`
	IndexerName     string   `json:"indexer" yaml:"indexer" toml:"indexer"`
	IndexerPriority int      `json:"indexerPriority,omitempty" yaml:"indexerPriority,omitempty" toml:"indexerPriority,omitempty"`
	Protocol        Protocol `json:"protocol" yaml:"protocol" toml:"protocol"`

	// Torrent health; zero for usenet
	Seeders int `json:"seeders,omitempty" yaml:"seeders,omitempty" toml:"seeders,omitempty"`
	Peers   int `json:"peers,omitempty" yaml:"peers,omitempty" toml:"peers,omitempty"`

	IndexerFlags []IndexerFlag `json:"indexerFlags,omitempty" yaml:"indexerFlags,omitempty" toml:"indexerFlags,omitempty"`

	// External IDs
	ImdbID int `json:"imdbId,omitempty" yaml:"imdbId,omitempty" toml:"imdbId,omitempty"`
	TmdbID int `json:"tmdbId,omitempty" yaml:"tmdbId,omitempty" toml:"tmdbId,omitempty"`
	TvdbID int `json:"tvdbId,omitempty" yaml:"tvdbId,omitempty" toml:"tvdbId,omitempty"`

	Parsed *ParsedRelease `json:"parsed,omitempty" yaml:"parsed,omitempty" toml:"parsed,omitempty"`
}

// Age returns how long ago the release was published.
func (r *ReleaseInfo) Age(now time.Time) time.Duration {
	if r.PublishDate.IsZero() {
		return 0
	}
	return now.Sub(r.PublishDate)
}

// ParsedRelease holds the structured fields parsed from a release title.
type ParsedRelease struct {
	Title        string           `json:"title" yaml:"title" toml:"title"`
	Year         int              `json:"year,omitempty" yaml:"year,omitempty" toml:"year,omitempty"`
	Season       int              `json:"season,omitempty" yaml:"season,omitempty" toml:"season,omitempty"`
	Episodes     []int            `json:"episodes,omitempty" yaml:"episodes,omitempty" toml:"episodes,omitempty"`
	FullSeason   bool             `json:"fullSeason,omitempty" yaml:"fullSeason,omitempty" toml:"fullSeason,omitempty"`
	Source       string           `json:"source,omitempty" yaml:"source,omitempty" toml:"source,omitempty"`             // "BluRay", "WEB-DL", "HDTV"
	Resolution   string           `json:"resolution,omitempty" yaml:"resolution,omitempty" toml:"resolution,omitempty"` // "720p", "1080p", "2160p"
	Revision     quality.Revision `json:"revision" yaml:"revision" toml:"revision"`
	Languages    []string         `json:"languages,omitempty" yaml:"languages,omitempty" toml:"languages,omitempty"`
	ReleaseGroup string           `json:"releaseGroup,omitempty" yaml:"releaseGroup,omitempty" toml:"releaseGroup,omitempty"`
	Edition      string           `json:"edition,omitempty" yaml:"edition,omitempty" toml:"edition,omitempty"`
	Container    string           `json:"container,omitempty" yaml:"container,omitempty" toml:"container,omitempty"` // "mkv", "iso", "m2ts"
}

// Quality resolves the parsed source and resolution to a quality model.
func (p *ParsedRelease) Quality() quality.Model {
	q, _ := quality.Resolve(p.Source, quality.ParseResolution(p.Resolution))
	rev := p.Revision
	if rev.Version == 0 {
		rev.Version = 1
	}
	return quality.Model{Quality: q, Revision: rev}
}
