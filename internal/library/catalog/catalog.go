// Package catalog holds the library items releases are matched against.
package catalog

import (
	"regexp"
	"strings"
	"time"
)

// MediaType represents the type of library item.
type MediaType string

const (
	MediaTypeMovie  MediaType = "movie"
	MediaTypeSeries MediaType = "series"
)

// Item is a wanted or owned library entry.
type Item struct {
	ID             int64     `json:"id" yaml:"id" toml:"id"`
	MediaType      MediaType `json:"mediaType" yaml:"mediaType" toml:"mediaType"`
	Title          string    `json:"title" yaml:"title" toml:"title"`
	AltTitles      []string  `json:"altTitles,omitempty" yaml:"altTitles,omitempty" toml:"altTitles,omitempty"`
	Year           int       `json:"year,omitempty" yaml:"year,omitempty" toml:"year,omitempty"`
	ImdbID         int       `json:"imdbId,omitempty" yaml:"imdbId,omitempty" toml:"imdbId,omitempty"`
	TmdbID         int       `json:"tmdbId,omitempty" yaml:"tmdbId,omitempty" toml:"tmdbId,omitempty"`
	TvdbID         int       `json:"tvdbId,omitempty" yaml:"tvdbId,omitempty" toml:"tvdbId,omitempty"`
	ProfileID      int64     `json:"profileId" yaml:"profileId" toml:"profileId"`
	Monitored      bool      `json:"monitored" yaml:"monitored" toml:"monitored"`
	Tags           []string  `json:"tags,omitempty" yaml:"tags,omitempty" toml:"tags,omitempty"`
	RuntimeMinutes int       `json:"runtime,omitempty" yaml:"runtime,omitempty" toml:"runtime,omitempty"`
	Units          []Unit    `json:"units,omitempty" yaml:"units,omitempty" toml:"units,omitempty"`
}

// Unit is the smallest downloadable piece of an item: an episode of a
// series, or the movie itself.
type Unit struct {
	ID        int64     `json:"id" yaml:"id" toml:"id"`
	Season    int       `json:"season,omitempty" yaml:"season,omitempty" toml:"season,omitempty"`
	Episode   int       `json:"episode,omitempty" yaml:"episode,omitempty" toml:"episode,omitempty"`
	Monitored bool      `json:"monitored" yaml:"monitored" toml:"monitored"`
	AirDate   time.Time `json:"airDate,omitempty" yaml:"airDate,omitempty" toml:"airDate,omitempty"`
}

// MovieUnit returns the single unit of a movie. Movies without an explicit
// unit get one sharing the item's ID and monitored flag.
func (i *Item) MovieUnit() Unit {
	if len(i.Units) > 0 {
		return i.Units[0]
	}
	return Unit{ID: i.ID, Monitored: i.Monitored}
}

// HasTag reports whether the item carries tag (case-insensitive).
func (i *Item) HasTag(tag string) bool {
	for _, t := range i.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

var (
	apostropheRegex    = regexp.MustCompile(`['\x60\x{2018}\x{2019}\x{02BC}]`)
	specialCharsRegex  = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
	multipleSpaceRegex = regexp.MustCompile(`\s+`)
)

// NormalizeTitle converts a title to a normalized form for comparison.
// Apostrophes are stripped so "Schitt's Creek" and "Schitts Creek" agree;
// other punctuation becomes a space.
func NormalizeTitle(title string) string {
	normalized := strings.ToLower(title)
	normalized = apostropheRegex.ReplaceAllString(normalized, "")
	normalized = specialCharsRegex.ReplaceAllString(normalized, " ")
	normalized = multipleSpaceRegex.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}
