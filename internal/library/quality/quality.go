package quality

import "fmt"

// Quality represents a quality tier.
// Weight is only the default ladder position; comparisons always go through a Profile.
type Quality struct {
	ID         int    `json:"id" yaml:"id" toml:"id"`
	Name       string `json:"name" yaml:"name" toml:"name"`
	Source     string `json:"source" yaml:"source" toml:"source"`             // "bluray", "webdl", "tv", etc.
	Resolution int    `json:"resolution" yaml:"resolution" toml:"resolution"` // 480, 720, 1080, 2160
	Weight     int    `json:"weight" yaml:"weight" toml:"weight"`
}

// Unknown is the quality assigned to releases whose quality could not be determined.
var Unknown = Quality{ID: 0, Name: "Unknown"}

// PredefinedQualities are the standard quality definitions.
var PredefinedQualities = []Quality{
	{ID: 1, Name: "SDTV", Source: "tv", Resolution: 480, Weight: 1},
	{ID: 2, Name: "DVD", Source: "dvd", Resolution: 480, Weight: 2},
	{ID: 3, Name: "WEBRip-480p", Source: "webrip", Resolution: 480, Weight: 3},
	{ID: 4, Name: "HDTV-720p", Source: "tv", Resolution: 720, Weight: 4},
	{ID: 5, Name: "WEBRip-720p", Source: "webrip", Resolution: 720, Weight: 5},
	{ID: 6, Name: "WEBDL-720p", Source: "webdl", Resolution: 720, Weight: 6},
	{ID: 7, Name: "Bluray-720p", Source: "bluray", Resolution: 720, Weight: 7},
	{ID: 8, Name: "HDTV-1080p", Source: "tv", Resolution: 1080, Weight: 8},
	{ID: 9, Name: "WEBRip-1080p", Source: "webrip", Resolution: 1080, Weight: 9},
	{ID: 10, Name: "WEBDL-1080p", Source: "webdl", Resolution: 1080, Weight: 10},
	{ID: 11, Name: "Bluray-1080p", Source: "bluray", Resolution: 1080, Weight: 11},
	{ID: 12, Name: "Remux-1080p", Source: "remux", Resolution: 1080, Weight: 12},
	{ID: 13, Name: "HDTV-2160p", Source: "tv", Resolution: 2160, Weight: 13},
	{ID: 14, Name: "WEBRip-2160p", Source: "webrip", Resolution: 2160, Weight: 14},
	{ID: 15, Name: "WEBDL-2160p", Source: "webdl", Resolution: 2160, Weight: 15},
	{ID: 16, Name: "Bluray-2160p", Source: "bluray", Resolution: 2160, Weight: 16},
	{ID: 17, Name: "Remux-2160p", Source: "remux", Resolution: 2160, Weight: 17},
}

var qualityByID map[int]Quality

func init() {
	qualityByID = make(map[int]Quality, len(PredefinedQualities))
	for _, q := range PredefinedQualities {
		qualityByID[q.ID] = q
	}
}

// GetQualityByID returns a quality by its ID.
func GetQualityByID(id int) (Quality, bool) {
	q, ok := qualityByID[id]
	return q, ok
}

// GetQualityByName finds a quality by name.
func GetQualityByName(name string) (Quality, bool) {
	for _, q := range PredefinedQualities {
		if q.Name == name {
			return q, true
		}
	}
	return Quality{}, false
}

// Revision distinguishes re-releases of the same nominal quality.
type Revision struct {
	Version  int  `json:"version" yaml:"version" toml:"version"`
	Real     int  `json:"real,omitempty" yaml:"real,omitempty" toml:"real,omitempty"`
	IsRepack bool `json:"isRepack,omitempty" yaml:"isRepack,omitempty" toml:"isRepack,omitempty"`
}

// Compare returns -1, 0 or 1. Real takes precedence over Version.
func (r Revision) Compare(other Revision) int {
	switch {
	case r.Real > other.Real:
		return 1
	case r.Real < other.Real:
		return -1
	case r.Version > other.Version:
		return 1
	case r.Version < other.Version:
		return -1
	default:
		return 0
	}
}

// IsProper reports whether the revision marks a proper or repack.
func (r Revision) IsProper() bool {
	return r.Version > 1 || r.Real > 0 || r.IsRepack
}

// Model is a quality together with its revision.
type Model struct {
	Quality  Quality  `json:"quality" yaml:"quality" toml:"quality"`
	Revision Revision `json:"revision" yaml:"revision" toml:"revision"`
}

// NewModel returns a model at the default revision.
func NewModel(q Quality) Model {
	return Model{Quality: q, Revision: Revision{Version: 1}}
}

// String renders the model the way it appears in rejection reasons.
func (m Model) String() string {
	if m.Revision.Version > 1 || m.Revision.Real > 0 {
		if m.Revision.Real > 0 {
			return fmt.Sprintf("%s v%d REAL", m.Quality.Name, m.Revision.Version)
		}
		return fmt.Sprintf("%s v%d", m.Quality.Name, m.Revision.Version)
	}
	return m.Quality.Name
}
