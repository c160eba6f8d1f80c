package quality

import "strings"

const (
	sourceBluray = "bluray"
	sourceRemux  = "remux"
	sourceWebDL  = "webdl"
	sourceWebRip = "webrip"
	sourceTV     = "tv"
	sourceDVD    = "dvd"
)

// sourceMapping maps parsed source strings to quality source identifiers.
// Keys are lowercase for case-insensitive matching.
var sourceMapping = map[string]string{
	"bluray":  sourceBluray,
	"blu-ray": sourceBluray,
	"bdrip":   sourceBluray,
	"brrip":   sourceBluray,
	"bdremux": sourceRemux,
	"remux":   sourceRemux,
	"web-dl":  sourceWebDL,
	"webdl":   sourceWebDL,
	"webrip":  sourceWebRip,
	"web":     sourceWebDL,
	"hdtv":    sourceTV,
	"sdtv":    sourceTV,
	"pdtv":    sourceTV,
	"dsr":     sourceTV,
	"dvdrip":  sourceDVD,
	"dvd-r":   sourceDVD,
	"dvd":     sourceDVD,
}

// NormalizeSource converts a parsed source string to a quality source identifier.
func NormalizeSource(source string) string {
	lower := strings.ToLower(strings.TrimSpace(source))
	if normalized, ok := sourceMapping[lower]; ok {
		return normalized
	}
	switch {
	case strings.Contains(lower, "remux"):
		return sourceRemux
	case strings.Contains(lower, "bluray"), strings.Contains(lower, "blu-ray"):
		return sourceBluray
	case strings.Contains(lower, "web"):
		if strings.Contains(lower, "rip") {
			return sourceWebRip
		}
		return sourceWebDL
	case strings.Contains(lower, "hdtv"), strings.Contains(lower, "tv"):
		return sourceTV
	case strings.Contains(lower, "dvd"):
		return sourceDVD
	}
	return ""
}

// ParseResolution converts a resolution label ("1080p", "4K") to lines.
func ParseResolution(resolution string) int {
	switch strings.ToLower(strings.TrimSpace(resolution)) {
	case "2160p", "4k", "uhd":
		return 2160
	case "1080p", "1080i":
		return 1080
	case "720p":
		return 720
	case "576p", "480p", "sd":
		return 480
	default:
		return 0
	}
}

// Resolve finds the predefined quality for a source/resolution pair. When only
// one of the two is known the highest quality sharing it is used.
func Resolve(source string, resolution int) (Quality, bool) {
	normalized := NormalizeSource(source)

	if normalized != "" && resolution > 0 {
		for _, q := range PredefinedQualities {
			if q.Source == normalized && q.Resolution == resolution {
				return q, true
			}
		}
	}
	if resolution > 0 {
		if best, ok := bestBy(func(q Quality) bool { return q.Resolution == resolution }); ok {
			return best, true
		}
	}
	if normalized != "" {
		if best, ok := bestBy(func(q Quality) bool { return q.Source == normalized }); ok {
			return best, true
		}
	}
	return Unknown, false
}

func bestBy(matches func(q Quality) bool) (Quality, bool) {
	var best Quality
	found := false
	for _, q := range PredefinedQualities {
		if matches(q) && (!found || q.Weight > best.Weight) {
			best = q
			found = true
		}
	}
	return best, found
}
