package types

import "strings"

// IndexerFlag is a tracker-specific marker an indexer attaches to a release.
type IndexerFlag string

const (
	FlagFreeleech    IndexerFlag = "freeleech"
	FlagHalfleech    IndexerFlag = "halfleech"
	FlagDoubleUpload IndexerFlag = "doubleUpload"
	FlagInternal     IndexerFlag = "internal"
	FlagApproved     IndexerFlag = "approved"
	FlagGolden       IndexerFlag = "golden"
)

var flagScores = map[IndexerFlag]int{
	FlagFreeleech:    2,
	FlagDoubleUpload: 2,
	FlagInternal:     2,
	FlagApproved:     2,
	FlagGolden:       2,
	FlagHalfleech:    1,
}

// ParseIndexerFlag matches a flag name case-insensitively.
func ParseIndexerFlag(s string) (IndexerFlag, bool) {
	s = strings.TrimSpace(s)
	for f := range flagScores {
		if strings.EqualFold(string(f), s) {
			return f, true
		}
	}
	return "", false
}

// HasFlag reports whether the release carries the flag, ignoring case.
func (r *ReleaseInfo) HasFlag(flag IndexerFlag) bool {
	for _, f := range r.IndexerFlags {
		if strings.EqualFold(string(f), string(flag)) {
			return true
		}
	}
	return false
}

// FlagScore sums the preference weights of the release's flags. Unknown and
// repeated flags add nothing.
func (r *ReleaseInfo) FlagScore() int {
	seen := make(map[IndexerFlag]bool, len(r.IndexerFlags))
	score := 0
	for _, f := range r.IndexerFlags {
		if f, ok := ParseIndexerFlag(string(f)); ok && !seen[f] {
			seen[f] = true
			score += flagScores[f]
		}
	}
	return score
}
