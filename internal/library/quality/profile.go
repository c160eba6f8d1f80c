package quality

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrQualityNotInProfile = errors.New("quality not in profile")
	ErrInvalidCutoff       = errors.New("cutoff does not match a profile item")
)

// ProfileItem is one rung of a profile's quality ladder: either a single
// quality or a named group of equivalent qualities.
type ProfileItem struct {
	ID      int           `json:"id,omitempty" yaml:"id,omitempty" toml:"id,omitempty"` // group ID, only set for groups
	Name    string        `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Quality *Quality      `json:"quality,omitempty" yaml:"quality,omitempty" toml:"quality,omitempty"`
	Items   []ProfileItem `json:"items,omitempty" yaml:"items,omitempty" toml:"items,omitempty"`
	Allowed bool          `json:"allowed" yaml:"allowed" toml:"allowed"`
}

// IsGroup reports whether the item groups several qualities.
func (i ProfileItem) IsGroup() bool {
	return i.Quality == nil
}

func (i ProfileItem) contains(qualityID int) bool {
	if !i.IsGroup() {
		return i.Quality.ID == qualityID
	}
	for _, member := range i.Items {
		if member.contains(qualityID) {
			return true
		}
	}
	return false
}

// FormatItem assigns a score to a custom format within a profile.
type FormatItem struct {
	FormatID int64  `json:"formatId" yaml:"formatId" toml:"formatId"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Score    int    `json:"score" yaml:"score" toml:"score"`
}

// Profile represents a quality profile.
type Profile struct {
	ID                int64         `json:"id" yaml:"id" toml:"id"`
	Name              string        `json:"name" yaml:"name" toml:"name"`
	UpgradeAllowed    bool          `json:"upgradeAllowed" yaml:"upgradeAllowed" toml:"upgradeAllowed"`
	Cutoff            int           `json:"cutoff" yaml:"cutoff" toml:"cutoff"` // quality ID or group ID at which upgrades stop
	Items             []ProfileItem `json:"items" yaml:"items" toml:"items"`    // ordered lowest to highest
	FormatItems       []FormatItem  `json:"formatItems,omitempty" yaml:"formatItems,omitempty" toml:"formatItems,omitempty"`
	MinFormatScore    int           `json:"minFormatScore" yaml:"minFormatScore" toml:"minFormatScore"`
	CutoffFormatScore int           `json:"cutoffFormatScore" yaml:"cutoffFormatScore" toml:"cutoffFormatScore"`
	Language          string        `json:"language,omitempty" yaml:"language,omitempty" toml:"language,omitempty"` // empty or "any" accepts every language
	PreferredWords    []string      `json:"preferredWords,omitempty" yaml:"preferredWords,omitempty" toml:"preferredWords,omitempty"`
}

// PreferredWordCount counts the preferred words contained in a release
// title, ignoring case.
func (p *Profile) PreferredWordCount(title string) int {
	title = strings.ToLower(title)
	n := 0
	for _, w := range p.PreferredWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" && strings.Contains(title, w) {
			n++
		}
	}
	return n
}

// IndexOf returns the ladder position of a quality. Qualities in the same
// group share a position.
func (p *Profile) IndexOf(q Quality) (int, error) {
	for i, item := range p.Items {
		if item.contains(q.ID) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s (profile %q)", ErrQualityNotInProfile, q.Name, p.Name)
}

// CutoffIndex returns the ladder position of the cutoff item.
func (p *Profile) CutoffIndex() (int, error) {
	for i, item := range p.Items {
		if item.IsGroup() && item.ID == p.Cutoff {
			return i, nil
		}
	}
	for i, item := range p.Items {
		if item.contains(p.Cutoff) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %d (profile %q)", ErrInvalidCutoff, p.Cutoff, p.Name)
}

// IsAtOrAboveCutoff reports whether the quality sits at or above the cutoff.
// Qualities outside the profile are never at cutoff.
func (p *Profile) IsAtOrAboveCutoff(q Quality) bool {
	idx, err := p.IndexOf(q)
	if err != nil {
		return false
	}
	cutoff, err := p.CutoffIndex()
	if err != nil {
		return false
	}
	return idx >= cutoff
}

// IsAcceptable checks if a quality is present and allowed in this profile.
// A group's Allowed flag applies to all of its members.
func (p *Profile) IsAcceptable(qualityID int) bool {
	for _, item := range p.Items {
		if item.contains(qualityID) {
			return item.Allowed
		}
	}
	return false
}

// LastAllowed returns the highest allowed quality item's index, or -1.
func (p *Profile) LastAllowed() int {
	for i := len(p.Items) - 1; i >= 0; i-- {
		if p.Items[i].Allowed {
			return i
		}
	}
	return -1
}

// FormatScore sums the profile scores of the given formats. Unknown formats score zero.
func (p *Profile) FormatScore(formatIDs []int64) int {
	if len(p.FormatItems) == 0 || len(formatIDs) == 0 {
		return 0
	}
	scores := make(map[int64]int, len(p.FormatItems))
	for _, item := range p.FormatItems {
		scores[item.FormatID] = item.Score
	}
	total := 0
	for _, id := range formatIDs {
		total += scores[id]
	}
	return total
}

// Validate checks the structural invariants of the profile.
func (p *Profile) Validate() error {
	if len(p.Items) == 0 {
		return fmt.Errorf("profile %q has no quality items", p.Name)
	}
	seen := make(map[int]bool)
	var walk func(items []ProfileItem) error
	walk = func(items []ProfileItem) error {
		for _, item := range items {
			if item.IsGroup() {
				if len(item.Items) == 0 {
					return fmt.Errorf("profile %q group %q is empty", p.Name, item.Name)
				}
				if err := walk(item.Items); err != nil {
					return err
				}
				continue
			}
			if seen[item.Quality.ID] {
				return fmt.Errorf("profile %q lists quality %s twice", p.Name, item.Quality.Name)
			}
			seen[item.Quality.ID] = true
		}
		return nil
	}
	if err := walk(p.Items); err != nil {
		return err
	}
	if _, err := p.CutoffIndex(); err != nil {
		return err
	}
	return nil
}

func ladder(allowed func(q Quality) bool) []ProfileItem {
	items := make([]ProfileItem, len(PredefinedQualities))
	for i := range PredefinedQualities {
		q := PredefinedQualities[i]
		items[i] = ProfileItem{Quality: &q, Allowed: allowed(q)}
	}
	return items
}

// DefaultProfile returns a default "Any" profile that accepts all qualities.
func DefaultProfile() Profile {
	return Profile{
		Name:           "Any",
		UpgradeAllowed: true,
		Cutoff:         11, // Bluray-1080p
		Items:          ladder(func(Quality) bool { return true }),
	}
}

// HD1080pProfile returns a profile targeting 1080p content.
func HD1080pProfile() Profile {
	return Profile{
		Name:           "HD-1080p",
		UpgradeAllowed: true,
		Cutoff:         11, // Bluray-1080p
		Items: ladder(func(q Quality) bool {
			return q.Resolution >= 720 && q.Resolution <= 1080
		}),
	}
}

// Ultra4KProfile returns a profile targeting 4K content.
func Ultra4KProfile() Profile {
	return Profile{
		Name:           "Ultra-HD",
		UpgradeAllowed: true,
		Cutoff:         16, // Bluray-2160p
		Items:          ladder(func(q Quality) bool { return q.Resolution >= 1080 }),
	}
}
