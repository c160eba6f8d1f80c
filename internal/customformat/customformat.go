// Package customformat evaluates user-defined release formats against parsed
// release attributes.
package customformat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/slipstream/decisionengine/internal/indexer/types"
	"github.com/slipstream/decisionengine/internal/library/lang"
	"github.com/slipstream/decisionengine/internal/library/quality"
	"github.com/slipstream/decisionengine/internal/textmatch"
)

// ConditionType names the release attribute a condition inspects.
type ConditionType string

const (
	ConditionReleaseTitle ConditionType = "releaseTitle"
	ConditionEdition      ConditionType = "edition"
	ConditionReleaseGroup ConditionType = "releaseGroup"
	ConditionIndexer      ConditionType = "indexer"
	ConditionSource       ConditionType = "source"
	ConditionResolution   ConditionType = "resolution"
	ConditionLanguage     ConditionType = "language"
	ConditionSize         ConditionType = "size"
	ConditionIndexerFlag  ConditionType = "indexerFlag"
)

// Condition is one predicate of a format.
//
// Conditions of the same type form a group: the group matches when no
// Required condition fails and at least one condition matches. A format
// matches when every group matches, so a format whose conditions are all
// Required matches only when every condition holds.
type Condition struct {
	Name     string        `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Type     ConditionType `json:"type" yaml:"type" toml:"type"`
	Value    string        `json:"value,omitempty" yaml:"value,omitempty" toml:"value,omitempty"`
	MinSize  float64       `json:"minSize,omitempty" yaml:"minSize,omitempty" toml:"minSize,omitempty"` // GB, exclusive
	MaxSize  float64       `json:"maxSize,omitempty" yaml:"maxSize,omitempty" toml:"maxSize,omitempty"` // GB, exclusive
	Negate   bool          `json:"negate,omitempty" yaml:"negate,omitempty" toml:"negate,omitempty"`
	Required bool          `json:"required,omitempty" yaml:"required,omitempty" toml:"required,omitempty"`

	term       textmatch.Term
	resolution int
	source     string
	language   string
	flag       types.IndexerFlag
}

// Format is a named, user-defined set of conditions.
type Format struct {
	ID         int64       `json:"id" yaml:"id" toml:"id"`
	Name       string      `json:"name" yaml:"name" toml:"name"`
	Conditions []Condition `json:"conditions" yaml:"conditions" toml:"conditions"`

	compiled bool
}

// Input is the set of release attributes formats are evaluated against.
type Input struct {
	Title        string
	Edition      string
	ReleaseGroup string
	Indexer      string
	Quality      quality.Quality
	Languages    []string
	Size         int64
	IndexerFlags []types.IndexerFlag
}

// Compile validates the format and prepares its conditions for matching.
func (f *Format) Compile() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("custom format %d has no name", f.ID)
	}
	if len(f.Conditions) == 0 {
		return fmt.Errorf("custom format %q has no conditions", f.Name)
	}
	for i := range f.Conditions {
		if err := f.Conditions[i].compile(); err != nil {
			return fmt.Errorf("custom format %q condition %d: %w", f.Name, i, err)
		}
	}
	f.compiled = true
	return nil
}

// CompileAll compiles every format in place and rejects duplicate IDs.
func CompileAll(formats []Format) error {
	seen := make(map[int64]string, len(formats))
	for i := range formats {
		if prev, ok := seen[formats[i].ID]; ok {
			return fmt.Errorf("custom formats %q and %q share id %d", prev, formats[i].Name, formats[i].ID)
		}
		seen[formats[i].ID] = formats[i].Name
		if err := formats[i].Compile(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Condition) compile() error {
	switch c.Type {
	case ConditionReleaseTitle, ConditionEdition, ConditionReleaseGroup, ConditionIndexer:
		t, err := textmatch.Compile(c.Value)
		if err != nil {
			return err
		}
		c.term = t
	case ConditionSource:
		c.source = quality.NormalizeSource(c.Value)
		if c.source == "" {
			return fmt.Errorf("unknown source %q", c.Value)
		}
	case ConditionResolution:
		c.resolution = quality.ParseResolution(c.Value)
		if c.resolution == 0 {
			return fmt.Errorf("unknown resolution %q", c.Value)
		}
	case ConditionLanguage:
		c.language = lang.Normalize(c.Value)
		if c.language == "" {
			return fmt.Errorf("unknown language %q", c.Value)
		}
	case ConditionIndexerFlag:
		flag, ok := types.ParseIndexerFlag(c.Value)
		if !ok {
			return fmt.Errorf("unknown indexer flag %q", c.Value)
		}
		c.flag = flag
	case ConditionSize:
		if c.MaxSize > 0 && c.MinSize >= c.MaxSize {
			return fmt.Errorf("size range %.2f-%.2f GB is empty", c.MinSize, c.MaxSize)
		}
	default:
		return fmt.Errorf("unknown condition type %q", c.Type)
	}
	return nil
}

const bytesPerGB = 1024 * 1024 * 1024

// satisfied applies the condition, including negation.
func (c *Condition) satisfied(in Input) bool {
	return c.matches(in) != c.Negate
}

func (c *Condition) matches(in Input) bool {
	switch c.Type {
	case ConditionReleaseTitle:
		return c.term.Match(in.Title)
	case ConditionEdition:
		return in.Edition != "" && c.term.Match(in.Edition)
	case ConditionReleaseGroup:
		return in.ReleaseGroup != "" && c.term.Match(in.ReleaseGroup)
	case ConditionIndexer:
		return in.Indexer != "" && c.term.Match(in.Indexer)
	case ConditionSource:
		return in.Quality.Source == c.source
	case ConditionResolution:
		return in.Quality.Resolution == c.resolution
	case ConditionLanguage:
		return lang.Contains(in.Languages, c.language)
	case ConditionIndexerFlag:
		r := types.ReleaseInfo{IndexerFlags: in.IndexerFlags}
		return r.HasFlag(c.flag)
	case ConditionSize:
		gb := float64(in.Size) / bytesPerGB
		if gb <= c.MinSize {
			return false
		}
		return c.MaxSize <= 0 || gb < c.MaxSize
	}
	return false
}

// Matches reports whether every condition group of the format is satisfied.
// An uncompiled format is compiled on a private copy, so shared formats are
// never written to; invalid formats never match.
func (f *Format) Matches(in Input) bool {
	if !f.compiled {
		cp := *f
		cp.Conditions = append([]Condition(nil), f.Conditions...)
		if err := cp.Compile(); err != nil {
			return false
		}
		return cp.Matches(in)
	}

	type group struct {
		requiredFailed bool
		anyMatched     bool
	}
	groups := make(map[ConditionType]*group)
	for i := range f.Conditions {
		c := &f.Conditions[i]
		g, ok := groups[c.Type]
		if !ok {
			g = &group{}
			groups[c.Type] = g
		}
		ok = c.satisfied(in)
		if ok {
			g.anyMatched = true
		} else if c.Required {
			g.requiredFailed = true
		}
	}
	for _, g := range groups {
		if g.requiredFailed || !g.anyMatched {
			return false
		}
	}
	return true
}

// Match evaluates every format independently and returns those that match,
// sorted by name.
func Match(in Input, formats []Format) []Format {
	var matched []Format
	for i := range formats {
		if formats[i].Matches(in) {
			matched = append(matched, formats[i])
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Name < matched[j].Name
	})
	return matched
}

// IDs returns the IDs of the given formats.
func IDs(formats []Format) []int64 {
	ids := make([]int64, len(formats))
	for i, f := range formats {
		ids[i] = f.ID
	}
	return ids
}

// Names returns the names of the given formats.
func Names(formats []Format) []string {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = f.Name
	}
	return names
}

// Score matches the formats and sums their profile scores.
func Score(p *quality.Profile, in Input, formats []Format) ([]Format, int) {
	matched := Match(in, formats)
	return matched, p.FormatScore(IDs(matched))
}
