// Package policy loads, stores and serves the decision policy: settings,
// quality profiles, custom formats, restrictions, delay profiles, the
// blocklist, the library and the existing state of each unit.
package policy

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/slipstream/decisionengine/internal/customformat"
	"github.com/slipstream/decisionengine/internal/decisioning"
	"github.com/slipstream/decisionengine/internal/library/catalog"
	"github.com/slipstream/decisionengine/internal/library/quality"
)

var (
	ErrNoPolicy      = errors.New("no policy has been imported")
	ErrInvalidPolicy = errors.New("invalid policy")
)

// ExistingEntry is the existing state of one unit.
type ExistingEntry struct {
	ItemID  int64                      `json:"itemId" yaml:"itemId" toml:"itemId"`
	UnitID  int64                      `json:"unitId" yaml:"unitId" toml:"unitId"`
	Files   []decisioning.ExistingFile `json:"files,omitempty" yaml:"files,omitempty" toml:"files,omitempty"`
	History []decisioning.HistoryEvent `json:"history,omitempty" yaml:"history,omitempty" toml:"history,omitempty"`
	Queue   []decisioning.QueueEntry   `json:"queue,omitempty" yaml:"queue,omitempty" toml:"queue,omitempty"`
}

// Document is the complete decision policy as written in a policy file.
type Document struct {
	Settings      decisioning.Settings          `json:"settings" yaml:"settings" toml:"settings"`
	Profiles      []quality.Profile             `json:"profiles" yaml:"profiles" toml:"profiles"`
	Definitions   []quality.Definition          `json:"definitions,omitempty" yaml:"definitions,omitempty" toml:"definitions,omitempty"`
	CustomFormats []customformat.Format         `json:"customFormats,omitempty" yaml:"customFormats,omitempty" toml:"customFormats,omitempty"`
	Restrictions  []decisioning.Restriction     `json:"restrictions,omitempty" yaml:"restrictions,omitempty" toml:"restrictions,omitempty"`
	DelayProfiles []decisioning.DelayProfile    `json:"delayProfiles,omitempty" yaml:"delayProfiles,omitempty" toml:"delayProfiles,omitempty"`
	Blocklist     []decisioning.BlocklistEntry  `json:"blocklist,omitempty" yaml:"blocklist,omitempty" toml:"blocklist,omitempty"`
	Items         []catalog.Item                `json:"items" yaml:"items" toml:"items"`
	Existing      []ExistingEntry               `json:"existing,omitempty" yaml:"existing,omitempty" toml:"existing,omitempty"`
}

// Validate checks the document without modifying it.
func (d *Document) Validate() error {
	_, err := d.Snapshot(time.Now())
	return err
}

// Snapshot builds an evaluation snapshot from the document. Everything the
// snapshot references is copied, so later edits to the document do not
// reach it.
func (d *Document) Snapshot(now time.Time) (*decisioning.Snapshot, error) {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidPolicy, fmt.Sprintf(format, args...))
	}

	switch d.Settings.Propers {
	case "", quality.PropersPreferAndUpgrade, quality.PropersDoNotUpgrade, quality.PropersDoNotPrefer:
	default:
		return nil, invalid("unknown propers policy %q", d.Settings.Propers)
	}

	profiles := make(map[int64]*quality.Profile, len(d.Profiles))
	for i := range d.Profiles {
		p := copyProfile(d.Profiles[i])
		if _, dup := profiles[p.ID]; dup {
			return nil, invalid("duplicate profile id %d", p.ID)
		}
		if err := resolveItems(p.Items); err != nil {
			return nil, invalid("profile %q: %v", p.Name, err)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
		}
		profiles[p.ID] = &p
	}

	definitions := make(map[int]quality.Definition)
	for _, def := range quality.DefaultDefinitions() {
		definitions[def.QualityID] = def
	}
	for _, def := range d.Definitions {
		if _, ok := quality.GetQualityByID(def.QualityID); !ok {
			return nil, invalid("definition for unknown quality %d", def.QualityID)
		}
		if def.MaxSize > 0 && def.MinSize > def.MaxSize {
			return nil, invalid("definition for quality %d has min size above max size", def.QualityID)
		}
		definitions[def.QualityID] = def
	}

	formats := make([]customformat.Format, len(d.CustomFormats))
	for i, f := range d.CustomFormats {
		f.Conditions = slices.Clone(f.Conditions)
		formats[i] = f
	}
	if err := customformat.CompileAll(formats); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}

	restrictions := make([]decisioning.Restriction, len(d.Restrictions))
	for i, r := range d.Restrictions {
		r.Required = slices.Clone(r.Required)
		r.Ignored = slices.Clone(r.Ignored)
		r.Tags = slices.Clone(r.Tags)
		if err := r.Compile(); err != nil {
			return nil, invalid("restriction %d: %v", r.ID, err)
		}
		restrictions[i] = r
	}

	delayProfiles := slices.Clone(d.DelayProfiles)
	for _, dp := range delayProfiles {
		if dp.PreferredProtocol != "" && !dp.PreferredProtocol.Valid() {
			return nil, invalid("delay profile %d has unknown protocol %q", dp.ID, dp.PreferredProtocol)
		}
	}
	sort.SliceStable(delayProfiles, func(i, j int) bool { return delayProfiles[i].Order < delayProfiles[j].Order })

	items := make([]catalog.Item, len(d.Items))
	itemIDs := make(map[int64]*catalog.Item, len(d.Items))
	for i, item := range d.Items {
		item.AltTitles = slices.Clone(item.AltTitles)
		item.Tags = slices.Clone(item.Tags)
		item.Units = slices.Clone(item.Units)
		if _, dup := itemIDs[item.ID]; dup {
			return nil, invalid("duplicate item id %d", item.ID)
		}
		if _, ok := profiles[item.ProfileID]; !ok {
			return nil, invalid("item %q references unknown profile %d", item.Title, item.ProfileID)
		}
		if item.MediaType != catalog.MediaTypeMovie && item.MediaType != catalog.MediaTypeSeries {
			return nil, invalid("item %q has unknown media type %q", item.Title, item.MediaType)
		}
		items[i] = item
		itemIDs[item.ID] = &items[i]
	}

	existing := make(map[decisioning.UnitKey]*decisioning.ExistingState, len(d.Existing))
	for _, e := range d.Existing {
		if _, ok := itemIDs[e.ItemID]; !ok {
			return nil, invalid("existing state for unknown item %d", e.ItemID)
		}
		st := &decisioning.ExistingState{
			Files:   slices.Clone(e.Files),
			History: slices.Clone(e.History),
			Queue:   slices.Clone(e.Queue),
		}
		if err := resolveExisting(st); err != nil {
			return nil, invalid("existing state for item %d unit %d: %v", e.ItemID, e.UnitID, err)
		}
		key := decisioning.UnitKey{ItemID: e.ItemID, UnitID: e.UnitID}
		if prev, ok := existing[key]; ok {
			prev.Files = append(prev.Files, st.Files...)
			prev.History = append(prev.History, st.History...)
			prev.Queue = append(prev.Queue, st.Queue...)
			continue
		}
		existing[key] = st
	}

	settings := d.Settings
	settings.PreferredLanguages = slices.Clone(settings.PreferredLanguages)

	return &decisioning.Snapshot{
		Now:           now,
		Settings:      settings,
		Profiles:      profiles,
		Definitions:   definitions,
		CustomFormats: formats,
		Restrictions:  restrictions,
		DelayProfiles: delayProfiles,
		Blocklist:     slices.Clone(d.Blocklist),
		Items:         items,
		Mapper:        catalog.NewMapper(items),
		Existing:      existing,
	}, nil
}

func copyProfile(p quality.Profile) quality.Profile {
	p.Items = copyItems(p.Items)
	p.FormatItems = slices.Clone(p.FormatItems)
	p.PreferredWords = slices.Clone(p.PreferredWords)
	return p
}

func copyItems(items []quality.ProfileItem) []quality.ProfileItem {
	out := make([]quality.ProfileItem, len(items))
	for i, item := range items {
		if item.Quality != nil {
			q := *item.Quality
			item.Quality = &q
		}
		item.Items = copyItems(item.Items)
		out[i] = item
	}
	return out
}

// resolveItems replaces each quality reference with the predefined quality
// of the same ID, or of the same name when no ID is given.
func resolveItems(items []quality.ProfileItem) error {
	for i := range items {
		if items[i].IsGroup() {
			if err := resolveItems(items[i].Items); err != nil {
				return err
			}
			continue
		}
		q, err := resolveQuality(*items[i].Quality)
		if err != nil {
			return err
		}
		*items[i].Quality = q
	}
	return nil
}

func resolveQuality(ref quality.Quality) (quality.Quality, error) {
	if ref.ID != 0 {
		if q, ok := quality.GetQualityByID(ref.ID); ok {
			return q, nil
		}
		return quality.Quality{}, fmt.Errorf("unknown quality id %d", ref.ID)
	}
	if ref.Name == "" {
		return quality.Unknown, nil
	}
	if q, ok := quality.GetQualityByName(ref.Name); ok {
		return q, nil
	}
	return quality.Quality{}, fmt.Errorf("unknown quality %q", ref.Name)
}

func resolveModel(m *quality.Model) error {
	q, err := resolveQuality(m.Quality)
	if err != nil {
		return err
	}
	m.Quality = q
	if m.Revision.Version == 0 {
		m.Revision.Version = 1
	}
	return nil
}

func resolveExisting(st *decisioning.ExistingState) error {
	for i := range st.Files {
		if err := resolveModel(&st.Files[i].Quality); err != nil {
			return err
		}
	}
	for i := range st.History {
		if err := resolveModel(&st.History[i].Quality); err != nil {
			return err
		}
	}
	for i := range st.Queue {
		if err := resolveModel(&st.Queue[i].Quality); err != nil {
			return err
		}
		if !st.Queue[i].State.Valid() {
			return fmt.Errorf("queue entry %q has unknown state %q", st.Queue[i].Title, st.Queue[i].State)
		}
	}
	return nil
}
