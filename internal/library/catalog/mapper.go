package catalog

import (
	"errors"
	"fmt"
	"slices"

	"github.com/slipstream/decisionengine/internal/indexer/types"
)

var (
	ErrNotParsable   = errors.New("unable to parse release")
	ErrItemNotFound  = errors.New("unknown item")
	ErrUnitsNotFound = fmt.Errorf("%w: unable to identify correct episode(s)", ErrItemNotFound)
)

// Mapping is a release resolved to a library item and the units it covers.
type Mapping struct {
	Item  *Item
	Units []Unit
}

// UnitIDs returns the IDs of the mapped units.
func (m *Mapping) UnitIDs() []int64 {
	ids := make([]int64, len(m.Units))
	for i, u := range m.Units {
		ids[i] = u.ID
	}
	return ids
}

// Mapper resolves releases to library items. IDs take precedence over titles.
type Mapper struct {
	byTitle  map[string][]*Item
	byImdbID map[int][]*Item
	byTmdbID map[int][]*Item
	byTvdbID map[int][]*Item
}

// NewMapper indexes items for lookup. The slice must not be modified while
// the mapper is in use.
func NewMapper(items []Item) *Mapper {
	m := &Mapper{
		byTitle:  make(map[string][]*Item),
		byImdbID: make(map[int][]*Item),
		byTmdbID: make(map[int][]*Item),
		byTvdbID: make(map[int][]*Item),
	}

	for i := range items {
		item := &items[i]
		for _, title := range append([]string{item.Title}, item.AltTitles...) {
			if normalized := NormalizeTitle(title); normalized != "" {
				m.byTitle[normalized] = append(m.byTitle[normalized], item)
			}
		}
		if item.ImdbID != 0 {
			m.byImdbID[item.ImdbID] = append(m.byImdbID[item.ImdbID], item)
		}
		if item.TmdbID != 0 {
			m.byTmdbID[item.TmdbID] = append(m.byTmdbID[item.TmdbID], item)
		}
		if item.TvdbID != 0 {
			m.byTvdbID[item.TvdbID] = append(m.byTvdbID[item.TvdbID], item)
		}
	}
	return m
}

// Map resolves a release. It returns ErrNotParsable when the release carries
// no parsed title and ErrItemNotFound (possibly wrapped) when no library item
// or unit matches.
func (m *Mapper) Map(r *types.ReleaseInfo) (*Mapping, error) {
	if r.Parsed == nil || NormalizeTitle(r.Parsed.Title) == "" {
		return nil, ErrNotParsable
	}
	parsed := r.Parsed

	candidates, byID := m.findCandidates(r)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrItemNotFound, parsed.Title)
	}

	isTV := parsed.Season > 0 || len(parsed.Episodes) > 0 || parsed.FullSeason
	for _, item := range candidates {
		switch {
		case isTV && item.MediaType == MediaTypeSeries:
			units := matchUnits(item, parsed)
			if len(units) == 0 {
				return nil, ErrUnitsNotFound
			}
			return &Mapping{Item: item, Units: units}, nil
		case !isTV && item.MediaType == MediaTypeMovie:
			if !byID && parsed.Year > 0 && item.Year > 0 && parsed.Year != item.Year {
				continue
			}
			return &Mapping{Item: item, Units: []Unit{item.MovieUnit()}}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrItemNotFound, parsed.Title)
}

func (m *Mapper) findCandidates(r *types.ReleaseInfo) ([]*Item, bool) {
	if items, ok := m.byImdbID[r.ImdbID]; ok && r.ImdbID != 0 {
		return items, true
	}
	if items, ok := m.byTmdbID[r.TmdbID]; ok && r.TmdbID != 0 {
		return items, true
	}
	if items, ok := m.byTvdbID[r.TvdbID]; ok && r.TvdbID != 0 {
		return items, true
	}
	return m.byTitle[NormalizeTitle(r.Parsed.Title)], false
}

func matchUnits(item *Item, parsed *types.ParsedRelease) []Unit {
	var units []Unit
	for _, u := range item.Units {
		if u.Season != parsed.Season {
			continue
		}
		if parsed.FullSeason || slices.Contains(parsed.Episodes, u.Episode) {
			units = append(units, u)
		}
	}
	return units
}
