package quality

// ProperPolicy controls how propers and repacks are treated.
type ProperPolicy string

const (
	PropersPreferAndUpgrade ProperPolicy = "preferAndUpgrade"
	PropersDoNotUpgrade     ProperPolicy = "doNotUpgrade"
	PropersDoNotPrefer      ProperPolicy = "doNotPrefer"
)

// Scored is a quality model together with its custom format score.
type Scored struct {
	Model Model
	Score int
}

// Comparator decides whether a candidate quality improves on an existing one.
// Quality level dominates revision, which dominates custom format score.
type Comparator struct {
	Propers ProperPolicy
}

// NewComparator returns a comparator for the given proper policy.
func NewComparator(propers ProperPolicy) Comparator {
	if propers == "" {
		propers = PropersPreferAndUpgrade
	}
	return Comparator{Propers: propers}
}

// IsUpgrade reports whether candidate is a strict upgrade over current.
func (c Comparator) IsUpgrade(p *Profile, current Model, currentScore int, candidate Model, candidateScore int) bool {
	candidateIdx, err := p.IndexOf(candidate.Quality)
	if err != nil {
		return false
	}
	currentIdx, err := p.IndexOf(current.Quality)
	if err != nil {
		// Anything in the profile beats a quality the profile no longer knows.
		currentIdx = -1
	}

	switch {
	case candidateIdx > currentIdx:
		return p.UpgradeAllowed
	case candidateIdx < currentIdx:
		return false
	}

	if c.Propers != PropersDoNotPrefer {
		switch candidate.Revision.Compare(current.Revision) {
		case 1:
			return c.Propers == PropersPreferAndUpgrade
		case -1:
			return false
		}
	}

	return candidateScore > currentScore
}

// IsUpgradeAllowed reports whether the profile permits moving from every one
// of currents to candidate. It only refuses when upgrades are disabled and the
// candidate would be a quality or format upgrade over one of them.
func (c Comparator) IsUpgradeAllowed(p *Profile, currents []Scored, candidate Model, candidateScore int) bool {
	if p.UpgradeAllowed {
		return true
	}
	candidateIdx, err := p.IndexOf(candidate.Quality)
	if err != nil {
		return true
	}
	for _, current := range currents {
		currentIdx, err := p.IndexOf(current.Model.Quality)
		if err != nil {
			continue
		}
		if candidateIdx > currentIdx {
			return false
		}
		if candidateIdx == currentIdx && candidateScore > current.Score {
			return false
		}
	}
	return true
}

// IsRevisionUpgrade reports whether candidate is the same quality at a newer revision.
func (c Comparator) IsRevisionUpgrade(current, candidate Model) bool {
	if c.Propers == PropersDoNotPrefer {
		return false
	}
	return current.Quality.ID == candidate.Quality.ID && candidate.Revision.Compare(current.Revision) > 0
}

// CutoffNotMet reports whether current still leaves room for improvement:
// its quality is below the cutoff, its format score is below the cutoff score,
// or the candidate (when given) is a revision upgrade of it.
func (c Comparator) CutoffNotMet(p *Profile, current Model, currentScore int, candidate *Model) bool {
	if !p.IsAtOrAboveCutoff(current.Quality) {
		return true
	}
	if candidate != nil && c.IsRevisionUpgrade(current, *candidate) {
		return true
	}
	return currentScore < p.CutoffFormatScore
}
