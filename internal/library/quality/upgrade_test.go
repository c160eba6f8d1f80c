package quality

import "testing"

func model(t *testing.T, name string, version int) Model {
	t.Helper()
	return Model{Quality: mustQuality(t, name), Revision: Revision{Version: version}}
}

func TestComparator_IsUpgrade(t *testing.T) {
	tests := []struct {
		name           string
		upgradeAllowed bool
		propers        ProperPolicy
		current        Model
		currentScore   int
		candidate      Model
		candidateScore int
		want           bool
	}{
		{
			name:           "higher quality wins regardless of score",
			upgradeAllowed: true,
			current:        model(t, "SDTV", 1),
			currentScore:   100,
			candidate:      model(t, "HDTV-1080p", 1),
			want:           true,
		},
		{
			name:           "lower quality never wins",
			upgradeAllowed: true,
			current:        model(t, "HDTV-1080p", 1),
			candidate:      model(t, "HDTV-720p", 2),
			candidateScore: 100,
			want:           false,
		},
		{
			name:           "revision breaks quality tie",
			upgradeAllowed: true,
			current:        model(t, "HDTV-720p", 1),
			candidate:      model(t, "HDTV-720p", 2),
			want:           true,
		},
		{
			name:           "revision dominates score",
			upgradeAllowed: true,
			current:        model(t, "HDTV-720p", 2),
			candidate:      model(t, "HDTV-720p", 1),
			candidateScore: 100,
			want:           false,
		},
		{
			name:           "score breaks revision tie",
			upgradeAllowed: true,
			current:        model(t, "HDTV-720p", 2),
			candidate:      model(t, "HDTV-720p", 2),
			candidateScore: 5,
			want:           true,
		},
		{
			name:           "equal score is not an upgrade",
			upgradeAllowed: true,
			current:        model(t, "HDTV-720p", 2),
			currentScore:   5,
			candidate:      model(t, "HDTV-720p", 2),
			candidateScore: 5,
			want:           false,
		},
		{
			name:      "upgrades disabled blocks higher quality",
			current:   model(t, "SDTV", 1),
			candidate: model(t, "HDTV-1080p", 1),
			want:      false,
		},
		{
			name:      "upgrades disabled still permits revision",
			current:   model(t, "HDTV-720p", 1),
			candidate: model(t, "HDTV-720p", 2),
			want:      true,
		},
		{
			name:           "do not upgrade propers",
			upgradeAllowed: true,
			propers:        PropersDoNotUpgrade,
			current:        model(t, "HDTV-720p", 1),
			candidate:      model(t, "HDTV-720p", 2),
			want:           false,
		},
		{
			name:           "do not prefer ignores revision and uses score",
			upgradeAllowed: true,
			propers:        PropersDoNotPrefer,
			current:        model(t, "HDTV-720p", 2),
			candidate:      model(t, "HDTV-720p", 1),
			candidateScore: 10,
			want:           true,
		},
		{
			name:           "candidate outside profile",
			upgradeAllowed: true,
			current:        model(t, "SDTV", 1),
			candidate:      model(t, "Remux-2160p", 1),
			want:           false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := threeRung(t, "HDTV-720p")
			p.UpgradeAllowed = tt.upgradeAllowed
			c := NewComparator(tt.propers)
			got := c.IsUpgrade(&p, tt.current, tt.currentScore, tt.candidate, tt.candidateScore)
			if got != tt.want {
				t.Errorf("IsUpgrade() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComparator_Scenarios(t *testing.T) {
	p := threeRung(t, "HDTV-720p")
	p.MinFormatScore = 1
	c := NewComparator(PropersPreferAndUpgrade)

	t.Run("quality dominates", func(t *testing.T) {
		if !c.IsUpgrade(&p, model(t, "SDTV", 1), 0, model(t, "HDTV-1080p", 1), 0) {
			t.Error("SDTV -> HDTV-1080p IsUpgrade() = false, want true")
		}
	})
	t.Run("revision tie-break", func(t *testing.T) {
		if !c.IsUpgrade(&p, model(t, "HDTV-720p", 1), 0, model(t, "HDTV-720p", 2), 0) {
			t.Error("HDTV-720p v1 -> v2 IsUpgrade() = false, want true")
		}
	})
	t.Run("format score", func(t *testing.T) {
		if !c.IsUpgrade(&p, model(t, "HDTV-720p", 2), 0, model(t, "HDTV-720p", 2), 5) {
			t.Error("score 0 -> 5 IsUpgrade() = false, want true")
		}
		if c.IsUpgrade(&p, model(t, "HDTV-720p", 2), 0, model(t, "HDTV-720p", 2), 0) {
			t.Error("score 0 -> 0 IsUpgrade() = true, want false")
		}
	})
}

func TestComparator_UpgradeDisabledNeverClimbsLadder(t *testing.T) {
	p := DefaultProfile()
	p.UpgradeAllowed = false
	c := NewComparator(PropersPreferAndUpgrade)

	for i, current := range PredefinedQualities {
		for _, candidate := range PredefinedQualities[i+1:] {
			for _, score := range []int{0, 10} {
				if c.IsUpgrade(&p, NewModel(current), 0, NewModel(candidate), score) {
					t.Errorf("IsUpgrade(%s -> %s) = true with upgrades disabled", current.Name, candidate.Name)
				}
			}
		}
		proper := Model{Quality: current, Revision: Revision{Version: 2}}
		if !c.IsUpgrade(&p, NewModel(current), 0, proper, 0) {
			t.Errorf("IsUpgrade(%s -> proper) = false, want true", current.Name)
		}
	}
}

func TestComparator_IsUpgradeAllowed(t *testing.T) {
	p := threeRung(t, "HDTV-1080p")
	p.UpgradeAllowed = false
	c := NewComparator("")

	currents := []Scored{
		{Model: model(t, "HDTV-720p", 1)},
		{Model: model(t, "HDTV-1080p", 1)},
	}
	if c.IsUpgradeAllowed(&p, currents, model(t, "HDTV-1080p", 1), 0) {
		t.Error("IsUpgradeAllowed() = true, want false when one current is lower quality")
	}
	if !c.IsUpgradeAllowed(&p, currents[1:], model(t, "HDTV-1080p", 2), 0) {
		t.Error("IsUpgradeAllowed() = false, want true for same quality and score")
	}
	if c.IsUpgradeAllowed(&p, currents[1:], model(t, "HDTV-1080p", 1), 10) {
		t.Error("IsUpgradeAllowed() = true, want false for higher score")
	}

	p.UpgradeAllowed = true
	if !c.IsUpgradeAllowed(&p, currents, model(t, "HDTV-1080p", 1), 10) {
		t.Error("IsUpgradeAllowed() = false with upgrades enabled")
	}
}

func TestComparator_CutoffNotMet(t *testing.T) {
	p := threeRung(t, "HDTV-720p")
	p.CutoffFormatScore = 10
	c := NewComparator("")

	tests := []struct {
		name      string
		current   Model
		score     int
		candidate *Model
		want      bool
	}{
		{"below cutoff", model(t, "SDTV", 1), 100, nil, true},
		{"at cutoff, score below", model(t, "HDTV-720p", 1), 5, nil, true},
		{"at cutoff, score met", model(t, "HDTV-720p", 1), 10, nil, false},
		{"revision upgrade reopens cutoff", model(t, "HDTV-1080p", 1), 10, ptr(model(t, "HDTV-1080p", 2)), true},
		{"different quality candidate", model(t, "HDTV-1080p", 1), 10, ptr(model(t, "HDTV-720p", 2)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.CutoffNotMet(&p, tt.current, tt.score, tt.candidate); got != tt.want {
				t.Errorf("CutoffNotMet() = %v, want %v", got, tt.want)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }
