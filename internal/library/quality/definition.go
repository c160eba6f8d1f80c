package quality

// Definition holds the size limits for a quality, expressed in megabytes per
// minute of runtime. A MaxSize of zero means unbounded.
type Definition struct {
	QualityID     int     `json:"qualityId" yaml:"qualityId" toml:"qualityId"`
	Title         string  `json:"title,omitempty" yaml:"title,omitempty" toml:"title,omitempty"`
	MinSize       float64 `json:"minSize" yaml:"minSize" toml:"minSize"`
	MaxSize       float64 `json:"maxSize" yaml:"maxSize" toml:"maxSize"`
	PreferredSize float64 `json:"preferredSize,omitempty" yaml:"preferredSize,omitempty" toml:"preferredSize,omitempty"`
}

const bytesPerMB = 1024 * 1024

// MinBytes returns the smallest acceptable size for the given total runtime.
func (d Definition) MinBytes(runtimeMinutes int) int64 {
	return int64(d.MinSize * float64(runtimeMinutes) * bytesPerMB)
}

// MaxBytes returns the largest acceptable size for the given total runtime,
// or zero when unbounded.
func (d Definition) MaxBytes(runtimeMinutes int) int64 {
	if d.MaxSize <= 0 {
		return 0
	}
	return int64(d.MaxSize * float64(runtimeMinutes) * bytesPerMB)
}

// DefaultDefinitions returns the stock size limits for the predefined qualities.
func DefaultDefinitions() []Definition {
	limits := map[int][2]float64{
		1:  {2, 100},
		2:  {2, 100},
		3:  {2, 100},
		4:  {3, 125},
		5:  {3, 130},
		6:  {3, 130},
		7:  {4, 130},
		8:  {4, 155},
		9:  {4, 155},
		10: {4, 155},
		11: {4, 155},
		12: {35, 0},
		13: {35, 0},
		14: {35, 0},
		15: {35, 0},
		16: {35, 0},
		17: {35, 0},
	}
	defs := make([]Definition, 0, len(PredefinedQualities))
	for _, q := range PredefinedQualities {
		l := limits[q.ID]
		defs = append(defs, Definition{QualityID: q.ID, Title: q.Name, MinSize: l[0], MaxSize: l[1]})
	}
	return defs
}
