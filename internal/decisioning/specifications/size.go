package specifications

import (
	"github.com/dustin/go-humanize"

	"github.com/slipstream/decisionengine/internal/decisioning"
)

const bytesPerMB = 1024 * 1024

// AcceptableSize checks the release size against the quality definition,
// scaled by the runtime of every unit the release covers. Releases of
// unknown size always pass.
type AcceptableSize struct{}

func (AcceptableSize) Name() string { return "acceptableSize" }

func (AcceptableSize) Evaluate(c *decisioning.Candidate, snap *decisioning.Snapshot, _ decisioning.SearchContext) decisioning.Result {
	size := c.Release.Size
	if size <= 0 {
		return decisioning.Accept()
	}
	def, ok := snap.Definitions[c.Quality.Quality.ID]
	if !ok {
		return decisioning.Accept()
	}
	runtime := c.Item.RuntimeMinutes * max(len(c.Units), 1)
	if runtime <= 0 {
		return decisioning.Accept()
	}

	if minBytes := def.MinBytes(runtime); size < minBytes {
		return decisioning.Reject("%s is smaller than minimum allowed %s (for %d minutes)",
			humanize.IBytes(uint64(size)), humanize.IBytes(uint64(minBytes)), runtime)
	}
	if maxBytes := def.MaxBytes(runtime); maxBytes > 0 && size > maxBytes {
		return decisioning.Reject("%s is larger than maximum allowed %s (for %d minutes)",
			humanize.IBytes(uint64(size)), humanize.IBytes(uint64(maxBytes)), runtime)
	}
	return decisioning.Accept()
}

// MaximumSize enforces the global size ceiling. Zero disables it.
type MaximumSize struct{}

func (MaximumSize) Name() string { return "maximumSize" }

func (MaximumSize) Evaluate(c *decisioning.Candidate, snap *decisioning.Snapshot, _ decisioning.SearchContext) decisioning.Result {
	limitMB := snap.Settings.MaximumSizeMB
	if limitMB <= 0 || c.Release.Size <= 0 {
		return decisioning.Accept()
	}
	limit := limitMB * bytesPerMB
	if c.Release.Size > limit {
		return decisioning.Reject("%s is too big, maximum size is %s",
			humanize.IBytes(uint64(c.Release.Size)), humanize.IBytes(uint64(limit)))
	}
	return decisioning.Accept()
}
