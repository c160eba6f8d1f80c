package specifications

import (
	"strings"

	"github.com/slipstream/decisionengine/internal/customformat"
	"github.com/slipstream/decisionengine/internal/decisioning"
	"github.com/slipstream/decisionengine/internal/library/lang"
	"github.com/slipstream/decisionengine/internal/textmatch"
)

// QualityAllowed rejects qualities the profile does not allow.
type QualityAllowed struct{}

func (QualityAllowed) Name() string { return "qualityAllowed" }

func (QualityAllowed) Evaluate(c *decisioning.Candidate, _ *decisioning.Snapshot, _ decisioning.SearchContext) decisioning.Result {
	if c.Quality.Quality.ID == 0 {
		return decisioning.Reject("Unknown quality")
	}
	if !c.Profile.IsAcceptable(c.Quality.Quality.ID) {
		return decisioning.Reject("%s is not wanted in profile", c.Quality.Quality.Name)
	}
	return decisioning.Accept()
}

// Restrictions applies the required and ignored terms of every restriction
// matching the item's tags. Ignored terms are checked first.
type Restrictions struct{}

func (Restrictions) Name() string { return "restrictions" }

func (Restrictions) Evaluate(c *decisioning.Candidate, snap *decisioning.Snapshot, _ decisioning.SearchContext) decisioning.Result {
	title := c.Release.Title
	for _, r := range snap.RestrictionsFor(c.Item) {
		if matched := r.IgnoredTerms.Match(title); len(matched) > 0 {
			return decisioning.Reject("Contains one or more ignored terms: %s", strings.Join(textmatch.Strings(matched), ", "))
		}
	}
	for _, r := range snap.RestrictionsFor(c.Item) {
		if len(r.RequiredTerms) > 0 && !r.RequiredTerms.Any(title) {
			return decisioning.Reject("Does not contain one of the required terms: %s", strings.Join(textmatch.Strings(r.RequiredTerms), ", "))
		}
	}
	return decisioning.Accept()
}

var (
	rawDiskContainers = map[string]bool{"iso": true, "img": true, "m2ts": true, "vob": true, "bdmv": true}
	rawDiskTitle      = textmatch.MustCompile(`/\bbr-?disk\b/`)
)

// RawDisk rejects disc images and unpacked disc structures.
type RawDisk struct{}

func (RawDisk) Name() string { return "rawDisk" }

func (RawDisk) Evaluate(c *decisioning.Candidate, snap *decisioning.Snapshot, _ decisioning.SearchContext) decisioning.Result {
	if snap.Settings.AllowRawDisk {
		return decisioning.Accept()
	}
	if p := c.Release.Parsed; p != nil {
		container := strings.TrimPrefix(strings.ToLower(p.Container), ".")
		if rawDiskContainers[container] {
			return decisioning.Reject("Raw disk releases are not supported: %s", container)
		}
	}
	if rawDiskTitle.Match(c.Release.Title) {
		return decisioning.Reject("Raw Bluray releases are not supported")
	}
	return decisioning.Accept()
}

// Language rejects releases missing the profile's language. Releases that
// declare no language count as English.
type Language struct{}

func (Language) Name() string { return "language" }

func (Language) Evaluate(c *decisioning.Candidate, _ *decisioning.Snapshot, _ decisioning.SearchContext) decisioning.Result {
	want := c.Profile.Language
	if lang.IsAny(want) {
		return decisioning.Accept()
	}
	if !lang.Contains(c.Languages, want) {
		return decisioning.Reject("Language %s is not wanted in profile", languageNames(c.Languages))
	}
	return decisioning.Accept()
}

func languageNames(codes []string) string {
	names := make([]string, len(codes))
	for i, code := range codes {
		names[i] = lang.Name(code)
	}
	return strings.Join(names, ", ")
}

// CustomFormatScore rejects releases scoring below the profile minimum.
type CustomFormatScore struct{}

func (CustomFormatScore) Name() string { return "customFormatScore" }

func (CustomFormatScore) Evaluate(c *decisioning.Candidate, _ *decisioning.Snapshot, _ decisioning.SearchContext) decisioning.Result {
	if c.FormatScore >= c.Profile.MinFormatScore {
		return decisioning.Accept()
	}
	if len(c.CustomFormats) == 0 {
		return decisioning.Reject("Custom Formats score of %d is below the profile minimum of %d", c.FormatScore, c.Profile.MinFormatScore)
	}
	return decisioning.Reject("Custom Formats %s have score %d below the profile minimum of %d",
		strings.Join(customformat.Names(c.CustomFormats), ", "), c.FormatScore, c.Profile.MinFormatScore)
}

// Blocklist rejects releases that failed before.
type Blocklist struct{}

func (Blocklist) Name() string { return "blocklist" }

func (Blocklist) Evaluate(c *decisioning.Candidate, snap *decisioning.Snapshot, _ decisioning.SearchContext) decisioning.Result {
	r := c.Release
	for _, entry := range snap.Blocklist {
		if entry.Protocol != "" && r.Protocol != "" && entry.Protocol != r.Protocol {
			continue
		}
		switch {
		case entry.GUID != "" && entry.GUID == r.GUID,
			entry.DownloadID != "" && strings.EqualFold(entry.DownloadID, r.DownloadID),
			entry.Title != "" && strings.EqualFold(entry.Title, r.Title) && entry.IndexerID == r.IndexerID:
			return decisioning.Reject("Release is blocklisted")
		}
	}
	return decisioning.Accept()
}
