package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/slipstream/decisionengine/internal/decisioning"
	"github.com/slipstream/decisionengine/internal/indexer/types"
	"github.com/slipstream/decisionengine/internal/policy"
)

// releaseFile is the layout of a --releases file.
type releaseFile struct {
	Source   decisioning.Source  `json:"source" yaml:"source" toml:"source"`
	Releases []types.ReleaseInfo `json:"releases" yaml:"releases" toml:"releases"`
}

func readReleases(fs afero.Fs, path string) (*releaseFile, error) {
	format, err := policy.FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read releases: %w", err)
	}

	var out releaseFile
	switch format {
	case policy.FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&out)
	case policy.FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&out)
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&out)
	}
	if err != nil {
		return nil, fmt.Errorf("decode releases %s: %w", path, err)
	}
	return &out, nil
}
