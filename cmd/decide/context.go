package main

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/slipstream/decisionengine/internal/logger"
	"github.com/slipstream/decisionengine/internal/policy"
)

// commandContext carries what every subcommand shares.
type commandContext struct {
	fs       afero.Fs
	now      func() time.Time
	logLevel string
}

func newCommandContext(fs afero.Fs) *commandContext {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &commandContext{fs: fs, now: time.Now, logLevel: "warn"}
}

func (c *commandContext) logger(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(logger.ParseLevel(c.logLevel)).
		With().
		Timestamp().
		Logger()
}

func (c *commandContext) loadPolicy(path string) (*policy.Document, error) {
	if path == "" {
		return nil, errors.New("--policy is required")
	}
	return policy.NewLoader(c.fs).Load(path)
}
