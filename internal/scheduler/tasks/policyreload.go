package tasks

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/slipstream/decisionengine/internal/policy"
	"github.com/slipstream/decisionengine/internal/scheduler"
)

const PolicyReloadTaskID = "policy-reload"

// PolicyReloader re-imports a policy file when its content changes.
type PolicyReloader struct {
	loader *policy.Loader
	store  *policy.Store
	path   string
	logger zerolog.Logger
}

// NewPolicyReloader creates a reloader for the policy file at path.
func NewPolicyReloader(loader *policy.Loader, store *policy.Store, path string, logger zerolog.Logger) *PolicyReloader {
	return &PolicyReloader{
		loader: loader,
		store:  store,
		path:   path,
		logger: logger.With().Str("task", PolicyReloadTaskID).Logger(),
	}
}

// Run imports the file when its checksum differs from the active revision.
func (r *PolicyReloader) Run(ctx context.Context) error {
	doc, err := r.loader.Load(r.path)
	if err != nil {
		return err
	}
	sum, err := policy.Checksum(doc)
	if err != nil {
		return err
	}

	current, err := r.store.Current(ctx)
	switch {
	case errors.Is(err, policy.ErrNoPolicy):
	case err != nil:
		return err
	case current.Checksum == sum:
		r.logger.Debug().Str("path", r.path).Msg("Policy file unchanged")
		return nil
	}

	_, err = r.store.Import(ctx, doc, r.path)
	return err
}

// RegisterPolicyReloadTask registers the policy reload task. It runs every
// five minutes and once on start.
func RegisterPolicyReloadTask(sched *scheduler.Scheduler, reloader *PolicyReloader) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          PolicyReloadTaskID,
		Name:        "Policy Reload",
		Description: "Re-imports the seed policy file when it changes",
		Cron:        "*/5 * * * *",
		RunOnStart:  true,
		Func:        reloader.Run,
	})
}
