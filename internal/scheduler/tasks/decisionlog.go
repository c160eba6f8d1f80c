package tasks

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/slipstream/decisionengine/internal/decisioning"
	"github.com/slipstream/decisionengine/internal/scheduler"
)

const DecisionLogCleanupTaskID = "decision-log-cleanup"

// RegisterDecisionLogCleanupTask registers the task that deletes decision log
// entries older than retention. The task runs daily at 2 AM. A zero
// retention keeps the log forever and registers nothing.
func RegisterDecisionLogCleanupTask(sched *scheduler.Scheduler, store *decisioning.Store, retention time.Duration, logger zerolog.Logger) error {
	if retention <= 0 {
		return nil
	}
	log := logger.With().Str("task", DecisionLogCleanupTaskID).Logger()
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          DecisionLogCleanupTaskID,
		Name:        "Decision Log Cleanup",
		Description: "Deletes decision log entries older than the configured retention",
		Cron:        "0 2 * * *",
		Func: func(ctx context.Context) error {
			n, err := store.Prune(ctx, time.Now().UTC().Add(-retention))
			if err != nil {
				return err
			}
			log.Info().Int64("deleted", n).Msg("Pruned decision log")
			return nil
		},
	})
}
