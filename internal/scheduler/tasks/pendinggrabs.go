package tasks

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/slipstream/decisionengine/internal/decisioning"
	"github.com/slipstream/decisionengine/internal/scheduler"
)

const PendingGrabsTaskID = "pending-grab-prune"

// RegisterPendingGrabsTask registers the task that drops expired grab claims.
// The task runs every minute.
func RegisterPendingGrabsTask(sched *scheduler.Scheduler, tracker *decisioning.GrabTracker, logger zerolog.Logger) error {
	log := logger.With().Str("task", PendingGrabsTaskID).Logger()
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          PendingGrabsTaskID,
		Name:        "Pending Grab Prune",
		Description: "Forgets grab claims older than the pending-grab TTL",
		Cron:        "* * * * *",
		Func: func(context.Context) error {
			if n := tracker.Prune(); n > 0 {
				log.Debug().Int("count", n).Msg("Pruned expired grabs")
			}
			return nil
		},
	})
}
