package tasks

import (
	"context"
	"time"

	"github.com/slipstream/decisionengine/internal/indexer/status"
	"github.com/slipstream/decisionengine/internal/scheduler"
)

const IndexerBackoffTaskID = "indexer-backoff-expiry"

// RegisterIndexerBackoffTask registers the task that removes indexer
// back-offs which ended more than grace ago. The task runs hourly.
func RegisterIndexerBackoffTask(sched *scheduler.Scheduler, statusService *status.Service, grace time.Duration) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          IndexerBackoffTaskID,
		Name:        "Indexer Backoff Expiry",
		Description: "Removes indexer failure back-offs that have run out",
		Cron:        "0 * * * *",
		RunOnStart:  true,
		Func: func(ctx context.Context) error {
			_, err := statusService.ExpireStale(ctx, grace)
			return err
		},
	})
}
