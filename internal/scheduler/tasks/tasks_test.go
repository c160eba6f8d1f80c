package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/decisionengine/internal/decisioning"
	"github.com/slipstream/decisionengine/internal/indexer/status"
	"github.com/slipstream/decisionengine/internal/policy"
	"github.com/slipstream/decisionengine/internal/scheduler"
	"github.com/slipstream/decisionengine/internal/testutil"
)

const seedPolicy = `
settings:
  propers: preferAndUpgrade
profiles:
  - id: 1
    name: Any
    cutoff: 10
    upgradeAllowed: true
    items:
      - quality: {name: WEBDL-1080p}
        allowed: true
items:
  - id: 1
    mediaType: movie
    title: Dune Part Two
    year: 2024
    profileId: 1
    monitored: true
`

func TestPolicyReloader(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/policy.yaml", []byte(seedPolicy), 0o644))

	store := policy.NewStore(tdb.DB, tdb.Logger)
	reloader := NewPolicyReloader(policy.NewLoader(fs), store, "/etc/policy.yaml", tdb.Logger)

	require.NoError(t, reloader.Run(ctx))
	require.NoError(t, reloader.Run(ctx))

	revs, err := store.Revisions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, revs, 1, "unchanged file is not re-imported")
	assert.Equal(t, "/etc/policy.yaml", revs[0].Source)

	require.NoError(t, afero.WriteFile(fs, "/etc/policy.yaml", []byte(seedPolicy+"\n  - id: 2\n    mediaType: movie\n    title: Arrival\n    profileId: 1\n"), 0o644))
	require.NoError(t, reloader.Run(ctx))

	doc, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, doc.Items, 2)

	require.NoError(t, afero.WriteFile(fs, "/etc/policy.yaml", []byte("profiles: ["), 0o644))
	assert.Error(t, reloader.Run(ctx))

	doc, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, doc.Items, 2, "broken file leaves the active policy in place")
}

func TestRegisterTasks(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	sched, err := scheduler.New(zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, sched.Start())
	t.Cleanup(func() { _ = sched.Stop() })

	tracker := decisioning.NewGrabTracker(time.Minute)
	logStore := decisioning.NewStore(tdb.Conn, tdb.Logger)
	statusService := status.NewService(tdb.Conn, tdb.Logger)

	require.NoError(t, RegisterPendingGrabsTask(sched, tracker, tdb.Logger))
	require.NoError(t, RegisterIndexerBackoffTask(sched, statusService, time.Hour))
	require.NoError(t, RegisterDecisionLogCleanupTask(sched, logStore, 0, tdb.Logger))
	require.NoError(t, RegisterDecisionLogCleanupTask(sched, logStore, 24*time.Hour, tdb.Logger))

	var ids []string
	for _, task := range sched.ListTasks() {
		ids = append(ids, task.ID)
	}
	assert.Equal(t, []string{DecisionLogCleanupTaskID, IndexerBackoffTaskID, PendingGrabsTaskID}, ids)

	require.NoError(t, sched.RunNow(DecisionLogCleanupTaskID))
	require.Eventually(t, func() bool {
		info, err := sched.GetTask(DecisionLogCleanupTaskID)
		return err == nil && info.LastRun != nil && !info.Running && info.LastError == ""
	}, 2*time.Second, 5*time.Millisecond)
}
