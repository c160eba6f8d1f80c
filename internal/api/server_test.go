package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/decisionengine/internal/config"
	"github.com/slipstream/decisionengine/internal/scheduler"
	"github.com/slipstream/decisionengine/internal/testutil"
)

const testPolicy = `
settings:
  propers: preferAndUpgrade
  completedDownloadHandling: true
profiles:
  - id: 1
    name: HD-1080p
    upgradeAllowed: true
    cutoff: 11
    items:
      - quality: {name: WEBDL-1080p}
        allowed: true
      - quality: {name: Bluray-1080p}
        allowed: true
items:
  - id: 1
    mediaType: movie
    title: Dune Part Two
    year: 2024
    profileId: 1
    monitored: true
    runtime: 166
`

const testBatch = `{"source":"search","releases":[{
	"guid":"a","title":"Dune.Part.Two.2024.1080p.BluRay.x264-GRP","size":8589934592,
	"indexerId":7,"indexer":"geek","protocol":"torrent","seeders":10,
	"parsed":{"title":"Dune Part Two","year":2024,"source":"BluRay","resolution":"1080p","releaseGroup":"GRP"}}]}`

type testServer struct {
	*Server
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	cfg := config.Default()
	return &testServer{Server: NewServer(tdb.DB, cfg, tdb.Logger)}
}

func (ts *testServer) do(t *testing.T, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)
	return rec
}

type batchResponse struct {
	ID        string `json:"id"`
	Decisions []struct {
		GUID                string `json:"guid"`
		Accepted            bool   `json:"accepted"`
		TemporarilyRejected bool   `json:"temporarilyRejected"`
		Rejections          []struct {
			Reason        string `json:"reason"`
			Specification string `json:"specification"`
		} `json:"rejections"`
	} `json:"decisions"`
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("HealthCheck status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestStatus(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/status", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, config.Version, status.Version)
	assert.Nil(t, status.PolicyRevision)
	assert.EqualValues(t, 3, status.SchemaVersion)
	assert.Contains(t, status.Specifications, "qualityAllowed")
	assert.Equal(t, "no-store, no-cache, must-revalidate, private", rec.Header().Get("Cache-Control"))
}

func TestQualityRoutes(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/qualities/resolve?source=bluray&resolution=1080p", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var q struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Equal(t, "Bluray-1080p", q.Name)

	rec = ts.do(t, http.MethodGet, "/api/v1/qualities/resolve", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvaluateWithoutPolicy(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/decisions", "application/json", testBatch)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestImportPolicyAndEvaluate(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPut, "/api/v1/policy", "application/yaml", testPolicy)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/v1/decisions", "application/json", testBatch)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var batch batchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &batch))
	require.Len(t, batch.Decisions, 1)
	assert.True(t, batch.Decisions[0].Accepted, "rejections: %+v", batch.Decisions[0].Rejections)

	rec = ts.do(t, http.MethodGet, "/api/v1/decisions/history?batchId="+batch.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []struct {
		GUID     string `json:"guid"`
		Accepted bool   `json:"accepted"`
		Rank     int    `json:"rank"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, "a", history[0].GUID)
	assert.True(t, history[0].Accepted)
	assert.Equal(t, 1, history[0].Rank)

	rec = ts.do(t, http.MethodGet, "/api/v1/status", "", "")
	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.NotNil(t, status.PolicyRevision)
}

func TestIndexerFailureHoldsBackReleases(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPut, "/api/v1/policy", "application/yaml", testPolicy)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/v1/indexers/7/failure", "application/json",
		`{"indexerName":"geek","error":"connection refused"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/v1/decisions", "application/json", testBatch)
	require.Equal(t, http.StatusOK, rec.Code)

	var batch batchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &batch))
	require.Len(t, batch.Decisions, 1)
	d := batch.Decisions[0]
	assert.False(t, d.Accepted)
	assert.True(t, d.TemporarilyRejected)
	require.Len(t, d.Rejections, 1)
	assert.Equal(t, "indexerHealth", d.Rejections[0].Specification)

	rec = ts.do(t, http.MethodPost, "/api/v1/indexers/7/success", "", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/decisions", "application/json", testBatch)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &batch))
	assert.True(t, batch.Decisions[0].Accepted)
}

func TestGrabHoldsBackReleases(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPut, "/api/v1/policy", "application/yaml", testPolicy)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/v1/decisions/grabs", "application/json", `{"itemId":1,"unitIds":[1]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/v1/decisions", "application/json", testBatch)
	var batch batchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &batch))
	require.Len(t, batch.Decisions, 1)
	assert.True(t, batch.Decisions[0].TemporarilyRejected)
	assert.Equal(t, "recentlyGrabbed", batch.Decisions[0].Rejections[0].Specification)
}

func TestSystemTasks(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/system/tasks", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "tasks are not routed before a scheduler is set")

	sched, err := scheduler.New(zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, sched.Start())
	t.Cleanup(func() { _ = sched.Stop() })
	require.NoError(t, sched.RegisterTask(scheduler.TaskConfig{
		ID: "noop", Name: "Noop", Cron: "0 0 1 1 *",
		Func: func(ctx context.Context) error { return nil },
	}))
	ts.SetScheduler(sched)

	rec = ts.do(t, http.MethodGet, "/api/v1/system/tasks", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []scheduler.TaskInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "noop", tasks[0].ID)

	rec = ts.do(t, http.MethodPost, "/api/v1/system/tasks/missing/run", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/system/tasks/noop/run", "", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
