package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Maestro-111/search-engine/config"
	"github.com/Maestro-111/search-engine/entity"
	"github.com/Maestro-111/search-engine/http/controller"
	routes "github.com/Maestro-111/search-engine/http/route"
	"github.com/Maestro-111/search-engine/infra"
	"github.com/Maestro-111/search-engine/repository"
	"github.com/Maestro-111/search-engine/service"
	"github.com/Maestro-111/search-engine/supervisor"
)

type memTrackedJobs struct {
	jobs map[uuid.UUID]*entity.TrackedJob
}

func (m *memTrackedJobs) CreatePipeline(_ context.Context, jobs ...*entity.TrackedJob) error {
	for _, j := range jobs {
		m.jobs[j.ID] = j
	}
	return nil
}

func (m *memTrackedJobs) FindByID(_ context.Context, id uuid.UUID) (*entity.TrackedJob, error) {
	if j, ok := m.jobs[id]; ok {
		return j, nil
	}
	return nil, repository.ErrTrackedJobNotFound
}

func (m *memTrackedJobs) FindDependents(_ context.Context, parentID uuid.UUID) ([]entity.TrackedJob, error) {
	out := []entity.TrackedJob{}
	for _, j := range m.jobs {
		if j.ParentID != nil && *j.ParentID == parentID {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (m *memTrackedJobs) MarkFailed(_ context.Context, id uuid.UUID, message string) error {
	m.jobs[id].Status = entity.TrackedStatusFailed
	m.jobs[id].ErrorMessage = message
	return nil
}

type nopPublisher struct{}

func (nopPublisher) PublishRun(context.Context, string) error { return nil }

func newTestRouter(t *testing.T, script string) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skipf("skipped, sh not available: %v", err)
	}
	path := filepath.Join(t.TempDir(), "fake-job")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))

	cfg := &config.Config{EnvConfig: &config.EnvConfig{}}
	cfg.EnvConfig.Job.Timeout = time.Minute
	cfg.EnvConfig.Job.WaitDelay = time.Second
	cfg.EnvConfig.Job.HeartbeatInterval = time.Second
	cfg.EnvConfig.Job.RecordTTL = time.Hour
	cfg.EnvConfig.Job.StoreRetries = 2
	cfg.EnvConfig.Job.CrawlCommand = []string{path}
	cfg.EnvConfig.Job.IndexCommand = []string{path}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := infra.NewNopLogger()
	store := repository.NewJobStore(client)

	sup := supervisor.NewSupervisor(store, nil, logger, supervisor.OptionsFromConfig(cfg.EnvConfig))
	t.Cleanup(func() {
		require.NoError(t, sup.Shutdown(context.Background()))
		_ = client.Close()
	})

	ctrl := &controller.Controller{
		Config:          cfg,
		Infra:           &infra.Infra{Logger: logger, Redis: &infra.RedisClient{Client: client}},
		Repository:      &repository.Repository{JobStore: store},
		Supervisor:      sup,
		JobService:      service.NewJobService(cfg.EnvConfig, store, sup, logger),
		PipelineService: service.NewPipelineService(&memTrackedJobs{jobs: map[uuid.UUID]*entity.TrackedJob{}}, nopPublisher{}, logger),
	}
	return routes.SetupRouter(ctrl), mr
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	r, mr := newTestRouter(t, "exit 0")

	w := do(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"healthy"}`, w.Body.String())

	require.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/ready", nil).Code)
	mr.Close()
	require.Equal(t, http.StatusServiceUnavailable, do(t, r, http.MethodGet, "/ready", nil).Code)
}

func TestSubmitAndPollCrawl(t *testing.T) {
	r, _ := newTestRouter(t, "sleep 1; exit 0")

	w := do(t, r, http.MethodPost, "/crawl", map[string]any{
		"starting_url":       "https://en.wikipedia.org/wiki/Search_engine",
		"crawl_depth":        1,
		"max_pages":          5,
		"mongo_db":           "crawler",
		"mongodb_collection": "pages",
	})
	require.Equal(t, http.StatusOK, w.Code)
	submitted := decode[entity.JobStatusResponse](t, w)
	require.NotEmpty(t, submitted.JobID)
	require.Equal(t, entity.JobStatusQueued, submitted.Status)
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))

	time.Sleep(2 * time.Second)

	w = do(t, r, http.MethodGet, "/status/"+submitted.JobID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"job_id":"`+submitted.JobID+`","status":"completed","error":null}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]entity.JobStatusResponse](t, w)
	require.Len(t, list, 1)

	w = do(t, r, http.MethodGet, "/jobs/"+submitted.JobID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	record := decode[entity.JobRecord](t, w)
	require.Equal(t, "pages", record.RequestParameters["mongodb_collection"])

	require.Equal(t, http.StatusConflict, do(t, r, http.MethodPost, "/jobs/"+submitted.JobID+"/cancel", nil).Code)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodDelete, "/jobs/"+submitted.JobID, nil).Code)
	require.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/status/"+submitted.JobID, nil).Code)
}

func TestSubmitRejectsInvalidRequests(t *testing.T) {
	r, _ := newTestRouter(t, "exit 0")

	w := do(t, r, http.MethodPost, "/crawl", map[string]any{"starting_url": "not a url", "mongo_db": "crawler", "mongodb_collection": "pages"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "starting_url")

	w = do(t, r, http.MethodPost, "/index", map[string]any{"mongo_db": "crawler", "mongo_collection": "pages", "elastic_index": "wiki", "batch_size": 0, "parent_job_id": 12})
	require.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/index", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownJob(t *testing.T) {
	r, _ := newTestRouter(t, "exit 0")

	require.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/status/missing", nil).Code)
	require.Equal(t, http.StatusNotFound, do(t, r, http.MethodDelete, "/jobs/missing", nil).Code)
	require.Equal(t, http.StatusNotFound, do(t, r, http.MethodPost, "/jobs/missing/cancel", nil).Code)
}

func TestCancelRunningJob(t *testing.T) {
	r, _ := newTestRouter(t, "sleep 30")

	w := do(t, r, http.MethodPost, "/index", map[string]any{"mongo_db": "crawler", "mongo_collection": "pages", "elastic_index": "wiki"})
	require.Equal(t, http.StatusOK, w.Code)
	jobID := decode[entity.JobStatusResponse](t, w).JobID

	require.Equal(t, http.StatusConflict, do(t, r, http.MethodDelete, "/jobs/"+jobID, nil).Code)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPost, "/jobs/"+jobID+"/cancel", nil).Code)

	require.Eventually(t, func() bool {
		status := decode[entity.JobStatusResponse](t, do(t, r, http.MethodGet, "/status/"+jobID, nil))
		return status.Status == entity.JobStatusFailed
	}, 5*time.Second, 20*time.Millisecond)
}

func TestPipelines(t *testing.T) {
	r, _ := newTestRouter(t, "exit 0")

	w := do(t, r, http.MethodPost, "/pipelines", map[string]any{
		"crawl": map[string]any{
			"starting_url":       "https://www.bbc.com/news",
			"mongo_db":           "crawler",
			"mongodb_collection": "bbc",
			"spider_name":        "bbc_spider",
		},
		"index": map[string]any{"mongo_db": "crawler", "mongo_collection": "bbc", "elastic_index": "bbc"},
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	created := decode[map[string]any](t, w)
	id, ok := created["pipeline_id"].(string)
	require.True(t, ok)

	w = do(t, r, http.MethodGet, "/pipelines/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	pipeline := decode[service.Pipeline](t, w)
	require.Equal(t, entity.JobKindCrawl, pipeline.Job.Kind)
	require.Len(t, pipeline.Dependents, 1)

	require.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/pipelines", map[string]any{}).Code)
	require.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/pipelines/not-a-uuid", nil).Code)
	require.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/pipelines/"+uuid.NewString(), nil).Code)
}
