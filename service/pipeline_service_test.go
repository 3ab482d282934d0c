package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Maestro-111/search-engine/entity"
	"github.com/Maestro-111/search-engine/infra"
	"github.com/Maestro-111/search-engine/repository"
	"github.com/Maestro-111/search-engine/service"
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
	j, ok := m.jobs[id]
	if !ok {
		return nil, repository.ErrTrackedJobNotFound
	}
	return j, nil
}

func (m *memTrackedJobs) FindDependents(_ context.Context, parentID uuid.UUID) ([]entity.TrackedJob, error) {
	var out []entity.TrackedJob
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

type recordingPublisher struct {
	runs []string
	err  error
}

func (p *recordingPublisher) PublishRun(_ context.Context, id string) error {
	if p.err != nil {
		return p.err
	}
	p.runs = append(p.runs, id)
	return nil
}

func TestPipelineCreate(t *testing.T) {
	t.Parallel()

	repo := &memTrackedJobs{jobs: map[uuid.UUID]*entity.TrackedJob{}}
	pub := &recordingPublisher{}
	svc := service.NewPipelineService(repo, pub, infra.NewNopLogger())

	job, err := svc.Create(t.Context(), crawlParams(), map[string]any{
		"mongo_db":         "crawler",
		"mongo_collection": "pages",
		"elastic_index":    "wiki",
	})
	require.NoError(t, err)
	require.Equal(t, []string{job.ID.String()}, pub.runs)
	require.Equal(t, entity.TrackedStatusPending, job.Status)

	var params map[string]any
	require.NoError(t, json.Unmarshal(job.Params, &params))
	require.Equal(t, "wikipedia_spider", params["spider_name"])

	pipeline, err := svc.Get(t.Context(), job.ID)
	require.NoError(t, err)
	require.Len(t, pipeline.Dependents, 1)
	require.Equal(t, entity.JobKindIndex, pipeline.Dependents[0].Kind)
	require.Equal(t, job.ID, *pipeline.Dependents[0].ParentID)
}

func TestPipelineCreateRejectsInvalidIndex(t *testing.T) {
	t.Parallel()

	repo := &memTrackedJobs{jobs: map[uuid.UUID]*entity.TrackedJob{}}
	pub := &recordingPublisher{}
	svc := service.NewPipelineService(repo, pub, infra.NewNopLogger())

	_, err := svc.Create(t.Context(), crawlParams(), map[string]any{"mongo_db": "crawler"})
	var verr *service.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Empty(t, repo.jobs)
	require.Empty(t, pub.runs)
}

func TestPipelineCreatePublishFailure(t *testing.T) {
	t.Parallel()

	repo := &memTrackedJobs{jobs: map[uuid.UUID]*entity.TrackedJob{}}
	svc := service.NewPipelineService(repo, &recordingPublisher{err: errors.New("channel closed")}, infra.NewNopLogger())

	_, err := svc.Create(t.Context(), crawlParams(), nil)
	require.Error(t, err)
	require.Len(t, repo.jobs, 1)
	for _, j := range repo.jobs {
		require.Equal(t, entity.TrackedStatusFailed, j.Status)
		require.Equal(t, "failed to schedule job: channel closed", j.ErrorMessage)
	}

	_, err = svc.Get(t.Context(), uuid.New())
	require.ErrorIs(t, err, repository.ErrTrackedJobNotFound)
}
