package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Maestro-111/search-engine/entity"
	"github.com/Maestro-111/search-engine/infra"
)

type TrackedJobStore interface {
	CreatePipeline(ctx context.Context, jobs ...*entity.TrackedJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.TrackedJob, error)
	FindDependents(ctx context.Context, parentID uuid.UUID) ([]entity.TrackedJob, error)
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
}

type RunPublisher interface {
	PublishRun(ctx context.Context, trackedJobID string) error
}

// Pipeline is a tracked job together with the jobs waiting on it.
type Pipeline struct {
	Job        entity.TrackedJob   `json:"job"`
	Dependents []entity.TrackedJob `json:"dependents"`
}

// PipelineService creates crawl jobs whose completion triggers an index job.
// The chain consumer drives them from there.
type PipelineService struct {
	repo      TrackedJobStore
	publisher RunPublisher
	logger    *infra.LoggerClient
}

func NewPipelineService(repo TrackedJobStore, publisher RunPublisher, logger *infra.LoggerClient) *PipelineService {
	return &PipelineService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// Create validates both parameter sets, stores the tracked jobs and asks the
// chain consumer to submit the crawl. index may be nil.
func (s *PipelineService) Create(ctx context.Context, crawl, index map[string]any) (*entity.TrackedJob, error) {
	crawlParams, err := ValidateParams(entity.JobKindCrawl, crawl)
	if err != nil {
		return nil, err
	}

	crawlJob, err := newTrackedJob(entity.JobKindCrawl, crawlParams, nil)
	if err != nil {
		return nil, err
	}
	jobs := []*entity.TrackedJob{crawlJob}

	if index != nil {
		indexParams, err := ValidateParams(entity.JobKindIndex, index)
		if err != nil {
			return nil, err
		}
		indexJob, err := newTrackedJob(entity.JobKindIndex, indexParams, &crawlJob.ID)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, indexJob)
	}

	if err := s.repo.CreatePipeline(ctx, jobs...); err != nil {
		return nil, fmt.Errorf("failed to store pipeline: %w", err)
	}

	if err := s.publisher.PublishRun(ctx, crawlJob.ID.String()); err != nil {
		if markErr := s.repo.MarkFailed(ctx, crawlJob.ID, "failed to schedule job: "+err.Error()); markErr != nil {
			s.logger.ErrorWithContextf(ctx, markErr, "[Pipeline] Failed to mark pipeline %s failed", crawlJob.ID)
		}
		return nil, fmt.Errorf("failed to schedule pipeline: %w", err)
	}

	s.logger.InfoWithContextf(ctx, "[Pipeline] Created pipeline %s with %d job(s)", crawlJob.ID, len(jobs))
	return crawlJob, nil
}

func (s *PipelineService) Get(ctx context.Context, id uuid.UUID) (*Pipeline, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dependents, err := s.repo.FindDependents(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Pipeline{Job: *job, Dependents: dependents}, nil
}

func newTrackedJob(kind entity.JobKind, params map[string]any, parentID *uuid.UUID) (*entity.TrackedJob, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s params: %w", kind, err)
	}
	return &entity.TrackedJob{
		ID:       uuid.New(),
		Kind:     kind,
		Params:   datatypes.JSON(raw),
		Status:   entity.TrackedStatusPending,
		ParentID: parentID,
	}, nil
}
