package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Maestro-111/search-engine/config"
	"github.com/Maestro-111/search-engine/entity"
	"github.com/Maestro-111/search-engine/infra"
	"github.com/Maestro-111/search-engine/supervisor"
)

type JobStore interface {
	Put(ctx context.Context, record *entity.JobRecord, ttl time.Duration) error
	Get(ctx context.Context, id string) (*entity.JobRecord, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit int) ([]entity.JobRecord, error)
}

type Launcher interface {
	Launch(record entity.JobRecord, cmd supervisor.Command) error
	Fail(ctx context.Context, record entity.JobRecord, jobErr error) error
	Cancel(id string) bool
	Running(id string) bool
}

// JobService validates submissions, creates their records and hands them to
// the supervisor.
type JobService struct {
	cfg        *config.EnvConfig
	store      JobStore
	supervisor Launcher
	logger     *infra.LoggerClient
}

func NewJobService(cfg *config.EnvConfig, store JobStore, launcher Launcher, logger *infra.LoggerClient) *JobService {
	return &JobService{
		cfg:        cfg,
		store:      store,
		supervisor: launcher,
		logger:     logger,
	}
}

// Submit returns as soon as the queued record is stored. Failures after that
// point are recorded on the job, never returned.
func (s *JobService) Submit(ctx context.Context, kind entity.JobKind, params map[string]any, parentJobID string) (*entity.JobRecord, error) {
	if !kind.Valid() {
		return nil, &ValidationError{Err: fmt.Errorf("unknown job kind %q", kind)}
	}

	cmd, normalized, cmdErr := s.prepare(kind, params)
	var verr *ValidationError
	if errors.As(cmdErr, &verr) {
		return nil, verr
	}

	record := &entity.JobRecord{
		ID:                uuid.NewString(),
		Kind:              kind,
		Status:            entity.JobStatusQueued,
		CreatedAt:         time.Now().UTC(),
		RequestParameters: normalized,
		ParentJobID:       parentJobID,
	}
	ctx = infra.WithLogAttrs(ctx, slog.String("job_id", record.ID))

	if err := s.store.Put(ctx, record, s.cfg.Job.RecordTTL); err != nil {
		return nil, fmt.Errorf("failed to create job record: %w", err)
	}
	s.logger.InfoWithContextf(ctx, "[Job Service] Queued %s job %s", kind, record.ID)

	if cmdErr == nil {
		cmdErr = s.supervisor.Launch(*record, cmd)
	}
	if cmdErr != nil {
		s.logger.ErrorWithContextf(ctx, cmdErr, "[Job Service] Could not start %s job %s", kind, record.ID)
		if err := s.supervisor.Fail(context.WithoutCancel(ctx), *record, cmdErr); err != nil {
			s.logger.ErrorWithContextf(ctx, err, "[Job Service] Failed to record start failure of job %s", record.ID)
		}
	}

	return record, nil
}

// prepare validates params for kind and builds the process command. The
// returned map holds the parameters after defaults.
func (s *JobService) prepare(kind entity.JobKind, params map[string]any) (supervisor.Command, map[string]any, error) {
	if kind == entity.JobKindCrawl {
		p, err := parseCrawlParams(params)
		if err != nil {
			return supervisor.Command{}, nil, err
		}
		cmd, err := supervisor.CrawlCommand(s.cfg, p)
		return cmd, toMap(p), err
	}

	p, err := parseIndexParams(params)
	if err != nil {
		return supervisor.Command{}, nil, err
	}
	cmd, err := supervisor.IndexCommand(s.cfg, p)
	return cmd, toMap(p), err
}

func (s *JobService) GetStatus(ctx context.Context, id string) (*entity.JobStatusResponse, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	status := record.StatusResponse()
	return &status, nil
}

func (s *JobService) Get(ctx context.Context, id string) (*entity.JobRecord, error) {
	return s.store.Get(ctx, id)
}

func (s *JobService) List(ctx context.Context, limit int) ([]entity.JobRecord, error) {
	return s.store.List(ctx, limit)
}

// Delete removes a record. Jobs with a live process on this instance must be
// cancelled first.
func (s *JobService) Delete(ctx context.Context, id string) error {
	if s.supervisor.Running(id) {
		return ErrJobRunning
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoWithContextf(ctx, "[Job Service] Deleted job %s", id)
	return nil
}

func (s *JobService) Cancel(ctx context.Context, id string) error {
	if s.supervisor.Cancel(id) {
		s.logger.InfoWithContextf(ctx, "[Job Service] Cancellation requested for job %s", id)
		return nil
	}
	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}
	return ErrJobNotRunning
}
