package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/Maestro-111/search-engine/config"
	"github.com/Maestro-111/search-engine/entity"
	"github.com/Maestro-111/search-engine/infra"
	"github.com/Maestro-111/search-engine/infra/produce"
	"github.com/Maestro-111/search-engine/repository"
)

// JobAPI is the job service as seen by the chain consumer.
type JobAPI interface {
	Submit(ctx context.Context, kind entity.JobKind, params map[string]any, parentJobID string) (*entity.JobStatusResponse, error)
	Status(ctx context.Context, jobID string) (*entity.JobStatusResponse, error)
}

type TrackedJobStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.TrackedJob, error)
	ClaimForSubmission(ctx context.Context, id uuid.UUID) (bool, error)
	MarkSubmitted(ctx context.Context, id uuid.UUID, remoteJobID string) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	RecordPollAttempt(ctx context.Context, id uuid.UUID, attempt int) (int, error)
	MirrorStatus(ctx context.Context, id uuid.UUID, status entity.TrackedStatus, message string, onCompleted repository.CompletionHook) (entity.TrackedStatus, error)
}

// Scheduler delivers run and poll messages, the latter after a delay.
type Scheduler interface {
	PublishRun(ctx context.Context, trackedJobID string) error
	PublishPoll(ctx context.Context, message produce.PollStatusMessage, delay time.Duration) error
}

type PollerOptions struct {
	FirstPollDelay time.Duration
	PollInterval   time.Duration
	PollJitter     float64
	MaxPolls       int
	// StoreRetries bounds the attempts at recording a submission that the
	// job service already accepted.
	StoreRetries uint
}

func PollerOptionsFromConfig(cfg *config.EnvConfig) PollerOptions {
	return PollerOptions{
		FirstPollDelay: cfg.Chain.FirstPollDelay,
		PollInterval:   cfg.Chain.PollInterval,
		PollJitter:     cfg.Chain.PollJitter,
		MaxPolls:       cfg.Chain.MaxPolls,
		StoreRetries:   cfg.Job.StoreRetries,
	}
}

// StatusPoller submits tracked jobs, follows them until they finish and
// starts their dependents the first time a job is seen completed. Both
// handlers tolerate redelivery of the same message.
type StatusPoller struct {
	api       JobAPI
	store     TrackedJobStore
	scheduler Scheduler
	logger    *infra.LoggerClient
	opts      PollerOptions
	backoff   func() backoff.BackOff
}

func NewStatusPoller(api JobAPI, store TrackedJobStore, scheduler Scheduler, logger *infra.LoggerClient, opts PollerOptions) *StatusPoller {
	return &StatusPoller{
		api:       api,
		store:     store,
		scheduler: scheduler,
		logger:    logger,
		opts:      opts,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}
}

// HandleRun submits a pending tracked job to the job service.
func (p *StatusPoller) HandleRun(ctx context.Context, id uuid.UUID) error {
	ctx = infra.WithLogAttrs(ctx, slog.String("tracked_job_id", id.String()))

	job, err := p.store.FindByID(ctx, id)
	if errors.Is(err, repository.ErrTrackedJobNotFound) {
		p.logger.WarningWithContextf(ctx, "[Chain Consumer - Run] Tracked job %s no longer exists, dropping", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load tracked job %s: %w", id, err)
	}

	var parentRemoteID string
	if job.ParentID != nil {
		parent, err := p.store.FindByID(ctx, *job.ParentID)
		if err != nil {
			return fmt.Errorf("failed to load parent of tracked job %s: %w", id, err)
		}
		if parent.Status != entity.TrackedStatusCompleted {
			p.logger.WarningWithContextf(ctx, "[Chain Consumer - Run] Parent %s of job %s is %s, not submitting", parent.ID, id, parent.Status)
			return nil
		}
		parentRemoteID = parent.RemoteJobID
	}

	claimed, err := p.store.ClaimForSubmission(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to claim tracked job %s: %w", id, err)
	}
	if !claimed {
		// A redelivered run whose poll was never scheduled.
		if job.Status == entity.TrackedStatusQueued && job.RemoteJobID != "" && job.PollAttempts == 0 {
			return p.schedulePoll(ctx, job.ID, job.RemoteJobID, 1, p.opts.FirstPollDelay)
		}
		if job.Status == entity.TrackedStatusSubmitting && job.RemoteJobID == "" {
			p.logger.ErrorWithContextf(ctx, nil, "[Chain Consumer - Run] Tracked job %s is stuck in submitting without a remote job, it will not be polled", id)
			return nil
		}
		p.logger.InfoWithContextf(ctx, "[Chain Consumer - Run] Tracked job %s already claimed (%s), skipping", id, job.Status)
		return nil
	}

	var params map[string]any
	if err := json.Unmarshal(job.Params, &params); err != nil {
		return p.store.MarkFailed(ctx, id, "failed to start job: invalid stored parameters: "+err.Error())
	}

	resp, err := p.api.Submit(ctx, job.Kind, params, parentRemoteID)
	if err != nil {
		p.logger.ErrorWithContextf(ctx, err, "[Chain Consumer - Run] Failed to submit %s job %s: %v", job.Kind, id, err)
		return p.store.MarkFailed(ctx, id, "failed to start job: "+err.Error())
	}

	if err := p.recordSubmission(ctx, id, resp.JobID); err != nil {
		p.logger.ErrorWithContextf(ctx, err, "[Chain Consumer - Run] Remote job %s for %s could not be recorded", resp.JobID, id)
		msg := fmt.Sprintf("failed to record remote job %s: %v", resp.JobID, err)
		if markErr := p.store.MarkFailed(ctx, id, msg); markErr != nil {
			return errors.Join(err, markErr)
		}
		return nil
	}
	p.logger.InfoWithContextf(ctx, "[Chain Consumer - Run] Submitted %s job %s as remote job %s", job.Kind, id, resp.JobID)

	return p.schedulePoll(ctx, id, resp.JobID, 1, p.opts.FirstPollDelay)
}

// recordSubmission retries the write because the job service already runs
// the job and a lost claim cannot be won again on redelivery.
func (p *StatusPoller) recordSubmission(ctx context.Context, id uuid.UUID, remoteJobID string) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, p.store.MarkSubmitted(ctx, id, remoteJobID)
	},
		backoff.WithBackOff(p.backoff()),
		backoff.WithMaxTries(max(p.opts.StoreRetries, 1)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			p.logger.WarningWithContextf(ctx, "[Chain Consumer - Run] Failed to record remote job %s for %s, retrying in %s: %v", remoteJobID, id, wait, err)
		}),
	)
	return err
}

// HandlePoll checks the remote status once and mirrors it. attempt numbers
// the poll within the job's chain, so a redelivered poll is counted once.
func (p *StatusPoller) HandlePoll(ctx context.Context, id uuid.UUID, remoteJobID string, attempt int) error {
	ctx = infra.WithLogAttrs(ctx,
		slog.String("tracked_job_id", id.String()),
		slog.String("job_id", remoteJobID),
	)

	job, err := p.store.FindByID(ctx, id)
	if errors.Is(err, repository.ErrTrackedJobNotFound) {
		p.logger.WarningWithContextf(ctx, "[Chain Consumer - Poll] Tracked job %s no longer exists, dropping", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load tracked job %s: %w", id, err)
	}
	if job.Status.IsTerminal() {
		return nil
	}

	attempts, err := p.store.RecordPollAttempt(ctx, id, max(attempt, 1))
	if err != nil {
		return fmt.Errorf("failed to count poll of tracked job %s: %w", id, err)
	}

	status, err := p.api.Status(ctx, remoteJobID)
	if errors.Is(err, infra.ErrRemoteJobNotFound) {
		p.logger.WarningWithContextf(ctx, "[Chain Consumer - Poll] Remote job %s not found", remoteJobID)
		return p.store.MarkFailed(ctx, id, infra.ErrRemoteJobNotFound.Error())
	}
	if err != nil {
		p.logger.ErrorWithContextf(ctx, err, "[Chain Consumer - Poll] Status check %d for remote job %s failed: %v", attempts, remoteJobID, err)
		return p.pollAgain(ctx, id, remoteJobID, attempts, err.Error())
	}

	next := trackedStatus(status.Status)
	var message string
	if status.Error != nil {
		message = *status.Error
	}

	previous, err := p.store.MirrorStatus(ctx, id, next, message, p.startDependents)
	if err != nil {
		return fmt.Errorf("failed to mirror status of tracked job %s: %w", id, err)
	}
	if previous != next {
		p.logger.InfoWithContextf(ctx, "[Chain Consumer - Poll] Tracked job %s moved from %s to %s", id, previous, next)
	}

	if next.IsTerminal() {
		return nil
	}
	return p.pollAgain(ctx, id, remoteJobID, attempts, "job still "+string(next))
}

// startDependents runs inside the transaction that records the first
// completed observation of job.
func (p *StatusPoller) startDependents(ctx context.Context, tx repository.DependentReader, job *entity.TrackedJob) error {
	dependents, err := tx.FindDependents(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("failed to load dependents of %s: %w", job.ID, err)
	}

	for _, dep := range dependents {
		if dep.Status != entity.TrackedStatusPending {
			continue
		}
		if err := p.scheduler.PublishRun(ctx, dep.ID.String()); err != nil {
			return fmt.Errorf("failed to schedule dependent %s: %w", dep.ID, err)
		}
		p.logger.InfoWithContextf(ctx, "[Chain Consumer - Poll] Scheduled %s job %s after %s completed", dep.Kind, dep.ID, job.ID)
	}
	return nil
}

func (p *StatusPoller) pollAgain(ctx context.Context, id uuid.UUID, remoteJobID string, attempts int, reason string) error {
	if p.opts.MaxPolls > 0 && attempts >= p.opts.MaxPolls {
		p.logger.WarningWithContextf(ctx, "[Chain Consumer - Poll] Giving up on tracked job %s after %d polls", id, attempts)
		return p.store.MarkFailed(ctx, id, fmt.Sprintf("gave up after %d status checks: %s", attempts, reason))
	}
	return p.schedulePoll(ctx, id, remoteJobID, attempts+1, p.nextDelay())
}

func (p *StatusPoller) schedulePoll(ctx context.Context, id uuid.UUID, remoteJobID string, attempt int, delay time.Duration) error {
	msg := produce.PollStatusMessage{
		TrackedJobID: id.String(),
		RemoteJobID:  remoteJobID,
		Attempt:      attempt,
	}
	if err := p.scheduler.PublishPoll(ctx, msg, delay); err != nil {
		return fmt.Errorf("failed to schedule poll of tracked job %s: %w", id, err)
	}
	return nil
}

// nextDelay spreads polls of many jobs around the configured interval.
func (p *StatusPoller) nextDelay() time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.opts.PollInterval
	b.MaxInterval = p.opts.PollInterval
	b.Multiplier = 1
	b.RandomizationFactor = p.opts.PollJitter
	b.Reset()
	return b.NextBackOff()
}

func trackedStatus(s entity.JobStatus) entity.TrackedStatus {
	switch s {
	case entity.JobStatusRunning:
		return entity.TrackedStatusRunning
	case entity.JobStatusCompleted:
		return entity.TrackedStatusCompleted
	case entity.JobStatusFailed:
		return entity.TrackedStatusFailed
	default:
		return entity.TrackedStatusQueued
	}
}
