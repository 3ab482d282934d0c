package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Maestro-111/search-engine/entity"
)

var ErrTrackedJobNotFound = errors.New("tracked job not found")

type TrackedJobRepository struct {
	db *gorm.DB
}

func NewTrackedJobRepository(db *gorm.DB) *TrackedJobRepository {
	return &TrackedJobRepository{db: db}
}

func (r *TrackedJobRepository) Create(ctx context.Context, job *entity.TrackedJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// CreatePipeline inserts a job and its dependents atomically.
func (r *TrackedJobRepository) CreatePipeline(ctx context.Context, jobs ...*entity.TrackedJob) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, job := range jobs {
			if err := tx.Create(job).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *TrackedJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.TrackedJob, error) {
	var job entity.TrackedJob
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTrackedJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *TrackedJobRepository) FindDependents(ctx context.Context, parentID uuid.UUID) ([]entity.TrackedJob, error) {
	var jobs []entity.TrackedJob
	err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("created_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// ClaimForSubmission moves a pending job to submitting. Only one caller
// observes true for a given job.
func (r *TrackedJobRepository) ClaimForSubmission(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.TrackedJob{}).
		Where("id = ? AND status = ?", id, entity.TrackedStatusPending).
		Update("status", entity.TrackedStatusSubmitting)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *TrackedJobRepository) MarkSubmitted(ctx context.Context, id uuid.UUID, remoteJobID string) error {
	return r.db.WithContext(ctx).
		Model(&entity.TrackedJob{}).
		Where("id = ? AND status = ?", id, entity.TrackedStatusSubmitting).
		Updates(map[string]any{
			"status":        entity.TrackedStatusQueued,
			"remote_job_id": remoteJobID,
		}).Error
}

// MarkFailed is a no-op for rows that already reached a terminal status.
func (r *TrackedJobRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	return r.db.WithContext(ctx).
		Model(&entity.TrackedJob{}).
		Where("id = ? AND status NOT IN ?", id, []entity.TrackedStatus{entity.TrackedStatusCompleted, entity.TrackedStatusFailed}).
		Updates(map[string]any{
			"status":        entity.TrackedStatusFailed,
			"error_message": message,
		}).Error
}

// RecordPollAttempt raises the poll count to attempt and returns the stored
// count. Recording the same attempt again leaves the count unchanged.
func (r *TrackedJobRepository) RecordPollAttempt(ctx context.Context, id uuid.UUID, attempt int) (int, error) {
	var job entity.TrackedJob
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entity.TrackedJob{}).
			Where("id = ?", id).
			UpdateColumn("poll_attempts", gorm.Expr("GREATEST(poll_attempts, ?)", attempt)).Error; err != nil {
			return err
		}
		return tx.Select("poll_attempts").Where("id = ?", id).First(&job).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrTrackedJobNotFound
	}
	return job.PollAttempts, err
}

// CompletionHook runs inside the mirroring transaction the first time a job is
// observed as completed. Returning an error rolls the status change back.
type CompletionHook func(ctx context.Context, tx DependentReader, job *entity.TrackedJob) error

// DependentReader lists the jobs waiting on a parent.
type DependentReader interface {
	FindDependents(ctx context.Context, parentID uuid.UUID) ([]entity.TrackedJob, error)
}

// MirrorStatus copies a remote status into the row while holding its lock and
// returns the status recorded before the call. Terminal rows are left alone.
func (r *TrackedJobRepository) MirrorStatus(ctx context.Context, id uuid.UUID, status entity.TrackedStatus, message string, onCompleted CompletionHook) (entity.TrackedStatus, error) {
	var previous entity.TrackedStatus

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job entity.TrackedJob
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTrackedJobNotFound
		}
		if err != nil {
			return err
		}

		previous = job.Status
		if previous.IsTerminal() || previous == status {
			return nil
		}

		if err := tx.Model(&entity.TrackedJob{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"status":        status,
				"error_message": message,
			}).Error; err != nil {
			return err
		}

		if status == entity.TrackedStatusCompleted && onCompleted != nil {
			job.Status = status
			return onCompleted(ctx, NewTrackedJobRepository(tx), &job)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return previous, nil
}
