package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/Maestro-111/search-engine/entity"
	"github.com/Maestro-111/search-engine/infra"
	"github.com/Maestro-111/search-engine/repository"
)

var errRecordFinal = errors.New("job record already has a terminal status")

// RecordStore is the subset of the job store the supervisor writes through.
type RecordStore interface {
	Put(ctx context.Context, record *entity.JobRecord, ttl time.Duration) error
}

// recordWriter is the single writer of one job's record. The supervisor and
// the heartbeat both mutate the in-memory copy under mu and persist the whole
// record, so neither can overwrite the other's fields with stale data.
type recordWriter struct {
	mu      sync.Mutex
	store   RecordStore
	logger  *infra.LoggerClient
	record  entity.JobRecord
	ttl     time.Duration
	retries uint
	backoff func() backoff.BackOff
}

func newRecordWriter(store RecordStore, logger *infra.LoggerClient, record entity.JobRecord, ttl time.Duration, retries uint) *recordWriter {
	return &recordWriter{
		store:   store,
		logger:  logger,
		record:  record,
		ttl:     ttl,
		retries: max(retries, 1),
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}
}

// Snapshot returns a copy of the latest record.
func (w *recordWriter) Snapshot() entity.JobRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.record
}

func (w *recordWriter) MarkRunning(ctx context.Context) error {
	return w.update(ctx, func(r *entity.JobRecord) error {
		if !r.Status.CanTransition(entity.JobStatusRunning) {
			return fmt.Errorf("cannot move job from %s to running", r.Status)
		}
		now := time.Now().UTC()
		r.Status = entity.JobStatusRunning
		r.StartedAt = &now
		return nil
	})
}

func (w *recordWriter) Beat(ctx context.Context, memoryMB float64) error {
	return w.update(ctx, func(r *entity.JobRecord) error {
		now := time.Now().UTC()
		r.LastHeartbeat = &now
		r.MemoryUsageMB = &memoryMB
		return nil
	})
}

// Finish writes the terminal status. jobErr nil means completed.
func (w *recordWriter) Finish(ctx context.Context, jobErr error, logObject string) error {
	return w.update(ctx, func(r *entity.JobRecord) error {
		status := entity.JobStatusCompleted
		if jobErr != nil {
			status = entity.JobStatusFailed
		}
		if !r.Status.CanTransition(status) {
			return fmt.Errorf("cannot move job from %s to %s", r.Status, status)
		}
		now := time.Now().UTC()
		r.Status = status
		r.FinishedAt = &now
		r.Error = nil
		if jobErr != nil {
			msg := jobErr.Error()
			r.Error = &msg
		}
		if logObject != "" {
			r.LogObject = logObject
		}
		return nil
	})
}

func (w *recordWriter) update(ctx context.Context, mutate func(r *entity.JobRecord) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.record.Status.IsTerminal() {
		return errRecordFinal
	}

	next := w.record
	if err := mutate(&next); err != nil {
		return err
	}
	w.record = next

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := w.store.Put(ctx, &next, w.ttl)
		var storeErr *repository.StoreError
		if err != nil && !errors.As(err, &storeErr) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(w.backoff()),
		backoff.WithMaxTries(w.retries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			w.logger.ErrorWithContextf(ctx, err, "[Supervisor] Failed to write %s record for job %s, retrying in %s", next.Status, next.ID, wait)
		}),
	)
	if err != nil {
		w.logger.ErrorWithContextf(ctx, err, "[Supervisor] Gave up writing %s record for job %s", next.Status, next.ID)
		return err
	}
	return nil
}
