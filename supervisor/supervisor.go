package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Maestro-111/search-engine/config"
	"github.com/Maestro-111/search-engine/entity"
	"github.com/Maestro-111/search-engine/infra"
)

const (
	instrumentationName = "github.com/Maestro-111/search-engine/supervisor"
	finalWriteTimeout   = 30 * time.Second
)

type Options struct {
	HeartbeatInterval time.Duration
	RecordTTL         time.Duration
	ChunkSize         int
	MaxLineSize       int
	StderrTailSize    int
	StoreRetries      uint
	ArchiveMaxBytes   int
}

func OptionsFromConfig(cfg *config.EnvConfig) Options {
	return Options{
		HeartbeatInterval: cfg.Job.HeartbeatInterval,
		RecordTTL:         cfg.Job.RecordTTL,
		ChunkSize:         cfg.Job.ChunkSize,
		MaxLineSize:       cfg.Job.MaxLineSize,
		StderrTailSize:    cfg.Job.StderrTailSize,
		StoreRetries:      cfg.Job.StoreRetries,
		ArchiveMaxBytes:   cfg.Archive.MaxBytes,
	}
}

type Supervisor struct {
	ctx     context.Context
	cancel  context.CancelCauseFunc
	store   RecordStore
	archive infra.LogArchive
	logger  *infra.LoggerClient
	opts    Options

	mu      sync.Mutex
	running map[string]context.CancelCauseFunc
	closed  bool
	wg      sync.WaitGroup

	tracer   trace.Tracer
	started  metric.Int64Counter
	finished metric.Int64Counter
	duration metric.Float64Histogram
}

// NewSupervisor returns a Supervisor whose jobs live until Shutdown. archive
// may be nil.
func NewSupervisor(store RecordStore, archive infra.LogArchive, logger *infra.LoggerClient, opts Options) *Supervisor {
	ctx, cancel := context.WithCancelCause(context.Background())

	meter := otel.Meter(instrumentationName)
	started, err := meter.Int64Counter("jobs.started", metric.WithDescription("Jobs handed to the supervisor"))
	if err != nil {
		logger.WarningWithContextf(ctx, "[Supervisor] Failed to create jobs.started counter: %v", err)
	}
	finished, err := meter.Int64Counter("jobs.finished", metric.WithDescription("Jobs that reached a terminal status"))
	if err != nil {
		logger.WarningWithContextf(ctx, "[Supervisor] Failed to create jobs.finished counter: %v", err)
	}
	duration, err := meter.Float64Histogram("jobs.duration", metric.WithUnit("s"), metric.WithDescription("Wall time of job processes"))
	if err != nil {
		logger.WarningWithContextf(ctx, "[Supervisor] Failed to create jobs.duration histogram: %v", err)
	}

	return &Supervisor{
		ctx:      ctx,
		cancel:   cancel,
		store:    store,
		archive:  archive,
		logger:   logger,
		opts:     opts,
		running:  make(map[string]context.CancelCauseFunc),
		tracer:   otel.Tracer(instrumentationName),
		started:  started,
		finished: finished,
		duration: duration,
	}
}

// Launch starts the job in the background and returns immediately. It returns
// ErrJobInProgress if a process for the same id is already supervised.
func (s *Supervisor) Launch(record entity.JobRecord, cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrShuttingDown
	}
	if _, ok := s.running[record.ID]; ok {
		return ErrJobInProgress
	}

	ctx, cancel := context.WithCancelCause(s.ctx)
	s.running[record.ID] = cancel
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.running, record.ID)
			s.mu.Unlock()
			cancel(nil)
		}()
		s.run(ctx, record, cmd)
	}()
	return nil
}

// Fail records an internal failure for a job that never reached Launch.
func (s *Supervisor) Fail(ctx context.Context, record entity.JobRecord, jobErr error) error {
	w := newRecordWriter(s.store, s.logger, record, s.opts.RecordTTL, s.opts.StoreRetries)
	return w.Finish(ctx, jobErr, "")
}

// Cancel stops a running job. The job ends as failed with ErrCancelled.
func (s *Supervisor) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancel, ok := s.running[id]
	if ok {
		cancel(ErrCancelled)
	}
	return ok
}

func (s *Supervisor) Running(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[id]
	return ok
}

// Shutdown cancels every running job and waits for their terminal writes.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel(ErrShuttingDown)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for jobs to stop: %w", ctx.Err())
	}
}

func (s *Supervisor) run(ctx context.Context, record entity.JobRecord, cmd Command) {
	ctx = infra.WithLogAttrs(ctx, slog.String("job_id", record.ID), slog.String("job_kind", string(record.Kind)))
	ctx, span := s.tracer.Start(ctx, "supervisor.run", trace.WithAttributes(
		attribute.String("job.id", record.ID),
		attribute.String("job.kind", string(record.Kind)),
	))
	defer span.End()

	kindAttr := metric.WithAttributes(attribute.String("job.kind", string(record.Kind)))
	if s.started != nil {
		s.started.Add(ctx, 1, kindAttr)
	}

	writer := newRecordWriter(s.store, s.logger, record, s.opts.RecordTTL, s.opts.StoreRetries)
	if err := writer.MarkRunning(ctx); err != nil {
		s.logger.ErrorWithContextf(ctx, err, "[Supervisor] Failed to mark job %s running", record.ID)
	}

	output := newOutputLog(s.opts.ArchiveMaxBytes)

	heartbeat := StartHeartbeat(ctx, s.opts.HeartbeatInterval, func(ctx context.Context) {
		mb, err := memoryUsageMB(ctx)
		if err != nil {
			s.logger.WarningWithContextf(ctx, "[Heartbeat] Failed to sample memory: %v", err)
			return
		}
		if err := writer.Beat(ctx, mb); err != nil && !errors.Is(err, errRecordFinal) && ctx.Err() == nil {
			s.logger.ErrorWithContextf(ctx, err, "[Heartbeat] Failed to record heartbeat for job %s", record.ID)
		}
	})

	runner := &Runner{
		ChunkSize:      s.opts.ChunkSize,
		MaxLineSize:    s.opts.MaxLineSize,
		StderrTailSize: s.opts.StderrTailSize,
		OnStart: func(p int) {
			s.logger.InfoWithContextf(ctx, "[Supervisor] Started %s job %s with pid %d", record.Kind, record.ID, p)
		},
		OnStdout: func(ctx context.Context, line string) {
			output.add("stdout", line)
			s.logger.DebugWithContextf(ctx, "[Job Output] %s", line)
		},
		OnStderr: func(ctx context.Context, line string) {
			output.add("stderr", line)
			s.logger.WarningWithContextf(ctx, "[Job Output] %s", line)
		},
	}

	result := runner.Run(ctx, cmd)
	heartbeat.Stop()

	if result.DrainErr != nil {
		output.add("supervisor", "output incomplete: "+result.DrainErr.Error())
		s.logger.ErrorWithContextf(ctx, result.DrainErr, "[Supervisor] Output of job %s is incomplete", record.ID)
	}

	jobErr := result.Err
	if errors.Is(jobErr, ErrCancelled) && errors.Is(context.Cause(ctx), ErrShuttingDown) {
		jobErr = fmt.Errorf("%w: %w", ErrCancelled, ErrShuttingDown)
	}

	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()

	logObject := s.archiveOutput(finalCtx, record, output)
	if err := writer.Finish(finalCtx, jobErr, logObject); err != nil {
		s.logger.ErrorWithContextf(finalCtx, err, "[Supervisor] Failed to record terminal status of job %s", record.ID)
	}

	status := entity.JobStatusCompleted
	if jobErr != nil {
		status = entity.JobStatusFailed
		span.RecordError(jobErr)
		span.SetStatus(codes.Error, jobErr.Error())
		s.logger.ErrorWithContextf(finalCtx, jobErr, "[Supervisor] Job %s failed", record.ID)
	} else {
		s.logger.InfoWithContextf(finalCtx, "[Supervisor] Job %s completed in %s", record.ID, result.Stopped.Sub(result.Started))
	}

	if s.finished != nil {
		s.finished.Add(finalCtx, 1, metric.WithAttributes(
			attribute.String("job.kind", string(record.Kind)),
			attribute.String("job.status", string(status)),
		))
	}
	if s.duration != nil && !result.Started.IsZero() {
		s.duration.Record(finalCtx, result.Stopped.Sub(result.Started).Seconds(), kindAttr)
	}
}

func (s *Supervisor) archiveOutput(ctx context.Context, record entity.JobRecord, output *outputLog) string {
	if s.archive == nil {
		return ""
	}

	key := fmt.Sprintf("jobs/%s/%s.log", record.Kind, record.ID)
	if err := s.archive.Upload(ctx, key, output.bytes()); err != nil {
		s.logger.ErrorWithContextf(ctx, err, "[Supervisor] Failed to archive output of job %s", record.ID)
		return ""
	}
	return key
}

// outputLog collects interleaved output up to a byte limit.
type outputLog struct {
	mu        sync.Mutex
	buf       strings.Builder
	max       int
	truncated bool
}

func newOutputLog(max int) *outputLog {
	return &outputLog{max: max}
}

func (o *outputLog) add(stream, line string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.truncated {
		return
	}
	entry := "[" + stream + "] " + line + "\n"
	if o.max > 0 && o.buf.Len()+len(entry) > o.max {
		o.buf.WriteString("[output truncated]\n")
		o.truncated = true
		return
	}
	o.buf.WriteString(entry)
}

func (o *outputLog) bytes() []byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	return []byte(o.buf.String())
}
