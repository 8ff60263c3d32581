// Package reconciler implements the background worker that removes contexts
// left behind in the context store by experiments that were never persisted.
package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jonboulle/clockwork"

	"github.com/rafaeljc/superposition/internal/config"
	"github.com/rafaeljc/superposition/internal/contextclient"
	"github.com/rafaeljc/superposition/internal/contextops"
	"github.com/rafaeljc/superposition/internal/observability"
)

// Job outcomes reported on the jobs_total metric.
const (
	statusSuccess  = "success"
	statusRequeued = "requeued"
	statusFail     = "fail"
	statusInvalid  = "invalid"
)

// deleteAttempts bounds the in-process retries of one context delete before
// the job goes back to the queue.
const deleteAttempts = 3

// Queue is the durable job source.
type Queue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*contextops.OrphanJob, error)
	Enqueue(ctx context.Context, job contextops.OrphanJob) error
	Len(ctx context.Context) (int64, error)
}

// ContextStore applies bulk operations in the remote context store.
type ContextStore interface {
	BulkOperations(ctx context.Context, ops contextops.Batch) (contextops.Results, error)
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock used for job latency.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// Service drains the orphan queue.
type Service struct {
	logger   *slog.Logger
	config   config.ReconcilerConfig
	queue    Queue
	contexts ContextStore
	clock    clockwork.Clock
}

// New creates a reconciler. The queue and the context store are mandatory.
func New(logger *slog.Logger, cfg config.ReconcilerConfig, queue Queue, contexts ContextStore, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if queue == nil {
		panic("reconciler: queue cannot be nil")
	}
	if contexts == nil {
		panic("reconciler: context store cannot be nil")
	}

	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = 5 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 1
	}
	if cfg.BaseRetryDelay <= 0 {
		cfg.BaseRetryDelay = 500 * time.Millisecond
	}

	s := &Service{
		logger:   logger,
		config:   cfg,
		queue:    queue,
		contexts: contexts,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run processes jobs until ctx is cancelled. It always returns nil on shutdown.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting reconciler",
		slog.String("pop_timeout", s.config.PopTimeout.String()),
		slog.Uint64("max_retries", uint64(s.config.MaxRetries)),
	)

	for {
		if ctx.Err() != nil {
			s.logger.Info("reconciler stopping...")
			return nil
		}

		job, err := s.queue.Dequeue(ctx, s.config.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			s.logger.Error("failed to pop orphan job", slog.String("error", err.Error()))
			s.pause(ctx)
			continue
		}

		if job != nil {
			s.Process(ctx, *job)
		}

		if _, err := s.queue.Len(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("failed to read queue depth", slog.String("error", err.Error()))
		}
	}
}

// Process removes every context of job. Contexts the store no longer knows
// count as removed. What is left after the in-process retries is requeued
// until the job has used MaxRetries attempts, then dropped.
func (s *Service) Process(ctx context.Context, job contextops.OrphanJob) {
	log := s.logger.With(
		slog.String("job_id", job.ID),
		slog.Int64("experiment_id", job.ExperimentID),
		slog.Int("attempt", job.Attempts+1),
	)

	if job.ID == "" || len(job.ContextIDs) == 0 {
		observability.ReconcilerJobsTotal.WithLabelValues(statusInvalid).Inc()
		log.Warn("dropping invalid orphan job", slog.Any("context_ids", job.ContextIDs))
		return
	}

	var (
		remaining []string
		lastErr   error
		permanent bool
	)
	for _, id := range job.ContextIDs {
		if err := s.deleteWithRetry(ctx, log, id); err != nil {
			remaining = append(remaining, id)
			lastErr = err
			if isClientError(err) {
				permanent = true
			}
		}
	}

	if len(remaining) == 0 {
		observability.ReconcilerJobsTotal.WithLabelValues(statusSuccess).Inc()
		observability.ReconcilerJobDuration.Observe(s.clock.Since(job.EnqueuedAt).Seconds())
		log.Info("orphaned contexts removed", slog.Any("context_ids", job.ContextIDs))
		return
	}

	// A cancelled run hands the job back untouched.
	if ctx.Err() != nil {
		job.ContextIDs = remaining
		s.requeue(ctx, log, job)
		return
	}

	job.Attempts++
	job.ContextIDs = remaining
	job.LastError = lastErr.Error()

	if permanent || uint(job.Attempts) >= s.config.MaxRetries {
		observability.ReconcilerJobsTotal.WithLabelValues(statusFail).Inc()
		log.Error("CRITICAL: giving up on orphaned contexts",
			slog.Any("context_ids", remaining),
			slog.Bool("permanent", permanent),
			slog.String("error", job.LastError),
		)
		return
	}

	observability.ReconcilerJobsTotal.WithLabelValues(statusRequeued).Inc()
	log.Warn("orphan cleanup incomplete, requeueing",
		slog.Any("context_ids", remaining),
		slog.String("error", job.LastError),
	)
	s.requeue(ctx, log, job)
}

// deleteWithRetry removes one context. Client errors other than 404 are
// permanent; a 404 means the context is already gone.
func (s *Service) deleteWithRetry(ctx context.Context, log *slog.Logger, contextID string) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.config.BaseRetryDelay
	if s.config.MaxRetryDelay > 0 {
		bo.MaxInterval = s.config.MaxRetryDelay
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		ops := contextops.DeleteAll([]string{contextID})
		results, err := s.contexts.BulkOperations(ctx, ops)
		if err == nil {
			err = contextops.CheckCorrespondence(ops, results)
		}
		switch {
		case err == nil, contextclient.IsNotFound(err):
			return struct{}{}, nil
		case isClientError(err):
			return struct{}{}, backoff.Permanent(err)
		default:
			return struct{}{}, err
		}
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(deleteAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Debug("context delete failed, retrying",
				slog.String("context_id", contextID),
				slog.String("error", err.Error()),
				slog.Duration("retry_in", next),
			)
		}),
	)
	return err
}

func (s *Service) requeue(ctx context.Context, log *slog.Logger, job contextops.OrphanJob) {
	// The job must survive shutdown.
	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.queue.Enqueue(qctx, job); err != nil {
		log.Error("CRITICAL: failed to requeue orphan job",
			slog.Any("context_ids", job.ContextIDs),
			slog.String("error", err.Error()),
		)
	}
}

// pause backs off after a queue failure so a broken connection does not spin.
func (s *Service) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-s.clock.After(s.config.BaseRetryDelay):
	}
}

func isClientError(err error) bool {
	var se *contextclient.StatusError
	return errors.As(err, &se) && se.StatusCode >= http.StatusBadRequest && se.StatusCode < http.StatusInternalServerError
}
