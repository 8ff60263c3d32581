package contextstore

import (
	"context"
	"log/slog"

	"github.com/rafaeljc/superposition/internal/apperr"
	"github.com/rafaeljc/superposition/internal/contextops"
	"github.com/rafaeljc/superposition/internal/logger"
	"github.com/rafaeljc/superposition/internal/observability"
)

// Repository applies planned steps atomically and reads entries back.
type Repository interface {
	// Apply runs every step in one transaction and answers result[i] for step[i].
	// Any failing step rolls back the whole batch.
	Apply(ctx context.Context, steps []Step) (contextops.Results, error)
	Get(ctx context.Context, id string) (*Entry, error)
}

// Service is the context store's domain entry point.
type Service struct {
	logger     *slog.Logger
	repo       Repository
	priorities Priorities
}

// NewService builds the service. priorities may be nil.
func NewService(log *slog.Logger, repo Repository, priorities Priorities) *Service {
	if log == nil {
		log = slog.Default()
	}
	if repo == nil {
		panic("contextstore: repository cannot be nil")
	}
	return &Service{logger: log, repo: repo, priorities: priorities}
}

// BulkOperations applies ops all-or-nothing and returns one result per operation.
func (s *Service) BulkOperations(ctx context.Context, ops contextops.Batch, createdBy string) (contextops.Results, error) {
	steps, err := Plan(ops, s.priorities, createdBy)
	if err != nil {
		return nil, err
	}

	results, err := s.repo.Apply(ctx, steps)
	if err != nil {
		return nil, err
	}

	for _, op := range ops {
		observability.ContextOperationsApplied.WithLabelValues(op.Tag()).Inc()
	}
	s.log(ctx).Info("applied context operations",
		slog.Int("operations", len(ops)),
		slog.String("created_by", createdBy),
	)
	return results, nil
}

// Put creates or replaces one context's override.
func (s *Service) Put(ctx context.Context, op contextops.Put, createdBy string) (contextops.PutResult, error) {
	results, err := s.BulkOperations(ctx, contextops.Batch{op}, createdBy)
	if err != nil {
		return contextops.PutResult{}, err
	}
	res, ok := single[contextops.PutResult](results)
	if !ok {
		return contextops.PutResult{}, apperr.New(apperr.KindInternal, "repository answered PUT with %v", results)
	}
	return res, nil
}

// Move re-targets the override of one context.
func (s *Service) Move(ctx context.Context, op contextops.Move, createdBy string) (contextops.MoveResult, error) {
	results, err := s.BulkOperations(ctx, contextops.Batch{op}, createdBy)
	if err != nil {
		return contextops.MoveResult{}, err
	}
	res, ok := single[contextops.MoveResult](results)
	if !ok {
		return contextops.MoveResult{}, apperr.New(apperr.KindInternal, "repository answered MOVE with %v", results)
	}
	return res, nil
}

// Delete removes one context.
func (s *Service) Delete(ctx context.Context, contextID string, deletedBy string) error {
	_, err := s.BulkOperations(ctx, contextops.Batch{contextops.Delete{ContextID: contextID}}, deletedBy)
	return err
}

// Get returns one context.
func (s *Service) Get(ctx context.Context, contextID string) (*Entry, error) {
	return s.repo.Get(ctx, contextID)
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	if l := logger.FromContext(ctx); l != slog.Default() {
		return l
	}
	return s.logger
}

func single[T contextops.Result](results contextops.Results) (T, bool) {
	var zero T
	if len(results) != 1 {
		return zero, false
	}
	res, ok := results[0].(T)
	return res, ok
}
