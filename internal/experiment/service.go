package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/rafaeljc/superposition/internal/apperr"
	"github.com/rafaeljc/superposition/internal/contextops"
	"github.com/rafaeljc/superposition/internal/jsonlogic"
	"github.com/rafaeljc/superposition/internal/logger"
	"github.com/rafaeljc/superposition/internal/observability"
)

// State names a step of the create state machine.
type State string

const (
	StateValidating   State = "VALIDATING"
	StateIDAssignment State = "ID_ASSIGNMENT"
	StateContextBuild State = "CONTEXT_BUILD"
	StateRemoteCreate State = "REMOTE_CREATE"
	StatePersist      State = "PERSIST"
	StateCreated      State = "CREATED"
	StateRejected     State = "REJECTED"
	StateFailed       State = "FAILED"
)

const defaultCompensationTimeout = 10 * time.Second

// IDGenerator mints experiment ids.
type IDGenerator interface {
	Generate(ctx context.Context) (int64, error)
}

// ContextStore applies an ordered batch of context operations in the remote store.
type ContextStore interface {
	BulkOperations(ctx context.Context, ops contextops.Batch) (contextops.Results, error)
}

// Repository persists experiments.
type Repository interface {
	Create(ctx context.Context, exp *Experiment) error
	Get(ctx context.Context, id int64) (*Experiment, error)
	List(ctx context.Context, filters ListFilters) ([]*Experiment, int64, error)
	ListActive(ctx context.Context) ([]*Experiment, error)
}

// OrphanQueue durably records contexts that compensation could not remove.
type OrphanQueue interface {
	Enqueue(ctx context.Context, job contextops.OrphanJob) error
}

// Cache keeps recently read experiments in memory.
type Cache interface {
	Get(id int64) (*Experiment, bool)
	Set(exp *Experiment)
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock used for created_at and job timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// WithCompensationTimeout bounds the cleanup issued after a failed create.
func WithCompensationTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.compensationTimeout = d
		}
	}
}

// WithCache serves Get through an in-memory cache.
func WithCache(cache Cache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithConflictPolicy checks new experiments against active ones.
// The default policy allows every combination and skips the lookup.
func WithConflictPolicy(policy ConflictPolicy) Option {
	return func(s *Service) { s.conflicts = policy }
}

// Service orchestrates experiment creation and reads.
type Service struct {
	logger              *slog.Logger
	ids                 IDGenerator
	contexts            ContextStore
	repo                Repository
	orphans             OrphanQueue
	cache               Cache
	conflicts           ConflictPolicy
	clock               clockwork.Clock
	compensationTimeout time.Duration
}

// NewService wires the orchestrator. All collaborators are mandatory.
func NewService(log *slog.Logger, ids IDGenerator, contexts ContextStore, repo Repository, orphans OrphanQueue, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	if ids == nil {
		panic("experiment: id generator cannot be nil")
	}
	if contexts == nil {
		panic("experiment: context store cannot be nil")
	}
	if repo == nil {
		panic("experiment: repository cannot be nil")
	}
	if orphans == nil {
		panic("experiment: orphan queue cannot be nil")
	}

	s := &Service{
		logger:              log,
		ids:                 ids,
		contexts:            contexts,
		repo:                repo,
		orphans:             orphans,
		conflicts:           PermissivePolicy(),
		clock:               clockwork.NewRealClock(),
		compensationTimeout: defaultCompensationTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create runs VALIDATING → ID_ASSIGNMENT → CONTEXT_BUILD → REMOTE_CREATE → PERSIST.
//
// The experiment row is written only after every variant has a context and
// override in the context store. Replaying a request creates a new experiment.
func (s *Service) Create(ctx context.Context, req *CreateRequest, createdBy string) (int64, error) {
	log := s.requestLogger(ctx)

	base, err := ValidateRequest(req)
	if err != nil {
		return 0, s.reject(log, StateValidating, err)
	}
	if err := s.checkConflicts(ctx, req.OverrideKeys, base); err != nil {
		if apperr.KindOf(err).IsClientError() {
			return 0, s.reject(log, StateValidating, err)
		}
		return 0, s.fail(log, StateValidating, 0, nil, err)
	}

	id, err := s.ids.Generate(ctx)
	if err != nil {
		return 0, s.fail(log, StateIDAssignment, 0, nil, err)
	}

	variants, ops, err := buildVariantOperations(id, base, req.Variants)
	if err != nil {
		return 0, s.fail(log, StateContextBuild, id, variants, err)
	}

	results, err := s.contexts.BulkOperations(ctx, ops)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			err = apperr.Wrap(apperr.KindRemoteCall, err, "failed to create contexts in context store")
		}
		return 0, s.fail(log, StateRemoteCreate, id, variants, err)
	}

	if err := contextops.CheckCorrespondence(ops, results); err != nil {
		s.compensate(ctx, log, id, createdContextIDs(results))
		return 0, s.fail(log, StateRemoteCreate, id, variants,
			apperr.Wrap(apperr.KindRemoteCall, err, "context store answered out of contract"))
	}

	for i, res := range results {
		put := res.(contextops.PutResult)
		variants[i].ContextID = put.ContextID
		variants[i].OverrideID = put.OverrideID
	}

	exp := &Experiment{
		ID:                id,
		Name:              req.Name,
		CreatedBy:         createdBy,
		CreatedAt:         s.clock.Now().UTC(),
		OverrideKeys:      append([]string{}, req.OverrideKeys...),
		TrafficPercentage: req.TrafficPercentage,
		Status:            StatusCreated,
		Context:           base,
		Variants:          variants,
	}

	if err := s.repo.Create(ctx, exp); err != nil {
		s.compensate(ctx, log, id, createdContextIDs(results))
		// A duplicate id is a generator fault, not a caller conflict.
		return 0, s.fail(log, StatePersist, id, variants,
			apperr.Wrap(apperr.KindPersistence, err, "failed to persist experiment"))
	}

	observability.ExperimentsCreated.WithLabelValues("success").Inc()
	log.Info("experiment created",
		slog.String("state", string(StateCreated)),
		slog.Int64("experiment_id", id),
		slog.String("name", exp.Name),
		slog.Any("variant_ids", variantIDs(variants)),
	)
	return id, nil
}

// Get returns one experiment, consulting the cache first when configured.
func (s *Service) Get(ctx context.Context, id int64) (*Experiment, error) {
	if s.cache != nil {
		if exp, ok := s.cache.Get(id); ok {
			return exp, nil
		}
	}

	exp, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(exp)
	}
	return exp, nil
}

// List returns one page of experiments and the total number matching filters.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]*Experiment, int64, error) {
	if !filters.From.IsZero() && !filters.To.IsZero() && filters.From.After(filters.To) {
		return nil, 0, apperr.BadArgument("from_date must not be after to_date")
	}
	return s.repo.List(ctx, filters)
}

// checkConflicts loads active experiments only when the policy can reject.
func (s *Service) checkConflicts(ctx context.Context, overrideKeys []string, base map[string]any) error {
	if s.conflicts.Permissive() {
		return nil
	}
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			err = apperr.Wrap(apperr.KindPersistence, err, "failed to load active experiments")
		}
		return err
	}
	return CheckActiveConflicts(s.conflicts, overrideKeys, base, active)
}

// buildVariantOperations rewrites every variant id to "<id>-<variant>" and
// builds one PUT per variant whose context also requires variant_id.
// The request's variants are left untouched.
func buildVariantOperations(experimentID int64, base map[string]any, in []Variant) ([]Variant, contextops.Batch, error) {
	variants := slices.Clone(in)
	ops := make(contextops.Batch, len(variants))

	for i := range variants {
		variants[i].ID = fmt.Sprintf("%d-%s", experimentID, variants[i].ID)

		augmented, err := jsonlogic.WithDimension(base, VariantIDDimension, variants[i].ID)
		if err != nil {
			return variants, nil, err
		}

		ops[i] = contextops.Put{Context: augmented, Override: variants[i].Overrides}
	}
	return variants, ops, nil
}

// compensate deletes contexts created for an experiment that will not be
// persisted. When that fails too, the ids are queued for the reconciler.
func (s *Service) compensate(ctx context.Context, log *slog.Logger, experimentID int64, contextIDs []string) {
	if len(contextIDs) == 0 {
		return
	}

	// The request context may already be cancelled; cleanup gets its own budget.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
	defer cancel()

	ops := contextops.DeleteAll(contextIDs)
	results, err := s.contexts.BulkOperations(cctx, ops)
	if err == nil {
		err = contextops.CheckCorrespondence(ops, results)
	}
	if err == nil {
		observability.ExperimentCompensations.WithLabelValues("success").Inc()
		log.Warn("removed contexts of unpersisted experiment",
			slog.Int64("experiment_id", experimentID),
			slog.Any("context_ids", contextIDs),
		)
		return
	}

	job := contextops.OrphanJob{
		ID:           uuid.NewString(),
		ExperimentID: experimentID,
		ContextIDs:   contextIDs,
		EnqueuedAt:   s.clock.Now().UTC(),
		LastError:    err.Error(),
	}
	if qerr := s.orphans.Enqueue(cctx, job); qerr != nil {
		observability.ExperimentCompensations.WithLabelValues("failure").Inc()
		log.Error("CRITICAL: orphaned contexts could not be recorded",
			slog.Int64("experiment_id", experimentID),
			slog.Any("context_ids", contextIDs),
			slog.String("delete_error", err.Error()),
			slog.String("queue_error", qerr.Error()),
		)
		return
	}

	observability.ExperimentCompensations.WithLabelValues("enqueued").Inc()
	log.Warn("queued orphaned contexts for reconciliation",
		slog.String("job_id", job.ID),
		slog.Int64("experiment_id", experimentID),
		slog.Any("context_ids", contextIDs),
		slog.String("error", err.Error()),
	)
}

// requestLogger prefers the request-scoped logger set by the HTTP middleware.
func (s *Service) requestLogger(ctx context.Context) *slog.Logger {
	if l := logger.FromContext(ctx); l != slog.Default() {
		return l
	}
	return s.logger
}

func (s *Service) reject(log *slog.Logger, state State, err error) error {
	observability.ExperimentsCreated.WithLabelValues("rejected").Inc()
	observability.ExperimentStepFailures.WithLabelValues(string(state)).Inc()
	log.Warn("experiment rejected",
		slog.String("state", string(StateRejected)),
		slog.String("step", string(state)),
		slog.String("error", err.Error()),
	)
	return err
}

func (s *Service) fail(log *slog.Logger, state State, experimentID int64, variants []Variant, err error) error {
	observability.ExperimentsCreated.WithLabelValues("failed").Inc()
	observability.ExperimentStepFailures.WithLabelValues(string(state)).Inc()
	log.Error("experiment creation failed",
		slog.String("state", string(StateFailed)),
		slog.String("step", string(state)),
		slog.Int64("experiment_id", experimentID),
		slog.Any("variant_ids", variantIDs(variants)),
		slog.String("error", err.Error()),
	)
	return err
}

// createdContextIDs collects the contexts a (possibly malformed) bulk answer
// reports as created by PUT. Create never sends MOVE, so a MOVE result names
// a context that predates the request and must not be deleted.
func createdContextIDs(results contextops.Results) []string {
	var ids []string
	for _, res := range results {
		if put, ok := res.(contextops.PutResult); ok && put.ContextID != "" {
			ids = append(ids, put.ContextID)
		}
	}
	return ids
}

func variantIDs(variants []Variant) []string {
	ids := make([]string, len(variants))
	for i, v := range variants {
		ids[i] = v.ID
	}
	return ids
}
