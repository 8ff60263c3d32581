package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/superposition/internal/apperr"
	"github.com/rafaeljc/superposition/internal/experiment"
	"github.com/rafaeljc/superposition/internal/validation"
)

// Compile-time check that ExperimentStore satisfies the orchestrator's repository.
var _ experiment.Repository = (*ExperimentStore)(nil)

const experimentColumns = `id, name, created_by, created_at, last_modified, override_keys,
	traffic_percentage, status, context, variants`

// ExperimentStore persists experiments, one row each with variants as JSONB.
type ExperimentStore struct {
	db *pgxpool.Pool
}

// NewExperimentStore creates a repository on the given pool.
func NewExperimentStore(db *pgxpool.Pool) *ExperimentStore {
	validation.AssertNotNil(db, "database pool")
	return &ExperimentStore{db: db}
}

// Create inserts exp. The id is assigned by the caller.
func (s *ExperimentStore) Create(ctx context.Context, exp *experiment.Experiment) error {
	query := `
		INSERT INTO experiments (` + experimentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.Exec(ctx, query,
		exp.ID,
		exp.Name,
		exp.CreatedBy,
		exp.CreatedAt,
		exp.LastModified,
		exp.OverrideKeys,
		exp.TrafficPercentage,
		string(exp.Status),
		exp.Context,
		exp.Variants,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.KindConflict, "experiment %d already exists", exp.ID)
		}
		return apperr.Wrap(apperr.KindPersistence, err, "failed to insert experiment")
	}
	return nil
}

// Get returns one experiment or a NotFound error.
func (s *ExperimentStore) Get(ctx context.Context, id int64) (*experiment.Experiment, error) {
	query := `SELECT ` + experimentColumns + ` FROM experiments WHERE id = $1`

	exp, err := scanExperiment(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, "experiment %d not found", id)
		}
		return nil, apperr.Wrap(apperr.KindPersistence, err, "failed to get experiment")
	}
	return exp, nil
}

// List returns one page of experiments, newest first, and the total count
// of rows matching filters.
func (s *ExperimentStore) List(ctx context.Context, filters experiment.ListFilters) ([]*experiment.Experiment, int64, error) {
	where, args := listConditions(filters)

	var total int64
	countQuery := `SELECT count(*) FROM experiments` + where
	if err := s.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Wrap(apperr.KindPersistence, err, "failed to count experiments")
	}
	if total == 0 {
		return []*experiment.Experiment{}, 0, nil
	}

	limit := filters.Count
	if limit <= 0 {
		limit = 10
	}
	args = append(args, limit, filters.Offset())
	query := fmt.Sprintf(`SELECT %s FROM experiments%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		experimentColumns, where, len(args)-1, len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindPersistence, err, "failed to list experiments")
	}
	defer rows.Close()

	experiments := make([]*experiment.Experiment, 0, limit)
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, 0, apperr.Wrap(apperr.KindPersistence, err, "failed to scan experiment row")
		}
		experiments = append(experiments, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Wrap(apperr.KindPersistence, err, "rows iteration error")
	}

	return experiments, total, nil
}

// ListActive returns every experiment still serving traffic, oldest first.
func (s *ExperimentStore) ListActive(ctx context.Context) ([]*experiment.Experiment, error) {
	query := `SELECT ` + experimentColumns + ` FROM experiments
		WHERE status = ANY($1) ORDER BY created_at, id`

	active := make([]string, len(experiment.ActiveStatuses))
	for i, st := range experiment.ActiveStatuses {
		active[i] = string(st)
	}

	rows, err := s.db.Query(ctx, query, active)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "failed to list active experiments")
	}
	defer rows.Close()

	var experiments []*experiment.Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindPersistence, err, "failed to scan experiment row")
		}
		experiments = append(experiments, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "rows iteration error")
	}
	return experiments, nil
}

// listConditions builds the WHERE clause shared by the count and page queries.
func listConditions(filters experiment.ListFilters) (string, []any) {
	var (
		clauses []string
		args    []any
	)

	if len(filters.Statuses) > 0 {
		statuses := make([]string, len(filters.Statuses))
		for i, st := range filters.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, statuses)
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if !filters.From.IsZero() {
		args = append(args, filters.From)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !filters.To.IsZero() {
		args = append(args, filters.To)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanExperiment(row pgx.Row) (*experiment.Experiment, error) {
	var (
		exp    experiment.Experiment
		status string
	)
	if err := row.Scan(
		&exp.ID,
		&exp.Name,
		&exp.CreatedBy,
		&exp.CreatedAt,
		&exp.LastModified,
		&exp.OverrideKeys,
		&exp.TrafficPercentage,
		&status,
		&exp.Context,
		&exp.Variants,
	); err != nil {
		return nil, err
	}
	exp.Status = experiment.Status(status)
	exp.CreatedAt = exp.CreatedAt.UTC()
	return &exp, nil
}
