package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/superposition/internal/apperr"
	"github.com/rafaeljc/superposition/internal/contextops"
	"github.com/rafaeljc/superposition/internal/contextstore"
	"github.com/rafaeljc/superposition/internal/validation"
)

var _ contextstore.Repository = (*ContextStore)(nil)

// ContextStore keeps content-addressed contexts and their overrides.
type ContextStore struct {
	db *pgxpool.Pool
}

// NewContextStore creates a repository on the given pool.
func NewContextStore(db *pgxpool.Pool) *ContextStore {
	validation.AssertNotNil(db, "database pool")
	return &ContextStore{db: db}
}

// Apply runs steps in a single transaction. The first failing step aborts
// and rolls back the batch.
func (s *ContextStore) Apply(ctx context.Context, steps []contextstore.Step) (contextops.Results, error) {
	results := make(contextops.Results, len(steps))

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		for i, step := range steps {
			var (
				res contextops.Result
				err error
			)
			switch st := step.(type) {
			case contextstore.Upsert:
				res, err = upsertContext(ctx, tx, st)
			case contextstore.Remove:
				res, err = removeContext(ctx, tx, st)
			case contextstore.Retarget:
				res, err = retargetContext(ctx, tx, st)
			default:
				err = apperr.BadArgument("unknown step type %T", step)
			}
			if err != nil {
				return fmt.Errorf("operation %d: %w", i, err)
			}
			results[i] = res
		}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			return nil, apperr.Wrap(apperr.KindPersistence, err, "failed to apply context operations")
		}
		return nil, err
	}
	return results, nil
}

func upsertContext(ctx context.Context, tx pgx.Tx, st contextstore.Upsert) (contextops.Result, error) {
	e := st.Entry
	query := `
		INSERT INTO contexts (id, value, override_id, override, priority, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET override_id = EXCLUDED.override_id,
		    override = EXCLUDED.override,
		    priority = EXCLUDED.priority,
		    last_modified = now()
	`
	if _, err := tx.Exec(ctx, query, e.ID, e.Value, e.OverrideID, e.Override, e.Priority, e.CreatedBy); err != nil {
		return nil, err
	}
	return contextops.PutResult{ContextID: e.ID, OverrideID: e.OverrideID, Priority: e.Priority}, nil
}

func removeContext(ctx context.Context, tx pgx.Tx, st contextstore.Remove) (contextops.Result, error) {
	tag, err := tx.Exec(ctx, `DELETE FROM contexts WHERE id = $1`, st.ContextID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, apperr.New(apperr.KindNotFound, "context %s not found", st.ContextID)
	}
	return contextops.DeleteResult{ContextID: st.ContextID}, nil
}

func retargetContext(ctx context.Context, tx pgx.Tx, st contextstore.Retarget) (contextops.Result, error) {
	var (
		overrideID string
		override   map[string]any
		createdBy  string
	)
	err := tx.QueryRow(ctx,
		`SELECT override_id, override, created_by FROM contexts WHERE id = $1 FOR UPDATE`,
		st.FromID,
	).Scan(&overrideID, &override, &createdBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "context %s not found", st.FromID)
	}
	if err != nil {
		return nil, err
	}

	to := st.To
	if to.ID == st.FromID {
		_, err := tx.Exec(ctx,
			`UPDATE contexts SET priority = $2, last_modified = now() WHERE id = $1`,
			to.ID, to.Priority,
		)
		if err != nil {
			return nil, err
		}
		return contextops.MoveResult{ContextID: to.ID, OverrideID: overrideID, Priority: to.Priority}, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO contexts (id, value, override_id, override, priority, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, to.ID, to.Value, overrideID, override, to.Priority, createdBy)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.New(apperr.KindConflict, "context %s already exists", to.ID)
		}
		return nil, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM contexts WHERE id = $1`, st.FromID); err != nil {
		return nil, err
	}
	return contextops.MoveResult{ContextID: to.ID, OverrideID: overrideID, Priority: to.Priority}, nil
}

// Get returns one context or a NotFound error.
func (s *ContextStore) Get(ctx context.Context, id string) (*contextstore.Entry, error) {
	query := `
		SELECT id, value, override_id, override, priority, created_by, created_at, last_modified
		FROM contexts
		WHERE id = $1
	`

	var e contextstore.Entry
	err := s.db.QueryRow(ctx, query, id).Scan(
		&e.ID,
		&e.Value,
		&e.OverrideID,
		&e.Override,
		&e.Priority,
		&e.CreatedBy,
		&e.CreatedAt,
		&e.LastModified,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "context %s not found", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "failed to get context")
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.LastModified = e.LastModified.UTC()
	return &e, nil
}
