// Package contextstore implements the context store: it turns a bulk batch of
// PUT/DELETE/MOVE operations into content-addressed context rows and applies
// them atomically through a Repository.
package contextstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rafaeljc/superposition/internal/apperr"
	"github.com/rafaeljc/superposition/internal/contextops"
	"github.com/rafaeljc/superposition/internal/jsonlogic"
)

// Entry is one stored context with the override attached to it.
type Entry struct {
	ID           string         `json:"id"`
	Value        map[string]any `json:"value"`
	OverrideID   string         `json:"override_id"`
	Override     map[string]any `json:"override"`
	Priority     int32          `json:"priority"`
	CreatedBy    string         `json:"created_by"`
	CreatedAt    time.Time      `json:"created_at"`
	LastModified time.Time      `json:"last_modified"`
}

// Step is a planned operation: Upsert, Remove or Retarget.
type Step interface {
	isStep()
}

// Upsert stores Entry, replacing the override of an existing context with the same id.
type Upsert struct {
	Entry Entry
}

// Remove deletes the context ContextID. It fails with NotFound if it is absent.
type Remove struct {
	ContextID string
}

// Retarget moves the override of FromID onto the context described by To.
// To carries the new id, value and priority; its override fields are unset.
type Retarget struct {
	FromID string
	To     Entry
}

func (Upsert) isStep()   {}
func (Remove) isStep()   {}
func (Retarget) isStep() {}

// Priorities weighs dimensions. A dimension without a weight counts as 1.
type Priorities map[string]int

// Of sums the weights of the dimensions of dims.
func (p Priorities) Of(dims *jsonlogic.Dimensions) int32 {
	if dims == nil {
		return 0
	}
	var total int32
	for _, name := range dims.Names() {
		weight, ok := p[name]
		if !ok {
			weight = 1
		}
		total += int32(weight)
	}
	return total
}

// Hash returns the hex SHA-256 of the canonical JSON of doc.
// encoding/json sorts map keys, so equal documents hash equally.
func Hash(doc map[string]any) (string, error) {
	canonical, err := json.Marshal(doc)
	if err != nil {
		return "", apperr.Wrap(apperr.KindBadArgument, err, "document is not valid JSON")
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Plan turns a batch into steps, rejecting the whole batch on the first
// malformed operation. createdBy is stamped on new entries.
func Plan(ops contextops.Batch, priorities Priorities, createdBy string) ([]Step, error) {
	steps := make([]Step, len(ops))
	for i, op := range ops {
		var (
			step Step
			err  error
		)
		switch o := op.(type) {
		case contextops.Put:
			step, err = planPut(o, priorities, createdBy)
		case contextops.Delete:
			step, err = planDelete(o)
		case contextops.Move:
			step, err = planMove(o, priorities, createdBy)
		default:
			err = apperr.BadArgument("unknown operation type %T", op)
		}
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		steps[i] = step
	}
	return steps, nil
}

func planPut(op contextops.Put, priorities Priorities, createdBy string) (Step, error) {
	entry, err := describeContext(op.Context, priorities, createdBy)
	if err != nil {
		return nil, err
	}

	if op.Override == nil {
		return nil, apperr.BadArgument("override is required")
	}
	entry.Override = op.Override
	if entry.OverrideID, err = Hash(op.Override); err != nil {
		return nil, err
	}
	return Upsert{Entry: entry}, nil
}

func planDelete(op contextops.Delete) (Step, error) {
	if op.ContextID == "" {
		return nil, apperr.BadArgument("context id is required")
	}
	return Remove{ContextID: op.ContextID}, nil
}

func planMove(op contextops.Move, priorities Priorities, createdBy string) (Step, error) {
	if op.ContextID == "" {
		return nil, apperr.BadArgument("context id is required")
	}
	to, err := describeContext(op.Context, priorities, createdBy)
	if err != nil {
		return nil, err
	}
	return Retarget{FromID: op.ContextID, To: to}, nil
}

// describeContext validates a context and derives its id and priority.
// The empty context is the catch-all and weighs nothing.
func describeContext(value map[string]any, priorities Priorities, createdBy string) (Entry, error) {
	if value == nil {
		return Entry{}, apperr.BadArgument("context should be map of key value pairs")
	}

	var priority int32
	if len(value) > 0 {
		dims, err := jsonlogic.Extract(value)
		if err != nil {
			return Entry{}, err
		}
		priority = priorities.Of(dims)
	}

	id, err := Hash(value)
	if err != nil {
		return Entry{}, err
	}
	return Entry{ID: id, Value: value, Priority: priority, CreatedBy: createdBy}, nil
}
