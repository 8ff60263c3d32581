package contextops

import (
	"encoding/json"
	"fmt"
)

// Result answers one Operation; it is one of PutResult, DeleteResult or MoveResult.
type Result interface {
	Tag() string
	isResult()
}

// PutResult identifies the created or updated context/override pair.
type PutResult struct {
	ContextID  string `json:"context_id"`
	OverrideID string `json:"override_id"`
	Priority   int32  `json:"priority"`
}

// DeleteResult echoes the removed context id.
type DeleteResult struct {
	ContextID string
}

// MoveResult identifies the pair after it was re-targeted.
type MoveResult struct {
	ContextID  string `json:"context_id"`
	OverrideID string `json:"override_id"`
	Priority   int32  `json:"priority"`
}

func (PutResult) Tag() string    { return TagPut }
func (DeleteResult) Tag() string { return TagDelete }
func (MoveResult) Tag() string   { return TagMove }

func (PutResult) isResult()    {}
func (DeleteResult) isResult() {}
func (MoveResult) isResult()   {}

// Results is the ordered answer to a Batch.
type Results []Result

// MarshalJSON encodes the results as [{"PUT": {...}}, {"DELETE": "id"}, {"MOVE": {...}}].
func (r Results) MarshalJSON() ([]byte, error) {
	out := make([]map[string]any, len(r))
	for i, res := range r {
		var payload any
		switch v := res.(type) {
		case PutResult:
			payload = v
		case DeleteResult:
			payload = v.ContextID
		case MoveResult:
			payload = v
		default:
			return nil, fmt.Errorf("result %d: unknown result type %T", i, res)
		}
		out[i] = map[string]any{res.Tag(): payload}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes results, failing on any unknown tag.
func (r *Results) UnmarshalJSON(data []byte) error {
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("bulk results must be an array of tagged objects: %w", err)
	}

	results := make(Results, len(raw))
	for i, entry := range raw {
		tag, payload, err := singleTag(entry)
		if err != nil {
			return fmt.Errorf("result %d: %w", i, err)
		}

		switch tag {
		case TagPut:
			var put PutResult
			if err := json.Unmarshal(payload, &put); err != nil {
				return fmt.Errorf("result %d: invalid PUT result: %w", i, err)
			}
			results[i] = put
		case TagDelete:
			var id string
			if err := json.Unmarshal(payload, &id); err != nil {
				return fmt.Errorf("result %d: invalid DELETE result: %w", i, err)
			}
			results[i] = DeleteResult{ContextID: id}
		case TagMove:
			var move MoveResult
			if err := json.Unmarshal(payload, &move); err != nil {
				return fmt.Errorf("result %d: invalid MOVE result: %w", i, err)
			}
			results[i] = move
		default:
			return fmt.Errorf("result %d: unknown result %q", i, tag)
		}
	}

	*r = results
	return nil
}

// CheckCorrespondence verifies the bulk contract: one result per operation,
// each of the same variant as the operation it answers and carrying every id
// that variant reports.
func CheckCorrespondence(ops Batch, results Results) error {
	if len(results) != len(ops) {
		return fmt.Errorf("expected %d results, got %d", len(ops), len(results))
	}
	for i := range ops {
		if ops[i].Tag() != results[i].Tag() {
			return fmt.Errorf("result %d is %s but operation %d is %s", i, results[i].Tag(), i, ops[i].Tag())
		}
		if missing := missingID(results[i]); missing != "" {
			return fmt.Errorf("result %d has no %s", i, missing)
		}
	}
	return nil
}

func missingID(res Result) string {
	switch r := res.(type) {
	case PutResult:
		return missingOf(r.ContextID, r.OverrideID)
	case MoveResult:
		return missingOf(r.ContextID, r.OverrideID)
	case DeleteResult:
		return missingOf(r.ContextID, "-")
	default:
		return ""
	}
}

func missingOf(contextID, overrideID string) string {
	switch {
	case contextID == "":
		return "context_id"
	case overrideID == "":
		return "override_id"
	default:
		return ""
	}
}
