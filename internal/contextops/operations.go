// Package contextops defines the wire protocol of the context store's bulk
// endpoint: an ordered batch of PUT/DELETE/MOVE operations answered by an
// ordered batch of results where result[i] answers operation[i].
//
// Operations and results are closed sum types. Every encoder and decoder
// switches exhaustively over the variants and rejects anything else.
package contextops

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Tags used as the single key of each encoded operation or result.
const (
	TagPut    = "PUT"
	TagDelete = "DELETE"
	TagMove   = "MOVE"
)

// Operation is one of Put, Delete or Move.
type Operation interface {
	// Tag returns the wire tag of the variant.
	Tag() string
	isOperation()
}

// Put creates or replaces the override attached to Context.
type Put struct {
	Context  map[string]any `json:"context"`
	Override map[string]any `json:"override"`
}

// Delete removes the context/override pair identified by ContextID.
type Delete struct {
	ContextID string
}

// Move re-targets the override of ContextID to a new Context.
type Move struct {
	ContextID string
	Context   map[string]any
}

func (Put) Tag() string    { return TagPut }
func (Delete) Tag() string { return TagDelete }
func (Move) Tag() string   { return TagMove }

func (Put) isOperation()    {}
func (Delete) isOperation() {}
func (Move) isOperation()   {}

// moveBody is the second element of the encoded MOVE tuple.
type moveBody struct {
	Context map[string]any `json:"context"`
}

// Batch is an ordered list of operations submitted in one call.
type Batch []Operation

// MarshalJSON encodes the batch as [{"PUT": {...}}, {"DELETE": "id"}, {"MOVE": ["id", {...}]}].
func (b Batch) MarshalJSON() ([]byte, error) {
	out := make([]map[string]any, len(b))
	for i, op := range b {
		var payload any
		switch o := op.(type) {
		case Put:
			payload = o
		case Delete:
			payload = o.ContextID
		case Move:
			payload = []any{o.ContextID, moveBody{Context: o.Context}}
		default:
			return nil, fmt.Errorf("operation %d: unknown operation type %T", i, op)
		}
		out[i] = map[string]any{op.Tag(): payload}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a batch, failing on any unknown tag or malformed payload.
func (b *Batch) UnmarshalJSON(data []byte) error {
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("bulk operations must be an array of tagged objects: %w", err)
	}

	ops := make(Batch, len(raw))
	for i, entry := range raw {
		tag, payload, err := singleTag(entry)
		if err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}

		switch tag {
		case TagPut:
			var put Put
			if err := decodeNumbers(payload, &put); err != nil {
				return fmt.Errorf("operation %d: invalid PUT payload: %w", i, err)
			}
			if put.Context == nil || put.Override == nil {
				return fmt.Errorf("operation %d: PUT requires context and override objects", i)
			}
			ops[i] = put
		case TagDelete:
			var id string
			if err := json.Unmarshal(payload, &id); err != nil {
				return fmt.Errorf("operation %d: invalid DELETE payload: %w", i, err)
			}
			ops[i] = Delete{ContextID: id}
		case TagMove:
			var tuple []json.RawMessage
			if err := json.Unmarshal(payload, &tuple); err != nil || len(tuple) != 2 {
				return fmt.Errorf("operation %d: MOVE payload must be [context_id, {\"context\": {...}}]", i)
			}
			var id string
			if err := json.Unmarshal(tuple[0], &id); err != nil {
				return fmt.Errorf("operation %d: invalid MOVE context id: %w", i, err)
			}
			var body moveBody
			if err := decodeNumbers(tuple[1], &body); err != nil {
				return fmt.Errorf("operation %d: invalid MOVE body: %w", i, err)
			}
			if body.Context == nil {
				return fmt.Errorf("operation %d: MOVE requires a context object", i)
			}
			ops[i] = Move{ContextID: id, Context: body.Context}
		default:
			return fmt.Errorf("operation %d: unknown operation %q", i, tag)
		}
	}

	*b = ops
	return nil
}

// singleTag extracts the only key of a tagged object.
func singleTag(entry map[string]json.RawMessage) (string, json.RawMessage, error) {
	if len(entry) != 1 {
		return "", nil, fmt.Errorf("expected exactly one tag, got %d", len(entry))
	}
	for tag, payload := range entry {
		return tag, payload, nil
	}
	return "", nil, nil
}

// decodeNumbers decodes keeping JSON numbers as json.Number.
func decodeNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
