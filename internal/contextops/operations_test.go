package contextops

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatch_MarshalJSON(t *testing.T) {
	t.Parallel()

	batch := Batch{
		Put{
			Context:  map[string]any{"==": []any{map[string]any{"var": "city"}, "NY"}},
			Override: map[string]any{"a": 1},
		},
		Delete{ContextID: "ctx-1"},
		Move{ContextID: "ctx-2", Context: map[string]any{"==": []any{map[string]any{"var": "city"}, "SF"}}},
	}

	got, err := json.Marshal(batch)

	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"PUT": {"context": {"==": [{"var": "city"}, "NY"]}, "override": {"a": 1}}},
		{"DELETE": "ctx-1"},
		{"MOVE": ["ctx-2", {"context": {"==": [{"var": "city"}, "SF"]}}]}
	]`, string(got))
}

func TestBatch_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	raw := `[
		{"PUT": {"context": {"==": [{"var": "city"}, "NY"]}, "override": {"a": 1.50}}},
		{"DELETE": "ctx-1"},
		{"MOVE": ["ctx-2", {"context": {"==": [{"var": "city"}, "SF"]}}]}
	]`

	var batch Batch
	require.NoError(t, json.Unmarshal([]byte(raw), &batch))
	require.Len(t, batch, 3)

	put, ok := batch[0].(Put)
	require.True(t, ok, "expected Put, got %T", batch[0])
	assert.Equal(t, json.Number("1.50"), put.Override["a"], "numbers must round-trip verbatim")

	assert.Equal(t, Delete{ContextID: "ctx-1"}, batch[1])

	move, ok := batch[2].(Move)
	require.True(t, ok, "expected Move, got %T", batch[2])
	assert.Equal(t, "ctx-2", move.ContextID)
	assert.Contains(t, move.Context, "==")
}

func TestBatch_UnmarshalJSON_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raw    string
		errMsg string
	}{
		{name: "Not an array", raw: `{"PUT": {}}`, errMsg: "array of tagged objects"},
		{name: "Unknown tag", raw: `[{"PATCH": {}}]`, errMsg: `unknown operation "PATCH"`},
		{name: "Two tags in one entry", raw: `[{"PUT": {}, "DELETE": "x"}]`, errMsg: "exactly one tag"},
		{name: "PUT without override", raw: `[{"PUT": {"context": {}}}]`, errMsg: "requires context and override"},
		{name: "DELETE with a number", raw: `[{"DELETE": 7}]`, errMsg: "invalid DELETE payload"},
		{name: "MOVE with one element", raw: `[{"MOVE": ["ctx"]}]`, errMsg: "MOVE payload must be"},
		{name: "MOVE without context", raw: `[{"MOVE": ["ctx", {}]}]`, errMsg: "requires a context"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var batch Batch
			err := json.Unmarshal([]byte(tt.raw), &batch)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

type rogueOperation struct{ Put }

func (rogueOperation) Tag() string { return "ROGUE" }

func TestBatch_MarshalJSON_RejectsForeignVariants(t *testing.T) {
	t.Parallel()

	_, err := json.Marshal(Batch{rogueOperation{}})

	assert.ErrorContains(t, err, "unknown operation type")
}
