package contextops

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResults_Decode(t *testing.T) {
	t.Parallel()

	raw := `[
		{"PUT": {"context_id": "c1", "override_id": "o1", "priority": 3}},
		{"DELETE": "c2"},
		{"MOVE": {"context_id": "c3", "override_id": "o3", "priority": 7}}
	]`

	var results Results
	require.NoError(t, json.Unmarshal([]byte(raw), &results))

	assert.Equal(t, Results{
		PutResult{ContextID: "c1", OverrideID: "o1", Priority: 3},
		DeleteResult{ContextID: "c2"},
		MoveResult{ContextID: "c3", OverrideID: "o3", Priority: 7},
	}, results)

	encoded, err := json.Marshal(results)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(encoded))
}

func TestResults_Decode_RejectsUnknownTag(t *testing.T) {
	t.Parallel()

	var results Results
	err := json.Unmarshal([]byte(`[{"UPSERT": {}}]`), &results)

	assert.ErrorContains(t, err, `unknown result "UPSERT"`)
}

func TestCheckCorrespondence(t *testing.T) {
	t.Parallel()

	ops := Batch{Put{}, Delete{ContextID: "x"}}
	put := PutResult{ContextID: "c", OverrideID: "o", Priority: 1}

	tests := []struct {
		name    string
		results Results
		errMsg  string
	}{
		{name: "Should accept positional matches", results: Results{put, DeleteResult{ContextID: "x"}}},
		{name: "Should reject fewer results", results: Results{put}, errMsg: "expected 2 results, got 1"},
		{name: "Should reject more results", results: Results{put, DeleteResult{}, put}, errMsg: "expected 2 results, got 3"},
		{name: "Should reject swapped variants", results: Results{DeleteResult{}, put}, errMsg: "result 0 is DELETE but operation 0 is PUT"},
		{name: "Should reject a PUT result without context id", results: Results{PutResult{OverrideID: "o"}, DeleteResult{ContextID: "x"}}, errMsg: "result 0 has no context_id"},
		{name: "Should reject a PUT result without override id", results: Results{PutResult{ContextID: "c"}, DeleteResult{ContextID: "x"}}, errMsg: "result 0 has no override_id"},
		{name: "Should reject an empty DELETE result", results: Results{put, DeleteResult{}}, errMsg: "result 1 has no context_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckCorrespondence(ops, tt.results)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.errMsg)
		})
	}
}

func TestOrphanJob_DeleteBatch(t *testing.T) {
	t.Parallel()

	job := OrphanJob{ExperimentID: 9, ContextIDs: []string{"c1", "c2"}}

	assert.Equal(t, Batch{Delete{ContextID: "c1"}, Delete{ContextID: "c2"}}, job.DeleteBatch())
	assert.Empty(t, DeleteAll(nil))
}
