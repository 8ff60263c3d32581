package jsonlogic

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/superposition/internal/apperr"
)

func mustParse(t *testing.T, raw string) any {
	t.Helper()
	v, err := Parse([]byte(raw))
	require.NoError(t, err, "test setup failed: invalid JSON fixture")
	return v
}

func TestExtract_ValidContexts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		context   string
		wantNames []string
		wantJSON  string
	}{
		{
			name:      "Should extract a single root condition",
			context:   `{"==": [{"var": "city"}, "NY"]}`,
			wantNames: []string{"city"},
			wantJSON:  `{"city":"NY"}`,
		},
		{
			name:      "Should extract every condition of an and-list in order",
			context:   `{"and": [{"==": [{"var": "tier"}, "gold"]}, {"==": [{"var": "city"}, "NY"]}]}`,
			wantNames: []string{"tier", "city"},
			wantJSON:  `{"tier":"gold","city":"NY"}`,
		},
		{
			name:      "Should accept the variable in the second position",
			context:   `{"==": ["NY", {"var": "city"}]}`,
			wantNames: []string{"city"},
			wantJSON:  `{"city":"NY"}`,
		},
		{
			name:      "Should visit multiple operators of one condition in sorted order",
			context:   `{"==": [{"var": "city"}, "NY"], "<=": [{"var": "age"}, 30]}`,
			wantNames: []string{"age", "city"},
			wantJSON:  `{"age":30,"city":"NY"}`,
		},
		{
			name:      "Should let a repeated name take the later value at its first position",
			context:   `{"and": [{"==": [{"var": "city"}, "NY"]}, {"==": [{"var": "os"}, "ios"]}, {"==": [{"var": "city"}, "SF"]}]}`,
			wantNames: []string{"city", "os"},
			wantJSON:  `{"city":"SF","os":"ios"}`,
		},
		{
			name:      "Should keep a literal null as the value",
			context:   `{"==": [{"var": "region"}, null]}`,
			wantNames: []string{"region"},
			wantJSON:  `{"region":null}`,
		},
		{
			name:      "Should return no dimensions for an empty and-list",
			context:   `{"and": []}`,
			wantNames: []string{},
			wantJSON:  `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Act
			dims, err := Extract(mustParse(t, tt.context))

			// Assert
			require.NoError(t, err)
			assert.Equal(t, tt.wantNames, dims.Names())

			got, err := json.Marshal(dims)
			require.NoError(t, err)
			assert.Equal(t, tt.wantJSON, string(got), "ordered JSON must follow discovery order")
		})
	}
}

func TestExtract_BadArgument(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		context string
		errMsg  string
	}{
		{name: "Should reject an array root", context: `[{"==": [{"var": "city"}, "NY"]}]`, errMsg: "not a valid JSON object"},
		{name: "Should reject a scalar root", context: `"city"`, errMsg: "not a valid JSON object"},
		{name: "Should reject a null root", context: `null`, errMsg: "not a valid JSON object"},
		{name: "Should reject a non-array and", context: `{"and": {"==": [{"var": "city"}, "NY"]}}`, errMsg: "conditions as an array"},
		{name: "Should reject a non-object condition", context: `{"and": ["city"]}`, errMsg: "condition as an object"},
		{name: "Should reject non-array operands", context: `{"==": "city"}`, errMsg: "as an array"},
		{name: "Should reject a single operand", context: `{"==": [{"var": "city"}]}`, errMsg: "exactly 2 operands"},
		{name: "Should reject three operands", context: `{"==": [{"var": "city"}, "NY", "SF"]}`, errMsg: "exactly 2 operands"},
		{name: "Should reject operands without a variable", context: `{"==": ["NY", "SF"]}`, errMsg: "variable name from operands"},
		{name: "Should reject two variable operands", context: `{"==": [{"var": "a"}, {"var": "b"}]}`, errMsg: "both operands"},
		{name: "Should reject a non-string variable name", context: `{"==": [{"var": 7}, "NY"]}`, errMsg: "variable name as string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Extract(mustParse(t, tt.context))

			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrBadArgument)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestExtract_CountMatchesConditionsRegardlessOfOperandOrder(t *testing.T) {
	t.Parallel()

	for n := 1; n <= 20; n++ {
		conditions := make([]string, n)
		for i := range n {
			if i%2 == 0 {
				conditions[i] = fmt.Sprintf(`{"==": [{"var": "dim_%d"}, %d]}`, i, i)
			} else {
				conditions[i] = fmt.Sprintf(`{"==": [%d, {"var": "dim_%d"}]}`, i, i)
			}
		}
		raw := `{"and": [` + strings.Join(conditions, ",") + `]}`

		dims, err := Extract(mustParse(t, raw))

		require.NoError(t, err, "n=%d", n)
		assert.Equal(t, n, dims.Len(), "n=%d", n)
		for i := range n {
			v, ok := dims.Get(fmt.Sprintf("dim_%d", i))
			require.True(t, ok)
			assert.Equal(t, json.Number(fmt.Sprint(i)), v)
		}
	}
}

func TestParse_InvalidJSON(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{"==": [`))

	assert.ErrorIs(t, err, apperr.ErrBadArgument)
}
