package experimentapi

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/superposition/internal/experiment"
)

func TestParseListFilters(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "/experiments?status=created,%20inprogress,&from_date=2024-05-01T00:00:00%2B02:00&page=3&count=25", nil)

	filters, err := parseListFilters(req)

	require.NoError(t, err)
	assert.Equal(t, []experiment.Status{experiment.StatusCreated, experiment.StatusInProgress}, filters.Statuses)
	assert.Equal(t, time.Date(2024, 4, 30, 22, 0, 0, 0, time.UTC), filters.From)
	assert.True(t, filters.To.IsZero())
	assert.Equal(t, 3, filters.Page)
	assert.Equal(t, 25, filters.Count)
	assert.Equal(t, 50, filters.Offset())
}

func TestParseListFilters_PageSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		query  string
		want   int
		errMsg string
	}{
		{name: "Should default the page size", query: "", want: defaultCount},
		{name: "Should accept size as an alias of count", query: "size=7", want: 7},
		{name: "Should prefer count over size", query: "count=4&size=9", want: 4},
		{name: "Should clamp an oversized size", query: "size=100000", want: maxCount},
		{name: "Should name the size parameter when malformed", query: "size=many", errMsg: "size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			filters, err := parseListFilters(httptest.NewRequest("GET", "/experiments?"+tt.query, nil))

			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, filters.Count)
		})
	}
}

func TestNewPagination(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Pagination{TotalItems: 0, TotalPages: 0, CurrentPage: 1, PageSize: 10}, newPagination(0, 1, 10))
	assert.Equal(t, Pagination{TotalItems: 21, TotalPages: 3, CurrentPage: 2, PageSize: 10}, newPagination(21, 2, 10))
}
