package experimentapi

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rafaeljc/superposition/internal/experiment"
)

// Paging bounds of GET /experiments.
const (
	defaultPage  = 1
	defaultCount = 10
	maxCount     = 100
)

// CreateExperimentResponse is the body of a successful POST /experiments.
type CreateExperimentResponse struct {
	ExperimentID int64 `json:"experiment_id"`
}

// PaginatedResponse wraps list endpoints.
type PaginatedResponse struct {
	Data       []*experiment.Experiment `json:"data"`
	Pagination Pagination               `json:"pagination"`
}

// Pagination metadata for the caller's pager.
type Pagination struct {
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
}

func newPagination(total int64, page, count int) Pagination {
	totalPages := 0
	if total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(count)))
	}
	return Pagination{
		TotalItems:  total,
		TotalPages:  totalPages,
		CurrentPage: page,
		PageSize:    count,
	}
}

// parseListFilters reads status, from_date, to_date, page and count.
// size is accepted as an alias of count; count wins when both are present.
// Malformed values are errors; out-of-range page and count are clamped.
func parseListFilters(r *http.Request) (experiment.ListFilters, error) {
	q := r.URL.Query()
	var filters experiment.ListFilters

	if raw := q.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, err := experiment.ParseStatus(part)
			if err != nil {
				return filters, err
			}
			filters.Statuses = append(filters.Statuses, status)
		}
	}

	var err error
	if filters.From, err = parseOptionalTime(q.Get("from_date"), "from_date"); err != nil {
		return filters, err
	}
	if filters.To, err = parseOptionalTime(q.Get("to_date"), "to_date"); err != nil {
		return filters, err
	}

	page, err := parseOptionalInt(q.Get("page"), "page", defaultPage)
	if err != nil {
		return filters, err
	}
	countKey := "count"
	if !q.Has(countKey) {
		countKey = "size"
	}
	count, err := parseOptionalInt(q.Get(countKey), countKey, defaultCount)
	if err != nil {
		return filters, err
	}
	filters.Page = min(max(page, 1), math.MaxInt32)
	filters.Count = min(max(count, 1), maxCount)

	return filters, nil
}

// parseOptionalInt returns def when raw is empty and an error only when raw is malformed.
func parseOptionalInt(raw, key string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parameter '%s' must be an integer", key)
	}
	return val, nil
}

func parseOptionalTime(raw, key string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parameter '%s' must be an RFC3339 timestamp", key)
	}
	return t.UTC(), nil
}
