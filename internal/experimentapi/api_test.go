package experimentapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/superposition/internal/apperr"
	"github.com/rafaeljc/superposition/internal/config"
	"github.com/rafaeljc/superposition/internal/contextclient"
	"github.com/rafaeljc/superposition/internal/contextops"
	"github.com/rafaeljc/superposition/internal/experiment"
	"github.com/rafaeljc/superposition/internal/experimentapi"
	"github.com/rafaeljc/superposition/internal/httpapi"
)

type fixedIDs struct{ id int64 }

func (f fixedIDs) Generate(context.Context) (int64, error) { return f.id, nil }

type memoryRepo struct {
	mu   sync.Mutex
	rows map[int64]*experiment.Experiment
}

func (m *memoryRepo) Create(_ context.Context, exp *experiment.Experiment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[exp.ID] = exp
	return nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*experiment.Experiment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.rows[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "experiment %d not found", id)
	}
	return exp, nil
}

func (m *memoryRepo) List(_ context.Context, f experiment.ListFilters) ([]*experiment.Experiment, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*experiment.Experiment{}
	for _, exp := range m.rows {
		out = append(out, exp)
	}
	return out, int64(len(out)), nil
}

func (m *memoryRepo) ListActive(context.Context) ([]*experiment.Experiment, error) {
	out, _, err := m.List(context.Background(), experiment.ListFilters{})
	return out, err
}

type discardQueue struct{}

func (discardQueue) Enqueue(context.Context, contextops.OrphanJob) error { return nil }

// contextStoreStub answers every PUT with a PutResult and records the last body.
type contextStoreStub struct {
	mu       sync.Mutex
	lastBody []byte
	status   int
}

func (s *contextStoreStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.lastBody = body
	status := s.status
	s.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}

	var ops contextops.Batch
	if err := json.Unmarshal(body, &ops); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	results := make(contextops.Results, len(ops))
	for i := range ops {
		results[i] = contextops.PutResult{ContextID: fmt.Sprintf("ctx-%d", i), OverrideID: "ovr", Priority: 1}
	}
	_ = json.NewEncoder(w).Encode(results)
}

func (s *contextStoreStub) failWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

type harness struct {
	api   *experimentapi.API
	store *contextStoreStub
	repo  *memoryRepo
}

func newHarness(t *testing.T, id int64) *harness {
	t.Helper()

	stub := &contextStoreStub{}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := contextclient.New(&config.ContextStoreConfig{URL: srv.URL, Timeout: 2 * time.Second, MaxResponseBytes: 1 << 20})
	repo := &memoryRepo{rows: map[int64]*experiment.Experiment{}}
	svc := experiment.NewService(log, fixedIDs{id: id}, client, repo, discardQueue{})

	return &harness{
		api:   experimentapi.NewAPIWithConfig(log, svc, "", true),
		store: stub,
		repo:  repo,
	}
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.api.Router.ServeHTTP(rr, req)
	return rr
}

const exp1Body = `{
	"name": "exp1",
	"override_keys": ["a"],
	"traffic_percentage": 0,
	"context": {"==": [{"var": "city"}, "NY"]},
	"variants": [
		{"id": "ctrl", "variant_type": "CONTROL", "overrides": {"a": 1}},
		{"id": "v1", "variant_type": "EXPERIMENTAL", "overrides": {"a": 2}}
	]
}`

func TestCreateExperiment_EndToEnd(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 7)

	rr := h.do(http.MethodPost, "/experiments", exp1Body)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"experiment_id": 7}`, rr.Body.String())

	assert.JSONEq(t, `[
		{"PUT": {"context": {"and": [{"==": [{"var": "city"}, "NY"]}, {"==": [{"var": "variant_id"}, "7-ctrl"]}]}, "override": {"a": 1}}},
		{"PUT": {"context": {"and": [{"==": [{"var": "city"}, "NY"]}, {"==": [{"var": "variant_id"}, "7-v1"]}]}, "override": {"a": 2}}}
	]`, string(h.store.lastBody))

	stored := h.repo.rows[7]
	require.NotNil(t, stored)
	assert.Equal(t, httpapi.AnonymousUser, stored.CreatedBy)
	assert.Equal(t, "ctx-0", stored.Variants[0].ContextID)
	assert.Equal(t, "7-v1", stored.Variants[1].ID)

	rr = h.do(http.MethodGet, "/experiments/7", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var got experiment.Experiment
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "exp1", got.Name)
	assert.Equal(t, experiment.StatusCreated, got.Status)
}

func TestCreateExperiment_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		body        string
		storeStatus int
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:       "Should reject broken JSON",
			body:       `{"name":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   httpapi.CodeInvalidJSON,
		},
		{
			name: "Should reject two control variants",
			body: `{"name":"exp1","override_keys":["a"],"context":{},"variants":[
				{"id":"c1","variant_type":"CONTROL","overrides":{"a":1}},
				{"id":"c2","variant_type":"CONTROL","overrides":{"a":2}}]}`,
			wantStatus:  http.StatusBadRequest,
			wantCode:    httpapi.CodeValidation,
			wantMessage: "experiment should have exactly 1 control variant, got 2",
		},
		{
			name: "Should reject an array context",
			body: `{"name":"exp1","override_keys":["a"],"context":[],"variants":[
				{"id":"c","variant_type":"CONTROL","overrides":{"a":1}},
				{"id":"v","variant_type":"EXPERIMENTAL","overrides":{"a":2}}]}`,
			wantStatus:  http.StatusBadRequest,
			wantCode:    httpapi.CodeInvalidInput,
			wantMessage: "context should be map of key value pairs",
		},
		{
			name:        "Should hide context store failures",
			body:        exp1Body,
			storeStatus: http.StatusServiceUnavailable,
			wantStatus:  http.StatusInternalServerError,
			wantCode:    httpapi.CodeInternal,
			wantMessage: "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, 1)
			h.store.failWith(tt.storeStatus)

			rr := h.do(http.MethodPost, "/experiments", tt.body)

			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			var body httpapi.ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, body.Message)
			}
			assert.Empty(t, h.repo.rows)
		})
	}
}

func TestGetExperiment_Errors(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/experiments/abc", "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/experiments/42", "").Code)
}

func TestListExperiments(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 3)
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/experiments", exp1Body).Code)

	t.Run("Should paginate with defaults", func(t *testing.T) {
		rr := h.do(http.MethodGet, "/experiments", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var resp experimentapi.PaginatedResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Len(t, resp.Data, 1)
		assert.Equal(t, experimentapi.Pagination{TotalItems: 1, TotalPages: 1, CurrentPage: 1, PageSize: 10}, resp.Pagination)
	})

	t.Run("Should clamp page and count", func(t *testing.T) {
		rr := h.do(http.MethodGet, "/experiments?page=0&count=1000", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var resp experimentapi.PaginatedResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Pagination.CurrentPage)
		assert.Equal(t, 100, resp.Pagination.PageSize)
	})

	t.Run("Should reject malformed filters", func(t *testing.T) {
		for _, query := range []string{
			"status=ARCHIVED",
			"from_date=yesterday",
			"count=ten",
		} {
			rr := h.do(http.MethodGet, "/experiments?"+query, "")
			assert.Equal(t, http.StatusBadRequest, rr.Code, query)
		}
	})

	t.Run("Should reject an inverted date range", func(t *testing.T) {
		rr := h.do(http.MethodGet, "/experiments?from_date=2024-06-01T00:00:00Z&to_date=2024-05-01T00:00:00Z", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1)
	rr := h.do(http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}
