package experimentapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rafaeljc/superposition/internal/experiment"
	"github.com/rafaeljc/superposition/internal/httpapi"
)

// maxBodyBytes caps a create request.
const maxBodyBytes = 1 << 20

// handleCreateExperiment processes POST /experiments.
//
// The caller is recorded as created_by; the answer carries only the new id.
func (a *API) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	var req experiment.CreateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		httpapi.Render(w, r, http.StatusBadRequest, httpapi.ErrorResponse{
			Code:    httpapi.CodeInvalidJSON,
			Message: "Invalid JSON payload: " + err.Error(),
		})
		return
	}

	id, err := a.experiments.Create(r.Context(), &req, httpapi.PrincipalFromContext(r.Context()))
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	httpapi.Render(w, r, http.StatusOK, CreateExperimentResponse{ExperimentID: id})
}

// handleListExperiments processes GET /experiments.
func (a *API) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	filters, err := parseListFilters(r)
	if err != nil {
		httpapi.Render(w, r, http.StatusBadRequest, httpapi.ErrorResponse{
			Code:    httpapi.CodeInvalidQuery,
			Message: err.Error(),
		})
		return
	}

	experiments, total, err := a.experiments.List(r.Context(), filters)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	httpapi.Render(w, r, http.StatusOK, PaginatedResponse{
		Data:       experiments,
		Pagination: newPagination(total, filters.Page, filters.Count),
	})
}

// handleGetExperiment processes GET /experiments/{id}.
func (a *API) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpapi.Render(w, r, http.StatusBadRequest, httpapi.ErrorResponse{
			Code:    httpapi.CodeInvalidInput,
			Message: "experiment id must be an integer",
		})
		return
	}

	exp, err := a.experiments.Get(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.Render(w, r, http.StatusOK, exp)
}
