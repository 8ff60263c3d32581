package contextapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rafaeljc/superposition/internal/contextops"
	"github.com/rafaeljc/superposition/internal/httpapi"
)

// moveRequest is the body of PUT /context/move/{id}.
type moveRequest struct {
	Context map[string]any `json:"context"`
}

// handleBulkOperations applies an ordered batch all-or-nothing and answers
// the ordered results.
func (a *API) handleBulkOperations(w http.ResponseWriter, r *http.Request) {
	var ops contextops.Batch
	if !decodeBody(w, r, &ops) {
		return
	}

	results, err := a.contexts.BulkOperations(r.Context(), ops, httpapi.PrincipalFromContext(r.Context()))
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.Render(w, r, http.StatusOK, results)
}

func (a *API) handlePut(w http.ResponseWriter, r *http.Request) {
	var op contextops.Put
	if !decodeBody(w, r, &op) {
		return
	}

	res, err := a.contexts.Put(r.Context(), op, httpapi.PrincipalFromContext(r.Context()))
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.Render(w, r, http.StatusOK, res)
}

func (a *API) handleMove(w http.ResponseWriter, r *http.Request) {
	var body moveRequest
	if !decodeBody(w, r, &body) {
		return
	}

	op := contextops.Move{ContextID: chi.URLParam(r, "id"), Context: body.Context}
	res, err := a.contexts.Move(r.Context(), op, httpapi.PrincipalFromContext(r.Context()))
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.Render(w, r, http.StatusOK, res)
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	entry, err := a.contexts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.Render(w, r, http.StatusOK, entry)
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.contexts.Delete(r.Context(), chi.URLParam(r, "id"), httpapi.PrincipalFromContext(r.Context())); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeBody decodes a JSON body keeping numbers exact. On failure it writes
// a 400 and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		httpapi.Render(w, r, http.StatusBadRequest, httpapi.ErrorResponse{
			Code:    httpapi.CodeInvalidJSON,
			Message: "Invalid JSON payload: " + err.Error(),
		})
		return false
	}
	return true
}
