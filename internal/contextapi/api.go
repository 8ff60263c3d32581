// Package contextapi implements the REST API of the context store.
package contextapi

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/rafaeljc/superposition/internal/contextops"
	"github.com/rafaeljc/superposition/internal/contextstore"
	"github.com/rafaeljc/superposition/internal/httpapi"
)

// ServiceName labels this API's HTTP metrics.
const ServiceName = "context"

// maxBodyBytes caps a request body.
const maxBodyBytes = 4 << 20

// Service is the domain surface served over HTTP.
type Service interface {
	BulkOperations(ctx context.Context, ops contextops.Batch, createdBy string) (contextops.Results, error)
	Put(ctx context.Context, op contextops.Put, createdBy string) (contextops.PutResult, error)
	Move(ctx context.Context, op contextops.Move, createdBy string) (contextops.MoveResult, error)
	Delete(ctx context.Context, contextID string, deletedBy string) error
	Get(ctx context.Context, contextID string) (*contextstore.Entry, error)
}

var _ Service = (*contextstore.Service)(nil)

// API holds the router and its dependencies.
type API struct {
	Router *chi.Mux

	contexts   Service
	apiKeyHash string
	skipAuth   bool
}

// NewAPI creates the API with authentication enabled.
func NewAPI(log *slog.Logger, contexts Service, apiKeyHash string) *API {
	return NewAPIWithConfig(log, contexts, apiKeyHash, false)
}

// NewAPIWithConfig creates the API with explicit control over authentication.
// skipAuth is meant for tests and local development.
func NewAPIWithConfig(log *slog.Logger, contexts Service, apiKeyHash string, skipAuth bool) *API {
	if log == nil {
		panic("contextapi: logger cannot be nil")
	}
	if contexts == nil {
		panic("contextapi: context service cannot be nil")
	}
	if !skipAuth && apiKeyHash == "" {
		panic("contextapi: apiKeyHash cannot be empty when authentication is enabled")
	}

	api := &API{
		Router:     chi.NewRouter(),
		contexts:   contexts,
		apiKeyHash: apiKeyHash,
		skipAuth:   skipAuth,
	}
	api.configureRoutes(log)
	return api
}

func (a *API) configureRoutes(log *slog.Logger) {
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.RealIP)
	a.Router.Use(httpapi.Metrics(ServiceName))
	a.Router.Use(httpapi.RequestLogger(log))
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(render.SetContentType(render.ContentTypeJSON))

	a.Router.Route("/context", func(r chi.Router) {
		r.Use(httpapi.Authenticate(a.apiKeyHash, a.skipAuth))

		r.Put("/", a.handlePut)
		r.Put("/bulk-operations", a.handleBulkOperations)
		r.Put("/move/{id}", a.handleMove)
		r.Get("/{id}", a.handleGet)
		r.Delete("/{id}", a.handleDelete)
	})
}
