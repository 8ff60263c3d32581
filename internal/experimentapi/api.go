// Package experimentapi implements the REST API of the experimentation service.
package experimentapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/rafaeljc/superposition/internal/experiment"
	"github.com/rafaeljc/superposition/internal/httpapi"
)

// ServiceName labels this API's HTTP metrics.
const ServiceName = "experiments"

// Service is the orchestrator surface served over HTTP.
type Service interface {
	Create(ctx context.Context, req *experiment.CreateRequest, createdBy string) (int64, error)
	Get(ctx context.Context, id int64) (*experiment.Experiment, error)
	List(ctx context.Context, filters experiment.ListFilters) ([]*experiment.Experiment, int64, error)
}

var _ Service = (*experiment.Service)(nil)

// API holds the router and its dependencies.
type API struct {
	// Router is the chi multiplexer serving every route.
	Router *chi.Mux

	experiments Service

	// apiKeyHash is the SHA-256 hex digest of the accepted API key.
	apiKeyHash string

	// skipAuth disables authentication (tests and local development only).
	skipAuth bool
}

// NewAPI creates the API with authentication enabled.
// It panics if apiKeyHash is empty.
func NewAPI(log *slog.Logger, experiments Service, apiKeyHash string) *API {
	return NewAPIWithConfig(log, experiments, apiKeyHash, false)
}

// NewAPIWithConfig creates the API with explicit control over authentication.
//
// Panics if:
//   - log or experiments are nil
//   - apiKeyHash is empty when skipAuth is false
func NewAPIWithConfig(log *slog.Logger, experiments Service, apiKeyHash string, skipAuth bool) *API {
	if log == nil {
		panic("experimentapi: logger cannot be nil")
	}
	if experiments == nil {
		panic("experimentapi: experiment service cannot be nil")
	}
	if !skipAuth && apiKeyHash == "" {
		panic("experimentapi: apiKeyHash cannot be empty when authentication is enabled")
	}

	api := &API{
		Router:      chi.NewRouter(),
		experiments: experiments,
		apiKeyHash:  apiKeyHash,
		skipAuth:    skipAuth,
	}
	api.configureRoutes(log)
	return api
}

// configureRoutes registers the middleware stack and the endpoints.
func (a *API) configureRoutes(log *slog.Logger) {
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.RealIP)
	a.Router.Use(httpapi.Metrics(ServiceName))
	a.Router.Use(httpapi.RequestLogger(log))
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(render.SetContentType(render.ContentTypeJSON))

	a.Router.Get("/health", a.handleHealthCheck)

	a.Router.Route("/experiments", func(r chi.Router) {
		r.Use(httpapi.Authenticate(a.apiKeyHash, a.skipAuth))

		r.Post("/", a.handleCreateExperiment)
		r.Get("/", a.handleListExperiments)
		r.Get("/{id}", a.handleGetExperiment)
	})
}

// handleHealthCheck only reports that the process serves HTTP; dependency
// checks live on the observability server's readiness endpoint.
func (a *API) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	httpapi.Render(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
