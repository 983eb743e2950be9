package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/kiranshivaraju/equiplens/internal/api/middleware"
	"github.com/kiranshivaraju/equiplens/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler  http.HandlerFunc
	MetricsHandler http.Handler
	EventsHandler  http.HandlerFunc

	UploadHandler         http.HandlerFunc
	ListDatasetsHandler   http.HandlerFunc
	GetDatasetHandler     http.HandlerFunc
	CorrelationHandler    http.HandlerFunc
	StatsHandler          http.HandlerFunc
	ExplainOutlierHandler http.HandlerFunc
	OptimizeHandler       http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
	WarmHandler      http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public endpoints
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	metrics := deps.MetricsHandler
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metrics)

	r.With(deps.Auth.Identify).Get("/api/v1/ws", orNotImplemented(deps.EventsHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Route("/api/v1/datasets", func(r chi.Router) {
			r.Post("/", orNotImplemented(deps.UploadHandler))
			r.Get("/", orNotImplemented(deps.ListDatasetsHandler))

			r.Route("/{datasetID}", func(r chi.Router) {
				r.Get("/", orNotImplemented(deps.GetDatasetHandler))
				r.Get("/correlation", orNotImplemented(deps.CorrelationHandler))
				r.Get("/stats", orNotImplemented(deps.StatsHandler))
				r.Post("/explain-outlier", orNotImplemented(deps.ExplainOutlierHandler))
				r.Get("/optimize", orNotImplemented(deps.OptimizeHandler))
			})
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope("admin"))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
			r.Post("/api/v1/admin/datasets/{datasetID}/warm", orNotImplemented(deps.WarmHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
