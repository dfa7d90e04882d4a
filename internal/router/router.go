// Package router provides HTTP routing configuration for the alert-service
// API. It sets up routes and applies middleware like CORS and metrics.
package router

import (
	"net/http"

	"github.com/LucasQuiles/RestockR/internal/handlers"
	"github.com/LucasQuiles/RestockR/internal/metrics"
)

// Router wraps the HTTP mux and provides route configuration.
type Router struct {
	mux          *http.ServeMux
	handlers     *handlers.Handlers
	jwtSecret    string
	serviceToken string
	collector    *metrics.Collector
}

// NewRouter creates a new router with all routes configured. collector may be
// nil when metrics reporting is disabled.
func NewRouter(h *handlers.Handlers, jwtSecret, serviceToken string, collector *metrics.Collector) *Router {
	r := &Router{
		mux:          http.NewServeMux(),
		handlers:     h,
		jwtSecret:    jwtSecret,
		serviceToken: serviceToken,
		collector:    collector,
	}
	r.setupRoutes()
	return r
}

// Handler returns the HTTP handler with CORS and metrics middleware applied.
func (r *Router) Handler() http.Handler {
	return corsMiddleware(metricsMiddleware(r.collector)(r.mux))
}
