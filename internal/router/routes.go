// Package router provides HTTP routing configuration for the alert-service
// API.
package router

import (
	"net/http"

	"github.com/LucasQuiles/RestockR/internal/auth"
)

// setupRoutes configures all HTTP routes for the API. Ingestion is guarded
// by the shared service token; every client-facing route requires an
// identity token.
func (r *Router) setupRoutes() {
	identity := auth.Identity(r.jwtSecret)
	service := auth.ServiceToken(r.serviceToken)

	// Ingestion endpoint for scrapers and manual submissions
	r.mux.Handle("POST /alerts", service(http.HandlerFunc(r.handlers.Ingest)))

	// Client endpoints
	r.mux.Handle("POST /alerts/test", identity(http.HandlerFunc(r.handlers.TestAlert)))
	r.mux.Handle("GET /alerts/stream", identity(http.HandlerFunc(r.handlers.Stream)))
	r.mux.Handle("GET /alerts/recent", identity(http.HandlerFunc(r.handlers.Recent)))
	r.mux.Handle("GET /alerts/history", identity(http.HandlerFunc(r.handlers.History)))
	r.mux.Handle("GET /alerts/history/details", identity(http.HandlerFunc(r.handlers.Details)))
	r.mux.Handle("POST /alerts/{id}/reactions", identity(http.HandlerFunc(r.handlers.React)))

	// Health check endpoint
	r.mux.HandleFunc("GET /health", r.handlers.Health)
}
