// Package router provides HTTP routing configuration for the alert-service
// API.
package router

import (
	"net/http"
	"time"

	"github.com/LucasQuiles/RestockR/internal/handlers"
	"github.com/LucasQuiles/RestockR/internal/metrics"
)

// NewServer creates a new HTTP server with the router configured.
func NewServer(port string, h *handlers.Handlers, jwtSecret, serviceToken string, collector *metrics.Collector) *http.Server {
	r := NewRouter(h, jwtSecret, serviceToken, collector)
	return &http.Server{
		Addr:         ":" + port,
		Handler:      r.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
