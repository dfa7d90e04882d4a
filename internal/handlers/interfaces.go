// Package handlers provides HTTP handlers for the alert-service API.
package handlers

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LucasQuiles/RestockR/internal/alerts"
	"github.com/LucasQuiles/RestockR/internal/database"
)

// Repository defines the interface for durable-store operations.
// This allows handlers to be tested without a real database.
type Repository interface {
	// CreateAlert persists an alert; created is false when the canonical ID
	// already existed (idempotent replay).
	CreateAlert(ctx context.Context, a *alerts.Alert) (created bool, err error)

	// RecentByStore returns per-store groups of the most recent alerts.
	RecentByStore(ctx context.Context, perStore int) (map[string][]alerts.Alert, error)

	// History aggregates eligible alerts into (UTC date, hour) buckets.
	History(ctx context.Context, f database.HistoryFilter) ([]database.HistoryBucket, error)

	// Details returns the raw alerts in a window, oldest first.
	Details(ctx context.Context, f database.DetailFilter) ([]alerts.Alert, error)

	// RecordReaction applies a first-write-wins reaction for a user.
	RecordReaction(ctx context.Context, alertID, userID, answer string) (counted bool, err error)

	// GetCatalogEntries bulk-fetches catalog link configuration by SKU set.
	GetCatalogEntries(ctx context.Context, skus []string) (map[string]*alerts.CatalogEntry, error)

	// Ping verifies the store connection is alive.
	Ping(ctx context.Context) error
}

// Broadcaster defines the interface for the real-time fanout channel.
type Broadcaster interface {
	// Broadcast delivers an event to every connected subscriber.
	Broadcast(event string, data any)

	// SendToPrincipal delivers an event only to one principal's subscribers.
	SendToPrincipal(principalID, event string, data any)

	// ServeConn attaches a WebSocket connection as a subscriber and blocks
	// until it disconnects.
	ServeConn(principalID string, conn *websocket.Conn)
}

// AlertPublisher defines the interface for the Kafka egress used by
// downstream collaborators. May be absent; egress is best effort.
type AlertPublisher interface {
	// Publish sends an ingested alert to the restock.created topic.
	Publish(ctx context.Context, alert *alerts.Alert) error

	// Close gracefully closes the publisher and releases resources.
	Close() error
}

// MetricsRecorder defines the interface for recording metrics.
// This uses the null object pattern - a no-op implementation avoids nil checks.
type MetricsRecorder interface {
	RecordReceived()
	RecordProcessed(latency time.Duration)
	RecordPublished()
	RecordError()
	IncrementCustom(name string)
}

// NoOpMetrics is a no-op implementation of MetricsRecorder.
// Use this when metrics collection is not needed, avoiding nil checks.
type NoOpMetrics struct{}

// Ensure NoOpMetrics implements MetricsRecorder.
var _ MetricsRecorder = (*NoOpMetrics)(nil)

func (NoOpMetrics) RecordReceived()                 {}
func (NoOpMetrics) RecordProcessed(_ time.Duration) {}
func (NoOpMetrics) RecordPublished()                {}
func (NoOpMetrics) RecordError()                    {}
func (NoOpMetrics) IncrementCustom(_ string)        {}
