// Package handlers provides HTTP handlers for the alert-service API.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/LucasQuiles/RestockR/internal/alerts"
	"github.com/LucasQuiles/RestockR/internal/auth"
	"github.com/LucasQuiles/RestockR/internal/hub"
)

const (
	// storeTimeout bounds every durable-store call issued from a handler.
	storeTimeout = 5 * time.Second

	// persistAttempts bounds the retry around the persistence write.
	persistAttempts = 3
	// persistBackoff is the pause between persistence attempts.
	persistBackoff = 200 * time.Millisecond
)

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	repo      Repository
	fanout    Broadcaster
	publisher AlertPublisher // nil when Kafka egress is disabled
	metrics   MetricsRecorder
}

// NewHandlers creates handlers with no-op metrics. publisher may be nil.
func NewHandlers(repo Repository, fanout Broadcaster, publisher AlertPublisher) *Handlers {
	return NewHandlersWithMetrics(repo, fanout, publisher, nil)
}

// NewHandlersWithMetrics creates handlers with the provided metrics recorder.
// If m is nil, a no-op implementation is used.
func NewHandlersWithMetrics(repo Repository, fanout Broadcaster, publisher AlertPublisher, m MetricsRecorder) *Handlers {
	if m == nil {
		m = &NoOpMetrics{}
	}
	return &Handlers{
		repo:      repo,
		fanout:    fanout,
		publisher: publisher,
		metrics:   m,
	}
}

// IngestRequest represents an inbound restock event from a scraper or manual
// submission.
type IngestRequest struct {
	Store       string `json:"store"`
	SKU         string `json:"sku"`
	Product     string `json:"product"`
	Price       string `json:"price"`
	URL         string `json:"url"`
	OriginalURL string `json:"originalUrl"`
	Image       string `json:"image"`
	Timestamp   string `json:"timestamp"`
	Source      string `json:"source"`
	Type        string `json:"type"`
}

// Ingest validates and normalizes an inbound restock event, persists it, and
// fans it out. Persistence happens before fanout: an event is only ever
// delivered after the durable write succeeded, and a duplicate (same SKU and
// normalized timestamp) is acknowledged without re-delivery.
func (h *Handlers) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.SKU == "" {
		http.Error(w, "sku is required", http.StatusBadRequest)
		return
	}
	if req.Store == "" {
		http.Error(w, "store is required", http.StatusBadRequest)
		return
	}

	timestamp := time.Now()
	if req.Timestamp != "" {
		parsed, err := alerts.ParseEventTimestamp(req.Timestamp)
		if err != nil {
			http.Error(w, "Invalid timestamp", http.StatusBadRequest)
			return
		}
		timestamp = parsed
	}
	timestamp = alerts.NormalizeTimestamp(timestamp)

	product := req.Product
	if product == "" {
		product = alerts.DefaultProduct
	}
	source := req.Source
	if source == "" {
		source = alerts.DefaultSource
	}

	alert := &alerts.Alert{
		ID:           alerts.AlertID(req.SKU, timestamp),
		Store:        req.Store,
		SKU:          req.SKU,
		Product:      product,
		Price:        req.Price,
		URL:          req.URL,
		OriginalURL:  req.OriginalURL,
		Image:        req.Image,
		Timestamp:    timestamp,
		Source:       source,
		Type:         strings.ToLower(req.Type),
		ReactedUsers: []string{},
	}

	ctx, cancel := contextWithStoreTimeout(r)
	defer cancel()

	created, err := h.persistWithRetry(ctx, alert)
	if err != nil {
		slog.Error("Failed to store alert", "alert_id", alert.ID, "error", err)
		h.metrics.RecordError()
		http.Error(w, "Failed to store alert", http.StatusInternalServerError)
		return
	}

	if created {
		h.fanout.Broadcast(hub.EventRestock, alert)
		h.metrics.RecordPublished()
		if h.publisher != nil {
			go h.publishEgress(alert)
		}
	} else {
		slog.Info("Duplicate alert ignored", "alert_id", alert.ID)
		h.metrics.IncrementCustom("alerts_deduplicated")
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"broadcasted": created,
	})
}

// persistWithRetry wraps the durable write with a small bounded retry for
// transient store failures. Fanout is never retried: the channel is best
// effort and a retry would duplicate delivery.
func (h *Handlers) persistWithRetry(ctx context.Context, alert *alerts.Alert) (bool, error) {
	var lastErr error
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		created, err := h.repo.CreateAlert(ctx, alert)
		if err == nil {
			return created, nil
		}
		lastErr = err
		slog.Warn("Alert persistence attempt failed",
			"alert_id", alert.ID,
			"attempt", attempt,
			"error", err,
		)
		if attempt == persistAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return false, lastErr
		case <-time.After(persistBackoff):
		}
	}
	return false, lastErr
}

// publishEgress sends an alert to the Kafka topic on a detached context.
// Failures are logged only: the egress is best effort and the ingestion has
// already been acknowledged.
func (h *Handlers) publishEgress(alert *alerts.Alert) {
	ctx, cancel := detachedContext()
	defer cancel()
	if err := h.publisher.Publish(ctx, alert); err != nil {
		slog.Warn("Kafka egress failed", "alert_id", alert.ID, "error", err)
	}
}

// TestAlert delivers a synthetic alert only to the calling principal's
// subscribers so a client can verify its real-time connection. Nothing is
// persisted or broadcast.
func (h *Handlers) TestAlert(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok || claims.PrincipalID() == "" {
		http.Error(w, "userId missing from token", http.StatusBadRequest)
		return
	}

	alert := newTestAlert()
	h.fanout.SendToPrincipal(claims.PrincipalID(), hub.EventRestock, alert)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"testData": alert,
	})
}

// Recent returns the bounded, globally time-ordered merge of the latest
// alerts per store, with URLs resolved for the caller's tenant.
func (h *Handlers) Recent(w http.ResponseWriter, r *http.Request) {
	tenant := auth.TenantContext(r)

	ctx, cancel := contextWithStoreTimeout(r)
	defer cancel()

	result, err := h.buildRecentFeed(ctx, tenant)
	if err != nil {
		slog.Error("Failed to load recent alerts", "error", err)
		h.metrics.RecordError()
		http.Error(w, "Failed to fetch alerts", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// History returns time-bucketed counts (or reaction sums) over the rolling
// eligibility window.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	filter := historyFilterFromQuery(r)

	ctx, cancel := contextWithStoreTimeout(r)
	defer cancel()

	buckets, err := h.repo.History(ctx, filter)
	if err != nil {
		slog.Error("Failed to fetch restock history", "error", err)
		h.metrics.RecordError()
		http.Error(w, "Failed to fetch restock history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, buckets)
}

// Details returns the raw alerts inside one window, oldest first, for
// drill-down from a history bucket.
func (h *Handlers) Details(w http.ResponseWriter, r *http.Request) {
	filter, err := detailFilterFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := contextWithStoreTimeout(r)
	defer cancel()

	results, err := h.repo.Details(ctx, filter)
	if err != nil {
		slog.Error("Failed to fetch restock details", "error", err)
		h.metrics.RecordError()
		http.Error(w, "Failed to fetch restock details", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, results)
}

// ReactionRequest is a yes/no reaction to an alert.
type ReactionRequest struct {
	Answer string `json:"answer"`
}

// React records a reaction for the calling principal. First write wins: a
// duplicate reaction by the same user is acknowledged but not counted.
func (h *Handlers) React(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok || claims.PrincipalID() == "" {
		http.Error(w, "userId missing from token", http.StatusBadRequest)
		return
	}

	alertID := r.PathValue("id")
	if alertID == "" {
		http.Error(w, "alert id is required", http.StatusBadRequest)
		return
	}

	var req ReactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Answer != "yes" && req.Answer != "no" {
		http.Error(w, "answer must be yes or no", http.StatusBadRequest)
		return
	}

	ctx, cancel := contextWithStoreTimeout(r)
	defer cancel()

	counted, err := h.repo.RecordReaction(ctx, alertID, claims.PrincipalID(), req.Answer)
	if err != nil {
		if isNotFound(err) {
			http.Error(w, "Alert not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to record reaction", "alert_id", alertID, "error", err)
		h.metrics.RecordError()
		http.Error(w, "Failed to record reaction", http.StatusInternalServerError)
		return
	}

	if counted {
		h.metrics.IncrementCustom("reactions_recorded")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"counted": counted,
	})
}

// Health reports service liveness and store reachability.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithStoreTimeout(r)
	defer cancel()

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Stream upgrades the connection to WebSocket and attaches it to the fanout
// hub under the caller's principal.
func (h *Handlers) Stream(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok || claims.PrincipalID() == "" {
		http.Error(w, "userId missing from token", http.StatusBadRequest)
		return
	}

	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket", "error", err)
		return
	}

	h.fanout.ServeConn(claims.PrincipalID(), conn)
}
