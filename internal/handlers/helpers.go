package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/LucasQuiles/RestockR/internal/alerts"
	"github.com/LucasQuiles/RestockR/internal/database"
	"github.com/LucasQuiles/RestockR/internal/feed"
)

var streamUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// writeJSON serializes a response body with the standard headers.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// contextWithStoreTimeout derives the bounded context used for store calls.
func contextWithStoreTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), storeTimeout)
}

// detachedContext returns a context independent of the originating request,
// for best-effort work that outlives the response.
func detachedContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeTimeout*2)
}

func isNotFound(err error) bool {
	return errors.Is(err, database.ErrAlertNotFound)
}

// buildRecentFeed runs the three feed phases: per-store selection (store),
// global merge (in memory), and tenant link enrichment. A catalog failure is
// non-fatal; the feed is served unenriched.
func (h *Handlers) buildRecentFeed(ctx context.Context, tenant alerts.TenantContext) ([]alerts.Alert, error) {
	groups, err := h.repo.RecentByStore(ctx, feed.PerStoreLimit)
	if err != nil {
		return nil, err
	}

	merged := feed.Merge(groups)

	entries, err := h.repo.GetCatalogEntries(ctx, feed.DistinctSKUs(merged))
	if err != nil {
		slog.Warn("Catalog lookup failed, serving feed without resolved links", "error", err)
		return merged, nil
	}
	return feed.Enrich(merged, entries, tenant.TenantID), nil
}

// historyFilterFromQuery maps query parameters onto the history predicates.
func historyFilterFromQuery(r *http.Request) database.HistoryFilter {
	q := r.URL.Query()
	return database.HistoryFilter{
		SKU:         q.Get("sku"),
		Retailer:    q.Get("retailer"),
		ProductName: q.Get("productName"),
		Type:        q.Get("type"),
		Mode:        q.Get("mode"),
	}
}

// detailFilterFromQuery resolves the detail window and predicates. An
// explicit [startUtc, endUtc) range takes precedence; otherwise date+hour
// select the matching one-hour history bucket. Missing both is a validation
// error.
func detailFilterFromQuery(r *http.Request) (database.DetailFilter, error) {
	q := r.URL.Query()
	f := database.DetailFilter{
		SKU:      q.Get("sku"),
		Retailer: q.Get("retailer"),
		Type:     q.Get("type"),
		Mode:     q.Get("mode"),
	}

	startUTC, endUTC := q.Get("startUtc"), q.Get("endUtc")
	if startUTC != "" && endUTC != "" {
		start, err := time.Parse(time.RFC3339, startUTC)
		if err != nil {
			return f, fmt.Errorf("invalid startUtc")
		}
		end, err := time.Parse(time.RFC3339, endUTC)
		if err != nil {
			return f, fmt.Errorf("invalid endUtc")
		}
		f.Start, f.End = start.UTC(), end.UTC()
		return f, nil
	}

	date, hourStr := q.Get("date"), q.Get("hour")
	if date == "" || hourStr == "" {
		return f, fmt.Errorf("Missing date/hour or startUtc/endUtc")
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return f, fmt.Errorf("invalid date")
	}
	hour, err := strconv.Atoi(hourStr)
	if err != nil || hour < 0 || hour > 23 {
		return f, fmt.Errorf("invalid hour")
	}

	f.Start = time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, time.UTC)
	f.End = f.Start.Add(time.Hour)
	return f, nil
}

// newTestAlert builds the synthetic alert used to verify a client's
// real-time connection.
func newTestAlert() *alerts.Alert {
	now := alerts.NormalizeTimestamp(time.Now())
	url := "https://links.example/test-product"
	return &alerts.Alert{
		ID:           "test-" + uuid.NewString(),
		Store:        "test_store",
		SKU:          "TEST-SKU",
		Product:      "Test Product",
		Price:        "$19.99",
		URL:          url,
		Image:        "https://via.placeholder.com/300x300.png?text=TEST",
		Timestamp:    now,
		Source:       "api-test",
		ReactedUsers: []string{},
		ProductURLs:  map[string]string{"default": url},
	}
}
