// Package alerts defines the restock alert domain types shared across the
// ingestion, fanout, and query paths.
package alerts

import (
	"time"
)

const (
	// WireTimestampFormat is the fixed-precision timestamp representation used
	// on the wire and inside canonical alert IDs (UTC, millisecond precision).
	WireTimestampFormat = "2006-01-02T15:04:05.000Z"

	// DefaultTenantID is the sentinel tenant key for the default override URL.
	DefaultTenantID = "0"

	// DefaultProduct is used when an inbound event carries no product name.
	DefaultProduct = "Unknown"

	// DefaultSource is the provenance tag for events that don't declare one.
	DefaultSource = "manual"
)

// Reactions holds the yes/no reaction counters for an alert.
type Reactions struct {
	Yes int `json:"yes"`
	No  int `json:"no"`
}

// Alert represents a single restock event. Descriptive fields are immutable
// after creation; only the reaction counters and reacted-user set may change,
// and only through the store's conditional update.
type Alert struct {
	ID          string    `json:"id"`
	Store       string    `json:"store"`
	SKU         string    `json:"sku"`
	Product     string    `json:"product"`
	Price       string    `json:"price,omitempty"`
	URL         string    `json:"url,omitempty"`
	OriginalURL string    `json:"originalUrl,omitempty"`
	Image       string    `json:"image,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Source      string    `json:"source"`
	Type        string    `json:"type,omitempty"`
	Reactions   Reactions `json:"reactions"`
	ReactedUsers []string `json:"reactedUsers"`

	// ProductURLs is attached by recent-feed enrichment only: the resolved
	// URL under "default" plus every per-tenant override, so clients can
	// switch tenants without a second query.
	ProductURLs map[string]string `json:"productUrls,omitempty"`
}

// CatalogEntry is the per-SKU link configuration owned by the catalog
// collaborator. Read-only in this service.
type CatalogEntry struct {
	SKU         string            `json:"sku"`
	TenantURLs  map[string]string `json:"tenantUrls"`
	FallbackURL string            `json:"fallbackUrl"`
}

// TenantContext carries the tenant identity resolved for a request.
// TenantID is DefaultTenantID when the caller has no tenant affiliation.
type TenantContext struct {
	TenantID string
}

// NormalizeTimestamp converts a timestamp to its canonical form: UTC,
// truncated to millisecond precision. All persisted and broadcast alerts
// carry normalized timestamps.
func NormalizeTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// AlertID derives the canonical alert identifier from a SKU and timestamp.
// The ID is deterministic: identical (sku, timestamp) pairs always yield the
// same ID, which acts as the natural dedupe key at ingestion.
func AlertID(sku string, ts time.Time) string {
	return sku + "-" + NormalizeTimestamp(ts).Format(WireTimestampFormat)
}

// ParseEventTimestamp parses the timestamp formats accepted at ingestion:
// RFC3339 (with or without sub-second precision) or the wire format.
func ParseEventTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(WireTimestampFormat, s)
}
