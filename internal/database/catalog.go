package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/LucasQuiles/RestockR/internal/alerts"
)

// GetCatalogEntries bulk-fetches catalog link configuration for a set of SKUs.
// The products table is owned by the catalog collaborator; this service only
// reads it. SKUs with no catalog row are simply absent from the result.
func (db *DB) GetCatalogEntries(ctx context.Context, skus []string) (map[string]*alerts.CatalogEntry, error) {
	entries := make(map[string]*alerts.CatalogEntry)
	if len(skus) == 0 {
		return entries, nil
	}

	const query = `
		SELECT sku, tenant_urls, fallback_url
		FROM products
		WHERE sku = ANY($1)`

	rows, err := db.conn.QueryContext(ctx, query, pq.Array(skus))
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entry       alerts.CatalogEntry
			tenantURLs  sql.NullString
			fallbackURL sql.NullString
		)
		if err := rows.Scan(&entry.SKU, &tenantURLs, &fallbackURL); err != nil {
			return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
		}
		entry.TenantURLs = unmarshalTenantURLs(tenantURLs, "sku", entry.SKU)
		entry.FallbackURL = fallbackURL.String
		entries[entry.SKU] = &entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read catalog entries: %w", err)
	}
	return entries, nil
}

// unmarshalTenantURLs deserializes the per-tenant URL override map. A missing
// or malformed value degrades to an empty map rather than failing the lookup.
func unmarshalTenantURLs(urlsJSON sql.NullString, warnAttrs ...any) map[string]string {
	if !urlsJSON.Valid || urlsJSON.String == "" {
		return make(map[string]string)
	}

	var urls map[string]string
	if err := json.Unmarshal([]byte(urlsJSON.String), &urls); err != nil {
		slog.Warn("Failed to unmarshal tenant URLs JSON", append([]any{"error", err}, warnAttrs...)...)
		return make(map[string]string)
	}
	if urls == nil {
		return make(map[string]string)
	}
	return urls
}
