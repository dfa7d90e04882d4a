// Package links resolves the display URL for a product under a given tenant.
package links

import (
	"github.com/LucasQuiles/RestockR/internal/alerts"
)

// Resolve returns the display URL for an alert under the given tenant.
// The fallback chain, first match wins:
//  1. the tenant-specific override
//  2. the default-tenant override
//  3. the catalog entry's fallback URL
//  4. the URL recorded on the alert itself
//
// A nil entry (no catalog configuration for the SKU) returns originalURL
// unchanged. Resolve never fails.
func Resolve(entry *alerts.CatalogEntry, tenantID, originalURL string) string {
	if entry == nil {
		return originalURL
	}
	if url := entry.TenantURLs[tenantID]; url != "" {
		return url
	}
	if url := entry.TenantURLs[alerts.DefaultTenantID]; url != "" {
		return url
	}
	if entry.FallbackURL != "" {
		return entry.FallbackURL
	}
	return originalURL
}
