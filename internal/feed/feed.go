// Package feed builds the bounded, globally time-ordered recent-alert feed.
// The store supplies per-retailer top-N groups; this package performs the
// global merge and the per-tenant link enrichment as separate, independently
// testable phases.
package feed

import (
	"sort"

	"github.com/LucasQuiles/RestockR/internal/alerts"
	"github.com/LucasQuiles/RestockR/internal/links"
)

// PerStoreLimit caps how many alerts each store contributes to the feed.
const PerStoreLimit = 25

// Merge flattens per-store groups into one sequence sorted by timestamp
// descending. Ties break on ID so the order is deterministic. Records with a
// duplicate ID are dropped, keeping the first occurrence.
func Merge(groups map[string][]alerts.Alert) []alerts.Alert {
	merged := make([]alerts.Alert, 0)
	seen := make(map[string]struct{})
	for _, group := range groups {
		for _, a := range group {
			if _, ok := seen[a.ID]; ok {
				continue
			}
			seen[a.ID] = struct{}{}
			merged = append(merged, a)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].Timestamp.Equal(merged[j].Timestamp) {
			return merged[i].Timestamp.After(merged[j].Timestamp)
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}

// DistinctSKUs collects the distinct non-empty SKUs in the feed, in first-seen
// order, for the bulk catalog lookup.
func DistinctSKUs(feed []alerts.Alert) []string {
	seen := make(map[string]struct{})
	skus := make([]string, 0)
	for _, a := range feed {
		if a.SKU == "" {
			continue
		}
		if _, ok := seen[a.SKU]; ok {
			continue
		}
		seen[a.SKU] = struct{}{}
		skus = append(skus, a.SKU)
	}
	return skus
}

// Enrich resolves each alert's display URL for the given tenant and attaches
// the full per-tenant URL map under "default" plus every override. Alerts
// whose SKU has no catalog entry pass through unchanged.
func Enrich(feed []alerts.Alert, entries map[string]*alerts.CatalogEntry, tenantID string) []alerts.Alert {
	for i := range feed {
		entry, ok := entries[feed[i].SKU]
		if !ok {
			continue
		}

		resolved := links.Resolve(entry, tenantID, feed[i].URL)
		productURLs := make(map[string]string, len(entry.TenantURLs)+1)
		productURLs["default"] = resolved
		for tenant, url := range entry.TenantURLs {
			productURLs[tenant] = url
		}

		feed[i].URL = resolved
		feed[i].ProductURLs = productURLs
	}
	return feed
}
