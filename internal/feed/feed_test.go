package feed

import (
	"testing"
	"time"

	"github.com/LucasQuiles/RestockR/internal/alerts"
)

func mkAlert(id, store, sku string, ts time.Time) alerts.Alert {
	return alerts.Alert{
		ID:        id,
		Store:     store,
		SKU:       sku,
		URL:       "https://retailer.example/" + id,
		Timestamp: ts,
	}
}

// TestMerge tests the global re-sort over per-store groups.
func TestMerge(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	groups := map[string][]alerts.Alert{
		"target": {
			mkAlert("t-3", "target", "SKU-1", base.Add(3*time.Hour)),
			mkAlert("t-1", "target", "SKU-2", base.Add(1*time.Hour)),
		},
		"bestbuy": {
			mkAlert("b-4", "bestbuy", "SKU-3", base.Add(4*time.Hour)),
			mkAlert("b-2", "bestbuy", "SKU-4", base.Add(2*time.Hour)),
		},
	}

	merged := Merge(groups)
	if len(merged) != 4 {
		t.Fatalf("Merge() = %d records, want 4", len(merged))
	}

	wantOrder := []string{"b-4", "t-3", "b-2", "t-1"}
	for i, want := range wantOrder {
		if merged[i].ID != want {
			t.Errorf("merged[%d] = %s, want %s", i, merged[i].ID, want)
		}
	}

	// Global descending order: monotonically non-increasing timestamps.
	for i := 1; i < len(merged); i++ {
		if merged[i].Timestamp.After(merged[i-1].Timestamp) {
			t.Errorf("order violated at %d: %v after %v", i, merged[i].Timestamp, merged[i-1].Timestamp)
		}
	}
}

// TestMerge_Deduplicates tests that a record appearing in two groups is kept once.
func TestMerge_Deduplicates(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dup := mkAlert("dup-1", "target", "SKU-1", ts)
	groups := map[string][]alerts.Alert{
		"target": {dup},
		"mirror": {dup},
	}

	if merged := Merge(groups); len(merged) != 1 {
		t.Errorf("Merge() = %d records, want 1 after dedupe", len(merged))
	}
}

// TestMerge_TieBreak tests deterministic ordering for equal timestamps.
func TestMerge_TieBreak(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	groups := map[string][]alerts.Alert{
		"a": {mkAlert("z-1", "a", "SKU-1", ts)},
		"b": {mkAlert("a-1", "b", "SKU-2", ts)},
	}

	merged := Merge(groups)
	if merged[0].ID != "a-1" || merged[1].ID != "z-1" {
		t.Errorf("tie-break order = [%s %s], want [a-1 z-1]", merged[0].ID, merged[1].ID)
	}
}

// TestDistinctSKUs tests SKU collection.
func TestDistinctSKUs(t *testing.T) {
	ts := time.Now()
	feed := []alerts.Alert{
		mkAlert("1", "s", "SKU-1", ts),
		mkAlert("2", "s", "SKU-2", ts),
		mkAlert("3", "s", "SKU-1", ts),
		mkAlert("4", "s", "", ts),
	}

	skus := DistinctSKUs(feed)
	if len(skus) != 2 || skus[0] != "SKU-1" || skus[1] != "SKU-2" {
		t.Errorf("DistinctSKUs() = %v, want [SKU-1 SKU-2]", skus)
	}
}

// TestEnrich tests link resolution and productUrls attachment.
func TestEnrich(t *testing.T) {
	ts := time.Now()
	feed := []alerts.Alert{
		mkAlert("1", "target", "SKU-1", ts),
		mkAlert("2", "target", "SKU-2", ts),
	}
	entries := map[string]*alerts.CatalogEntry{
		"SKU-1": {
			SKU: "SKU-1",
			TenantURLs: map[string]string{
				"tenant-7":             "https://links.example/t7",
				alerts.DefaultTenantID: "https://links.example/default",
			},
			FallbackURL: "https://links.example/fb",
		},
	}

	enriched := Enrich(feed, entries, "tenant-7")

	if got := enriched[0].URL; got != "https://links.example/t7" {
		t.Errorf("enriched URL = %q, want tenant override", got)
	}
	if got := enriched[0].ProductURLs["default"]; got != "https://links.example/t7" {
		t.Errorf("productUrls.default = %q, want resolved URL", got)
	}
	if got := enriched[0].ProductURLs[alerts.DefaultTenantID]; got != "https://links.example/default" {
		t.Errorf("productUrls[0] = %q, want default-tenant override", got)
	}

	// No catalog entry: record passes through unchanged.
	if got := enriched[1].URL; got != "https://retailer.example/2" {
		t.Errorf("unmatched URL = %q, want original", got)
	}
	if enriched[1].ProductURLs != nil {
		t.Errorf("unmatched productUrls = %v, want nil", enriched[1].ProductURLs)
	}
}

// TestFeedBound tests the ≤ PerStoreLimit × stores guarantee end to end on
// the in-memory phase.
func TestFeedBound(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	groups := make(map[string][]alerts.Alert)
	for s := 0; s < 3; s++ {
		store := string(rune('a' + s))
		for i := 0; i < PerStoreLimit; i++ {
			id := store + "-" + time.Duration(i).String()
			groups[store] = append(groups[store], mkAlert(id, store, "SKU", base.Add(time.Duration(i)*time.Minute)))
		}
	}

	merged := Merge(groups)
	if len(merged) > PerStoreLimit*3 {
		t.Errorf("Merge() = %d records, want at most %d", len(merged), PerStoreLimit*3)
	}
}
