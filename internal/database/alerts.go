// Package database provides PostgreSQL-backed persistence for restock alerts.
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/LucasQuiles/RestockR/internal/alerts"
)

const (
	// HistoryWindow bounds history aggregation eligibility. The rolling window
	// is 60 days of wall-clock time at query time.
	HistoryWindow = 60 * 24 * time.Hour

	// StoreFilterAll is the sentinel retailer value that disables the store
	// filter, equivalent to omitting it entirely.
	StoreFilterAll = "All"

	// ModeReactions selects reaction sums instead of record counts in history
	// aggregation, and restricts detail queries to positively-reacted records.
	ModeReactions = "reactions"
)

// alertColumns is the column list shared by every query that scans full alerts.
const alertColumns = `id, store, sku, product, price, url, original_url, image, "timestamp", source, type, reactions_yes, reactions_no, reacted_users`

// HistoryFilter holds the optional predicates applied before history grouping.
type HistoryFilter struct {
	SKU         string
	Retailer    string
	ProductName string
	Type        string
	Mode        string
}

// HistoryBucket is one (UTC date, hour) aggregation bucket.
type HistoryBucket struct {
	Date  string `json:"date"`
	Hour  int    `json:"hour"`
	Count int64  `json:"count"`
}

// DetailFilter holds the window and predicates for a detail query.
// Start is inclusive, End exclusive.
type DetailFilter struct {
	Start    time.Time
	End      time.Time
	SKU      string
	Retailer string
	Type     string
	Mode     string
}

// CreateAlert persists an alert. The canonical ID is the dedupe key: inserting
// an ID that already exists is a no-op and returns created=false, so a
// replayed event is never double-stored or double-broadcast.
func (db *DB) CreateAlert(ctx context.Context, a *alerts.Alert) (bool, error) {
	const query = `
		INSERT INTO restocks (id, store, sku, product, price, url, original_url, image, "timestamp", source, type, reactions_yes, reactions_no, reacted_users)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING`

	result, err := db.conn.ExecContext(ctx, query,
		a.ID, a.Store, a.SKU, a.Product, a.Price, a.URL, a.OriginalURL, a.Image,
		a.Timestamp, a.Source, a.Type, a.Reactions.Yes, a.Reactions.No,
		pq.Array(a.ReactedUsers),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert alert: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return rows > 0, nil
}

// RecentByStore returns, per store, the perStore most recent alerts in
// descending timestamp order. This is the store-native grouping phase of the
// recent feed; the global re-sort happens in the feed package.
func (db *DB) RecentByStore(ctx context.Context, perStore int) (map[string][]alerts.Alert, error) {
	const query = `
		SELECT ` + alertColumns + ` FROM (
			SELECT *, ROW_NUMBER() OVER (PARTITION BY store ORDER BY "timestamp" DESC, id DESC) AS rn
			FROM restocks
		) ranked
		WHERE rn <= $1
		ORDER BY store, rn`

	rows, err := db.conn.QueryContext(ctx, query, perStore)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent alerts: %w", err)
	}
	defer rows.Close()

	groups := make(map[string][]alerts.Alert)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		groups[a.Store] = append(groups[a.Store], a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recent alerts: %w", err)
	}
	return groups, nil
}

// History aggregates eligible alerts into (UTC date, hour) buckets, counting
// records or summing yes-reactions depending on the filter mode. Buckets are
// ordered date descending, hour ascending.
func (db *DB) History(ctx context.Context, f HistoryFilter) ([]HistoryBucket, error) {
	metric := "COUNT(*)"
	if f.Mode == ModeReactions {
		metric = "COALESCE(SUM(reactions_yes), 0)"
	}

	conditions := []string{`"timestamp" >= $1`}
	args := []any{time.Now().UTC().Add(-HistoryWindow)}

	if f.SKU != "" {
		args = append(args, f.SKU)
		conditions = append(conditions, fmt.Sprintf("sku = $%d", len(args)))
	}
	if f.Retailer != "" && f.Retailer != StoreFilterAll {
		args = append(args, f.Retailer)
		conditions = append(conditions, fmt.Sprintf("LOWER(store) = LOWER($%d)", len(args)))
	}
	if f.ProductName != "" {
		args = append(args, "%"+f.ProductName+"%")
		conditions = append(conditions, fmt.Sprintf("product ILIKE $%d", len(args)))
	}
	if f.Type != "" && f.Type != StoreFilterAll {
		args = append(args, strings.ToLower(f.Type))
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}

	query := fmt.Sprintf(`
		SELECT to_char("timestamp" AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS date,
		       EXTRACT(HOUR FROM "timestamp" AT TIME ZONE 'UTC')::int AS hour,
		       %s AS count
		FROM restocks
		WHERE %s
		GROUP BY 1, 2
		ORDER BY 1 DESC, 2 ASC`, metric, strings.Join(conditions, " AND "))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	buckets := make([]HistoryBucket, 0)
	for rows.Next() {
		var b HistoryBucket
		if err := rows.Scan(&b.Date, &b.Hour, &b.Count); err != nil {
			return nil, fmt.Errorf("failed to scan history bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history buckets: %w", err)
	}
	return buckets, nil
}

// Details returns the raw alerts inside [f.Start, f.End), oldest first, for
// drill-down from a history bucket.
func (db *DB) Details(ctx context.Context, f DetailFilter) ([]alerts.Alert, error) {
	conditions := []string{`"timestamp" >= $1`, `"timestamp" < $2`}
	args := []any{f.Start, f.End}

	if f.SKU != "" {
		args = append(args, f.SKU)
		conditions = append(conditions, fmt.Sprintf("sku = $%d", len(args)))
	}
	if f.Retailer != "" && f.Retailer != StoreFilterAll {
		args = append(args, f.Retailer)
		conditions = append(conditions, fmt.Sprintf("LOWER(store) = LOWER($%d)", len(args)))
	}
	if f.Type != "" && f.Type != StoreFilterAll {
		args = append(args, strings.ToLower(f.Type))
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.Mode == ModeReactions {
		conditions = append(conditions, "reactions_yes > 0")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM restocks
		WHERE %s
		ORDER BY "timestamp" ASC`, alertColumns, strings.Join(conditions, " AND "))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert details: %w", err)
	}
	defer rows.Close()

	results := make([]alerts.Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read alert details: %w", err)
	}
	return results, nil
}

// RecordReaction applies a first-write-wins reaction for a user. The
// membership test and counter increment happen in one conditional UPDATE, so
// a user can never be counted twice regardless of concurrent requests.
// Returns counted=false when the user already reacted to the alert, and
// ErrAlertNotFound when the alert does not exist.
func (db *DB) RecordReaction(ctx context.Context, alertID, userID, answer string) (bool, error) {
	column := "reactions_no"
	if answer == "yes" {
		column = "reactions_yes"
	}

	query := fmt.Sprintf(`
		UPDATE restocks
		SET %s = %s + 1, reacted_users = array_append(reacted_users, $2)
		WHERE id = $1 AND NOT (reacted_users @> ARRAY[$2])`, column, column)

	result, err := db.conn.ExecContext(ctx, query, alertID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to record reaction: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read reaction result: %w", err)
	}
	if rows > 0 {
		return true, nil
	}

	// No row updated: either the alert is missing or the user already reacted.
	var exists bool
	if err := db.conn.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM restocks WHERE id = $1)`, alertID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check alert existence: %w", err)
	}
	if !exists {
		return false, ErrAlertNotFound
	}
	return false, nil
}

// rowScanner abstracts *sql.Rows for the shared alert scan helper.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (alerts.Alert, error) {
	var a alerts.Alert
	err := row.Scan(
		&a.ID, &a.Store, &a.SKU, &a.Product, &a.Price, &a.URL, &a.OriginalURL,
		&a.Image, &a.Timestamp, &a.Source, &a.Type,
		&a.Reactions.Yes, &a.Reactions.No, pq.Array(&a.ReactedUsers),
	)
	if err != nil {
		return alerts.Alert{}, fmt.Errorf("failed to scan alert: %w", err)
	}
	a.Timestamp = a.Timestamp.UTC()
	if a.ReactedUsers == nil {
		a.ReactedUsers = []string{}
	}
	return a, nil
}
