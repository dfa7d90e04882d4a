// Package database provides tests for the alert store.
// These tests use sqlmock to mock database interactions.
package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/LucasQuiles/RestockR/internal/alerts"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &DB{conn: conn}, mock
}

func alertRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "store", "sku", "product", "price", "url", "original_url",
		"image", "timestamp", "source", "type", "reactions_yes", "reactions_no",
		"reacted_users",
	})
}

// TestDB_CreateAlert tests insertion and the duplicate-ID no-op path.
func TestDB_CreateAlert(t *testing.T) {
	ts := time.Date(2024, 1, 1, 10, 15, 0, 0, time.UTC)
	alert := &alerts.Alert{
		ID:        alerts.AlertID("SKU-1", ts),
		Store:     "target",
		SKU:       "SKU-1",
		Product:   "Booster Box",
		Timestamp: ts,
		Source:    "manual",
	}

	tests := []struct {
		name        string
		setupMock   func(mock sqlmock.Sqlmock)
		wantCreated bool
		wantErr     bool
	}{
		{
			name: "successful insert",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO restocks").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			wantCreated: true,
		},
		{
			name: "duplicate id is a no-op",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO restocks").
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantCreated: false,
		},
		{
			name: "database error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO restocks").
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			tt.setupMock(mock)

			created, err := db.CreateAlert(context.Background(), alert)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateAlert() error = %v, wantErr %v", err, tt.wantErr)
			}
			if created != tt.wantCreated {
				t.Errorf("CreateAlert() created = %v, want %v", created, tt.wantCreated)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

// TestDB_RecentByStore tests the per-store top-N grouping query.
func TestDB_RecentByStore(t *testing.T) {
	db, mock := newMockDB(t)

	rows := alertRows().
		AddRow("a-1", "bestbuy", "SKU-1", "Console", "$499", "u1", "o1", "", time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), "manual", "", 0, 0, pq.Array([]string{})).
		AddRow("a-2", "bestbuy", "SKU-2", "Controller", "$59", "u2", "o2", "", time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), "manual", "", 1, 0, pq.Array([]string{"u-9"})).
		AddRow("a-3", "target", "SKU-3", "Cards", "$4", "u3", "o3", "", time.Date(2024, 1, 3, 7, 0, 0, 0, time.UTC), "scraper", "pokemon", 0, 0, pq.Array([]string{}))

	mock.ExpectQuery("ROW_NUMBER\\(\\) OVER \\(PARTITION BY store").
		WithArgs(25).
		WillReturnRows(rows)

	groups, err := db.RecentByStore(context.Background(), 25)
	if err != nil {
		t.Fatalf("RecentByStore() error = %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("RecentByStore() returned %d stores, want 2", len(groups))
	}
	if len(groups["bestbuy"]) != 2 || len(groups["target"]) != 1 {
		t.Errorf("unexpected group sizes: bestbuy=%d target=%d", len(groups["bestbuy"]), len(groups["target"]))
	}
	if groups["bestbuy"][0].ID != "a-1" {
		t.Errorf("bestbuy group not in descending order: first = %s", groups["bestbuy"][0].ID)
	}
	if got := groups["bestbuy"][1].Reactions.Yes; got != 1 {
		t.Errorf("reactions_yes = %d, want 1", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// TestDB_History tests bucket aggregation, filter assembly, and mode selection.
func TestDB_History(t *testing.T) {
	tests := []struct {
		name      string
		filter    HistoryFilter
		setupMock func(mock sqlmock.Sqlmock)
		want      []HistoryBucket
	}{
		{
			name:   "count mode, no filters",
			filter: HistoryFilter{},
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"date", "hour", "count"}).
					AddRow("2024-01-01", 10, 2).
					AddRow("2024-01-01", 11, 1)
				mock.ExpectQuery("COUNT\\(\\*\\)").WillReturnRows(rows)
			},
			want: []HistoryBucket{
				{Date: "2024-01-01", Hour: 10, Count: 2},
				{Date: "2024-01-01", Hour: 11, Count: 1},
			},
		},
		{
			name:   "reactions mode sums yes counters",
			filter: HistoryFilter{Mode: ModeReactions},
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"date", "hour", "count"}).
					AddRow("2024-01-01", 10, 1).
					AddRow("2024-01-01", 11, 2)
				mock.ExpectQuery("SUM\\(reactions_yes\\)").WillReturnRows(rows)
			},
			want: []HistoryBucket{
				{Date: "2024-01-01", Hour: 10, Count: 1},
				{Date: "2024-01-01", Hour: 11, Count: 2},
			},
		},
		{
			name:   "all filters applied",
			filter: HistoryFilter{SKU: "SKU-1", Retailer: "Target", ProductName: "booster", Type: "Pokemon"},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("sku = \\$2 AND LOWER\\(store\\) = LOWER\\(\\$3\\) AND product ILIKE \\$4 AND type = \\$5").
					WithArgs(sqlmock.AnyArg(), "SKU-1", "Target", "%booster%", "pokemon").
					WillReturnRows(sqlmock.NewRows([]string{"date", "hour", "count"}))
			},
			want: []HistoryBucket{},
		},
		{
			name:   "All sentinel disables store and type filters",
			filter: HistoryFilter{Retailer: StoreFilterAll, Type: StoreFilterAll},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("WHERE \"timestamp\" >= \\$1\\s+GROUP BY").
					WithArgs(sqlmock.AnyArg()).
					WillReturnRows(sqlmock.NewRows([]string{"date", "hour", "count"}))
			},
			want: []HistoryBucket{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			tt.setupMock(mock)

			got, err := db.History(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("History() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("History() returned %d buckets, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("bucket[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

// TestDB_Details tests the windowed detail query.
func TestDB_Details(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	t.Run("window and order", func(t *testing.T) {
		db, mock := newMockDB(t)
		rows := alertRows().
			AddRow("a-1", "target", "SKU-1", "Cards", "", "", "", "", start, "manual", "", 0, 0, pq.Array([]string{})).
			AddRow("a-2", "target", "SKU-1", "Cards", "", "", "", "", start.Add(15*time.Minute), "manual", "", 0, 0, pq.Array([]string{}))
		mock.ExpectQuery("ORDER BY \"timestamp\" ASC").
			WithArgs(start, end).
			WillReturnRows(rows)

		got, err := db.Details(context.Background(), DetailFilter{Start: start, End: end})
		if err != nil {
			t.Fatalf("Details() error = %v", err)
		}
		if len(got) != 2 || got[0].ID != "a-1" {
			t.Errorf("Details() = %d rows, first %q; want 2 rows oldest-first", len(got), got[0].ID)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("reactions mode restricts to positive yes counts", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("reactions_yes > 0").
			WithArgs(start, end, "SKU-1").
			WillReturnRows(alertRows())

		got, err := db.Details(context.Background(), DetailFilter{Start: start, End: end, SKU: "SKU-1", Mode: ModeReactions})
		if err != nil {
			t.Fatalf("Details() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("Details() = %d rows, want 0", len(got))
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

// TestDB_RecordReaction tests the first-write-wins conditional update.
func TestDB_RecordReaction(t *testing.T) {
	tests := []struct {
		name        string
		answer      string
		setupMock   func(mock sqlmock.Sqlmock)
		wantCounted bool
		wantErr     error
	}{
		{
			name:   "yes reaction counted",
			answer: "yes",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("SET reactions_yes = reactions_yes \\+ 1").
					WithArgs("a-1", "user-1").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			wantCounted: true,
		},
		{
			name:   "no reaction counted",
			answer: "no",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("SET reactions_no = reactions_no \\+ 1").
					WithArgs("a-1", "user-1").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			wantCounted: true,
		},
		{
			name:   "already reacted",
			answer: "yes",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE restocks").
					WithArgs("a-1", "user-1").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("SELECT EXISTS").
					WithArgs("a-1").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
			},
			wantCounted: false,
		},
		{
			name:   "alert not found",
			answer: "yes",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE restocks").
					WithArgs("a-1", "user-1").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("SELECT EXISTS").
					WithArgs("a-1").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
			},
			wantErr: ErrAlertNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			tt.setupMock(mock)

			counted, err := db.RecordReaction(context.Background(), "a-1", "user-1", tt.answer)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("RecordReaction() error = %v, want %v", err, tt.wantErr)
			}
			if counted != tt.wantCounted {
				t.Errorf("RecordReaction() counted = %v, want %v", counted, tt.wantCounted)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}
