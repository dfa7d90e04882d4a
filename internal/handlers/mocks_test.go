// Package handlers provides test mocks for handler dependencies.
package handlers

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/LucasQuiles/RestockR/internal/alerts"
	"github.com/LucasQuiles/RestockR/internal/database"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	// Callbacks for each method (set these to control behavior)
	CreateAlertFn       func(ctx context.Context, a *alerts.Alert) (bool, error)
	RecentByStoreFn     func(ctx context.Context, perStore int) (map[string][]alerts.Alert, error)
	HistoryFn           func(ctx context.Context, f database.HistoryFilter) ([]database.HistoryBucket, error)
	DetailsFn           func(ctx context.Context, f database.DetailFilter) ([]alerts.Alert, error)
	RecordReactionFn    func(ctx context.Context, alertID, userID, answer string) (bool, error)
	GetCatalogEntriesFn func(ctx context.Context, skus []string) (map[string]*alerts.CatalogEntry, error)
	PingFn              func(ctx context.Context) error
}

func (m *mockRepository) CreateAlert(ctx context.Context, a *alerts.Alert) (bool, error) {
	if m.CreateAlertFn != nil {
		return m.CreateAlertFn(ctx, a)
	}
	return true, nil
}

func (m *mockRepository) RecentByStore(ctx context.Context, perStore int) (map[string][]alerts.Alert, error) {
	if m.RecentByStoreFn != nil {
		return m.RecentByStoreFn(ctx, perStore)
	}
	return map[string][]alerts.Alert{}, nil
}

func (m *mockRepository) History(ctx context.Context, f database.HistoryFilter) ([]database.HistoryBucket, error) {
	if m.HistoryFn != nil {
		return m.HistoryFn(ctx, f)
	}
	return []database.HistoryBucket{}, nil
}

func (m *mockRepository) Details(ctx context.Context, f database.DetailFilter) ([]alerts.Alert, error) {
	if m.DetailsFn != nil {
		return m.DetailsFn(ctx, f)
	}
	return []alerts.Alert{}, nil
}

func (m *mockRepository) RecordReaction(ctx context.Context, alertID, userID, answer string) (bool, error) {
	if m.RecordReactionFn != nil {
		return m.RecordReactionFn(ctx, alertID, userID, answer)
	}
	return true, nil
}

func (m *mockRepository) GetCatalogEntries(ctx context.Context, skus []string) (map[string]*alerts.CatalogEntry, error) {
	if m.GetCatalogEntriesFn != nil {
		return m.GetCatalogEntriesFn(ctx, skus)
	}
	return map[string]*alerts.CatalogEntry{}, nil
}

func (m *mockRepository) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn(ctx)
	}
	return nil
}

// fanoutCall records one publish on the mock broadcaster.
type fanoutCall struct {
	Targeted    bool
	PrincipalID string
	Event       string
	Data        any
}

// mockBroadcaster implements Broadcaster and records every publish.
type mockBroadcaster struct {
	mu    sync.Mutex
	calls []fanoutCall
}

func (m *mockBroadcaster) Broadcast(event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fanoutCall{Event: event, Data: data})
}

func (m *mockBroadcaster) SendToPrincipal(principalID, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fanoutCall{Targeted: true, PrincipalID: principalID, Event: event, Data: data})
}

func (m *mockBroadcaster) ServeConn(principalID string, conn *websocket.Conn) {}

func (m *mockBroadcaster) Calls() []fanoutCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]fanoutCall(nil), m.calls...)
}

// mockPublisher implements AlertPublisher and records published alerts.
type mockPublisher struct {
	mu        sync.Mutex
	published []*alerts.Alert
	err       error
}

func (m *mockPublisher) Publish(ctx context.Context, alert *alerts.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, alert)
	return nil
}

func (m *mockPublisher) Close() error { return nil }
