package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ibtrade/internal/models"
)

// fakeLogSource - управляемый источник журнала
type fakeLogSource struct {
	entries     []*models.LogEntry
	err         error
	lastLimit   int
	lastAccount string
}

func (f *fakeLogSource) GetRecent(limit int) ([]*models.LogEntry, error) {
	f.lastLimit = limit
	return f.entries, f.err
}

func (f *fakeLogSource) GetByAccount(account string, limit int) ([]*models.LogEntry, error) {
	f.lastAccount = account
	f.lastLimit = limit
	return f.entries, f.err
}

type fakeOrderSource struct {
	orders []*models.OrderRecord
	err    error
}

func (f *fakeOrderSource) GetRecent(limit int) ([]*models.OrderRecord, error) {
	return f.orders, f.err
}

func (f *fakeOrderSource) GetByAccount(account string, limit int) ([]*models.OrderRecord, error) {
	return f.orders, f.err
}

// ============================================================
// LogsHandler Tests
// ============================================================

func TestLogsHandler_GetLogs(t *testing.T) {
	logs := &fakeLogSource{entries: []*models.LogEntry{
		{ID: 1, Level: models.LogLevelInfo, Message: "order placed"},
	}}
	h := NewLogsHandler(logs, &fakeOrderSource{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil)
	rec := httptest.NewRecorder()

	h.GetLogs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if logs.lastLimit != defaultLogLimit {
		t.Errorf("limit = %d, want default %d", logs.lastLimit, defaultLogLimit)
	}
}

func TestLogsHandler_GetLogsByAccount(t *testing.T) {
	logs := &fakeLogSource{}
	h := NewLogsHandler(logs, &fakeOrderSource{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs?account=DU1&limit=10", nil)
	rec := httptest.NewRecorder()

	h.GetLogs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if logs.lastAccount != "DU1" || logs.lastLimit != 10 {
		t.Errorf("account = %q, limit = %d, want DU1, 10", logs.lastAccount, logs.lastLimit)
	}
}

func TestLogsHandler_LimitClamping(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"default", "", defaultLogLimit},
		{"explicit", "?limit=50", 50},
		{"above ceiling", "?limit=100000", maxLogLimit},
		{"garbage", "?limit=abc", defaultLogLimit},
		{"negative", "?limit=-5", defaultLogLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := &fakeLogSource{}
			h := NewLogsHandler(logs, &fakeOrderSource{})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/logs"+tt.query, nil)
			h.GetLogs(httptest.NewRecorder(), req)

			if logs.lastLimit != tt.want {
				t.Errorf("limit = %d, want %d", logs.lastLimit, tt.want)
			}
		})
	}
}

func TestLogsHandler_StorageError(t *testing.T) {
	logs := &fakeLogSource{err: errors.New("db down")}
	h := NewLogsHandler(logs, &fakeOrderSource{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil)
	rec := httptest.NewRecorder()

	h.GetLogs(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestLogsHandler_GetOrders(t *testing.T) {
	orders := &fakeOrderSource{orders: []*models.OrderRecord{
		{ID: 1, OrderID: 100, Side: models.SideBuy, Quantity: 189},
	}}
	h := NewLogsHandler(&fakeLogSource{}, orders)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	rec := httptest.NewRecorder()

	h.GetOrders(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp SuccessResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data == nil {
		t.Error("response data is nil")
	}
}
