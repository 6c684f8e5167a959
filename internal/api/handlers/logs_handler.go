package handlers

import (
	"net/http"
	"strconv"

	"ibtrade/internal/models"
)

// Лимит записей по умолчанию и потолок для запросов журнала
const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

// LogSource читает журнал событий
type LogSource interface {
	GetRecent(limit int) ([]*models.LogEntry, error)
	GetByAccount(account string, limit int) ([]*models.LogEntry, error)
}

// OrderSource читает журнал ордеров
type OrderSource interface {
	GetRecent(limit int) ([]*models.OrderRecord, error)
	GetByAccount(account string, limit int) ([]*models.OrderRecord, error)
}

// LogsHandler отдаёт журналы внешнему UI
type LogsHandler struct {
	logs   LogSource
	orders OrderSource
}

// NewLogsHandler создает новый LogsHandler
func NewLogsHandler(logs LogSource, orders OrderSource) *LogsHandler {
	return &LogsHandler{logs: logs, orders: orders}
}

// GetLogs возвращает записи журнала событий
// GET /api/v1/logs?limit=100&account=DU1111111
func (h *LogsHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)
	account := r.URL.Query().Get("account")

	var (
		entries []*models.LogEntry
		err     error
	)
	if account != "" {
		entries, err = h.logs.GetByAccount(account, limit)
	} else {
		entries, err = h.logs.GetRecent(limit)
	}

	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read logs")
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Data: entries})
}

// GetOrders возвращает записи журнала ордеров
// GET /api/v1/orders?limit=100&account=DU1111111
func (h *LogsHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)
	account := r.URL.Query().Get("account")

	var (
		orders []*models.OrderRecord
		err    error
	)
	if account != "" {
		orders, err = h.orders.GetByAccount(account, limit)
	} else {
		orders, err = h.orders.GetRecent(limit)
	}

	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read orders")
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Data: orders})
}

// parseLimit читает limit из query с дефолтом и потолком
func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLogLimit
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return defaultLogLimit
	}
	if limit > maxLogLimit {
		return maxLogLimit
	}
	return limit
}
