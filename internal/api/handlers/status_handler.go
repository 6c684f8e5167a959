package handlers

import (
	"net/http"

	"ibtrade/internal/bot"
)

// StatusProvider отдаёт текущее состояние бота
type StatusProvider interface {
	Status() bot.Status
}

// StatusHandler отвечает за endpoint состояния
//
// Используется внешним дашбордом: соединение со шлюзом, блокировка
// гейта, последняя цена, снимки счетов.
type StatusHandler struct {
	provider StatusProvider
}

// NewStatusHandler создает новый StatusHandler
func NewStatusHandler(provider StatusProvider) *StatusHandler {
	return &StatusHandler{provider: provider}
}

// GetStatus возвращает состояние бота
// GET /api/v1/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.provider.Status())
}
