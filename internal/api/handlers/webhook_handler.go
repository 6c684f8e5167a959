package handlers

import (
	"net/http"

	"ibtrade/internal/bot"
	"ibtrade/internal/models"
)

// SignalSink принимает торговые сигналы (реализуется ботом)
type SignalSink interface {
	HandleSignal(sig models.Signal) bot.Decision
}

// WebhookHandler принимает сигналы источника алертов
//
// Назначение:
// Единственная торговая точка входа. Источник (TradingView) шлёт
// POST с JSON-телом {action, price, alertId}. Ответ отдаётся сразу,
// торговый сценарий исполняется в фоне - источник не ждёт торговли
// и не ретраит из-за её длительности.
type WebhookHandler struct {
	sink SignalSink
}

// NewWebhookHandler создает новый WebhookHandler
func NewWebhookHandler(sink SignalSink) *WebhookHandler {
	return &WebhookHandler{sink: sink}
}

// HandleWebhook обрабатывает входящий сигнал
// POST /webhook
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	var sig models.Signal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	decision := h.sink.HandleSignal(sig)

	// Невалидный сигнал - ошибка протокола источника
	if decision.Invalid {
		respondError(w, http.StatusBadRequest, decision.Reason)
		return
	}

	// Штатное отклонение (cooldown, disconnect) - не ошибка:
	// источник не должен ретраить, поэтому 200
	respondJSON(w, http.StatusOK, decision)
}
