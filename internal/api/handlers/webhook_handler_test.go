package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"ibtrade/internal/bot"
	"ibtrade/internal/models"
)

// fakeSink фиксирует принятые сигналы и отвечает заданным решением
type fakeSink struct {
	received []models.Signal
	decision bot.Decision
}

func (f *fakeSink) HandleSignal(sig models.Signal) bot.Decision {
	f.received = append(f.received, sig)
	return f.decision
}

// ============================================================
// WebhookHandler Tests
// ============================================================

func TestWebhookHandler_AcceptedSignal(t *testing.T) {
	sink := &fakeSink{decision: bot.Decision{Accepted: true, Workflow: models.WorkflowOpen}}
	h := NewWebhookHandler(sink)

	body := bytes.NewBufferString(`{"action":"buy","price":66.5,"alertId":"abc"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", body)
	rec := httptest.NewRecorder()

	h.HandleWebhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	if len(sink.received) != 1 {
		t.Fatalf("sink received %d signals, want 1", len(sink.received))
	}
	sig := sink.received[0]
	if sig.Action != "buy" || sig.Price != 66.5 || sig.AlertID != "abc" {
		t.Errorf("signal = %+v", sig)
	}

	var decision bot.Decision
	if err := json.NewDecoder(rec.Body).Decode(&decision); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !decision.Accepted || decision.Workflow != models.WorkflowOpen {
		t.Errorf("decision = %+v", decision)
	}
}

func TestWebhookHandler_RejectedSignalStillOK(t *testing.T) {
	sink := &fakeSink{decision: bot.Decision{Reason: "cooldown active"}}
	h := NewWebhookHandler(sink)

	req := httptest.NewRequest(http.MethodPost, "/webhook",
		bytes.NewBufferString(`{"action":"sell"}`))
	rec := httptest.NewRecorder()

	h.HandleWebhook(rec, req)

	// Отклонение - не ошибка протокола: источник не должен ретраить
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var decision bot.Decision
	if err := json.NewDecoder(rec.Body).Decode(&decision); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decision.Accepted || decision.Reason != "cooldown active" {
		t.Errorf("decision = %+v", decision)
	}
}

func TestWebhookHandler_InvalidSignalIsBadRequest(t *testing.T) {
	sink := &fakeSink{decision: bot.Decision{Reason: "unknown action: hold", Invalid: true}}
	h := NewWebhookHandler(sink)

	req := httptest.NewRequest(http.MethodPost, "/webhook",
		bytes.NewBufferString(`{"action":"hold"}`))
	rec := httptest.NewRecorder()

	h.HandleWebhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != "unknown action: hold" {
		t.Errorf("error = %q, want validation reason", resp.Error)
	}
}

func TestWebhookHandler_MalformedBody(t *testing.T) {
	sink := &fakeSink{}
	h := NewWebhookHandler(sink)

	req := httptest.NewRequest(http.MethodPost, "/webhook",
		bytes.NewBufferString(`{action: buy`))
	rec := httptest.NewRecorder()

	h.HandleWebhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(sink.received) != 0 {
		t.Errorf("sink received %d signals, want 0", len(sink.received))
	}
}
