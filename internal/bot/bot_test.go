package bot

import (
	"testing"
	"time"

	"ibtrade/internal/config"
	"ibtrade/internal/gateway"
	"ibtrade/internal/models"
)

const (
	testOpenAlertID      = "open-alert-id"
	testLiquidateAlertID = "liquidate-alert-id"
)

func testBotConfig() config.BotConfig {
	return config.BotConfig{
		Accounts:        []string{"DU1"},
		Symbol:          "TQQQ",
		SecType:         "STK",
		Exchange:        "SMART",
		PrimaryExchange: "NASDAQ",
		Currency:        "USD",

		Leverage:     1.25,
		InitialPrice: 66,

		StalenessWindow: time.Minute,
		LockCooldown:    4 * time.Second,
		RequestTimeout:  time.Second,

		OpenAlertID:      testOpenAlertID,
		LiquidateAlertID: testLiquidateAlertID,
	}
}

func newTestBot(t *testing.T, m *mockGateway) *Bot {
	t.Helper()
	b := New(m, testBotConfig(), &testJournal{}, newTestLogger(t))
	m.SetEventHandler(b.OnEvent)
	return b
}

// connectBot эмулирует подключение и ждёт завершения bootstrap
func connectBot(t *testing.T, m *mockGateway, b *Bot) {
	t.Helper()
	b.OnEvent(gateway.Event{Kind: gateway.KindConnected})
	if !waitUntil(t, time.Second, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.summaryRequests > 0
	}) {
		t.Fatal("bootstrap did not refresh account summary")
	}
}

// ============ Тесты маршрутизации сигналов ============

func TestBot_Route(t *testing.T) {
	m := &mockGateway{}
	b := newTestBot(t, m)

	tests := []struct {
		name         string
		signal       models.Signal
		wantWorkflow string
		wantPrice    float64
		wantOnlyFlat bool
	}{
		{
			name:         "privileged open alert uses marked-up last price",
			signal:       models.Signal{AlertID: testOpenAlertID, Price: 10},
			wantWorkflow: models.WorkflowOpen,
			wantPrice:    66 * 1.05,
			wantOnlyFlat: true,
		},
		{
			name:         "open alert with explicit buy follows signal price",
			signal:       models.Signal{AlertID: testOpenAlertID, Action: models.ActionBuy, Price: 72},
			wantWorkflow: models.WorkflowOpen,
			wantPrice:    72,
		},
		{
			name:         "privileged liquidate alert",
			signal:       models.Signal{AlertID: testLiquidateAlertID},
			wantWorkflow: models.WorkflowLiquidate,
		},
		{
			name:         "buy action uses signal price",
			signal:       models.Signal{Action: models.ActionBuy, Price: 72.5},
			wantWorkflow: models.WorkflowOpen,
			wantPrice:    72.5,
		},
		{
			name:         "sell action liquidates",
			signal:       models.Signal{Action: models.ActionSell},
			wantWorkflow: models.WorkflowLiquidate,
		},
		{
			name:   "unknown alert id is ignored",
			signal: models.Signal{AlertID: "deadbeef"},
		},
		{
			name:   "empty signal is ignored",
			signal: models.Signal{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workflow, price, onlyFlat := b.route(tt.signal)
			if workflow != tt.wantWorkflow {
				t.Errorf("route() workflow = %q, want %q", workflow, tt.wantWorkflow)
			}
			if tt.wantPrice != 0 && price != tt.wantPrice {
				t.Errorf("route() price = %v, want %v", price, tt.wantPrice)
			}
			if onlyFlat != tt.wantOnlyFlat {
				t.Errorf("route() onlyFlat = %v, want %v", onlyFlat, tt.wantOnlyFlat)
			}
		})
	}
}

// ============ Тесты приёма сигналов ============

func TestBot_RejectsWhenDisconnected(t *testing.T) {
	m := &mockGateway{}
	b := newTestBot(t, m)

	d := b.HandleSignal(models.Signal{Action: models.ActionBuy, Price: 66})
	if d.Accepted {
		t.Fatal("HandleSignal() accepted while disconnected")
	}
	if d.Reason != "gateway disconnected" {
		t.Errorf("Reason = %q, want gateway disconnected", d.Reason)
	}
}

func TestBot_RejectsInvalidSignal(t *testing.T) {
	m := &mockGateway{}
	b := newTestBot(t, m)

	d := b.HandleSignal(models.Signal{Action: "hold"})
	if d.Accepted {
		t.Fatal("HandleSignal() accepted unknown action")
	}
	if !d.Invalid {
		t.Error("Decision.Invalid = false, want true for protocol error")
	}
}

func TestBot_PriceOnlySignalUpdatesReference(t *testing.T) {
	m := &mockGateway{}
	b := newTestBot(t, m)

	d := b.HandleSignal(models.Signal{Price: 70})
	if d.Accepted {
		t.Fatal("HandleSignal() accepted price-only signal")
	}
	if d.Reason != "price updated" {
		t.Errorf("Reason = %q, want price updated", d.Reason)
	}
	if got := b.session.LastPrice(); got != 70 {
		t.Errorf("LastPrice() = %v, want 70", got)
	}
	// Обновление цены не взводит блокировку
	if b.gate.Locked() {
		t.Error("gate locked by price-only signal")
	}
}

func TestBot_PrivilegedSignalsIgnoreOwnPrice(t *testing.T) {
	m := &mockGateway{summaryRows: summaryRowsFor("DU1", 10000, 15000), managedAccounts: []string{"DU1"}}
	b := newTestBot(t, m)
	connectBot(t, m, b)

	b.HandleSignal(models.Signal{AlertID: testLiquidateAlertID, Price: 99})
	if got := b.session.LastPrice(); got != 66 {
		t.Errorf("LastPrice() = %v after liquidate alert, want untouched 66", got)
	}

	// Референсная цена обновляется до проверки гейта,
	// поэтому повторный сигнал попадает в ту же ветку
	b.HandleSignal(models.Signal{AlertID: testOpenAlertID, Price: 99})
	if got := b.session.LastPrice(); got == 99 {
		t.Error("LastPrice() took the price of the privileged open alert")
	}
}

func TestBot_IgnoresSignalWithoutRoute(t *testing.T) {
	m := &mockGateway{summaryRows: summaryRowsFor("DU1", 10000, 15000), managedAccounts: []string{"DU1"}}
	b := newTestBot(t, m)
	connectBot(t, m, b)

	d := b.HandleSignal(models.Signal{AlertID: "unrelated"})
	if d.Accepted {
		t.Fatal("HandleSignal() accepted unrelated alert")
	}
	// Игнор не взводит блокировку
	if b.gate.Locked() {
		t.Error("gate locked by ignored signal")
	}
}

func TestBot_CooldownRejectsSecondSignal(t *testing.T) {
	m := &mockGateway{
		summaryRows:     summaryRowsFor("DU1", 10000, 15000),
		managedAccounts: []string{"DU1"},
		fillStatus:      models.OrderStatusFilled,
	}
	b := newTestBot(t, m)
	connectBot(t, m, b)

	first := b.HandleSignal(models.Signal{Action: models.ActionBuy, Price: 66})
	if !first.Accepted {
		t.Fatalf("first signal rejected: %+v", first)
	}

	second := b.HandleSignal(models.Signal{Action: models.ActionSell})
	if second.Accepted {
		t.Fatal("second signal accepted inside cooldown")
	}
	if second.Reason != "cooldown active" {
		t.Errorf("Reason = %q, want cooldown active", second.Reason)
	}
}

// ============ Сквозной тест: сигнал до ордера ============

func TestBot_BuySignalPlacesOrder(t *testing.T) {
	m := &mockGateway{
		summaryRows:     summaryRowsFor("DU1", 10000, 15000),
		managedAccounts: []string{"DU1"},
		fillStatus:      models.OrderStatusFilled,
	}
	b := newTestBot(t, m)
	connectBot(t, m, b)
	b.OnEvent(gateway.Event{Kind: gateway.KindNextValidID, NextOrderID: 1})

	d := b.HandleSignal(models.Signal{Action: models.ActionBuy, Price: 66})
	if !d.Accepted || d.Workflow != models.WorkflowOpen {
		t.Fatalf("HandleSignal() = %+v, want accepted open", d)
	}

	if !waitUntil(t, 2*time.Second, func() bool {
		return len(m.placedOrders()) == 1
	}) {
		t.Fatal("order was not placed")
	}

	order := m.placedOrders()[0]
	if order.Order.Action != models.SideBuy || order.Order.TotalQuantity != 189 {
		t.Errorf("order = %s %v, want BUY 189", order.Order.Action, order.Order.TotalQuantity)
	}
}
