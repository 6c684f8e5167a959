package bot

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"ibtrade/internal/gateway"
	"ibtrade/internal/models"
	"ibtrade/pkg/utils"
)

// placedOrder - зафиксированный мок-шлюзом вызов PlaceOrder
type placedOrder struct {
	OrderID  int64
	Contract models.Contract
	Order    models.Order
}

// mockGateway - управляемый шлюз для тестов торгового ядра.
//
// Команды отвечают событиями синхронно, если задан сценарий;
// хуки on* позволяют тестам перехватывать момент отправки.
type mockGateway struct {
	mu      sync.Mutex
	handler gateway.EventHandler

	// Сценарий ответов
	managedAccounts []string
	summaryRows     []SummaryRow
	positions       []models.PositionRecord
	openOrders      []models.OpenOrder

	// Статус, которым отвечает PlaceOrder ("" - не отвечать)
	fillStatus string

	// Принимать CancelOrder, но не подтверждать отмену событием
	suppressCancelAck bool

	// Зафиксированные вызовы
	placed            []placedOrder
	cancelledOrders   []int64
	summaryCancels    int
	summaryRequests   int
	positionsRequests int

	// Хуки: non-nil подменяет автоматический ответ
	onReqPositions func()
}

func (m *mockGateway) SetEventHandler(h gateway.EventHandler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

func (m *mockGateway) emit(ev gateway.Event) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

func (m *mockGateway) Connect(ctx context.Context) error { return nil }
func (m *mockGateway) Close() error                      { return nil }
func (m *mockGateway) IsConnected() bool                 { return true }

func (m *mockGateway) ReqManagedAccts() error {
	m.mu.Lock()
	accounts := m.managedAccounts
	m.mu.Unlock()
	m.emit(gateway.Event{Kind: gateway.KindManagedAccounts, Accounts: accounts})
	return nil
}

func (m *mockGateway) ReqAccountSummary(reqID int, group, tags, account string) error {
	m.mu.Lock()
	m.summaryRequests++
	rows := m.summaryRows
	m.mu.Unlock()

	for _, row := range rows {
		if account != "" && row.Account != account {
			continue
		}
		m.emit(gateway.Event{
			Kind:     gateway.KindAccountSummary,
			ReqID:    reqID,
			Account:  row.Account,
			Tag:      row.Tag,
			Value:    row.Value,
			Currency: row.Currency,
		})
	}
	m.emit(gateway.Event{Kind: gateway.KindAccountSummaryEnd, ReqID: reqID})
	return nil
}

func (m *mockGateway) CancelAccountSummary(reqID int) error {
	m.mu.Lock()
	m.summaryCancels++
	m.mu.Unlock()
	return nil
}

func (m *mockGateway) ReqPositions() error {
	m.mu.Lock()
	m.positionsRequests++
	hook := m.onReqPositions
	positions := m.positions
	m.mu.Unlock()

	if hook != nil {
		hook()
		return nil
	}

	for _, pos := range positions {
		m.emit(gateway.Event{Kind: gateway.KindPosition, Position: pos})
	}
	m.emit(gateway.Event{Kind: gateway.KindPositionEnd})
	return nil
}

func (m *mockGateway) CancelPositions() error { return nil }

func (m *mockGateway) ReqOpenOrders() error {
	m.mu.Lock()
	orders := m.openOrders
	m.mu.Unlock()

	for _, o := range orders {
		m.emit(gateway.Event{Kind: gateway.KindOpenOrder, OpenOrder: o})
	}
	m.emit(gateway.Event{Kind: gateway.KindOpenOrderEnd})
	return nil
}

func (m *mockGateway) PlaceOrder(orderID int64, contract models.Contract, order models.Order) error {
	m.mu.Lock()
	m.placed = append(m.placed, placedOrder{OrderID: orderID, Contract: contract, Order: order})
	status := m.fillStatus
	m.mu.Unlock()

	if status != "" {
		m.emit(gateway.Event{
			Kind:         gateway.KindOrderStatus,
			OrderID:      orderID,
			Status:       status,
			Filled:       order.TotalQuantity,
			AvgFillPrice: 100,
		})
	}
	return nil
}

func (m *mockGateway) CancelOrder(orderID int64) error {
	m.mu.Lock()
	m.cancelledOrders = append(m.cancelledOrders, orderID)
	suppress := m.suppressCancelAck
	m.mu.Unlock()

	if suppress {
		return nil
	}

	m.emit(gateway.Event{
		Kind:    gateway.KindOrderStatus,
		OrderID: orderID,
		Status:  models.OrderStatusCancelled,
	})
	return nil
}

func (m *mockGateway) placedOrders() []placedOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]placedOrder, len(m.placed))
	copy(out, m.placed)
	return out
}

func (m *mockGateway) cancelled() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, len(m.cancelledOrders))
	copy(out, m.cancelledOrders)
	return out
}

// summaryRowsFor собирает строки сводки для одного счёта
func summaryRowsFor(account string, cash, netLiq float64) []SummaryRow {
	return []SummaryRow{
		{Account: account, Tag: models.TagTotalCashValue, Value: formatFloat(cash), Currency: "USD"},
		{Account: account, Tag: models.TagNetLiquidation, Value: formatFloat(netLiq), Currency: "USD"},
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// testJournal собирает журнальные записи в память
type testJournal struct {
	mu      sync.Mutex
	logs    []string
	records []models.OrderRecord
	filled  []int64
}

func (j *testJournal) Log(level, message, account string) {
	j.mu.Lock()
	j.logs = append(j.logs, level+": "+message)
	j.mu.Unlock()
}

func (j *testJournal) RecordOrder(rec models.OrderRecord) {
	j.mu.Lock()
	j.records = append(j.records, rec)
	j.mu.Unlock()
}

func (j *testJournal) MarkFilled(orderID int64, avgPrice float64) {
	j.mu.Lock()
	j.filled = append(j.filled, orderID)
	j.mu.Unlock()
}

func (j *testJournal) logLines() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.logs))
	copy(out, j.logs)
	return out
}

func (j *testJournal) orderRecords() []models.OrderRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]models.OrderRecord, len(j.records))
	copy(out, j.records)
	return out
}

func newTestLogger(t *testing.T) *utils.Logger {
	t.Helper()
	return utils.InitLogger(utils.LogConfig{Level: "debug", Format: "console"})
}

// waitUntil опрашивает условие до истечения таймаута
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}
