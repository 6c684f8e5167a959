package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"ibtrade/internal/models"
	"ibtrade/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// commandFrame - исходящая команда websocket-моста
type commandFrame struct {
	Op       string           `json:"op"`
	ReqID    int              `json:"reqId,omitempty"`
	Group    string           `json:"group,omitempty"`
	Tags     string           `json:"tags,omitempty"`
	Account  string           `json:"account,omitempty"`
	OrderID  int64            `json:"orderId,omitempty"`
	ClientID int              `json:"clientId,omitempty"`
	Contract *models.Contract `json:"contract,omitempty"`
	Order    *models.Order    `json:"order,omitempty"`
}

// eventFrame - входящее событие websocket-моста
type eventFrame struct {
	Type     string  `json:"type"`
	ReqID    int     `json:"reqId"`
	OrderID  int64   `json:"orderId"`
	Account  string  `json:"account"`
	Accounts string  `json:"accounts"` // CSV, как в managedAccounts TWS API
	Tag      string  `json:"tag"`
	Value    string  `json:"value"`
	Currency string  `json:"currency"`
	Status   string  `json:"status"`
	Filled   float64 `json:"filled"`
	AvgPrice float64 `json:"avgFillPrice"`
	Code     int     `json:"code"`
	Message  string  `json:"message"`

	Contract models.Contract `json:"contract"`
	Position float64         `json:"position"`
	AvgCost  float64         `json:"avgCost"`
	Order    models.Order    `json:"order"`
}

// WSClient - клиент websocket-моста брокерского шлюза.
//
// Назначение:
// Реализует Client поверх gorilla/websocket: команды уходят JSON-кадрами,
// события читаются единственной горутиной readPump и транслируются
// в EventHandler. Reconnect-политика живёт выше, в Supervisor:
// при разрыве клиент лишь эмитит KindDisconnected и останавливается.
type WSClient struct {
	url      string
	clientID int
	logger   *utils.Logger

	conn   *websocket.Conn
	connMu sync.RWMutex

	handler   EventHandler
	handlerMu sync.RWMutex

	// closeChan закрывается один раз на всё время жизни клиента;
	// doneChan пересоздаётся на каждое соединение
	closeChan chan struct{}
	closeOnce sync.Once
	doneChan  chan struct{}
}

// NewWSClient создаёт клиента моста. Connect вызывается отдельно.
func NewWSClient(url string, clientID int, logger *utils.Logger) *WSClient {
	return &WSClient{
		url:       url,
		clientID:  clientID,
		logger:    logger.WithComponent("gateway"),
		closeChan: make(chan struct{}),
	}
}

// SetEventHandler устанавливает приёмник событий
func (c *WSClient) SetEventHandler(handler EventHandler) {
	c.handlerMu.Lock()
	c.handler = handler
	c.handlerMu.Unlock()
}

// Connect устанавливает соединение и запускает читающую горутину
func (c *WSClient) Connect(ctx context.Context) error {
	select {
	case <-c.closeChan:
		return ErrClosed
	default:
	}

	dialer := websocket.Dialer{}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.doneChan = make(chan struct{})
	done := c.doneChan
	c.connMu.Unlock()

	// Рукопожатие моста: сообщаем clientId
	if err := c.send(commandFrame{Op: "connect", ClientID: c.clientID}); err != nil {
		conn.Close()
		c.connMu.Lock()
		c.conn = nil
		c.connMu.Unlock()
		return fmt.Errorf("handshake: %w", err)
	}

	go c.readPump(conn, done)

	c.logger.Info("connected to gateway", utils.String("url", c.url))
	c.emit(Event{Kind: KindConnected})

	return nil
}

// IsConnected проверяет наличие живого соединения
func (c *WSClient) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn != nil
}

// Close закрывает клиента навсегда
func (c *WSClient) Close() error {
	c.closeOnce.Do(func() {
		close(c.closeChan)
	})

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// readPump читает кадры до разрыва соединения
func (c *WSClient) readPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}

		var frame eventFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.logger.Warn("malformed gateway frame", utils.Err(err))
			continue
		}

		c.emit(frameToEvent(frame))
	}
}

// handleDisconnect зачищает соединение и эмитит событие разрыва
func (c *WSClient) handleDisconnect(conn *websocket.Conn, err error) {
	c.connMu.Lock()
	// Игнорируем разрыв устаревшего соединения
	if c.conn != conn {
		c.connMu.Unlock()
		return
	}
	c.conn.Close()
	c.conn = nil
	c.connMu.Unlock()

	select {
	case <-c.closeChan:
		// Штатное закрытие, событий не рассылаем
		return
	default:
	}

	c.emit(Event{Kind: KindDisconnected, Err: err})
}

// emit доставляет событие обработчику
func (c *WSClient) emit(ev Event) {
	c.handlerMu.RLock()
	handler := c.handler
	c.handlerMu.RUnlock()

	if handler != nil {
		handler(ev)
	}
}

// send сериализует и отправляет команду
func (c *WSClient) send(cmd commandFrame) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", cmd.Op, err)
	}

	return conn.WriteMessage(websocket.TextMessage, data)
}

// Команды протокола

func (c *WSClient) ReqManagedAccts() error {
	return c.send(commandFrame{Op: "reqManagedAccts"})
}

func (c *WSClient) ReqAccountSummary(reqID int, group, tags, account string) error {
	return c.send(commandFrame{Op: "reqAccountSummary", ReqID: reqID, Group: group, Tags: tags, Account: account})
}

func (c *WSClient) CancelAccountSummary(reqID int) error {
	return c.send(commandFrame{Op: "cancelAccountSummary", ReqID: reqID})
}

func (c *WSClient) ReqPositions() error {
	return c.send(commandFrame{Op: "reqPositions"})
}

func (c *WSClient) CancelPositions() error {
	return c.send(commandFrame{Op: "cancelPositions"})
}

func (c *WSClient) ReqOpenOrders() error {
	return c.send(commandFrame{Op: "reqOpenOrders"})
}

func (c *WSClient) PlaceOrder(orderID int64, contract models.Contract, order models.Order) error {
	return c.send(commandFrame{Op: "placeOrder", OrderID: orderID, Contract: &contract, Order: &order})
}

func (c *WSClient) CancelOrder(orderID int64) error {
	return c.send(commandFrame{Op: "cancelOrder", OrderID: orderID})
}

// frameToEvent транслирует кадр моста в событие
func frameToEvent(f eventFrame) Event {
	switch EventKind(f.Type) {
	case KindNextValidID:
		return Event{Kind: KindNextValidID, NextOrderID: f.OrderID}

	case KindManagedAccounts:
		return Event{Kind: KindManagedAccounts, Accounts: splitAccounts(f.Accounts)}

	case KindAccountSummary:
		return Event{
			Kind:     KindAccountSummary,
			ReqID:    f.ReqID,
			Account:  f.Account,
			Tag:      f.Tag,
			Value:    f.Value,
			Currency: f.Currency,
		}

	case KindAccountSummaryEnd:
		return Event{Kind: KindAccountSummaryEnd, ReqID: f.ReqID}

	case KindAccountValue:
		return Event{
			Kind:     KindAccountValue,
			Account:  f.Account,
			Tag:      f.Tag,
			Value:    f.Value,
			Currency: f.Currency,
		}

	case KindPosition:
		return Event{
			Kind: KindPosition,
			Position: models.PositionRecord{
				Account:  f.Account,
				Contract: f.Contract,
				Quantity: f.Position,
				AvgCost:  f.AvgCost,
			},
		}

	case KindPositionEnd:
		return Event{Kind: KindPositionEnd}

	case KindOpenOrder:
		return Event{
			Kind: KindOpenOrder,
			OpenOrder: models.OpenOrder{
				OrderID:  f.OrderID,
				Contract: f.Contract,
				Order:    f.Order,
				Status:   f.Status,
			},
		}

	case KindOpenOrderEnd:
		return Event{Kind: KindOpenOrderEnd}

	case KindOrderStatus:
		return Event{
			Kind:         KindOrderStatus,
			OrderID:      f.OrderID,
			Status:       f.Status,
			Filled:       f.Filled,
			AvgFillPrice: f.AvgPrice,
		}

	case KindError:
		return Event{
			Kind:    KindError,
			OrderID: f.OrderID,
			Code:    f.Code,
			Message: f.Message,
		}

	default:
		return Event{Kind: KindError, Message: fmt.Sprintf("unknown frame type %q", f.Type)}
	}
}

// splitAccounts разбирает CSV-список счетов из managedAccounts
func splitAccounts(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
