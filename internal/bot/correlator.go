package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"ibtrade/internal/gateway"
	"ibtrade/internal/models"
)

// Ошибки коррелятора
var (
	ErrRequestTimeout = errors.New("bot: gateway request timed out")
	ErrDisconnected   = errors.New("bot: gateway disconnected mid-request")
)

// pendingKind вид коррелируемого запроса
type pendingKind int

const (
	pendingManagedAccounts pendingKind = iota
	pendingAccountSummary
	pendingPositions
	pendingOpenOrders
	pendingKindCount
)

func (k pendingKind) String() string {
	switch k {
	case pendingManagedAccounts:
		return "managedAccounts"
	case pendingAccountSummary:
		return "accountSummary"
	case pendingPositions:
		return "positions"
	case pendingOpenOrders:
		return "openOrders"
	default:
		return "unknown"
	}
}

// SummaryRow - одна строка сводки по счёту
type SummaryRow struct {
	Account  string
	Tag      string
	Value    string
	Currency string
}

// call - один незавершённый запрос к шлюзу
type call struct {
	done chan struct{}
	err  error

	// Аккумуляторы: поток событий собирается до закрывающего события
	accounts  []string
	rows      []SummaryRow
	positions []models.PositionRecord
	orders    []models.OpenOrder
}

func (c *call) complete(err error) {
	c.err = err
	close(c.done)
}

// Correlator сопоставляет асинхронные события шлюза с запросами.
//
// Назначение:
// TWS-подобный шлюз отвечает потоком событий без привязки к вызову.
// Коррелятор превращает пары "команда - поток событий до закрывающего"
// в синхронные вызовы с результатом и ошибкой.
//
// Гарантии:
//   - не более одного незавершённого запроса каждого вида: одноимённые
//     вызовы сериализуются через мьютекс вида;
//   - запрос всегда снимается с учёта при выходе, включая таймаут и
//     отмену контекста: опоздавшие события молча отбрасываются;
//   - разрыв соединения завершает все незавершённые запросы ошибкой.
type Correlator struct {
	client  gateway.Client
	timeout time.Duration

	mu      sync.Mutex
	pending [pendingKindCount]*call

	// Мьютексы сериализации одноимённых вызовов
	kindMu [pendingKindCount]sync.Mutex
}

// NewCorrelator создаёт коррелятор. timeout ограничивает ожидание
// закрывающего события одного запроса.
func NewCorrelator(client gateway.Client, timeout time.Duration) *Correlator {
	return &Correlator{
		client:  client,
		timeout: timeout,
	}
}

// do выполняет один запрос: регистрирует call, шлёт команду, ждёт
// закрывающего события, таймаута или отмены
func (c *Correlator) do(ctx context.Context, kind pendingKind, send func() error) (*call, error) {
	c.kindMu[kind].Lock()
	defer c.kindMu[kind].Unlock()

	cl := &call{done: make(chan struct{})}

	c.mu.Lock()
	c.pending[kind] = cl
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.pending[kind] == cl {
			c.pending[kind] = nil
		}
		c.mu.Unlock()
	}()

	if err := send(); err != nil {
		return nil, err
	}

	started := time.Now()
	defer func() {
		RequestDuration.WithLabelValues(kind.String()).Observe(time.Since(started).Seconds())
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-cl.done:
		if cl.err != nil {
			return nil, cl.err
		}
		return cl, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		RequestTimeouts.WithLabelValues(kind.String()).Inc()
		return nil, ErrRequestTimeout
	}
}

// ManagedAccounts запрашивает список управляемых счетов
func (c *Correlator) ManagedAccounts(ctx context.Context) ([]string, error) {
	cl, err := c.do(ctx, pendingManagedAccounts, c.client.ReqManagedAccts)
	if err != nil {
		return nil, err
	}
	return cl.accounts, nil
}

// AccountSummary подписывается на сводку и собирает строки до
// закрывающего события с тем же reqID
func (c *Correlator) AccountSummary(ctx context.Context, reqID int, group, tags, account string) ([]SummaryRow, error) {
	cl, err := c.do(ctx, pendingAccountSummary, func() error {
		return c.client.ReqAccountSummary(reqID, group, tags, account)
	})
	if err != nil {
		return nil, err
	}
	return cl.rows, nil
}

// Positions запрашивает позиции по всем счетам
func (c *Correlator) Positions(ctx context.Context) ([]models.PositionRecord, error) {
	cl, err := c.do(ctx, pendingPositions, c.client.ReqPositions)
	if err != nil {
		return nil, err
	}
	return cl.positions, nil
}

// OpenOrders запрашивает открытые ордера клиента
func (c *Correlator) OpenOrders(ctx context.Context) ([]models.OpenOrder, error) {
	cl, err := c.do(ctx, pendingOpenOrders, c.client.ReqOpenOrders)
	if err != nil {
		return nil, err
	}
	return cl.orders, nil
}

// OnEvent скармливает коррелятору событие шлюза.
// События без соответствующего незавершённого запроса отбрасываются.
func (c *Correlator) OnEvent(ev gateway.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case gateway.KindManagedAccounts:
		// Одиночное событие без закрывающего
		if cl := c.pending[pendingManagedAccounts]; cl != nil {
			cl.accounts = ev.Accounts
			cl.complete(nil)
			c.pending[pendingManagedAccounts] = nil
		}

	case gateway.KindAccountSummary:
		if cl := c.pending[pendingAccountSummary]; cl != nil {
			cl.rows = append(cl.rows, SummaryRow{
				Account:  ev.Account,
				Tag:      ev.Tag,
				Value:    ev.Value,
				Currency: ev.Currency,
			})
		}

	case gateway.KindAccountSummaryEnd:
		if cl := c.pending[pendingAccountSummary]; cl != nil {
			cl.complete(nil)
			c.pending[pendingAccountSummary] = nil
		}

	case gateway.KindPosition:
		if cl := c.pending[pendingPositions]; cl != nil {
			cl.positions = append(cl.positions, ev.Position)
		}

	case gateway.KindPositionEnd:
		if cl := c.pending[pendingPositions]; cl != nil {
			cl.complete(nil)
			c.pending[pendingPositions] = nil
		}

	case gateway.KindOpenOrder:
		if cl := c.pending[pendingOpenOrders]; cl != nil {
			cl.orders = append(cl.orders, ev.OpenOrder)
		}

	case gateway.KindOpenOrderEnd:
		if cl := c.pending[pendingOpenOrders]; cl != nil {
			cl.complete(nil)
			c.pending[pendingOpenOrders] = nil
		}

	case gateway.KindDisconnected:
		// Ответы уже не придут - будим всех ожидающих с ошибкой
		for kind, cl := range c.pending {
			if cl != nil {
				cl.complete(ErrDisconnected)
				c.pending[kind] = nil
			}
		}
	}
}
