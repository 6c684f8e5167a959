package gateway

import (
	"context"
	"errors"

	"ibtrade/internal/models"
)

// Ошибки клиента шлюза
var (
	ErrNotConnected = errors.New("gateway: not connected")
	ErrClosed       = errors.New("gateway: client is closed")
)

// Client - команды брокерского шлюза.
//
// Назначение:
// Абстрагирует транспорт до шлюза (websocket-мост TWS / IB Gateway),
// чтобы supervisor, session и workflow не зависели от протокола.
//
// Контракт:
//   - Connect устанавливает ровно одно соединение; повторный Connect
//     после разрыва допустим.
//   - Все Req*/Cancel* команды асинхронны: результат приходит событиями
//     через установленный EventHandler.
//   - EventHandler вызывается из одной горутины, события упорядочены.
type Client interface {
	// Connect устанавливает соединение со шлюзом
	Connect(ctx context.Context) error

	// Close разрывает соединение и освобождает ресурсы
	Close() error

	// IsConnected сообщает текущее состояние соединения
	IsConnected() bool

	// SetEventHandler устанавливает единственный приёмник событий.
	// Должен быть вызван до Connect.
	SetEventHandler(handler EventHandler)

	// ReqManagedAccts запрашивает список управляемых счетов
	ReqManagedAccts() error

	// ReqAccountSummary подписывается на сводку по счёту.
	// reqID идентифицирует подписку и повторяется в событиях-ответах.
	// Непустой account сужает сводку до одного счёта.
	ReqAccountSummary(reqID int, group, tags, account string) error

	// CancelAccountSummary снимает подписку на сводку
	CancelAccountSummary(reqID int) error

	// ReqPositions запрашивает позиции по всем счетам
	ReqPositions() error

	// CancelPositions останавливает поток позиций
	CancelPositions() error

	// ReqOpenOrders запрашивает открытые ордера текущего клиента
	ReqOpenOrders() error

	// PlaceOrder отправляет ордер с заданным идентификатором
	PlaceOrder(orderID int64, contract models.Contract, order models.Order) error

	// CancelOrder отменяет ордер по идентификатору
	CancelOrder(orderID int64) error
}
