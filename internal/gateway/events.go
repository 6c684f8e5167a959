package gateway

import "ibtrade/internal/models"

// EventKind тип события от брокерского шлюза
type EventKind string

const (
	// Жизненный цикл соединения
	KindConnected    EventKind = "connected"
	KindDisconnected EventKind = "disconnected"
	KindConnError    EventKind = "connError"

	// Сессия
	KindNextValidID     EventKind = "nextValidId"
	KindManagedAccounts EventKind = "managedAccounts"

	// Сводка по счёту
	KindAccountSummary    EventKind = "accountSummary"
	KindAccountSummaryEnd EventKind = "accountSummaryEnd"

	// Несолиситированное обновление значения счёта
	KindAccountValue EventKind = "accountValue"

	// Позиции
	KindPosition    EventKind = "position"
	KindPositionEnd EventKind = "positionEnd"

	// Ордера
	KindOpenOrder    EventKind = "openOrder"
	KindOpenOrderEnd EventKind = "openOrderEnd"
	KindOrderStatus  EventKind = "orderStatus"

	// Ошибка уровня API (код + сообщение, может относиться к ордеру)
	KindError EventKind = "error"
)

// Event - одно событие шлюза.
//
// Заполнены только поля, релевантные Kind; остальные - нулевые.
// События доставляются строго последовательно одним диспетчером,
// обработчик не должен блокироваться надолго.
type Event struct {
	Kind EventKind

	// KindConnError, KindDisconnected
	Err error

	// KindNextValidID
	NextOrderID int64

	// KindManagedAccounts
	Accounts []string

	// KindAccountSummary / KindAccountSummaryEnd / KindAccountValue
	ReqID    int
	Account  string
	Tag      string
	Value    string
	Currency string

	// KindPosition
	Position models.PositionRecord

	// KindOpenOrder
	OpenOrder models.OpenOrder

	// KindOrderStatus, KindError
	OrderID      int64
	Status       string
	Filled       float64
	AvgFillPrice float64
	Code         int
	Message      string
}

// EventHandler - последовательный приёмник событий шлюза
type EventHandler func(Event)

// IsConnectionRefused сообщает, является ли код ошибки шлюза отказом
// в соединении (шлюз ещё не поднялся). Такие ошибки ожидаемы во время
// reconnect-цикла и не логируются как сбои.
func (e Event) IsConnectionRefused() bool {
	return e.Kind == KindError && e.Code == CodeConnectionRefused
}

// CodeConnectionRefused - код ошибки "connection refused" в нотации TWS API
const CodeConnectionRefused = 502
