package models

import "time"

// Order - параметры ордера, отправляемого шлюзу
type Order struct {
	Action        string  `json:"action"`         // BUY или SELL
	OrderType     string  `json:"order_type"`     // MKT
	TotalQuantity float64 `json:"total_quantity"` // количество акций
	Account       string  `json:"account"`        // счёт-владелец
	Transmit      bool    `json:"transmit"`       // отправить немедленно
}

// Стороны ордера (формат протокола шлюза)
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Типы ордеров
const (
	OrderTypeMarket = "MKT"
)

// Статусы ордера, приходящие в orderStatus событиях
const (
	OrderStatusSubmitted = "Submitted"
	OrderStatusFilled    = "Filled"
	OrderStatusCancelled = "Cancelled"
)

// MarketOrder создаёт рыночный ордер для счёта
func MarketOrder(account, side string, quantity float64) Order {
	return Order{
		Action:        side,
		OrderType:     OrderTypeMarket,
		TotalQuantity: quantity,
		Account:       account,
		Transmit:      true,
	}
}

// OpenOrder - незакрытый ордер из листинга open orders
type OpenOrder struct {
	OrderID  int64    `json:"order_id"`
	Contract Contract `json:"contract"`
	Order    Order    `json:"order"`
	Status   string   `json:"status"`
}

// IsTerminal возвращает true для статуса, после которого ордер
// не требует отмены
func (o OpenOrder) IsTerminal() bool {
	return o.Status == OrderStatusFilled
}

// OrderRecord - запись журнала ордеров (таблица orders)
type OrderRecord struct {
	ID           int        `json:"id" db:"id"`
	OrderID      int64      `json:"order_id" db:"order_id"`
	Account      string     `json:"account" db:"account"`
	Symbol       string     `json:"symbol" db:"symbol"`
	Side         string     `json:"side" db:"side"`
	Quantity     float64    `json:"quantity" db:"quantity"`
	Workflow     string     `json:"workflow" db:"workflow"` // open, cover, liquidate
	Status       string     `json:"status" db:"status"`
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	FilledAt     *time.Time `json:"filled_at,omitempty" db:"filled_at"`
}

// Типы workflow для журнала ордеров
const (
	WorkflowOpen      = "open"
	WorkflowCover     = "cover"
	WorkflowLiquidate = "liquidate"
)
