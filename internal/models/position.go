package models

// PositionRecord - позиция счёта по инструменту.
//
// Строится из событий position шлюза. Используется транзиентно
// внутри workflow (cover-negative, liquidate) и не хранится дольше
// одного вызова workflow.
type PositionRecord struct {
	Account  string   `json:"account"`
	Contract Contract `json:"contract"`
	Quantity float64  `json:"quantity"` // знаковое: > 0 лонг, < 0 шорт
	AvgCost  float64  `json:"avg_cost"`
}

// PositionKey - ключ позиции (account, instrument)
type PositionKey struct {
	Account string
	Symbol  string
}

// Key возвращает ключ позиции
func (p PositionRecord) Key() PositionKey {
	return PositionKey{Account: p.Account, Symbol: p.Contract.Symbol}
}

// IsFlat возвращает true для нулевой позиции.
// Нулевые позиции пропускаются, это не ошибка.
func (p PositionRecord) IsFlat() bool {
	return p.Quantity == 0
}

// IsShort возвращает true для короткой позиции
func (p PositionRecord) IsShort() bool {
	return p.Quantity < 0
}
