package models

// Contract описывает торгуемый инструмент.
// Один фиксированный контракт настраивается при старте;
// все ордера ссылаются на него.
type Contract struct {
	Symbol          string `json:"symbol"`           // тикер (TQQQ)
	SecType         string `json:"sec_type"`         // тип бумаги (STK)
	Exchange        string `json:"exchange"`         // роутинг (SMART)
	PrimaryExchange string `json:"primary_exchange"` // основная биржа (NASDAQ)
	Currency        string `json:"currency"`         // валюта (USD)
}

// Типы бумаг
const (
	SecTypeStock = "STK"
)

// IsStock возвращает true для акций.
// Ликвидация затрагивает только stock-позиции.
func (c Contract) IsStock() bool {
	return c.SecType == SecTypeStock
}
