package models

import (
	"errors"
	"fmt"
)

// Signal представляет входящий торговый сигнал (webhook)
type Signal struct {
	Action  string  `json:"action,omitempty"`  // buy, sell или пусто
	Price   float64 `json:"price,omitempty"`   // референсная цена инструмента
	AlertID string  `json:"alertId,omitempty"` // идентификатор алерта источника
}

// Действия сигнала
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
)

// Ошибки валидации сигнала
var (
	ErrUnknownAction = errors.New("unknown signal action")
	ErrInvalidPrice  = errors.New("invalid signal price")
)

// Validate проверяет корректность сигнала.
//
// Пустой action допустим: такие сигналы несут только обновление цены
// либо срабатывают по привилегированному alertId.
func (s Signal) Validate() error {
	if s.Action != "" && s.Action != ActionBuy && s.Action != ActionSell {
		return fmt.Errorf("%w: %q", ErrUnknownAction, s.Action)
	}
	if s.Price < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidPrice, s.Price)
	}
	return nil
}

// HasAction возвращает true для сигналов с торговым действием
func (s Signal) HasAction() bool {
	return s.Action == ActionBuy || s.Action == ActionSell
}

// LockReason формирует причину блокировки для Signal Gate
func (s Signal) LockReason() string {
	return fmt.Sprintf("action=%s alertId=%s", s.Action, s.AlertID)
}
