package models

import (
	"time"
)

// Теги account summary, запрашиваемые у шлюза
const (
	TagNetLiquidation = "NetLiquidation"
	TagTotalCashValue = "TotalCashValue"
)

// SummaryTags - список тегов в формате запроса протокола
const SummaryTags = TagNetLiquidation + "," + TagTotalCashValue

// TagValue - значение тега account summary с валютой
type TagValue struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

// AccountSnapshot - снимок состояния счёта.
//
// Мутируется только обработчиками событий account summary
// (через AccountCache); читается Order Workflow Engine.
// Автоматического TTL нет: свежесть проверяется читателями
// лениво по LastUpdated.
type AccountSnapshot struct {
	Account     string              `json:"account"`
	Tags        map[string]TagValue `json:"tags"`
	LastUpdated time.Time           `json:"last_updated"`
}

// NewAccountSnapshot создаёт пустой снимок для счёта
func NewAccountSnapshot(account string) AccountSnapshot {
	return AccountSnapshot{
		Account: account,
		Tags:    make(map[string]TagValue),
	}
}

// CashValue возвращает TotalCashValue счёта.
// Второе значение false если тег ещё не получен.
func (s AccountSnapshot) CashValue() (float64, bool) {
	tv, ok := s.Tags[TagTotalCashValue]
	if !ok {
		return 0, false
	}
	return tv.Value, true
}

// NetLiquidation возвращает NetLiquidation счёта
func (s AccountSnapshot) NetLiquidation() (float64, bool) {
	tv, ok := s.Tags[TagNetLiquidation]
	if !ok {
		return 0, false
	}
	return tv.Value, true
}

// IsFresh возвращает true если снимок обновлялся в пределах окна
func (s AccountSnapshot) IsFresh(window time.Duration) bool {
	if s.LastUpdated.IsZero() {
		return false
	}
	return time.Since(s.LastUpdated) < window
}

// Clone возвращает глубокую копию снимка.
// Кэш отдаёт наружу только копии, чтобы читатели не видели
// конкурентных мутаций.
func (s AccountSnapshot) Clone() AccountSnapshot {
	out := AccountSnapshot{
		Account:     s.Account,
		Tags:        make(map[string]TagValue, len(s.Tags)),
		LastUpdated: s.LastUpdated,
	}
	for k, v := range s.Tags {
		out.Tags[k] = v
	}
	return out
}
