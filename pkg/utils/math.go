package utils

import (
	"math"
)

// math.go - математические утилиты для расчёта ордеров
//
// Назначение:
// Вспомогательные функции расчёта объёма ордера по состоянию счёта.
// Все функции являются чистыми (pure functions) без побочных эффектов.
//
// Функции:
// - OrderQuantity: расчёт количества акций по кэшу и цене
// - OppositeSide: противоположная сторона для закрытия позиции

// DefaultLeverage - доля кэша, используемая при открытии позиции.
// Значение > 1 означает покупку с плечом (маржинальный счёт).
const DefaultLeverage = 1.25

// OrderQuantity рассчитывает количество акций для покупки.
//
// Формула: floor(cashValue * leverage / price)
//
// Параметры:
//   - cashValue: доступный кэш на счёте (TotalCashValue)
//   - price: референсная цена инструмента
//   - leverage: множитель кэша (например, 1.25)
//
// Возвращает:
//   - 0 если cashValue <= 0, price <= 0, leverage <= 0
//     или любой из аргументов не является конечным числом
//   - иначе целое количество акций, округлённое вниз
//
// Примеры:
//   - OrderQuantity(10000, 66, 1.25) = 189
//   - OrderQuantity(0, 66, 1.25) = 0
//   - OrderQuantity(10000, -1, 1.25) = 0
func OrderQuantity(cashValue, price, leverage float64) int64 {
	if !isFinite(cashValue) || !isFinite(price) || !isFinite(leverage) {
		return 0
	}
	if cashValue <= 0 || price <= 0 || leverage <= 0 {
		return 0
	}

	qty := math.Floor(cashValue * leverage / price)
	if !isFinite(qty) || qty < 1 {
		return 0
	}
	return int64(qty)
}

// OppositeSide возвращает сторону ордера, закрывающего позицию.
//
// Параметры:
//   - qty: знаковое количество позиции (положительное = лонг)
//
// Возвращает:
//   - "SELL" для лонга, "BUY" для шорта, "" для нулевой позиции
func OppositeSide(qty float64) string {
	switch {
	case qty > 0:
		return "SELL"
	case qty < 0:
		return "BUY"
	default:
		return ""
	}
}

// isFinite проверяет что число конечно (не NaN и не Inf)
func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
