package utils

import (
	"fmt"
	"time"
)

// time.go - утилиты для работы со временем
//
// Назначение:
// Возраст кэшированных данных счёта и форматирование задержек
// для логов переподключения.

// Age возвращает возраст отметки времени.
// Для нулевого времени возвращает очень большое значение.
func Age(t time.Time) time.Duration {
	if t.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return time.Since(t)
}

// FormatDelay форматирует задержку в секундах с одним знаком
// после запятой ("5.0s", "120.0s") - единый формат для логов
// reconnect-цикла.
func FormatDelay(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
