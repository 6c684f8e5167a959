package models

import "time"

// LogEntry - запись журнала событий (таблица logs).
//
// Журнал читается внешним UI через GET /api/v1/logs, поэтому каждая
// значимая запись (сигнал, ордер, причина прерывания) дублируется в БД
// помимо обычного структурированного лога.
type LogEntry struct {
	ID        int       `json:"id" db:"id"`
	Level     string    `json:"level" db:"level"` // info, warn, error
	Message   string    `json:"message" db:"message"`
	Account   string    `json:"account,omitempty" db:"account"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Уровни записей журнала
const (
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)
