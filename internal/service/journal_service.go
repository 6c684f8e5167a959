package service

import (
	"ibtrade/internal/models"
	"ibtrade/pkg/utils"
)

// LogStore - запись журнала событий
type LogStore interface {
	Create(entry *models.LogEntry) error
}

// OrderStore - запись журнала ордеров
type OrderStore interface {
	Create(order *models.OrderRecord) error
	MarkFilled(orderID int64) error
}

// JournalService - персистентный журнал торговых событий.
//
// Реализует bot.Journal поверх репозиториев. Ошибки БД глотаются
// с записью в структурированный лог: сбой персистентности никогда
// не должен ломать торговый сценарий.
type JournalService struct {
	logStore   LogStore
	orderStore OrderStore
	logger     *utils.Logger
}

// NewJournalService создает журнал поверх репозиториев
func NewJournalService(logStore LogStore, orderStore OrderStore, logger *utils.Logger) *JournalService {
	return &JournalService{
		logStore:   logStore,
		orderStore: orderStore,
		logger:     logger.WithComponent("journal"),
	}
}

// Log пишет строку журнала событий
func (s *JournalService) Log(level, message, account string) {
	entry := &models.LogEntry{
		Level:   level,
		Message: message,
		Account: account,
	}
	if err := s.logStore.Create(entry); err != nil {
		s.logger.Warn("journal write failed",
			utils.Err(err), utils.String("message", message))
	}
}

// RecordOrder сохраняет отправленный ордер
func (s *JournalService) RecordOrder(rec models.OrderRecord) {
	if err := s.orderStore.Create(&rec); err != nil {
		s.logger.Warn("order journal write failed",
			utils.Err(err), utils.OrderID(rec.OrderID))
	}
}

// MarkFilled отмечает ордер исполненным
func (s *JournalService) MarkFilled(orderID int64, avgPrice float64) {
	if err := s.orderStore.MarkFilled(orderID); err != nil {
		s.logger.Warn("order fill journal failed",
			utils.Err(err), utils.OrderID(orderID), utils.Price(avgPrice))
	}
}
