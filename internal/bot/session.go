package bot

import (
	"sync"

	"ibtrade/internal/gateway"
	"ibtrade/pkg/utils"
)

// FillListener получает терминальный статус ордера.
// Вызывается не более одного раза, из горутины диспетчера событий.
type FillListener func(status string, filled, avgPrice float64)

// Session - состояние брокерской сессии.
//
// Назначение:
// Хранит то, что живёт между workflow: счётчик идентификаторов ордеров,
// последнюю цену покупки, список управляемых счетов. Принимает весь
// поток событий шлюза и раздаёт его коррелятору и слушателям ордеров.
//
// Поток событий один, поэтому обработка не требует упорядочивания
// между событиями; мьютекс защищает только конкурентный доступ
// со стороны workflow и HTTP-хендлеров.
type Session struct {
	logger *utils.Logger

	correlator *Correlator

	mu          sync.Mutex
	nextOrderID int64
	lastPrice   float64
	accounts    []string
	connected   bool

	// Одноразовые слушатели терминального статуса по orderID
	fillListeners map[int64]FillListener

	// Уведомление о подключении (bootstrap цикл бота)
	onConnected func()
}

// NewSession создаёт сессию. initialPrice - стартовая референсная цена
// до первого сигнала с ценой.
func NewSession(correlator *Correlator, initialPrice float64, logger *utils.Logger) *Session {
	return &Session{
		logger:        logger.WithComponent("session"),
		correlator:    correlator,
		lastPrice:     initialPrice,
		fillListeners: make(map[int64]FillListener),
	}
}

// SetOnConnected устанавливает callback, вызываемый на каждое
// успешное подключение к шлюзу (в отдельной горутине)
func (s *Session) SetOnConnected(fn func()) {
	s.mu.Lock()
	s.onConnected = fn
	s.mu.Unlock()
}

// NextOrderID выдаёт следующий идентификатор ордера
func (s *Session) NextOrderID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextOrderID
	s.nextOrderID++
	return id
}

// LastPrice возвращает последнюю известную цену покупки
func (s *Session) LastPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPrice
}

// SetLastPrice запоминает цену последней покупки
func (s *Session) SetLastPrice(price float64) {
	if price <= 0 {
		return
	}
	s.mu.Lock()
	s.lastPrice = price
	s.mu.Unlock()
}

// ManagedAccounts возвращает счета, о которых сообщил шлюз
func (s *Session) ManagedAccounts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.accounts))
	copy(out, s.accounts)
	return out
}

// IsConnected сообщает, подключена ли сессия
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// OnFill регистрирует одноразового слушателя терминального статуса
func (s *Session) OnFill(orderID int64, listener FillListener) {
	s.mu.Lock()
	s.fillListeners[orderID] = listener
	s.mu.Unlock()
}

// RemoveFillListener снимает слушателя, если он ещё не сработал
func (s *Session) RemoveFillListener(orderID int64) {
	s.mu.Lock()
	delete(s.fillListeners, orderID)
	s.mu.Unlock()
}

// OnEvent - единая точка входа событий шлюза
func (s *Session) OnEvent(ev gateway.Event) {
	switch ev.Kind {
	case gateway.KindConnected:
		s.mu.Lock()
		s.connected = true
		fn := s.onConnected
		s.mu.Unlock()
		if fn != nil {
			go fn()
		}

	case gateway.KindDisconnected:
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()

	case gateway.KindConnError:
		// Неудачные попытки подключения: супервизор сам переподключается,
		// сессии достаточно зафиксировать факт
		s.logger.Debug("gateway connect attempt failed", utils.Err(ev.Err))

	case gateway.KindNextValidID:
		s.mu.Lock()
		s.nextOrderID = ev.NextOrderID
		s.mu.Unlock()
		s.logger.Debug("next valid order id", utils.OrderID(ev.NextOrderID))

	case gateway.KindManagedAccounts:
		s.mu.Lock()
		s.accounts = ev.Accounts
		s.mu.Unlock()

	case gateway.KindOrderStatus:
		s.dispatchOrderStatus(ev)

	case gateway.KindError:
		if ev.Message != "" && !ev.IsConnectionRefused() {
			s.logger.Warn("gateway error",
				utils.Int("code", ev.Code),
				utils.OrderID(ev.OrderID),
				utils.String("message", ev.Message))
		}
	}

	// Коррелятор смотрит на все события, включая разрыв
	s.correlator.OnEvent(ev)
}

// dispatchOrderStatus будит одноразового слушателя на терминальном статусе
func (s *Session) dispatchOrderStatus(ev gateway.Event) {
	if !isTerminalStatus(ev.Status) {
		return
	}

	s.mu.Lock()
	listener := s.fillListeners[ev.OrderID]
	if listener != nil {
		delete(s.fillListeners, ev.OrderID)
	}
	s.mu.Unlock()

	if listener != nil {
		listener(ev.Status, ev.Filled, ev.AvgFillPrice)
	}
}

// isTerminalStatus - статусы, после которых ордер не изменится
func isTerminalStatus(status string) bool {
	switch status {
	case "Filled", "Cancelled", "ApiCancelled", "Inactive":
		return true
	default:
		return false
	}
}
