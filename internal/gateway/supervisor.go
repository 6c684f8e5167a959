package gateway

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ibtrade/pkg/utils"
)

// SupervisorState состояние надзора за соединением
type SupervisorState int32

const (
	SupervisorDisconnected SupervisorState = iota
	SupervisorConnecting
	SupervisorConnected
	SupervisorClosed
)

func (s SupervisorState) String() string {
	switch s {
	case SupervisorDisconnected:
		return "disconnected"
	case SupervisorConnecting:
		return "connecting"
	case SupervisorConnected:
		return "connected"
	case SupervisorClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SupervisorConfig параметры reconnect-политики
type SupervisorConfig struct {
	// Начальная задержка перед повторным подключением
	InitialDelay time.Duration
	// Потолок задержки после удвоений
	MaxDelay time.Duration
	// Таймаут одной попытки подключения
	ConnectTimeout time.Duration
}

// DefaultSupervisorConfig - политика по умолчанию: 5s с удвоением до 120s
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		InitialDelay:   5 * time.Second,
		MaxDelay:       120 * time.Second,
		ConnectTimeout: 10 * time.Second,
	}
}

// Supervisor держит соединение со шлюзом живым.
//
// Назначение:
// Единственный владелец reconnect-политики. Подключает Client, при
// разрыве ждёт текущую задержку и подключает снова. Задержка стартует
// с InitialDelay, удваивается после каждой неудачной попытки до
// MaxDelay и сбрасывается при успешном подключении.
//
// Логирование:
// - каждая новая величина задержки логируется ровно один раз подряд,
//   чтобы долгое отсутствие шлюза не заливало журнал;
// - отказ в соединении (шлюз ещё не поднялся) не считается сбоем
//   и отдельно не логируется.
type Supervisor struct {
	client Client
	config SupervisorConfig
	logger *utils.Logger

	state int32 // atomic SupervisorState

	// Задержка следующего reconnect и последняя залогированная величина
	delayMu         sync.Mutex
	delay           time.Duration
	lastLoggedDelay time.Duration

	// Сигнал о разрыве от event-потока клиента
	disconnected chan struct{}

	// Нисходящий приёмник событий (session)
	handler   EventHandler
	handlerMu sync.RWMutex

	closeChan chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSupervisor создаёт супервизор поверх клиента шлюза.
// Перехватывает event handler клиента, поэтому нисходящий обработчик
// устанавливается через SetEventHandler супервизора.
func NewSupervisor(client Client, config SupervisorConfig, logger *utils.Logger) *Supervisor {
	s := &Supervisor{
		client:       client,
		config:       config,
		logger:       logger.WithComponent("supervisor"),
		delay:        config.InitialDelay,
		disconnected: make(chan struct{}, 1),
		closeChan:    make(chan struct{}),
	}
	client.SetEventHandler(s.onEvent)
	return s
}

// SetEventHandler устанавливает нисходящий приёмник событий
func (s *Supervisor) SetEventHandler(handler EventHandler) {
	s.handlerMu.Lock()
	s.handler = handler
	s.handlerMu.Unlock()
}

// State возвращает текущее состояние
func (s *Supervisor) State() SupervisorState {
	return SupervisorState(atomic.LoadInt32(&s.state))
}

// IsConnected сообщает, установлено ли соединение
func (s *Supervisor) IsConnected() bool {
	return s.State() == SupervisorConnected
}

// Start запускает цикл поддержания соединения
func (s *Supervisor) Start() {
	s.wg.Add(1)
	go s.run()
}

// Close останавливает супервизор и закрывает клиента
func (s *Supervisor) Close() error {
	s.closeOnce.Do(func() {
		close(s.closeChan)
	})
	atomic.StoreInt32(&s.state, int32(SupervisorClosed))
	err := s.client.Close()
	s.wg.Wait()
	return err
}

// run - основной цикл: подключиться, дождаться разрыва, повторить
func (s *Supervisor) run() {
	defer s.wg.Done()

	for {
		select {
		case <-s.closeChan:
			return
		default:
		}

		atomic.StoreInt32(&s.state, int32(SupervisorConnecting))

		ctx, cancel := context.WithTimeout(context.Background(), s.config.ConnectTimeout)
		err := s.client.Connect(ctx)
		cancel()

		if err != nil {
			if !isConnectionRefused(err) {
				s.logger.Error("gateway connect failed", utils.Err(err))
			}
			s.dispatch(Event{Kind: KindConnError, Err: err})
			if !s.waitBackoff() {
				return
			}
			continue
		}

		atomic.StoreInt32(&s.state, int32(SupervisorConnected))
		s.resetDelay()

		// Ждём разрыва
		select {
		case <-s.closeChan:
			return
		case <-s.disconnected:
		}

		atomic.StoreInt32(&s.state, int32(SupervisorDisconnected))

		if !s.waitBackoff() {
			return
		}
	}
}

// waitBackoff ждёт текущую задержку и удваивает её на следующий раз.
// Возвращает false, если супервизор закрыт во время ожидания.
func (s *Supervisor) waitBackoff() bool {
	s.delayMu.Lock()
	delay := s.delay

	// Каждую новую величину задержки логируем один раз
	if delay != s.lastLoggedDelay {
		s.logger.Info("reconnecting to gateway",
			utils.String("delay", utils.FormatDelay(delay)))
		s.lastLoggedDelay = delay
	}

	next := delay * 2
	if next > s.config.MaxDelay {
		next = s.config.MaxDelay
	}
	s.delay = next
	s.delayMu.Unlock()

	select {
	case <-s.closeChan:
		return false
	case <-time.After(delay):
		return true
	}
}

// resetDelay возвращает политику к начальной задержке после успеха
func (s *Supervisor) resetDelay() {
	s.delayMu.Lock()
	s.delay = s.config.InitialDelay
	s.lastLoggedDelay = 0
	s.delayMu.Unlock()
}

// NextDelay возвращает задержку ближайшего reconnect (для статуса)
func (s *Supervisor) NextDelay() time.Duration {
	s.delayMu.Lock()
	defer s.delayMu.Unlock()
	return s.delay
}

// onEvent перехватывает поток событий клиента
func (s *Supervisor) onEvent(ev Event) {
	switch ev.Kind {
	case KindDisconnected:
		if ev.Err != nil && !isConnectionRefused(ev.Err) {
			s.logger.Warn("gateway connection lost", utils.Err(ev.Err))
		}
		// Будим run(); не блокируемся, если сигнал уже стоит
		select {
		case s.disconnected <- struct{}{}:
		default:
		}
	}

	s.dispatch(ev)
}

// dispatch доставляет событие текущему обработчику
func (s *Supervisor) dispatch(ev Event) {
	s.handlerMu.RLock()
	handler := s.handler
	s.handlerMu.RUnlock()

	if handler != nil {
		handler(ev)
	}
}

// isConnectionRefused распознаёт отказ в соединении по тексту ошибки
func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "connection refused")
}
