package bot

import (
	"sync"
	"time"

	"ibtrade/pkg/utils"
)

// SignalGate - дебаунс входящих сигналов.
//
// Назначение:
// TradingView шлёт повторные webhook при ретраях и дублирующих
// алертах. Гейт пропускает не более одного сигнала за cooldown:
// первый проходит и взводит блокировку, остальные отклоняются до
// её истечения. Блокировка ограничивает приём, а не время работы
// workflow: длинный workflow не продлевает её.
type SignalGate struct {
	logger *utils.Logger

	cooldown time.Duration

	mu          sync.Mutex
	lockedUntil time.Time
	lockReason  string

	now func() time.Time
}

// NewSignalGate создаёт гейт с заданным cooldown
func NewSignalGate(cooldown time.Duration, logger *utils.Logger) *SignalGate {
	return &SignalGate{
		logger:   logger.WithComponent("gate"),
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Admit пытается пропустить сигнал. reason описывает сигнал для
// журнала. Ровно на границе истечения блокировки сигнал проходит.
func (g *SignalGate) Admit(reason string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now.Before(g.lockedUntil) {
		g.logger.Info("signal rejected by cooldown",
			utils.Reason(reason),
			utils.String("holder", g.lockReason),
			utils.Delay(g.lockedUntil.Sub(now)))
		return false
	}

	g.lockedUntil = now.Add(g.cooldown)
	g.lockReason = reason
	return true
}

// Locked сообщает, действует ли блокировка сейчас
func (g *SignalGate) Locked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.now().Before(g.lockedUntil)
}
