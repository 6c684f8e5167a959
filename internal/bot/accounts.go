package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"ibtrade/internal/models"
	"ibtrade/pkg/utils"
)

// Фиксированный reqID подписки на сводку: подписка одна, всегда
// снимается и выставляется заново под тем же идентификатором
const summaryReqID = 0

// ErrAccountUnknown - сводка не содержит запрошенный счёт
var ErrAccountUnknown = errors.New("bot: account not present in summary")

// summaryCanceller - часть клиента шлюза, нужная для пересоздания
// подписки на сводку
type summaryCanceller interface {
	CancelAccountSummary(reqID int) error
}

// AccountCache - кэш сводок по счетам.
//
// Назначение:
// Денежные решения (размер ордера) принимаются только по свежим
// данным. Кэш хранит последний снимок сводки по каждому счёту и
// прозрачно обновляет его, когда снимок старше окна свежести.
//
// Обновление пересоздаёт подписку целиком (cancel + req с тем же
// reqID), поэтому параллельные Refresh сериализуются.
type AccountCache struct {
	correlator *Correlator
	canceller  summaryCanceller
	logger     *utils.Logger

	// Окно свежести снимка
	staleness time.Duration

	refreshMu sync.Mutex

	mu        sync.RWMutex
	snapshots map[string]models.AccountSnapshot

	now func() time.Time
}

// NewAccountCache создаёт кэш сводок
func NewAccountCache(correlator *Correlator, canceller summaryCanceller, staleness time.Duration, logger *utils.Logger) *AccountCache {
	return &AccountCache{
		correlator: correlator,
		canceller:  canceller,
		logger:     logger.WithComponent("accounts"),
		staleness:  staleness,
		snapshots:  make(map[string]models.AccountSnapshot),
		now:        time.Now,
	}
}

// Get возвращает снимок счёта, обновляя кэш при устаревании
func (a *AccountCache) Get(ctx context.Context, account string) (models.AccountSnapshot, error) {
	a.mu.RLock()
	snap, ok := a.snapshots[account]
	a.mu.RUnlock()

	if ok && a.isFresh(snap) {
		return snap.Clone(), nil
	}

	if ok {
		a.logger.Debug("account snapshot stale",
			utils.Account(account),
			utils.Any("age", utils.Age(snap.LastUpdated)))
	}

	if err := a.Refresh(ctx, account); err != nil {
		return models.AccountSnapshot{}, err
	}

	a.mu.RLock()
	snap, ok = a.snapshots[account]
	a.mu.RUnlock()

	if !ok {
		return models.AccountSnapshot{}, fmt.Errorf("%w: %s", ErrAccountUnknown, account)
	}
	return snap.Clone(), nil
}

// Refresh пересоздаёт подписку на сводку одного счёта и обновляет
// его снимок в кэше. Снимки других счетов не трогаются.
func (a *AccountCache) Refresh(ctx context.Context, account string) error {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	// Снятие несуществующей подписки - штатная ситуация при старте
	if err := a.canceller.CancelAccountSummary(summaryReqID); err != nil {
		a.logger.Debug("cancel account summary", utils.Err(err))
	}

	rows, err := a.correlator.AccountSummary(ctx, summaryReqID, "All", models.SummaryTags, account)
	if err != nil {
		return fmt.Errorf("account summary: %w", err)
	}

	snap := models.NewAccountSnapshot(account)
	snap.LastUpdated = a.now()
	for _, row := range rows {
		// Мост без поддержки скоупа отвечает сводкой по всем счетам
		if row.Account != account {
			continue
		}
		value, err := strconv.ParseFloat(row.Value, 64)
		if err != nil {
			a.logger.Warn("unparsable summary value",
				utils.Account(row.Account),
				utils.Tag(row.Tag),
				utils.String("value", row.Value))
			continue
		}
		snap.Tags[row.Tag] = models.TagValue{Value: value, Currency: row.Currency}
	}

	a.mu.Lock()
	if len(snap.Tags) > 0 {
		a.snapshots[account] = snap
	} else {
		// Шлюз не знает такого счёта: протухшие данные не держим
		delete(a.snapshots, account)
	}
	a.mu.Unlock()

	a.logger.Debug("account summary refreshed",
		utils.Account(account), utils.Int("tags", len(snap.Tags)))
	return nil
}

// Snapshot возвращает копию снимка без обновления (для статуса)
func (a *AccountCache) Snapshot(account string) (models.AccountSnapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	snap, ok := a.snapshots[account]
	if !ok {
		return models.AccountSnapshot{}, false
	}
	return snap.Clone(), true
}

func (a *AccountCache) isFresh(snap models.AccountSnapshot) bool {
	if snap.LastUpdated.IsZero() {
		return false
	}
	return a.now().Sub(snap.LastUpdated) < a.staleness
}
