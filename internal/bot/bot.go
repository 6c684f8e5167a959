package bot

import (
	"context"
	"strconv"
	"time"

	"ibtrade/internal/config"
	"ibtrade/internal/gateway"
	"ibtrade/internal/models"
	"ibtrade/pkg/utils"
)

// Надбавка к последней цене для привилегированного сигнала открытия
const privilegedPriceMarkup = 1.05

// Потолок времени одного workflow: защищает от вечного ожидания
// исполнения cover-ордера
const workflowTimeout = 5 * time.Minute

// Decision - ответ бота на входящий сигнал.
// Invalid отличает ошибку протокола (ответ 400) от штатного
// отклонения вроде cooldown (ответ 200 с причиной).
type Decision struct {
	Accepted bool   `json:"accepted"`
	Workflow string `json:"workflow,omitempty"` // open, liquidate
	Reason   string `json:"reason,omitempty"`
	Invalid  bool   `json:"-"`
}

// Status - состояние бота для API статуса
type Status struct {
	Connected  bool                              `json:"connected"`
	GateLocked bool                              `json:"gate_locked"`
	LastPrice  float64                           `json:"last_price"`
	Accounts   []string                          `json:"accounts"`
	Managed    []string                          `json:"managed_accounts"`
	Snapshots  map[string]models.AccountSnapshot `json:"snapshots"`
}

// Bot - торговый оркестратор.
//
// Назначение:
// Связывает компоненты: принимает сигналы от HTTP-слоя, прогоняет их
// через гейт, выбирает сценарий и запускает workflow в фоне. Webhook
// отвечает сразу, не дожидаясь торговли.
//
// Маршрутизация сигнала:
//   - привилегированный alertId открытия (без action=buy): покупка
//     по последней цене с надбавкой 5%, цена из сигнала игнорируется;
//   - привилегированный alertId ликвидации: полная ликвидация;
//   - action=buy: покупка по цене из сигнала;
//   - action=sell: полная ликвидация;
//   - прочее: сигнал игнорируется без блокировки гейта.
type Bot struct {
	cfg    config.BotConfig
	logger *utils.Logger

	client     gateway.Client
	correlator *Correlator
	session    *Session
	cache      *AccountCache
	workflow   *Workflow
	gate       *SignalGate
}

// New собирает бота из клиента шлюза и конфигурации
func New(client gateway.Client, cfg config.BotConfig, journal Journal, logger *utils.Logger) *Bot {
	correlator := NewCorrelator(client, cfg.RequestTimeout)
	session := NewSession(correlator, cfg.InitialPrice, logger)
	cache := NewAccountCache(correlator, client, cfg.StalenessWindow, logger)

	contract := models.Contract{
		Symbol:          cfg.Symbol,
		SecType:         cfg.SecType,
		Exchange:        cfg.Exchange,
		PrimaryExchange: cfg.PrimaryExchange,
		Currency:        cfg.Currency,
	}

	workflow := NewWorkflow(client, correlator, cache, session, journal,
		cfg.Accounts, contract, cfg.Leverage, logger)

	b := &Bot{
		cfg:        cfg,
		logger:     logger.WithComponent("bot"),
		client:     client,
		correlator: correlator,
		session:    session,
		cache:      cache,
		workflow:   workflow,
		gate:       NewSignalGate(cfg.LockCooldown, logger),
	}

	session.SetOnConnected(b.bootstrap)
	return b
}

// OnEvent - приёмник событий шлюза; вешается на супервизор
func (b *Bot) OnEvent(ev gateway.Event) {
	switch ev.Kind {
	case gateway.KindConnected:
		UpdateGatewayStatus(true)
	case gateway.KindDisconnected:
		UpdateGatewayStatus(false)
	case gateway.KindAccountValue:
		// Шлюз присылает обновления значений счёта и вне сводки
		if ev.Tag == models.TagTotalCashValue && ev.Account != "" {
			if v, err := strconv.ParseFloat(ev.Value, 64); err == nil {
				AccountCashValue.WithLabelValues(ev.Account).Set(v)
			}
		}
	}
	b.session.OnEvent(ev)
}

// bootstrap выполняется на каждое подключение к шлюзу:
// сверяет счета и прогревает кэш сводок
func (b *Bot) bootstrap() {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.RequestTimeout)
	defer cancel()

	managed, err := b.correlator.ManagedAccounts(ctx)
	if err != nil {
		b.logger.Warn("managed accounts request failed", utils.Err(err))
	} else {
		for _, account := range b.cfg.Accounts {
			if !contains(managed, account) {
				b.logger.Warn("configured account not managed by gateway",
					utils.Account(account))
			}
		}
	}

	for _, account := range b.cfg.Accounts {
		if err := b.cache.Refresh(ctx, account); err != nil {
			b.logger.Warn("initial summary refresh failed",
				utils.Account(account), utils.Err(err))
		}
	}
}

// HandleSignal принимает сигнал и решает его судьбу.
// Торговый сценарий запускается в фоне; вызов не блокируется.
func (b *Bot) HandleSignal(sig models.Signal) Decision {
	RecordSignal(sig.Action)

	if err := sig.Validate(); err != nil {
		RecordRejection("invalid")
		b.logger.Warn("invalid signal", utils.Err(err), utils.AlertID(sig.AlertID))
		return Decision{Reason: err.Error(), Invalid: true}
	}

	workflow, price, onlyFlat := b.route(sig)

	// Цена из сигнала обновляет референсную: следующий
	// привилегированный сигнал отталкивается от неё.
	// Привилегированные сигналы свою цену игнорируют.
	if sig.Price > 0 && !b.isPrivilegedOpen(sig) && !b.isPrivilegedLiquidate(sig) {
		b.session.SetLastPrice(sig.Price)
	}

	if workflow == "" {
		if sig.Price > 0 {
			return Decision{Reason: "price updated"}
		}
		b.logger.Debug("signal ignored", utils.AlertID(sig.AlertID))
		return Decision{Reason: "no matching action"}
	}

	if workflow == models.WorkflowOpen && price <= 0 {
		RecordRejection("invalid")
		return Decision{Reason: "price required for buy signal", Invalid: true}
	}

	if !b.session.IsConnected() {
		RecordRejection("disconnected")
		return Decision{Reason: "gateway disconnected"}
	}

	if !b.gate.Admit(sig.LockReason()) {
		RecordRejection("cooldown")
		return Decision{Reason: "cooldown active"}
	}

	go b.run(workflow, price, onlyFlat)

	return Decision{Accepted: true, Workflow: workflow}
}

// route выбирает сценарий и цену для сигнала.
//
// Привилегированное открытие срабатывает только без action=buy:
// явная покупка важнее алерта и идёт по цене из сигнала.
// Привилегированное открытие докупает только на счетах без позиции.
func (b *Bot) route(sig models.Signal) (workflow string, price float64, onlyFlat bool) {
	switch {
	case b.isPrivilegedOpen(sig):
		return models.WorkflowOpen, b.session.LastPrice() * privilegedPriceMarkup, true
	case b.isPrivilegedLiquidate(sig):
		return models.WorkflowLiquidate, 0, false
	case sig.Action == models.ActionBuy:
		return models.WorkflowOpen, sig.Price, false
	case sig.Action == models.ActionSell:
		return models.WorkflowLiquidate, 0, false
	default:
		return "", 0, false
	}
}

func (b *Bot) isPrivilegedOpen(sig models.Signal) bool {
	return sig.AlertID != "" && sig.AlertID == b.cfg.OpenAlertID &&
		sig.Action != models.ActionBuy
}

func (b *Bot) isPrivilegedLiquidate(sig models.Signal) bool {
	return sig.AlertID != "" && sig.AlertID == b.cfg.LiquidateAlertID
}

// run исполняет выбранный сценарий с общим таймаутом
func (b *Bot) run(workflow string, price float64, onlyFlat bool) {
	ctx, cancel := context.WithTimeout(context.Background(), workflowTimeout)
	defer cancel()

	var err error
	switch workflow {
	case models.WorkflowOpen:
		err = b.workflow.OpenPosition(ctx, price, onlyFlat)
	case models.WorkflowLiquidate:
		err = b.workflow.LiquidateAll(ctx)
	}

	if err != nil {
		b.logger.Error("workflow finished with errors",
			utils.String("workflow", workflow), utils.Err(err))
	}
}

// Status собирает состояние бота для API
func (b *Bot) Status() Status {
	snapshots := make(map[string]models.AccountSnapshot, len(b.cfg.Accounts))
	for _, account := range b.cfg.Accounts {
		if snap, ok := b.cache.Snapshot(account); ok {
			snapshots[account] = snap
		}
	}

	return Status{
		Connected:  b.session.IsConnected(),
		GateLocked: b.gate.Locked(),
		LastPrice:  b.session.LastPrice(),
		Accounts:   b.cfg.Accounts,
		Managed:    b.session.ManagedAccounts(),
		Snapshots:  snapshots,
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
