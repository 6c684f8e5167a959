package bot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"ibtrade/internal/gateway"
	"ibtrade/internal/models"
	"ibtrade/pkg/utils"
)

// Journal - журнал торговых событий (реализация в service поверх БД).
// Ошибки персистентности журнал глотает сам: торговля важнее записи.
type Journal interface {
	// Log пишет строку журнала, account может быть пустым
	Log(level, message, account string)

	// RecordOrder сохраняет отправленный ордер
	RecordOrder(rec models.OrderRecord)

	// MarkFilled отмечает ордер исполненным
	MarkFilled(orderID int64, avgPrice float64)
}

// NopJournal - журнал, который никуда не пишет
type NopJournal struct{}

func (NopJournal) Log(string, string, string)     {}
func (NopJournal) RecordOrder(models.OrderRecord) {}
func (NopJournal) MarkFilled(int64, float64)      {}

// fillResult - терминальный статус ордера, которого ждёт workflow
type fillResult struct {
	status   string
	filled   float64
	avgPrice float64
}

// Workflow - исполнитель торговых сценариев.
//
// Назначение:
// Превращает допущенный сигнал в последовательность команд шлюзу.
// Два сценария: открытие позиции с плечом и полная ликвидация.
// Счета обрабатываются строго последовательно; ошибка на одном
// счёте не прерывает обработку остальных.
//
// Инварианты:
//   - покупка считается только по свежему кэшу (AccountCache);
//   - перед покупкой отменяются висящие ордера и закрывается шорт;
//   - ликвидация закрывает только позиции по акциям, знак ордера
//     противоположен знаку позиции.
type Workflow struct {
	client     gateway.Client
	correlator *Correlator
	cache      *AccountCache
	session    *Session
	journal    Journal
	logger     *utils.Logger

	accounts []string
	contract models.Contract
	leverage float64
}

// NewWorkflow создаёт исполнитель сценариев
func NewWorkflow(
	client gateway.Client,
	correlator *Correlator,
	cache *AccountCache,
	session *Session,
	journal Journal,
	accounts []string,
	contract models.Contract,
	leverage float64,
	logger *utils.Logger,
) *Workflow {
	if journal == nil {
		journal = NopJournal{}
	}
	return &Workflow{
		client:     client,
		correlator: correlator,
		cache:      cache,
		session:    session,
		journal:    journal,
		logger:     logger.WithComponent("workflow"),
		accounts:   accounts,
		contract:   contract,
		leverage:   leverage,
	}
}

// OpenPosition открывает позицию на всех счетах по заданной цене.
//
// При onlyFlat счета, уже держащие позицию по инструменту,
// пропускаются: привилегированный сигнал докупает только там,
// где позиции ещё нет.
func (w *Workflow) OpenPosition(ctx context.Context, price float64, onlyFlat bool) error {
	started := time.Now()

	if price <= 0 {
		w.journal.Log(models.LogLevelWarn, fmt.Sprintf("open rejected: invalid price %v", price), "")
		RecordWorkflow(models.WorkflowOpen, "aborted", time.Since(started).Seconds())
		return models.ErrInvalidPrice
	}

	w.logger.Info("open position workflow started",
		utils.Price(price),
		utils.Symbol(w.contract.Symbol))

	var held map[string]bool
	if onlyFlat {
		var err error
		if held, err = w.heldAccounts(ctx); err != nil {
			RecordWorkflow(models.WorkflowOpen, "aborted", time.Since(started).Seconds())
			return fmt.Errorf("positions: %w", err)
		}
	}

	var errs []error
	for _, account := range w.accounts {
		if held[account] {
			w.logger.Info("account already holds position, skipping",
				utils.Account(account), utils.Symbol(w.contract.Symbol))
			w.journal.Log(models.LogLevelInfo,
				"open skipped: position already held", account)
			continue
		}
		if err := w.openForAccount(ctx, account, price); err != nil {
			w.logger.Error("open position failed",
				utils.Account(account), utils.Err(err))
			w.journal.Log(models.LogLevelError,
				fmt.Sprintf("open position failed: %v", err), account)
			errs = append(errs, fmt.Errorf("%s: %w", account, err))
		}
	}

	// Цена запоминается и при частичном успехе: следующий
	// привилегированный сигнал отталкивается от неё
	w.session.SetLastPrice(price)

	result := "done"
	if len(errs) == len(w.accounts) && len(errs) > 0 {
		result = "aborted"
	}
	RecordWorkflow(models.WorkflowOpen, result, time.Since(started).Seconds())

	return errors.Join(errs...)
}

// heldAccounts возвращает счета с ненулевой позицией по инструменту
func (w *Workflow) heldAccounts(ctx context.Context) (map[string]bool, error) {
	positions, err := w.correlator.Positions(ctx)
	if err != nil {
		return nil, err
	}

	held := make(map[string]bool)
	for _, pos := range positions {
		if pos.Contract.Symbol == w.contract.Symbol && !pos.IsFlat() {
			held[pos.Account] = true
		}
	}
	return held, nil
}

// openForAccount выполняет сценарий открытия для одного счёта
func (w *Workflow) openForAccount(ctx context.Context, account string, price float64) error {
	log := w.logger.WithAccount(account)

	w.transition(account, models.StateCancelOpenOrders)
	if err := w.cancelOpenOrders(ctx, account); err != nil {
		return fmt.Errorf("cancel open orders: %w", err)
	}

	w.transition(account, models.StateCoverNegative)
	if err := w.coverNegative(ctx, account); err != nil {
		return fmt.Errorf("cover short: %w", err)
	}

	w.transition(account, models.StateEnsureFreshCash)
	snap, err := w.cache.Get(ctx, account)
	if err != nil {
		return fmt.Errorf("account summary: %w", err)
	}

	w.transition(account, models.StateComputeQuantity)
	cash, ok := snap.CashValue()
	if !ok {
		w.abort(account, "cash value missing from summary")
		return nil
	}
	AccountCashValue.WithLabelValues(account).Set(cash)

	quantity := utils.OrderQuantity(cash, price, w.leverage)
	if quantity < 1 {
		w.abort(account, fmt.Sprintf("insufficient cash %.2f for price %.2f", cash, price))
		return nil
	}

	w.transition(account, models.StatePlaceOrder)
	orderID := w.session.NextOrderID()
	order := models.MarketOrder(account, models.SideBuy, float64(quantity))

	// Слушатель регистрируется до отправки: статус может прийти
	// раньше возврата PlaceOrder
	w.session.OnFill(orderID, func(status string, filled, avgPrice float64) {
		if status != models.OrderStatusFilled {
			w.journal.Log(models.LogLevelWarn,
				fmt.Sprintf("order %d finished as %s", orderID, status), account)
			return
		}
		OrdersFilled.WithLabelValues(models.SideBuy).Inc()
		w.journal.MarkFilled(orderID, avgPrice)
		w.journal.Log(models.LogLevelInfo,
			fmt.Sprintf("order %d filled: %s %.0f %s at %.2f",
				orderID, models.SideBuy, filled, w.contract.Symbol, avgPrice), account)
	})

	if err := w.client.PlaceOrder(orderID, w.contract, order); err != nil {
		w.session.RemoveFillListener(orderID)
		return fmt.Errorf("place order: %w", err)
	}

	OrdersPlaced.WithLabelValues(models.SideBuy, models.WorkflowOpen).Inc()
	w.journal.RecordOrder(models.OrderRecord{
		OrderID:  orderID,
		Account:  account,
		Symbol:   w.contract.Symbol,
		Side:     models.SideBuy,
		Quantity: float64(quantity),
		Workflow: models.WorkflowOpen,
		Status:   models.OrderStatusSubmitted,
	})

	log.Info("buy order placed",
		utils.OrderID(orderID),
		utils.Quantity(float64(quantity)),
		utils.Price(price))

	// Исполнение не блокирует workflow: слушатель дожурналит сам
	w.transition(account, models.StateAwaitFill)
	w.transition(account, models.StateDone)
	return nil
}

// LiquidateAll закрывает все позиции по акциям на всех счетах
func (w *Workflow) LiquidateAll(ctx context.Context) error {
	started := time.Now()

	w.logger.Info("liquidate workflow started")

	var errs []error
	for _, account := range w.accounts {
		if err := w.liquidateAccount(ctx, account); err != nil {
			w.logger.Error("liquidation failed",
				utils.Account(account), utils.Err(err))
			w.journal.Log(models.LogLevelError,
				fmt.Sprintf("liquidation failed: %v", err), account)
			errs = append(errs, fmt.Errorf("%s: %w", account, err))
		}
	}

	result := "done"
	if len(errs) == len(w.accounts) && len(errs) > 0 {
		result = "aborted"
	}
	RecordWorkflow(models.WorkflowLiquidate, result, time.Since(started).Seconds())

	return errors.Join(errs...)
}

// liquidateAccount закрывает позиции одного счёта
func (w *Workflow) liquidateAccount(ctx context.Context, account string) error {
	log := w.logger.WithAccount(account)

	w.transition(account, models.StateCancelOpenOrders)
	if err := w.cancelOpenOrders(ctx, account); err != nil {
		return fmt.Errorf("cancel open orders: %w", err)
	}

	w.transition(account, models.StateLiquidate)
	positions, err := w.correlator.Positions(ctx)
	if err != nil {
		return fmt.Errorf("positions: %w", err)
	}

	closed := 0
	for _, pos := range positions {
		if pos.Account != account || !pos.Contract.IsStock() || pos.IsFlat() {
			continue
		}

		side := utils.OppositeSide(pos.Quantity)
		quantity := math.Abs(pos.Quantity)

		orderID := w.session.NextOrderID()
		order := models.MarketOrder(account, side, quantity)

		if err := w.client.PlaceOrder(orderID, pos.Contract, order); err != nil {
			return fmt.Errorf("close %s: %w", pos.Contract.Symbol, err)
		}

		OrdersPlaced.WithLabelValues(side, models.WorkflowLiquidate).Inc()
		w.journal.RecordOrder(models.OrderRecord{
			OrderID:  orderID,
			Account:  account,
			Symbol:   pos.Contract.Symbol,
			Side:     side,
			Quantity: quantity,
			Workflow: models.WorkflowLiquidate,
			Status:   models.OrderStatusSubmitted,
		})

		log.Info("closing position",
			utils.OrderID(orderID),
			utils.Symbol(pos.Contract.Symbol),
			utils.Side(side),
			utils.Quantity(quantity))
		closed++
	}

	if closed == 0 {
		w.journal.Log(models.LogLevelInfo, "no stock positions to close", account)
		w.transition(account, models.StateDone)
		return nil
	}

	// Контрольный повторный листинг: остаточные позиции - повод
	// для ручного вмешательства
	w.transition(account, models.StateConfirmResidual)
	residual, err := w.correlator.Positions(ctx)
	if err != nil {
		return fmt.Errorf("confirm positions: %w", err)
	}

	for _, pos := range residual {
		if pos.Account == account && pos.Contract.IsStock() && !pos.IsFlat() {
			log.Warn("residual position after liquidation",
				utils.Symbol(pos.Contract.Symbol),
				utils.Quantity(pos.Quantity))
			w.journal.Log(models.LogLevelWarn,
				fmt.Sprintf("residual position %s %.0f after liquidation",
					pos.Contract.Symbol, pos.Quantity), account)
		}
	}

	w.transition(account, models.StateDone)
	return nil
}

// cancelOpenOrders отменяет все висящие ордера счёта и ждёт
// подтверждения каждой отмены: новый ордер нельзя отправлять,
// пока старый ещё жив и может исполниться.
func (w *Workflow) cancelOpenOrders(ctx context.Context, account string) error {
	orders, err := w.correlator.OpenOrders(ctx)
	if err != nil {
		return err
	}

	var stale []int64
	for _, o := range orders {
		if o.Order.Account == account && !o.IsTerminal() {
			stale = append(stale, o.OrderID)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	// Слушатель ставится до команды: терминальный статус может
	// прийти синхронно с ответом на CancelOrder
	acks := make(chan int64, len(stale))
	var cancelled []int64
	for _, orderID := range stale {
		id := orderID
		w.session.OnFill(id, func(string, float64, float64) {
			acks <- id
		})

		if err := w.client.CancelOrder(id); err != nil {
			w.session.RemoveFillListener(id)
			for _, prev := range cancelled {
				w.session.RemoveFillListener(prev)
			}
			return fmt.Errorf("cancel order %d: %w", id, err)
		}
		cancelled = append(cancelled, id)
		w.logger.Info("cancelled stale order",
			utils.Account(account), utils.OrderID(id))
	}

	for range cancelled {
		select {
		case <-acks:
		case <-ctx.Done():
			for _, id := range cancelled {
				w.session.RemoveFillListener(id)
			}
			return fmt.Errorf("cancel acknowledgement: %w", ctx.Err())
		}
	}

	return nil
}

// coverNegative закрывает короткую позицию покупкой и ждёт исполнения:
// пока шорт не закрыт, кэш в сводке не отражает будущую покупку
func (w *Workflow) coverNegative(ctx context.Context, account string) error {
	positions, err := w.correlator.Positions(ctx)
	if err != nil {
		return err
	}

	for _, pos := range positions {
		if pos.Account != account || pos.Contract.Symbol != w.contract.Symbol {
			continue
		}
		if !pos.IsShort() {
			continue
		}

		quantity := math.Abs(pos.Quantity)
		orderID := w.session.NextOrderID()

		resultCh := make(chan fillResult, 1)
		w.session.OnFill(orderID, func(status string, filled, avgPrice float64) {
			resultCh <- fillResult{status: status, filled: filled, avgPrice: avgPrice}
		})

		order := models.MarketOrder(account, models.SideBuy, quantity)
		if err := w.client.PlaceOrder(orderID, pos.Contract, order); err != nil {
			w.session.RemoveFillListener(orderID)
			return fmt.Errorf("cover order: %w", err)
		}

		OrdersPlaced.WithLabelValues(models.SideBuy, models.WorkflowCover).Inc()
		w.journal.RecordOrder(models.OrderRecord{
			OrderID:  orderID,
			Account:  account,
			Symbol:   pos.Contract.Symbol,
			Side:     models.SideBuy,
			Quantity: quantity,
			Workflow: models.WorkflowCover,
			Status:   models.OrderStatusSubmitted,
		})

		w.logger.Info("covering short position",
			utils.Account(account),
			utils.OrderID(orderID),
			utils.Quantity(quantity))

		select {
		case res := <-resultCh:
			if res.status != models.OrderStatusFilled {
				return fmt.Errorf("cover order %d finished as %s", orderID, res.status)
			}
			OrdersFilled.WithLabelValues(models.SideBuy).Inc()
			w.journal.MarkFilled(orderID, res.avgPrice)
		case <-ctx.Done():
			w.session.RemoveFillListener(orderID)
			return fmt.Errorf("cover order %d: %w", orderID, ctx.Err())
		}
	}

	return nil
}

// transition журналит смену состояния сценария
func (w *Workflow) transition(account, state string) {
	w.logger.Debug("workflow state",
		utils.Account(account), utils.State(state))
}

// abort завершает сценарий счёта с причиной в журнале
func (w *Workflow) abort(account, reason string) {
	w.logger.Warn("workflow aborted",
		utils.Account(account), utils.Reason(reason))
	w.journal.Log(models.LogLevelWarn, "workflow aborted: "+reason, account)
	w.transition(account, models.StateAborted)
}
