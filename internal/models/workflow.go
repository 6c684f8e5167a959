package models

// Состояния workflow открытия позиции и ликвидации.
//
// Каждый вызов workflow - строго последовательная машина состояний;
// любой сбой шага переводит её в Aborted без частичных retry.
const (
	StateCancelOpenOrders = "CANCEL_OPEN_ORDERS" // отмена незакрытых ордеров
	StateCoverNegative    = "COVER_NEGATIVE"     // выкуп коротких позиций
	StateEnsureFreshCash  = "ENSURE_FRESH_CASH"  // проверка свежести кэша счёта
	StateComputeQuantity  = "COMPUTE_QUANTITY"   // расчёт объёма
	StatePlaceOrder       = "PLACE_ORDER"        // отправка ордера
	StateAwaitFill        = "AWAIT_FILL"         // ожидание исполнения (one-shot)
	StateLiquidate        = "LIQUIDATE"          // закрытие всех позиций
	StateConfirmResidual  = "CONFIRM_RESIDUAL"   // контрольный листинг остатков
	StateDone             = "DONE"               // успешное завершение
	StateAborted          = "ABORTED"            // прервано (шаг не прошёл)
)
