package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================
//
// Использование:
// - Grafana дашборды поверх /metrics
// - Alertmanager: алерты на разрывы соединения и сбои workflow

// ============ Метрики сигналов ============

// SignalsReceived - принятые webhook-сигналы по действиям
var SignalsReceived = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ibtrade",
		Subsystem: "signals",
		Name:      "received_total",
		Help:      "Total number of webhook signals received",
	},
	[]string{"action"}, // buy, sell, alert, none
)

// SignalsRejected - отклонённые сигналы по причинам
var SignalsRejected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ibtrade",
		Subsystem: "signals",
		Name:      "rejected_total",
		Help:      "Total number of rejected webhook signals",
	},
	[]string{"reason"}, // cooldown, invalid, disconnected
)

// ============ Метрики workflow ============

// WorkflowRuns - завершённые workflow по результату
var WorkflowRuns = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ibtrade",
		Subsystem: "workflow",
		Name:      "runs_total",
		Help:      "Total number of completed workflows",
	},
	[]string{"workflow", "result"}, // workflow: open, liquidate; result: done, aborted
)

// WorkflowDuration - длительность workflow от старта до завершения
var WorkflowDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "ibtrade",
		Subsystem: "workflow",
		Name:      "duration_seconds",
		Help:      "Workflow duration from start to completion in seconds",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	},
	[]string{"workflow"},
)

// OrdersPlaced - отправленные ордера
var OrdersPlaced = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ibtrade",
		Subsystem: "orders",
		Name:      "placed_total",
		Help:      "Total number of orders submitted to the gateway",
	},
	[]string{"side", "workflow"},
)

// OrdersFilled - исполненные ордера
var OrdersFilled = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ibtrade",
		Subsystem: "orders",
		Name:      "filled_total",
		Help:      "Total number of filled orders",
	},
	[]string{"side"},
)

// ============ Метрики состояния ============

// GatewayConnected - статус соединения со шлюзом
var GatewayConnected = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "ibtrade",
		Subsystem: "gateway",
		Name:      "connected",
		Help:      "Gateway connection status (1=connected, 0=disconnected)",
	},
)

// GatewayReconnects - количество разрывов соединения
var GatewayReconnects = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "ibtrade",
		Subsystem: "gateway",
		Name:      "reconnects_total",
		Help:      "Total number of gateway connection losses",
	},
)

// RequestDuration - длительность коррелированных запросов к шлюзу
var RequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "ibtrade",
		Subsystem: "gateway",
		Name:      "request_duration_seconds",
		Help:      "Duration of correlated gateway requests in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30},
	},
	[]string{"kind"},
)

// RequestTimeouts - запросы, не дождавшиеся закрывающего события
var RequestTimeouts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ibtrade",
		Subsystem: "gateway",
		Name:      "request_timeouts_total",
		Help:      "Total number of correlated gateway requests that timed out",
	},
	[]string{"kind"},
)

// AccountCashValue - последнее известное значение кэша по счетам
var AccountCashValue = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "ibtrade",
		Subsystem: "account",
		Name:      "cash_value",
		Help:      "Last known TotalCashValue per account",
	},
	[]string{"account"},
)

// ============ Вспомогательные функции ============

// RecordSignal записывает принятый сигнал
func RecordSignal(action string) {
	if action == "" {
		action = "none"
	}
	SignalsReceived.WithLabelValues(action).Inc()
}

// RecordRejection записывает отклонённый сигнал
func RecordRejection(reason string) {
	SignalsRejected.WithLabelValues(reason).Inc()
}

// RecordWorkflow записывает завершение workflow
func RecordWorkflow(workflow, result string, seconds float64) {
	WorkflowRuns.WithLabelValues(workflow, result).Inc()
	WorkflowDuration.WithLabelValues(workflow).Observe(seconds)
}

// UpdateGatewayStatus обновляет статус соединения
func UpdateGatewayStatus(connected bool) {
	if connected {
		GatewayConnected.Set(1)
	} else {
		GatewayConnected.Set(0)
		GatewayReconnects.Inc()
	}
}
