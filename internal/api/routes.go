package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ibtrade/internal/api/handlers"
	"ibtrade/internal/api/middleware"
	"ibtrade/pkg/ratelimit"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	// Приёмник сигналов и поставщик статуса (бот)
	Signals handlers.SignalSink
	Status  handlers.StatusProvider

	// Журналы
	Logs   handlers.LogSource
	Orders handlers.OrderSource

	// Безопасность webhook
	WebhookTokenHash string
	WebhookLimiter   *ratelimit.RateLimiter

	// CORS allowlist
	AllowedOrigins []string
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
//	POST /webhook        - торговый сигнал (auth + rate limit)
//	GET  /health         - liveness
//	GET  /metrics        - Prometheus
//	GET  /api/v1/status  - состояние бота
//	GET  /api/v1/logs    - журнал событий
//	GET  /api/v1/orders  - журнал ордеров
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. WebhookAuth + RateLimit (только /webhook)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)

	var origins []string
	if deps != nil {
		origins = deps.AllowedOrigins
	}
	router.Use(middleware.CORS(origins))

	// Webhook: единственная торговая точка входа
	if deps != nil && deps.Signals != nil {
		webhookHandler := handlers.NewWebhookHandler(deps.Signals)

		var webhook http.Handler = http.HandlerFunc(webhookHandler.HandleWebhook)
		if deps.WebhookLimiter != nil {
			webhook = middleware.RateLimit(deps.WebhookLimiter)(webhook)
		}
		webhook = middleware.WebhookAuth(deps.WebhookTokenHash)(webhook)

		router.Handle("/webhook", webhook).Methods("POST")
	}

	// API v1 routes
	apiV1 := router.PathPrefix("/api/v1").Subrouter()

	if deps != nil && deps.Status != nil {
		statusHandler := handlers.NewStatusHandler(deps.Status)
		apiV1.HandleFunc("/status", statusHandler.GetStatus).Methods("GET")
	}

	if deps != nil && deps.Logs != nil && deps.Orders != nil {
		logsHandler := handlers.NewLogsHandler(deps.Logs, deps.Orders)
		apiV1.HandleFunc("/logs", logsHandler.GetLogs).Methods("GET")
		apiV1.HandleFunc("/orders", logsHandler.GetOrders).Methods("GET")
	}

	// Prometheus метрики
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
