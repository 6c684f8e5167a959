package middleware

import (
	"net/http"
)

// CORS - middleware для Cross-Origin Resource Sharing
//
// Назначение:
// Позволяет внешнему UI (дашборд на другом домене) обращаться к API.
// Разрешённые origins задаются конфигурацией; запросы без Origin
// (curl, TradingView webhook) проходят всегда.
//
// Важные заголовки:
// - Access-Control-Allow-Origin: конкретный домен (не * при credentials)
// - Access-Control-Allow-Methods: GET, POST, OPTIONS
// - Access-Control-Max-Age: 86400 (24 часа кеширования preflight)
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			} else if origin == "" {
				// Запросы без Origin (не из браузера) - разрешаем
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			// Для неразрешённых origins заголовки не ставятся -
			// браузер заблокирует ответ сам

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Webhook-Token")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
