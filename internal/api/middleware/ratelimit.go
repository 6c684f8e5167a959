package middleware

import (
	"net/http"

	"ibtrade/pkg/ratelimit"
	"ibtrade/pkg/utils"
)

// RateLimit - ограничение частоты запросов к endpoint
//
// Назначение:
// Защищает webhook от флуда при зацикленных алертах источника.
// Превышение лимита отвечает 429; источник повторит позже.
func RateLimit(limiter *ratelimit.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				utils.Warn("rate limit exceeded",
					utils.String("path", r.URL.Path),
					utils.String("remote", r.RemoteAddr))
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
