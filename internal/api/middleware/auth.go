package middleware

import (
	"net/http"
	"strings"

	"ibtrade/pkg/crypto"
	"ibtrade/pkg/utils"
)

// WebhookAuth - аутентификация webhook-запросов по разделяемому токену
//
// Назначение:
// Webhook endpoint торчит в интернет; токен отсекает чужие запросы.
// В конфигурации хранится только bcrypt-хеш токена, сам токен знает
// источник сигналов. Пустой хеш выключает аутентификацию (staging).
//
// Токен принимается из заголовка X-Webhook-Token либо
// Authorization: Bearer <token>.
func WebhookAuth(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get("X-Webhook-Token")
			if token == "" {
				auth := r.Header.Get("Authorization")
				token = strings.TrimPrefix(auth, "Bearer ")
				if token == auth {
					token = ""
				}
			}

			if err := crypto.VerifyToken(token, tokenHash); err != nil {
				utils.Warn("webhook auth failed",
					utils.String("remote", r.RemoteAddr))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
