package crypto

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// hash.go - хеширование webhook-токена
//
// Webhook endpoint принимает ордера, поэтому секретный токен
// не хранится в конфигурации открытым текстом: в окружении лежит
// bcrypt-хеш, а входящий токен сравнивается с ним.

// Ошибки хеширования
var (
	ErrEmptyToken    = errors.New("token cannot be empty")
	ErrTokenMismatch = errors.New("token does not match hash")
	ErrTokenTooLong  = errors.New("token exceeds maximum length of 72 bytes")
)

// DefaultCost - стоимость хеширования по умолчанию.
// Токен проверяется один раз на запрос, поэтому стоимость умеренная.
const DefaultCost = 10

// MaxTokenLength - ограничение bcrypt (72 байта)
const MaxTokenLength = 72

// HashToken хеширует webhook-токен с использованием bcrypt.
// Автоматически генерирует криптографически стойкий salt.
func HashToken(token string) (string, error) {
	if token == "" {
		return "", ErrEmptyToken
	}
	if len(token) > MaxTokenLength {
		return "", ErrTokenTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// VerifyToken сравнивает токен с bcrypt-хешем.
//
// Возвращает:
//   - nil: токен совпадает
//   - ErrTokenMismatch: токен не совпадает
//   - иная ошибка: хеш повреждён или имеет неверный формат
func VerifyToken(token, hash string) error {
	if token == "" {
		return ErrEmptyToken
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrTokenMismatch
		}
		return err
	}

	return nil
}
