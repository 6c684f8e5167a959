package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Gateway  GatewayConfig
	Bot      BotConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port           int
	Host           string
	UseHTTPS       bool
	CertFile       string
	KeyFile        string
	AllowedOrigins []string // CORS allowlist для внешнего UI
}

// DatabaseConfig - настройки подключения к БД (журнал логов/ордеров)
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// GatewayConfig - настройки подключения к брокерскому шлюзу
type GatewayConfig struct {
	// URL websocket-моста шлюза
	// Для TWS: порт 7496 (реальный) или 7497 (бумажный),
	// для IB Gateway: 4001 (реальный) или 4002 (бумажный)
	URL      string
	ClientID int

	// Reconnect политика Connection Supervisor
	ReconnectBase  time.Duration // начальная задержка (5s)
	ReconnectMax   time.Duration // потолок задержки (120s)
	ConnectTimeout time.Duration // таймаут установки соединения
}

// BotConfig - торговые параметры
type BotConfig struct {
	// Счета, обрабатываемые каждым workflow (фиксированный список)
	Accounts []string

	// Единственный торгуемый инструмент
	Symbol          string
	SecType         string
	Exchange        string
	PrimaryExchange string
	Currency        string

	// Параметры открытия позиции
	Leverage     float64 // множитель кэша (1.25)
	InitialPrice float64 // стартовая референсная цена

	// Окно свежести account summary: старше - обязательный refresh
	StalenessWindow time.Duration

	// Cool-down блокировки Signal Gate.
	// Дебаунсит приём сигналов, а не завершение workflow.
	LockCooldown time.Duration

	// Таймаут одного коррелированного запроса к шлюзу
	RequestTimeout time.Duration

	// Привилегированные alertId: форсируют открытие/ликвидацию
	// независимо от action
	OpenAlertID      string
	LiquidateAlertID string

	// Rate limit webhook endpoint
	WebhookRate  float64
	WebhookBurst float64
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	// bcrypt-хеш webhook-токена; пусто = аутентификация выключена
	WebhookTokenHash string
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS:       getEnvAsBool("USE_HTTPS", false),
			CertFile:       getEnv("CERT_FILE", ""),
			KeyFile:        getEnv("KEY_FILE", ""),
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "ibtrade"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Gateway: GatewayConfig{
			URL:            getEnv("GATEWAY_URL", "ws://127.0.0.1:4001/ws"),
			ClientID:       getEnvAsInt("GATEWAY_CLIENT_ID", 0),
			ReconnectBase:  getEnvAsDuration("GATEWAY_RECONNECT_BASE", 5*time.Second),
			ReconnectMax:   getEnvAsDuration("GATEWAY_RECONNECT_MAX", 120*time.Second),
			ConnectTimeout: getEnvAsDuration("GATEWAY_CONNECT_TIMEOUT", 10*time.Second),
		},
		Bot: BotConfig{
			Accounts:        getEnvAsSlice("ACCOUNTS", nil),
			Symbol:          getEnv("SYMBOL", "TQQQ"),
			SecType:         getEnv("SEC_TYPE", "STK"),
			Exchange:        getEnv("EXCHANGE", "SMART"),
			PrimaryExchange: getEnv("PRIMARY_EXCHANGE", "NASDAQ"),
			Currency:        getEnv("CURRENCY", "USD"),

			Leverage:     getEnvAsFloat("LEVERAGE", 1.25),
			InitialPrice: getEnvAsFloat("INITIAL_PRICE", 66),

			StalenessWindow: getEnvAsDuration("STALENESS_WINDOW", 60*time.Second),
			LockCooldown:    getEnvAsDuration("LOCK_COOLDOWN", 4*time.Second),
			RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),

			OpenAlertID:      getEnv("OPEN_ALERT_ID", ""),
			LiquidateAlertID: getEnv("LIQUIDATE_ALERT_ID", ""),

			WebhookRate:  getEnvAsFloat("WEBHOOK_RATE", 5),
			WebhookBurst: getEnvAsFloat("WEBHOOK_BURST", 10),
		},
		Security: SecurityConfig{
			WebhookTokenHash: getEnv("WEBHOOK_TOKEN_HASH", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate проверяет числовые диапазоны и обязательные параметры
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if len(c.Bot.Accounts) == 0 {
		return fmt.Errorf("ACCOUNTS is required (comma-separated account ids)")
	}

	if c.Bot.Symbol == "" {
		return fmt.Errorf("SYMBOL cannot be empty")
	}

	if c.Bot.Leverage <= 0 {
		return fmt.Errorf("LEVERAGE must be positive, got %v", c.Bot.Leverage)
	}

	if c.Bot.StalenessWindow <= 0 {
		return fmt.Errorf("STALENESS_WINDOW must be positive, got %v", c.Bot.StalenessWindow)
	}

	if c.Bot.LockCooldown <= 0 {
		return fmt.Errorf("LOCK_COOLDOWN must be positive, got %v", c.Bot.LockCooldown)
	}

	if c.Bot.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %v", c.Bot.RequestTimeout)
	}

	if c.Gateway.ReconnectBase <= 0 {
		return fmt.Errorf("GATEWAY_RECONNECT_BASE must be positive, got %v", c.Gateway.ReconnectBase)
	}

	if c.Gateway.ReconnectMax < c.Gateway.ReconnectBase {
		return fmt.Errorf("GATEWAY_RECONNECT_MAX (%v) must not be below GATEWAY_RECONNECT_BASE (%v)",
			c.Gateway.ReconnectMax, c.Gateway.ReconnectBase)
	}

	return nil
}

// Contract собирает контракт инструмента из конфигурации
func (b BotConfig) Contract() (symbol, secType, exchange, primaryExchange, currency string) {
	return b.Symbol, b.SecType, b.Exchange, b.PrimaryExchange, b.Currency
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
