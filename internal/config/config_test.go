package config

import (
	"os"
	"testing"
	"time"
)

// clearEnv сбрасывает переменные окружения, затрагиваемые Load
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"SERVER_PORT", "SERVER_HOST", "USE_HTTPS", "ALLOWED_ORIGINS",
		"DB_DRIVER", "DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD", "DB_SSL_MODE",
		"GATEWAY_URL", "GATEWAY_CLIENT_ID", "GATEWAY_RECONNECT_BASE", "GATEWAY_RECONNECT_MAX",
		"GATEWAY_CONNECT_TIMEOUT",
		"ACCOUNTS", "SYMBOL", "SEC_TYPE", "EXCHANGE", "PRIMARY_EXCHANGE", "CURRENCY",
		"LEVERAGE", "INITIAL_PRICE", "STALENESS_WINDOW", "LOCK_COOLDOWN", "REQUEST_TIMEOUT",
		"OPEN_ALERT_ID", "LIQUIDATE_ALERT_ID", "WEBHOOK_RATE", "WEBHOOK_BURST",
		"WEBHOOK_TOKEN_HASH", "LOG_LEVEL", "LOG_FORMAT", "LOG_OUTPUT",
	}
	for _, k := range keys {
		os.Unsetenv(k)
	}
}

// ============ Тесты значений по умолчанию ============

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("ACCOUNTS", "DU1111111")
	defer os.Unsetenv("ACCOUNTS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Gateway.ReconnectBase != 5*time.Second {
		t.Errorf("Gateway.ReconnectBase = %v, want 5s", cfg.Gateway.ReconnectBase)
	}
	if cfg.Gateway.ReconnectMax != 120*time.Second {
		t.Errorf("Gateway.ReconnectMax = %v, want 120s", cfg.Gateway.ReconnectMax)
	}
	if cfg.Bot.Symbol != "TQQQ" {
		t.Errorf("Bot.Symbol = %q, want TQQQ", cfg.Bot.Symbol)
	}
	if cfg.Bot.SecType != "STK" || cfg.Bot.Exchange != "SMART" ||
		cfg.Bot.PrimaryExchange != "NASDAQ" || cfg.Bot.Currency != "USD" {
		t.Errorf("unexpected contract defaults: %+v", cfg.Bot)
	}
	if cfg.Bot.Leverage != 1.25 {
		t.Errorf("Bot.Leverage = %v, want 1.25", cfg.Bot.Leverage)
	}
	if cfg.Bot.StalenessWindow != 60*time.Second {
		t.Errorf("Bot.StalenessWindow = %v, want 60s", cfg.Bot.StalenessWindow)
	}
	if cfg.Bot.LockCooldown != 4*time.Second {
		t.Errorf("Bot.LockCooldown = %v, want 4s", cfg.Bot.LockCooldown)
	}
	if cfg.Bot.RequestTimeout != 30*time.Second {
		t.Errorf("Bot.RequestTimeout = %v, want 30s", cfg.Bot.RequestTimeout)
	}
}

// ============ Тесты переопределения окружением ============

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	os.Setenv("ACCOUNTS", "DU1111111, DU2222222 ,")
	os.Setenv("SERVER_PORT", "9090")
	os.Setenv("LEVERAGE", "2.0")
	os.Setenv("LOCK_COOLDOWN", "10s")
	os.Setenv("GATEWAY_RECONNECT_BASE", "1s")
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Bot.Accounts) != 2 {
		t.Fatalf("Accounts = %v, want 2 entries", cfg.Bot.Accounts)
	}
	if cfg.Bot.Accounts[0] != "DU1111111" || cfg.Bot.Accounts[1] != "DU2222222" {
		t.Errorf("Accounts = %v, want trimmed ids", cfg.Bot.Accounts)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Bot.Leverage != 2.0 {
		t.Errorf("Leverage = %v, want 2.0", cfg.Bot.Leverage)
	}
	if cfg.Bot.LockCooldown != 10*time.Second {
		t.Errorf("LockCooldown = %v, want 10s", cfg.Bot.LockCooldown)
	}
	if cfg.Gateway.ReconnectBase != time.Second {
		t.Errorf("ReconnectBase = %v, want 1s", cfg.Gateway.ReconnectBase)
	}
}

// ============ Тесты валидации ============

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "missing accounts",
			env:  map[string]string{},
		},
		{
			name: "invalid server port",
			env:  map[string]string{"ACCOUNTS": "DU1", "SERVER_PORT": "70000"},
		},
		{
			name: "non-positive leverage",
			env:  map[string]string{"ACCOUNTS": "DU1", "LEVERAGE": "0"},
		},
		{
			name: "negative cooldown",
			env:  map[string]string{"ACCOUNTS": "DU1", "LOCK_COOLDOWN": "-1s"},
		},
		{
			name: "reconnect max below base",
			env: map[string]string{
				"ACCOUNTS":               "DU1",
				"GATEWAY_RECONNECT_BASE": "10s",
				"GATEWAY_RECONNECT_MAX":  "5s",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				os.Setenv(k, v)
			}
			defer clearEnv(t)

			if _, err := Load(); err == nil {
				t.Errorf("Load() expected error, got nil")
			}
		})
	}
}

// ============ Тесты DSN ============

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "db", Port: 5432, Name: "ibtrade",
		User: "bot", Password: "secret", SSLMode: "disable",
	}

	dsn := d.DSN()
	want := "host=db port=5432 user=bot password=secret dbname=ibtrade sslmode=disable"
	if dsn != want {
		t.Errorf("DSN() = %q, want %q", dsn, want)
	}

	safe := d.DSNWithoutPassword()
	wantSafe := "host=db port=5432 user=bot dbname=ibtrade sslmode=disable"
	if safe != wantSafe {
		t.Errorf("DSNWithoutPassword() = %q, want %q", safe, wantSafe)
	}
}
