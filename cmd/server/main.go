package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ibtrade/internal/api"
	"ibtrade/internal/bot"
	"ibtrade/internal/config"
	"ibtrade/internal/gateway"
	"ibtrade/internal/repository"
	"ibtrade/internal/service"
	"ibtrade/pkg/ratelimit"
	"ibtrade/pkg/retry"
	"ibtrade/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Инициализация логгера
	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	defer logger.Sync()

	logger.Info("starting ibtrade",
		utils.String("symbol", cfg.Bot.Symbol),
		utils.Any("accounts", cfg.Bot.Accounts))

	// Инициализация базы данных.
	// Журнал вторичен по отношению к торговле: без БД бот
	// продолжает работать, просто без персистентного журнала.
	var journal bot.Journal = bot.NopJournal{}
	db, err := initDatabase(cfg)
	if err != nil {
		logger.Warn("database unavailable, journaling disabled",
			utils.String("dsn", cfg.Database.DSNWithoutPassword()),
			utils.Err(err))
	} else {
		defer db.Close()
		logger.Info("connected to database",
			utils.String("dsn", cfg.Database.DSNWithoutPassword()))
	}

	// Инициализация репозиториев и журнала
	var logRepo *repository.LogRepository
	var orderRepo *repository.OrderRepository
	if db != nil {
		logRepo = repository.NewLogRepository(db)
		orderRepo = repository.NewOrderRepository(db)
		journal = service.NewJournalService(logRepo, orderRepo, logger)
	}

	// Gateway: websocket клиент + supervisor с реконнектом
	wsClient := gateway.NewWSClient(cfg.Gateway.URL, cfg.Gateway.ClientID, logger)
	supervisor := gateway.NewSupervisor(wsClient, gateway.SupervisorConfig{
		InitialDelay:   cfg.Gateway.ReconnectBase,
		MaxDelay:       cfg.Gateway.ReconnectMax,
		ConnectTimeout: cfg.Gateway.ConnectTimeout,
	}, logger)

	// Торговый бот
	tradingBot := bot.New(wsClient, cfg.Bot, journal, logger)
	supervisor.SetEventHandler(tradingBot.OnEvent)
	supervisor.Start()

	// Настройка зависимостей для API
	deps := &api.Dependencies{
		Signals:          tradingBot,
		Status:           tradingBot,
		WebhookTokenHash: cfg.Security.WebhookTokenHash,
		WebhookLimiter:   ratelimit.NewRateLimiter(cfg.Bot.WebhookRate, cfg.Bot.WebhookBurst),
		AllowedOrigins:   cfg.Server.AllowedOrigins,
	}
	if logRepo != nil && orderRepo != nil {
		deps.Logs = logRepo
		deps.Orders = orderRepo
	}

	// Настройка HTTP роутера
	router := api.SetupRoutes(deps)

	// HTTP сервер
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		logger.Info("starting server", utils.String("addr", server.Addr))
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				logger.Fatal("server failed", utils.Err(err))
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("server failed", utils.Err(err))
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Останавливаем supervisor: рвёт соединение со шлюзом
	// и прекращает реконнекты
	if err := supervisor.Close(); err != nil {
		logger.Warn("error closing gateway supervisor", utils.Err(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", utils.Err(err))
	}

	logger.Info("server exited")
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения: БД может стартовать позже бота,
	// поэтому ping с ретраями
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := retry.Do(ctx, func() error {
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()
		return db.PingContext(pingCtx)
	}, retry.NetworkConfig()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
