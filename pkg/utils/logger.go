package utils

import (
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger.go - настройка структурированного логирования (zap)
//
// Назначение:
// Единая инициализация логгера для всех компонентов.
// Каждый отклонённый сигнал и прерванный workflow обязан оставлять
// запись с контекстом (аккаунт, причина) для последующей диагностики.
//
// Функции:
// - InitLogger: создать логгер по конфигурации (уровень, формат, вывод)
// - InitGlobalLogger / L(): глобальный логгер процесса
// - Кастомные конструкторы полей (Account, OrderID, Reason, ...)

// LogConfig - конфигурация логгера
type LogConfig struct {
	Level       string // debug, info, warn, error, fatal
	Format      string // json или text
	Output      string // путь к файлу; пусто = stderr
	Development bool   // режим разработки (человекочитаемые stack traces)
}

// Logger оборачивает zap.Logger вместе с sugared вариантом
type Logger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// InitLogger создаёт и настраивает логгер.
//
// При невозможности открыть файл вывода не паникует,
// а откатывается на stderr.
func InitLogger(cfg LogConfig) *Logger {
	level := parseLevel(cfg.Level)

	var encoderCfg zapcore.EncoderConfig
	if cfg.Development {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
	} else {
		encoderCfg = zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "text", "console":
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	default:
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	// Выбор назначения: файл или stderr (fallback на stderr при ошибке)
	sink := zapcore.AddSync(os.Stderr)
	if cfg.Output != "" {
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			sink = zapcore.AddSync(f)
		}
	}

	core := zapcore.NewCore(encoder, sink, level)

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}

	zl := zap.New(core, opts...)
	return &Logger{
		Logger: zl,
		sugar:  zl.Sugar(),
	}
}

// parseLevel преобразует строку в zapcore.Level (default: info)
func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// With возвращает дочерний логгер с дополнительными полями
func (l *Logger) With(fields ...zap.Field) *Logger {
	zl := l.Logger.With(fields...)
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

// WithComponent добавляет имя компонента (supervisor, workflow, gate, ...)
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(zap.String("component", name))
}

// WithAccount добавляет идентификатор торгового счёта
func (l *Logger) WithAccount(account string) *Logger {
	return l.With(zap.String("account", account))
}

// WithOrderID добавляет номер ордера
func (l *Logger) WithOrderID(id int64) *Logger {
	return l.With(zap.Int64("order_id", id))
}

// WithSymbol добавляет тикер инструмента
func (l *Logger) WithSymbol(symbol string) *Logger {
	return l.With(zap.String("symbol", symbol))
}

// Sugar возвращает sugared-логгер для printf-style вызовов
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// ============================================================
// Глобальный логгер
// ============================================================

// InitGlobalLogger инициализирует глобальный логгер процесса
func InitGlobalLogger(cfg LogConfig) *Logger {
	logger := InitLogger(cfg)
	SetGlobalLogger(logger)
	return logger
}

// SetGlobalLogger устанавливает глобальный логгер
func SetGlobalLogger(l *Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// GetGlobalLogger возвращает глобальный логгер.
// Если не инициализирован, создаёт логгер по умолчанию.
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()

	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{Level: "info", Format: "json"})
	}
	return globalLogger
}

// L - короткий алиас для GetGlobalLogger
func L() *Logger {
	return GetGlobalLogger()
}

// Debug логирует через глобальный логгер
func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }

// Info логирует через глобальный логгер
func Info(msg string, fields ...zap.Field) { L().Info(msg, fields...) }

// Warn логирует через глобальный логгер
func Warn(msg string, fields ...zap.Field) { L().Warn(msg, fields...) }

// Error логирует через глобальный логгер
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

// Debugf - printf-style debug через глобальный логгер
func Debugf(format string, args ...interface{}) { L().sugar.Debugf(format, args...) }

// Infof - printf-style info через глобальный логгер
func Infof(format string, args ...interface{}) { L().sugar.Infof(format, args...) }

// Warnf - printf-style warn через глобальный логгер
func Warnf(format string, args ...interface{}) { L().sugar.Warnf(format, args...) }

// Errorf - printf-style error через глобальный логгер
func Errorf(format string, args ...interface{}) { L().sugar.Errorf(format, args...) }

// ============================================================
// Кастомные конструкторы полей (единые имена во всех логах)
// ============================================================

// Account - идентификатор счёта (U10823590)
func Account(account string) zap.Field { return zap.String("account", account) }

// OrderID - номер ордера, выданный шлюзом
func OrderID(id int64) zap.Field { return zap.Int64("order_id", id) }

// Symbol - тикер инструмента
func Symbol(symbol string) zap.Field { return zap.String("symbol", symbol) }

// Price - цена
func Price(price float64) zap.Field { return zap.Float64("price", price) }

// Quantity - количество акций
func Quantity(qty float64) zap.Field { return zap.Float64("quantity", qty) }

// Side - сторона ордера (BUY/SELL)
func Side(side string) zap.Field { return zap.String("side", side) }

// State - состояние workflow или соединения
func State(state string) zap.Field { return zap.String("state", state) }

// Reason - причина отклонения/прерывания
func Reason(reason string) zap.Field { return zap.String("reason", reason) }

// RequestID - логический идентификатор запроса протокола
func RequestID(id int) zap.Field { return zap.Int("request_id", id) }

// AlertID - идентификатор сигнала из webhook
func AlertID(id string) zap.Field { return zap.String("alert_id", id) }

// Component - имя компонента
func Component(name string) zap.Field { return zap.String("component", name) }

// Tag - тег значения счёта (TotalCashValue, NetLiquidation)
func Tag(tag string) zap.Field { return zap.String("tag", tag) }

// Переэкспорт стандартных конструкторов zap, чтобы вызывающим
// не импортировать zap напрямую

// String - строковое поле
func String(key, value string) zap.Field { return zap.String(key, value) }

// Int - целочисленное поле
func Int(key string, value int) zap.Field { return zap.Int(key, value) }

// Int64 - поле int64
func Int64(key string, value int64) zap.Field { return zap.Int64(key, value) }

// Float64 - поле float64
func Float64(key string, value float64) zap.Field { return zap.Float64(key, value) }

// Bool - булево поле
func Bool(key string, value bool) zap.Field { return zap.Bool(key, value) }

// Err - поле ошибки
func Err(err error) zap.Field { return zap.Error(err) }

// Any - произвольное поле
func Any(key string, value interface{}) zap.Field { return zap.Any(key, value) }

// Delay - задержка переподключения
func Delay(d time.Duration) zap.Field { return zap.Duration("delay", d) }

// fieldsToInterface конвертирует zap.Field в пары key/value для sugar
func fieldsToInterface(fields []zap.Field) []interface{} {
	result := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		var v interface{}
		switch {
		case f.Interface != nil:
			v = f.Interface
		case f.String != "":
			v = f.String
		default:
			v = f.Integer
		}
		result = append(result, f.Key, v)
	}
	return result
}
