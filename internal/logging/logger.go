package logging

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options описывает параметры backend-а логирования.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // "json" или "console"
}

// Logger - логгер отдельного компонента поверх zap.SugaredLogger.
type Logger struct {
	component string
	sugar     *zap.SugaredLogger
	base      *zap.Logger
}

var (
	defaultMu      sync.RWMutex
	defaultLogger  = newNopLogger("default")
	defaultOptions = Options{Level: "info", Format: "console"}
)

// Configure задаёт параметры для всех логгеров, создаваемых после вызова.
func Configure(opts Options) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if opts.Level == "" {
		opts.Level = "info"
	}
	if opts.Format == "" {
		opts.Format = "console"
	}
	defaultOptions = opts
}

// NewLogger создаёт логгер компонента с текущими Options.
func NewLogger(component string) (*Logger, error) {
	defaultMu.RLock()
	opts := defaultOptions
	defaultMu.RUnlock()

	base, err := buildZap(opts)
	if err != nil {
		return nil, err
	}
	base = base.Named(component)

	return &Logger{
		component: component,
		sugar:     base.Sugar(),
		base:      base,
	}, nil
}

func newNopLogger(component string) *Logger {
	base := zap.NewNop()
	return &Logger{component: component, sugar: base.Sugar(), base: base}
}

// buildZap собирает zap.Logger: json - production-конфиг, иначе цветной консольный.
func buildZap(opts Options) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if opts.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации zap: %w", err)
	}
	return logger, nil
}

// InitDefaultLogger создаёт глобальный логгер, которым пользуются Info/Debug/Warn/Error.
func InitDefaultLogger(component string) error {
	logger, err := NewLogger(component)
	if err != nil {
		return err
	}

	defaultMu.Lock()
	defaultLogger = logger
	defaultMu.Unlock()
	return nil
}

// CloseDefaultLogger сбрасывает буферы глобального логгера и всех компонентных.
func CloseDefaultLogger() {
	defaultMu.RLock()
	logger := defaultLogger
	defaultMu.RUnlock()

	_ = logger.Close()
	_ = GetLoggerManager().CloseAll()
}

func current() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// Component возвращает имя компонента.
func (l *Logger) Component() string {
	return l.component
}

// Zap возвращает структурный логгер для мест, где нужны поля.
func (l *Logger) Zap() *zap.Logger {
	return l.base
}

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// Close сбрасывает буферы. Ошибку sync для stdout/stderr игнорируем.
func (l *Logger) Close() error {
	if err := l.base.Sync(); err != nil && !isStdSyncError(err) {
		return err
	}
	return nil
}

func isStdSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "/dev/stdout") || strings.Contains(msg, "/dev/stderr") ||
		strings.Contains(msg, "invalid argument") || strings.Contains(msg, "inappropriate ioctl")
}

// Debug пишет сообщение уровня DEBUG в глобальный логгер
func Debug(format string, args ...interface{}) { current().Debug(format, args...) }

// Info пишет сообщение уровня INFO в глобальный логгер
func Info(format string, args ...interface{}) { current().Info(format, args...) }

// Warn пишет сообщение уровня WARN в глобальный логгер
func Warn(format string, args ...interface{}) { current().Warn(format, args...) }

// Error пишет сообщение уровня ERROR в глобальный логгер
func Error(format string, args ...interface{}) { current().Error(format, args...) }
