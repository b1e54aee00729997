package obs

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig selects encoder and level of the process logger.
type LogConfig struct {
	// Env is "dev" (console) or "prod" (JSON).
	Env     string
	Level   string
	Service string
	Version string
}

var (
	loggerMu sync.RWMutex
	logger   *zap.Logger
)

// InitLogger builds the process logger. Later calls replace it.
func InitLogger(cfg LogConfig) *zap.Logger {
	l := buildLogger(cfg)
	SetLogger(l)
	return l
}

// SetLogger installs l as the process logger (tests swap in observers).
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// L returns the process logger, a dev logger if none was installed.
func L() *zap.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l != nil {
		return l
	}
	return InitLogger(LogConfig{Env: "dev", Level: "info"})
}

// Named returns a child logger for a component.
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// Sync flushes buffered entries.
func Sync() error {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if logger == nil {
		return nil
	}
	return logger.Sync()
}

func buildLogger(cfg LogConfig) *zap.Logger {
	level := parseLevel(cfg.Level)
	var (
		zcfg zap.Config
		opts = []zap.Option{zap.AddCaller()}
	)
	if strings.EqualFold(cfg.Env, "prod") {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		zcfg.DisableStacktrace = true
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	l, err := zcfg.Build(opts...)
	if err != nil {
		l = zap.NewExample()
	}
	if cfg.Service != "" {
		l = l.With(zap.String("service", cfg.Service))
	}
	if cfg.Version != "" {
		l = l.With(zap.String("version", cfg.Version))
	}
	return l
}

func parseLevel(lvl string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

type loggerContextKey struct{}

// WithLogger stores a request-scoped logger in ctx.
func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, l)
}

// From returns the request-scoped logger, or the process logger.
func From(ctx context.Context) *zap.Logger {
	if l, ok := Scoped(ctx); ok {
		return l
	}
	return L()
}

// Scoped returns the logger stored by WithLogger, if any.
func Scoped(ctx context.Context) (*zap.Logger, bool) {
	if ctx == nil {
		return nil, false
	}
	l, ok := ctx.Value(loggerContextKey{}).(*zap.Logger)
	return l, ok && l != nil
}

// Common request fields.

func RequestID(id string) zap.Field { return zap.String("request_id", id) }
func Method(m string) zap.Field { return zap.String("method", m) }
func Path(p string) zap.Field { return zap.String("path", p) }
func Status(code int) zap.Field { return zap.Int("status", code) }
func Duration(d time.Duration) zap.Field { return zap.Float64("duration_ms", float64(d.Microseconds())/1000) }
func ClientIP(ip string) zap.Field { return zap.String("client_ip", ip) }
func UserID(id int64) zap.Field { return zap.Int64("user_id", id) }
func Route(pattern string) zap.Field { return zap.String("route", pattern) }
