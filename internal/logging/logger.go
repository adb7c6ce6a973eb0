package logging

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type contextKey struct{}

var (
	defaultLogger     *zap.Logger
	defaultLoggerOnce sync.Once
	conf              = &Config{Level: zapcore.InfoLevel}
)

type Config struct {
	Level    zapcore.Level
	FilePath string
}

// SetConfig must be called before the first DefaultLogger call to take effect.
func SetConfig(c *Config) {
	conf = &Config{
		Level:    c.Level,
		FilePath: c.FilePath,
	}
}

// ParseLevel falls back to info for unknown level names.
func ParseLevel(s string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func NewLogger(c *Config) *zap.Logger {
	level := zap.NewAtomicLevelAt(c.Level)

	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	ec.CallerKey = ""

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(ec), zapcore.AddSync(os.Stdout), level),
	}

	if c.FilePath != "" {
		rotated := &lumberjack.Logger{
			Filename:   c.FilePath,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     15,
			Compress:   true,
		}
		fc := zap.NewProductionEncoderConfig()
		fc.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fc), zapcore.AddSync(rotated), level))
	}

	return zap.New(zapcore.NewTee(cores...))
}

func DefaultLogger() *zap.Logger {
	defaultLoggerOnce.Do(func() {
		defaultLogger = NewLogger(conf)
	})
	return defaultLogger
}

func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return DefaultLogger()
	}
	if logger, ok := ctx.Value(contextKey{}).(*zap.Logger); ok {
		return logger
	}
	return DefaultLogger()
}
