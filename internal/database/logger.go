package database

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/tgdrive/filestore/internal/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// Logger routes gorm output to the zap logger found in the query context.
type Logger struct {
	level                     glogger.LogLevel
	slowThreshold             time.Duration
	ignoreRecordNotFoundError bool
}

func NewLogger(slowThreshold time.Duration, ignoreRecordNotFoundError bool, level zapcore.Level) *Logger {
	l := &Logger{
		slowThreshold:             slowThreshold,
		ignoreRecordNotFoundError: ignoreRecordNotFoundError,
	}
	switch level {
	case zapcore.DebugLevel, zapcore.InfoLevel:
		l.level = glogger.Info
	case zapcore.WarnLevel:
		l.level = glogger.Warn
	case zapcore.ErrorLevel:
		l.level = glogger.Error
	default:
		l.level = glogger.Silent
	}
	return l
}

func (l *Logger) LogMode(level glogger.LogLevel) glogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= glogger.Info {
		l.sugar(ctx).Infof(msg, args...)
	}
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= glogger.Warn {
		l.sugar(ctx).Warnf(msg, args...)
	}
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= glogger.Error {
		l.sugar(ctx).Errorf(msg, args...)
	}
}

func (l *Logger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= glogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	lg := logging.FromContext(ctx).Named("db")

	fields := func() []zap.Field {
		sql, rows := fc()
		return []zap.Field{
			zap.String("sql", sql),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
			zap.String("caller", utils.FileWithLineNum()),
		}
	}

	switch {
	case err != nil && l.level >= glogger.Error && (!errors.Is(err, gorm.ErrRecordNotFound) || !l.ignoreRecordNotFoundError):
		lg.Error("query failed", append(fields(), zap.Error(err))...)
	case l.slowThreshold != 0 && elapsed > l.slowThreshold && l.level >= glogger.Warn:
		lg.Warn("slow query", append(fields(), zap.Duration("threshold", l.slowThreshold))...)
	case l.level == glogger.Info:
		lg.Debug("query", fields()...)
	}
}

func (l *Logger) sugar(ctx context.Context) *zap.SugaredLogger {
	return logging.FromContext(ctx).Named("db").Sugar()
}
