package db

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var _ gormlogger.Interface = (*logger)(nil)

var levels = map[gormlogger.LogLevel]zapcore.Level{
	gormlogger.Silent: zapcore.FatalLevel,
	gormlogger.Error:  zapcore.ErrorLevel,
	gormlogger.Warn:   zapcore.WarnLevel,
	gormlogger.Info:   zapcore.InfoLevel,
}

// logger adapts gorm's logger onto zap. SQL traces are emitted at debug,
// or at info inside a db.Debug() session.
//
// level is the application's level and is only read here. LogMode narrows
// a copy of the logger and never changes it.
type logger struct {
	logger *zap.Logger
	level  *zap.AtomicLevel
	mode   gormlogger.LogLevel
}

func newLogger(zlog *zap.Logger, level *zap.AtomicLevel) *logger {
	if zlog == nil {
		zlog = zap.NewNop()
	}
	if level == nil {
		l := zap.NewAtomicLevelAt(zapcore.InfoLevel)
		level = &l
	}
	return &logger{logger: zlog.Named("gorm"), level: level}
}

func (l *logger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	nl := *l
	nl.mode = level
	return &nl
}

func (l *logger) enabled(zl zapcore.Level) bool {
	if floor, ok := levels[l.mode]; ok && zl < floor {
		return false
	}
	return l.level.Enabled(zl)
}

func (l *logger) Info(ctx context.Context, s string, i ...interface{}) {
	if l.enabled(zapcore.InfoLevel) {
		l.logger.Info(s, interfacesToFields(i...)...)
	}
}

func (l *logger) Warn(ctx context.Context, s string, i ...interface{}) {
	if l.enabled(zapcore.WarnLevel) {
		l.logger.Warn(s, interfacesToFields(i...)...)
	}
}

func (l *logger) Error(ctx context.Context, s string, i ...interface{}) {
	if l.enabled(zapcore.ErrorLevel) {
		l.logger.Error(s, interfacesToFields(i...)...)
	}
}

func (l *logger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	lvl := zapcore.DebugLevel
	if l.mode == gormlogger.Info {
		lvl = zapcore.InfoLevel
	}
	if !l.enabled(lvl) {
		return
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return
	}

	sql, rowsAffected := fc()
	fields := []zap.Field{
		zap.String("sql", sql),
		zap.Int64("rows_affected", rowsAffected),
		zap.Duration("elapsed", time.Since(begin)),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if ce := l.logger.Check(lvl, "trace"); ce != nil {
		ce.Write(fields...)
	}
}

func interfacesToFields(i ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(i))
	for idx, v := range i {
		fields = append(fields, zap.Any(strconv.Itoa(idx), v))
	}
	return fields
}
