package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the root logger writing to stdout at the given level.
// The returned atomic level can be shared with the gorm logger.
func New(level string) (*zap.Logger, *zap.AtomicLevel) {
	atomicLevel := zap.NewAtomicLevel()
	atomicLevel.SetLevel(mapLogLevel(level))

	logger := zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.Lock(os.Stdout),
		atomicLevel,
	), zap.AddCaller())

	return logger, &atomicLevel
}

func mapLogLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
