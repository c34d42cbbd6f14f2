package bootstrap

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"logward/core"
)

// InitLogger initializes the zap logger with colored console output at the
// configured log severity.
func InitLogger(level string) (*zap.Logger, *zap.SugaredLogger, error) {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	zcore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		zapLevel(level),
	)

	logger := zap.New(zcore, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, logger.Sugar(), nil
}

// zapLevel maps the log-severity vocabulary to zap's level set. Critical
// collapses onto Error since zap has no level between Error and panic.
func zapLevel(level string) zapcore.Level {
	switch level {
	case core.LevelDebug:
		return zapcore.DebugLevel
	case core.LevelWarning:
		return zapcore.WarnLevel
	case core.LevelError, core.LevelCritical:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
