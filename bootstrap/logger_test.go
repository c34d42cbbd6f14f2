package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"logward/core"
)

func TestZapLevelMapping(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{core.LevelDebug, zapcore.DebugLevel},
		{core.LevelInfo, zapcore.InfoLevel},
		{core.LevelWarning, zapcore.WarnLevel},
		{core.LevelError, zapcore.ErrorLevel},
		{core.LevelCritical, zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, zapLevel(tt.level), "level %q", tt.level)
	}
}

func TestInitLoggerHonorsLevel(t *testing.T) {
	logger, sugar, err := InitLogger(core.LevelWarning)
	require.NoError(t, err)
	defer logger.Sync()

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	assert.NotNil(t, sugar)
}
