package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitConsole(t *testing.T) {
	require.NoError(t, Init("debug", "console"))
	assert.True(t, zap.L().Core().Enabled(zapcore.DebugLevel))
}

func TestInitJSON(t *testing.T) {
	require.NoError(t, Init("warn", "json"))
	assert.False(t, zap.L().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, zap.L().Core().Enabled(zapcore.WarnLevel))
}

func TestInitInvalidLevel(t *testing.T) {
	assert.Error(t, Init("loud", "json"))
}
