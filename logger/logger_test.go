package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLogUsableBeforeInit(t *testing.T) {
	require.NotNil(t, Log)
	assert.NotPanics(t, func() { Log.Infof("before init %d", 1) })
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { level.SetLevel(zap.InfoLevel) })

	require.NoError(t, SetLevel("debug"))
	assert.Equal(t, zap.DebugLevel, level.Level())

	require.NoError(t, SetLevel("warn"))
	assert.Equal(t, zap.WarnLevel, level.Level())

	err := SetLevel("loud")
	require.Error(t, err)
	assert.Equal(t, zap.WarnLevel, level.Level())
}
