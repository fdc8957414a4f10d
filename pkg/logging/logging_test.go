package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNamedBeforeSetupIsNoop(t *testing.T) {
	prev := Logger
	Logger = nil
	t.Cleanup(func() { Logger = prev })

	l := Named("api")
	require.NotNil(t, l)
	assert.False(t, l.Core().Enabled(zap.ErrorLevel))
}

func TestSetup(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { Logger = prev })

	require.NoError(t, Setup(true, "direxpo", "test"))
	require.NotNil(t, Logger)
	assert.True(t, Logger.Core().Enabled(zap.DebugLevel))
	assert.NotNil(t, Named("http"))

	require.NoError(t, Setup(false, "direxpo", "test"))
	assert.False(t, Logger.Core().Enabled(zap.DebugLevel))
	assert.True(t, Logger.Core().Enabled(zap.InfoLevel))
}

func TestNamedCarriesComponent(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { Logger = prev })

	require.NoError(t, Setup(false, "direxpo", "test"))
	check := Named("export").Check(zap.InfoLevel, "written")
	require.NotNil(t, check)
	assert.Equal(t, "export", check.LoggerName)
}
