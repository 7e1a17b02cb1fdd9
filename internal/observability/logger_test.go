package observability_test

import (
	"testing"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/solvedrelay/solvedrelay/internal/observability"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]string{
		"trace":   "TRACE",
		"debug":   "DEBUG",
		"info":    "INFO",
		"warn":    "WARN",
		"warning": "WARN",
		"ERROR":   "ERROR",
		"":        "INFO",
		"verbose": "INFO",
	}

	for input, expected := range tests {
		assert.Equal(t, expected, observability.ParseLogLevel(input), "level %q", input)
	}
}

func TestServerLoggerConfigCarriesNamespace(t *testing.T) {
	cfg := observability.ServerLoggerConfig("solvedrelay", "debug", "solvedrelay_relay")

	assert.Equal(t, logging.ProfileStructured, cfg.Profile)
	assert.Equal(t, "DEBUG", cfg.DefaultLevel)
	assert.Equal(t, "solvedrelay_relay", cfg.StaticFields["namespace"])
	require.Len(t, cfg.Sinks, 1)
	assert.Equal(t, "json", cfg.Sinks[0].Format)

	cfg = observability.ServerLoggerConfig("solvedrelay", "info", "")
	_, ok := cfg.StaticFields["namespace"]
	assert.False(t, ok)
}

func TestInitLoggers(t *testing.T) {
	observability.InitCLILogger("solvedrelay-test", true)
	require.NotNil(t, observability.CLILogger)
	observability.CLILogger.Debug("cli logger ready", zap.String("test", "value"))

	observability.InitServerLogger("solvedrelay-test", "info", "test")
	require.NotNil(t, observability.ServerLogger)
	observability.ServerLogger.Info("server logger ready", zap.String("component", "test"))
}
