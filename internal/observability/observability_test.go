package observability

import (
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitLoggers(t *testing.T) {
	originalCLI, originalServer := CLILogger, ServerLogger
	t.Cleanup(func() {
		CLILogger, ServerLogger = originalCLI, originalServer
	})

	InitCLILogger("entryguard-test", true)
	require.NotNil(t, CLILogger)
	CLILogger.Debug("cli logger ready", zap.String("mode", "verbose"))

	t.Setenv("ENTRYGUARD_ENV", "test")
	InitServerLogger("entryguard-test", "debug", "entryguard")
	require.NotNil(t, ServerLogger)
	ServerLogger.Info("server logger ready", zap.String("repository", "twofactorauth"), zap.Int("pull_request", 4821))
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{
		"trace":    "TRACE",
		"DEBUG":    "DEBUG",
		" warning": "WARN",
		"error":    "ERROR",
		"":         "INFO",
		"verbose":  "INFO",
	}
	for input, want := range cases {
		assert.Equal(t, want, parseLogLevel(input), input)
	}
}

func TestEnvironment(t *testing.T) {
	t.Setenv("ENTRYGUARD_ENV", "")
	assert.Equal(t, "production", environment())

	t.Setenv("ENTRYGUARD_ENV", "staging")
	assert.Equal(t, "staging", environment())
}

func TestStopMetricsWithoutExporter(t *testing.T) {
	originalExporter, originalSystem := PrometheusExporter, TelemetrySystem
	t.Cleanup(func() {
		PrometheusExporter, TelemetrySystem = originalExporter, originalSystem
	})

	PrometheusExporter = nil
	TelemetrySystem = nil
	assert.NoError(t, StopMetrics())
	assert.Zero(t, GetMetricsPort())
}

func TestResolvePort(t *testing.T) {
	port, err := resolvePort("[::]:9464")
	require.NoError(t, err)
	assert.Equal(t, 9464, port)

	_, err = resolvePort("no-port")
	assert.Error(t, err)
}

func TestCrucibleVersion(t *testing.T) {
	version := crucible.GetVersion()
	assert.NotEmpty(t, version.Gofulmen)
	assert.NotEmpty(t, version.Crucible)
}
