package cmd

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solvedrelay/solvedrelay/internal/appid"
	"github.com/solvedrelay/solvedrelay/internal/config"
	errwrap "github.com/solvedrelay/solvedrelay/internal/errors"
	"github.com/solvedrelay/solvedrelay/internal/gfg"
	"github.com/solvedrelay/solvedrelay/internal/observability"
	"github.com/solvedrelay/solvedrelay/internal/ratelimit"
)

func TestMain(m *testing.M) {
	observability.InitCLILogger("solvedrelay-test", false)
	os.Exit(m.Run())
}

type stubFetcher struct {
	slugs []string
	err   error
	got   gfg.Query
}

func (f *stubFetcher) FetchSolved(_ context.Context, q gfg.Query) ([]string, error) {
	f.got = q
	return f.slugs, f.err
}

func TestAppIdentityLoading(t *testing.T) {
	identity, err := appid.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, identity)

	for name, value := range map[string]string{
		"Vendor":     identity.Vendor,
		"BinaryName": identity.BinaryName,
		"EnvPrefix":  identity.EnvPrefix,
		"ConfigName": identity.ConfigName,
	} {
		assert.NotEmpty(t, value, name)
	}
	assert.True(t, strings.HasSuffix(identity.EnvPrefix, "_"))
	assert.Equal(t, identity.BinaryName, binaryName())
}

func TestIdentityHealthChecker(t *testing.T) {
	ok := identityHealthChecker{binaryName: "solvedrelay", envPrefix: "SOLVEDRELAY_", configName: "solvedrelay"}
	assert.NoError(t, ok.CheckHealth(context.Background()))

	missing := ok
	missing.envPrefix = ""
	assert.Error(t, missing.CheckHealth(context.Background()))
}

func TestTelemetryHealthCheckerSkipsWhenDisabled(t *testing.T) {
	assert.NoError(t, telemetryHealthChecker{enabled: false}.CheckHealth(context.Background()))

	prev := observability.PrometheusExporter
	observability.PrometheusExporter = nil
	t.Cleanup(func() { observability.PrometheusExporter = prev })
	assert.Error(t, telemetryHealthChecker{enabled: true}.CheckHealth(context.Background()))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SOLVEDRELAY_TEST_FROM_FILE=file\nSOLVEDRELAY_TEST_PRESET=file\n"), 0o600))

	t.Setenv("SOLVEDRELAY_TEST_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("SOLVEDRELAY_TEST_FROM_FILE"))
	t.Setenv("SOLVEDRELAY_TEST_PRESET", "env")

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "file", os.Getenv("SOLVEDRELAY_TEST_FROM_FILE"))
	assert.Equal(t, "env", os.Getenv("SOLVEDRELAY_TEST_PRESET"), "existing environment wins")

	assert.NoError(t, loadDotEnv(filepath.Join(dir, "missing.env")))
	assert.NoError(t, loadDotEnv(""))
}

func TestWriteFatal(t *testing.T) {
	info, ok := foundry.GetExitCodeInfo(foundry.ExitConfigInvalid)
	require.True(t, ok)

	var buf bytes.Buffer
	code := writeFatal(&buf, foundry.ExitConfigInvalid, "Invalid configuration", errors.New("RATE_LIMIT_MAX must be >= 1"))
	assert.Equal(t, info.Code, code)
	assert.Contains(t, buf.String(), "FATAL: Invalid configuration: RATE_LIMIT_MAX must be >= 1")
	assert.Contains(t, buf.String(), "Exit Code:")

	buf.Reset()
	writeFatal(&buf, foundry.ExitConfigInvalid, "Invalid configuration", errwrap.NewConfigInvalidError("bad port"))
	assert.Contains(t, buf.String(), "bad port")

	buf.Reset()
	writeFatal(&buf, foundry.ExitConfigInvalid, "no cause", nil)
	assert.Contains(t, buf.String(), "FATAL: no cause\n")
}

func TestExitWithCodeUsesOSExit(t *testing.T) {
	var got int
	prev := osExit
	osExit = func(code int) { got = code }
	t.Cleanup(func() { osExit = prev })

	info, ok := foundry.GetExitCodeInfo(foundry.ExitConfigInvalid)
	require.True(t, ok)

	ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Invalid configuration", errors.New("boom"))
	assert.Equal(t, info.Code, got)

	got = 0
	ExitWithCode(nil, foundry.ExitConfigInvalid, "Invalid configuration", nil)
	assert.Equal(t, info.Code, got)
}

func TestFetchSolved(t *testing.T) {
	fetcher := &stubFetcher{slugs: []string{"a", "b"}}
	result, err := fetchSolved(context.Background(), fetcher, gfg.Query{Handle: "alice", Year: "2024"})
	require.NoError(t, err)
	assert.Equal(t, "alice", result.Handle)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, "2024", fetcher.got.Year)

	fetcher = &stubFetcher{err: gfg.ErrUpstreamRateLimited}
	_, err = fetchSolved(context.Background(), fetcher, gfg.Query{Handle: "alice"})
	assert.ErrorIs(t, err, gfg.ErrUpstreamRateLimited)
}

func TestOpenSink(t *testing.T) {
	var stdout bytes.Buffer
	sink, err := openSink(&stdout, "-")
	require.NoError(t, err)
	assert.Equal(t, "-", sink.path)
	assert.Same(t, &stdout, sink.writer)
	require.NoError(t, sink.close())

	path := filepath.Join(t.TempDir(), "nested", "solved.json")
	sink, err = openSink(&stdout, path)
	require.NoError(t, err)
	_, err = sink.writer.Write([]byte("{}"))
	require.NoError(t, err)
	require.NoError(t, sink.close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestWriteVersion(t *testing.T) {
	prev := versionInfo
	t.Cleanup(func() { versionInfo = prev })
	SetVersionInfo("1.2.3", "abc123", "2026-01-01")

	var buf bytes.Buffer
	writeVersion(&buf, "solvedrelay", false)
	assert.Equal(t, "solvedrelay 1.2.3\n", buf.String())

	buf.Reset()
	writeVersion(&buf, "solvedrelay", true)
	assert.Contains(t, buf.String(), "Commit: abc123")
	assert.Contains(t, buf.String(), "Gofulmen:")

	SetVersionInfo("", "", "")
	assert.Equal(t, "dev", displayVersion())
}

func TestConfigSectionsMaskSecrets(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 5000
	cfg.Server.AdminToken = "s3cret"
	cfg.Server.CORSAllowedOrigins = []string{"*"}
	cfg.RateLimit.WindowMinutes = 15
	cfg.RateLimit.Max = 3
	cfg.Upstream.Timeout = 10 * time.Second
	cfg.Stats.RedisPassword = "hunter2"

	var all []string
	for _, section := range configSections(cfg, "") {
		for _, row := range section.rows {
			all = append(all, row[0]+"="+row[1])
		}
	}
	joined := strings.Join(all, "\n")

	assert.NotContains(t, joined, "s3cret")
	assert.NotContains(t, joined, "hunter2")
	assert.Contains(t, joined, "Admin Token=(set)")
	assert.Contains(t, joined, "Window=15m0s")
	assert.Contains(t, joined, "Pacing=off")
	assert.Contains(t, joined, "Config File=(none)")
}

func TestRenderRateStats(t *testing.T) {
	var buf bytes.Buffer
	renderRateStats(&buf, &ratelimit.StatsSnapshot{
		Allowed: 7,
		Denied:  2,
		Routes:  map[string]int64{"POST /api/gfg/solved:allowed": 7},
		Recent:  []ratelimit.MinuteBucket{{Minute: "2026-01-01T00:00:00Z", Allowed: 1}},
	})

	out := buf.String()
	assert.Contains(t, out, "allowed: 7")
	assert.Contains(t, out, "denied:  2")
	assert.Contains(t, out, "POST /api/gfg/solved:allowed: 7")
	assert.Contains(t, out, "2026-01-01T00:00:00Z allowed=1 denied=0")
}

func TestProbeRemote(t *testing.T) {
	var ready atomic.Bool
	ready.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health/ready", r.URL.Path)
		if !ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	assert.NoError(t, probeRemote(context.Background(), srv.URL+"/"))

	ready.Store(false)
	err := probeRemote(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestNewRedisStatsDisabledWithoutAddr(t *testing.T) {
	assert.Nil(t, newRedisStats(&config.Config{}))

	cfg := &config.Config{}
	cfg.Stats.RedisAddr = "127.0.0.1:1"
	stats := newRedisStats(cfg)
	require.NotNil(t, stats)
	assert.NoError(t, stats.Close())
}

func TestNewUpstreamClient(t *testing.T) {
	cfg := &config.Config{}
	cfg.Upstream.URL = "https://example.test/submissions/"
	cfg.Upstream.Timeout = 3 * time.Second

	client := newUpstreamClient(cfg)
	assert.Equal(t, cfg.Upstream.URL, client.URL)
	assert.Equal(t, 3*time.Second, client.Timeout)
	assert.Nil(t, client.Pacer)

	cfg.Upstream.RPS = 2
	cfg.Upstream.Burst = 1
	assert.NotNil(t, newUpstreamClient(cfg).Pacer)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "solved", "health", "version", "envinfo", "rate-stats"} {
		assert.True(t, names[want], want)
	}

	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "5000", flag.DefValue)
}
