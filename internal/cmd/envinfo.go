package cmd

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/solvedrelay/solvedrelay/internal/config"
	"github.com/solvedrelay/solvedrelay/internal/observability"
)

type envSection struct {
	title string
	rows  [][2]string
}

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display version, runtime and resolved relay configuration. Secrets are masked.",
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		logger.Info("=== Environment Information ===")
		logger.Info("")

		sections := []envSection{buildSection(), runtimeSection()}

		cfg, err := loadConfig()
		if err != nil {
			logEnvSections(sections)
			logger.Warn("Config load failed", zap.Error(err))
			return
		}
		sections = append(sections, configSections(cfg, viper.ConfigFileUsed())...)
		logEnvSections(sections)

		logger.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}

func logEnvSections(sections []envSection) {
	for _, section := range sections {
		observability.CLILogger.Info(section.title + ":")
		for _, row := range section.rows {
			observability.CLILogger.Info(fmt.Sprintf("  %-22s %s", row[0]+":", row[1]))
		}
		observability.CLILogger.Info("")
	}
}

func buildSection() envSection {
	version := crucible.GetVersion()
	return envSection{title: "Application", rows: [][2]string{
		{"Name", binaryName()},
		{"Version", displayVersion()},
		{"Commit", versionInfo.Commit},
		{"Built", versionInfo.BuildDate},
		{"Gofulmen", version.Gofulmen},
		{"Crucible", version.Crucible},
	}}
}

func runtimeSection() envSection {
	return envSection{title: "Runtime", rows: [][2]string{
		{"Go Version", runtime.Version()},
		{"GOOS", runtime.GOOS},
		{"GOARCH", runtime.GOARCH},
		{"NumCPU", fmt.Sprintf("%d", runtime.NumCPU())},
	}}
}

func configSections(cfg *config.Config, configFile string) []envSection {
	if configFile == "" {
		configFile = "(none)"
	}

	return []envSection{
		{title: "Server", rows: [][2]string{
			{"Host", cfg.Server.Host},
			{"Port", fmt.Sprintf("%d", cfg.Server.Port)},
			{"Trust Proxy", fmt.Sprintf("%t", cfg.Server.TrustProxy)},
			{"CORS Origins", strings.Join(cfg.Server.CORSAllowedOrigins, ",")},
			{"Admin Token", maskSecret(cfg.Server.AdminToken)},
			{"Config File", configFile},
		}},
		{title: "Rate Limit", rows: [][2]string{
			{"Window", (time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute).String()},
			{"Max", fmt.Sprintf("%d", cfg.RateLimit.Max)},
		}},
		{title: "Upstream", rows: [][2]string{
			{"URL", cfg.Upstream.URL},
			{"Timeout", cfg.Upstream.Timeout.String()},
			{"Pacing", upstreamPacing(cfg.Upstream)},
		}},
		{title: "Observability", rows: [][2]string{
			{"Log Level", cfg.Logging.Level},
			{"Metrics Enabled", fmt.Sprintf("%t", cfg.Metrics.Enabled)},
			{"Metrics Port", fmt.Sprintf("%d", cfg.Metrics.Port)},
			{"Rate Stats Redis", orUnset(cfg.Stats.RedisAddr)},
			{"Rate Stats Prefix", cfg.Stats.Prefix},
		}},
	}
}

func upstreamPacing(u config.UpstreamConfig) string {
	if u.RPS <= 0 {
		return "off"
	}
	return fmt.Sprintf("%g rps, burst %d", u.RPS, u.Burst)
}

func maskSecret(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(not set)"
	}
	return "(set)"
}

func orUnset(value string) string {
	if value == "" {
		return "(not set)"
	}
	return value
}
