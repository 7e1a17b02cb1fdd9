package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solvedrelay/solvedrelay/internal/config"
	errwrap "github.com/solvedrelay/solvedrelay/internal/errors"
	"github.com/solvedrelay/solvedrelay/internal/observability"
)

var (
	healthRemoteURL string
	healthTimeout   time.Duration
)

// selfCheck is one named step of the health command.
type selfCheck struct {
	name string
	run  func(ctx context.Context, cfg *config.Config) error
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long: `Verify the relay can start: configuration decodes and validates, the
upstream URL is usable and the optional Redis stats sink answers.

With --url, probe a running relay's /health/ready endpoint instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		ctx, cancel := context.WithTimeout(cmd.Context(), healthTimeout)
		defer cancel()

		if healthRemoteURL != "" {
			if err := probeRemote(ctx, healthRemoteURL); err != nil {
				ExitWithCode(logger, foundry.ExitExternalServiceUnavailable, "Relay is not ready", err)
				return
			}
			logger.Info("✅ Relay ready", zap.String("url", healthRemoteURL))
			return
		}

		cfg, err := loadConfig()
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Configuration invalid", errwrap.WrapConfigInvalid(ctx, err, "configuration invalid"))
			return
		}
		logger.Info("✅ Configuration valid")

		for _, check := range selfChecks() {
			if err := check.run(ctx, cfg); err != nil {
				ExitWithCode(logger, foundry.ExitExternalServiceUnavailable, fmt.Sprintf("%s check failed", check.name), err)
				return
			}
			logger.Info(fmt.Sprintf("✅ %s", check.name))
		}

		logger.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().StringVar(&healthRemoteURL, "url", "", "base URL of a running relay to probe (e.g. http://localhost:5000)")
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", 5*time.Second, "overall timeout for the checks")
}

func selfChecks() []selfCheck {
	return []selfCheck{
		{name: "upstream", run: func(ctx context.Context, cfg *config.Config) error {
			return newUpstreamClient(cfg).CheckHealth(ctx)
		}},
		{name: "rate_stats", run: func(ctx context.Context, cfg *config.Config) error {
			if !cfg.Stats.Enabled() {
				return nil
			}
			stats := newRedisStats(cfg)
			defer func() { _ = stats.Close() }()
			return stats.Ping(ctx)
		}},
	}
}

// probeRemote expects a 200 from base + /health/ready.
func probeRemote(ctx context.Context, base string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/health/ready", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("readiness returned %d", resp.StatusCode)
	}
	return nil
}
