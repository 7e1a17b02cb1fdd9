package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solvedrelay/solvedrelay/internal/observability"
	"github.com/solvedrelay/solvedrelay/internal/output"
	"github.com/solvedrelay/solvedrelay/internal/ratelimit"
)

var (
	rateStatsOutput  string
	rateStatsMinutes int
	rateStatsConfirm bool
)

var rateStatsCmd = &cobra.Command{
	Use:   "rate-stats",
	Short: "Inspect rate-limit decisions recorded in Redis",
	Long: `Inspect or clear the rate-limit counters the relay writes to Redis when
RATE_STATS_REDIS_ADDR is set. Limiter state itself lives in relay memory.`,
}

var rateStatsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show allowed/denied totals, per-route counts and recent minutes",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateStatsOutput)
		if err != nil {
			return err
		}
		if format != output.FormatJSON && format != output.FormatTable {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		stats, err := openRateStats()
		if err != nil {
			return err
		}
		defer func() { _ = stats.Close() }()

		snapshot, err := stats.Snapshot(cmd.Context(), time.Now().UTC(), rateStatsMinutes)
		if err != nil {
			return err
		}

		if format == output.FormatJSON {
			payload, err := json.MarshalIndent(snapshot, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return err
		}

		renderRateStats(cmd.OutOrStdout(), snapshot)
		return nil
	},
}

var rateStatsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the total and per-route counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !rateStatsConfirm {
			return fmt.Errorf("refusing to reset without --yes")
		}

		stats, err := openRateStats()
		if err != nil {
			return err
		}
		defer func() { _ = stats.Close() }()

		if err := stats.Reset(cmd.Context()); err != nil {
			return err
		}
		observability.CLILogger.Info("Rate-limit stats reset")
		return nil
	},
}

func init() {
	rateStatsShowCmd.Flags().StringVarP(&rateStatsOutput, "output-format", "o", string(output.FormatTable), "Output format: table|json")
	rateStatsShowCmd.Flags().IntVar(&rateStatsMinutes, "minutes", 15, "number of recent minute buckets to include")
	rateStatsResetCmd.Flags().BoolVar(&rateStatsConfirm, "yes", false, "confirm the reset")

	rateStatsCmd.AddCommand(rateStatsShowCmd)
	rateStatsCmd.AddCommand(rateStatsResetCmd)
	rootCmd.AddCommand(rateStatsCmd)
}

func openRateStats() (*ratelimit.RedisStats, error) {
	cfg, err := loadConfig()
	if err != nil {
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Invalid configuration", err)
		return nil, err
	}

	stats := newRedisStats(cfg)
	if stats == nil {
		return nil, fmt.Errorf("rate stats are disabled; set RATE_STATS_REDIS_ADDR")
	}
	observability.CLILogger.Debug("Reading rate stats", zap.String("redis_addr", cfg.Stats.RedisAddr))
	return stats, nil
}

func renderRateStats(w io.Writer, snapshot *ratelimit.StatsSnapshot) {
	lines := []string{
		"Rate Limit Stats",
		"",
		fmt.Sprintf("allowed: %d", snapshot.Allowed),
		fmt.Sprintf("denied:  %d", snapshot.Denied),
	}

	if len(snapshot.Routes) > 0 {
		lines = append(lines, "", "Routes")
		routes := make([]string, 0, len(snapshot.Routes))
		for route := range snapshot.Routes {
			routes = append(routes, route)
		}
		sort.Strings(routes)
		for _, route := range routes {
			lines = append(lines, fmt.Sprintf("%s: %d", route, snapshot.Routes[route]))
		}
	}

	if len(snapshot.Recent) > 0 {
		lines = append(lines, "", "Recent minutes")
		for _, bucket := range snapshot.Recent {
			lines = append(lines, fmt.Sprintf("%s allowed=%d denied=%d", bucket.Minute, bucket.Allowed, bucket.Denied))
		}
	}

	_, _ = fmt.Fprint(w, ascii.DrawBox(strings.Join(lines, "\n"), 0))
}
