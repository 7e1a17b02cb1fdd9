package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solvedrelay/solvedrelay/internal/gfg"
	"github.com/solvedrelay/solvedrelay/internal/observability"
	"github.com/solvedrelay/solvedrelay/internal/output"
	"github.com/solvedrelay/solvedrelay/internal/server/handlers"
)

var (
	solvedYear   string
	solvedMonth  string
	solvedFormat string
	solvedOut    string
)

var solvedCmd = &cobra.Command{
	Use:   "solved <handle>",
	Short: "Fetch a handle's solved problems directly from GFG",
	Long: `Fetch the solved-problem slugs for a GFG handle without starting the relay.

The same upstream settings as "serve" apply (GFG_API_URL, GFG_API_TIMEOUT).
No local rate limit is applied.`,
	Example: `  solvedrelay solved alice
  solvedrelay solved alice --year 2024 --month 3 --output-format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(solvedFormat)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Invalid configuration", err)
			return err
		}

		query := gfg.Query{
			Handle: strings.TrimSpace(args[0]),
			Year:   solvedYear,
			Month:  solvedMonth,
		}
		if query.Handle == "" {
			return fmt.Errorf("handle is required")
		}

		result, err := fetchSolved(cmd.Context(), newUpstreamClient(cfg), query)
		if err != nil {
			if gfg.IsRateLimited(err) {
				observability.CLILogger.Warn("GFG rate limit reached", zap.String("handle", query.Handle))
			}
			return err
		}

		rendered, err := output.NewFormatter(format).FormatSolved(result)
		if err != nil {
			return err
		}

		sink, err := openSink(cmd.OutOrStdout(), solvedOut)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if _, err := fmt.Fprintln(sink.writer, rendered); err != nil {
			return err
		}
		if sink.path != "-" {
			observability.CLILogger.Info("Wrote solved list", zap.String("path", sink.path), zap.Int("count", result.Count))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(solvedCmd)
	solvedCmd.Flags().StringVar(&solvedYear, "year", "", "restrict to a year (passed through to GFG)")
	solvedCmd.Flags().StringVar(&solvedMonth, "month", "", "restrict to a month (passed through to GFG)")
	solvedCmd.Flags().StringVarP(&solvedFormat, "output-format", "o", string(output.FormatTable), "Output format: table|json|yaml|markdown")
	solvedCmd.Flags().StringVar(&solvedOut, "out", "", "Write output to a file (default stdout)")
}

func fetchSolved(ctx context.Context, fetcher handlers.SolvedFetcher, q gfg.Query) (*output.SolvedResult, error) {
	slugs, err := fetcher.FetchSolved(ctx, q)
	if err != nil {
		return nil, err
	}
	return output.NewSolvedResult(q.Handle, q.Year, q.Month, slugs), nil
}
