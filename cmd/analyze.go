package main

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/screener-cli/internal/report"
	"github.com/sells-group/screener-cli/internal/scan"
)

var (
	analyzeTicker   string
	analyzeScreener string
	analyzeDate     string
	analyzeForce    bool
	analyzeFormat   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the fundamental quality battery for a ticker or screener list",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if (analyzeTicker == "") == (analyzeScreener == "") {
			return eris.New("exactly one of --ticker or --screener is required")
		}
		format, err := report.ParseFormat(analyzeFormat)
		if err != nil {
			return err
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if analyzeTicker != "" {
			analysis, err := e.analyzer.Analyze(ctx, analyzeTicker, analyzeForce)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), report.Analysis(format, *analysis, nil))
			return nil
		}

		rows, err := e.screener.Rows(ctx, analyzeScreener, analyzeDate)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return eris.Errorf("no screener rows for %q on the requested date", analyzeScreener)
		}

		// Batch mode: a symbol that cannot be analyzed is reported and
		// skipped, never fatal.
		for _, row := range rows {
			analysis, err := e.analyzer.Analyze(ctx, row.Ticker, analyzeForce)
			if err != nil {
				reason := "fetch failed"
				if errors.Is(err, scan.ErrUnresolvable) {
					reason = "not found in identifier map"
				}
				zap.L().Warn("analyze: skipping symbol",
					zap.String("ticker", row.Ticker), zap.Error(err))
				fmt.Fprintf(cmd.OutOrStdout(), "%s: skipped (%s)\n\n", row.Ticker, reason)
				continue
			}
			meta := row
			fmt.Fprint(cmd.OutOrStdout(), report.Analysis(format, *analysis, &meta))
			fmt.Fprintln(cmd.OutOrStdout())
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeTicker, "ticker", "", "single ticker symbol")
	analyzeCmd.Flags().StringVar(&analyzeScreener, "screener", "", "analyze every ticker from a synced screener (\"all\" spans screeners)")
	analyzeCmd.Flags().StringVar(&analyzeDate, "date", "", "screener as-of date YYYY-MM-DD (default today)")
	analyzeCmd.Flags().BoolVar(&analyzeForce, "force-refresh", false, "bypass cached filings")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "plain", "output format: plain|telegram")
	rootCmd.AddCommand(analyzeCmd)
}
