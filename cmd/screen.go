package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/screener-cli/internal/report"
)

var (
	screenMinScore  int
	screenThreshold float64
	screenTopN      int
	screenForce     bool
	screenFormat    string
)

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Combined technical and fundamental screen over the universe",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, err := report.ParseFormat(screenFormat)
		if err != nil {
			return err
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		scanCfg := cfg.Scan
		scanCfg.MinScore = screenMinScore
		scanCfg.OversoldThreshold = screenThreshold
		e.scanner.SetConfig(scanCfg)

		out, err := e.scanner.Screen(ctx, screenForce)
		if err != nil {
			return err
		}

		records := out.Records
		if screenTopN > 0 && len(records) > screenTopN {
			records = records[:screenTopN]
		}

		fmt.Fprint(cmd.OutOrStdout(), report.Scan(format, records, out.Summary))
		return nil
	},
}

func init() {
	screenCmd.Flags().IntVar(&screenMinScore, "min-score", 5, "minimum formula passes to keep a candidate")
	screenCmd.Flags().Float64Var(&screenThreshold, "threshold", -80, "Williams %R oversold threshold")
	screenCmd.Flags().IntVar(&screenTopN, "top-n", 10, "maximum records to print")
	screenCmd.Flags().BoolVar(&screenForce, "force-refresh", false, "bypass caches")
	screenCmd.Flags().StringVar(&screenFormat, "format", "plain", "output format: plain|telegram")
	rootCmd.AddCommand(screenCmd)
}
