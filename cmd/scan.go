package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/screener-cli/internal/model"
	"github.com/sells-group/screener-cli/internal/report"
)

var (
	scanThreshold float64
	scanTopN      int
	scanForce     bool
	scanFormat    string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Technical-only oversold scan over the ticker universe",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, err := report.ParseFormat(scanFormat)
		if err != nil {
			return err
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		tickers, err := e.universe.Tickers(ctx)
		if err != nil {
			return err
		}

		signals, skips := e.scanner.TechnicalScan(ctx, tickers, scanForce)
		zap.L().Info("scan complete",
			zap.Int("scanned", len(tickers)),
			zap.Int("signals", len(signals)),
			zap.Int("skipped", len(skips)),
		)

		oversold := make([]model.Signal, 0, len(signals))
		for _, sig := range signals {
			if sig.Smoothed() < scanThreshold {
				oversold = append(oversold, sig)
			}
		}
		sort.SliceStable(oversold, func(i, j int) bool {
			if oversold[i].Smoothed() != oversold[j].Smoothed() {
				return oversold[i].Smoothed() < oversold[j].Smoothed()
			}
			return oversold[i].Ticker < oversold[j].Ticker
		})
		if scanTopN > 0 && len(oversold) > scanTopN {
			oversold = oversold[:scanTopN]
		}

		fmt.Fprint(cmd.OutOrStdout(), report.Signals(format, oversold))
		return nil
	},
}

func init() {
	scanCmd.Flags().Float64Var(&scanThreshold, "threshold", -80, "Williams %R oversold threshold")
	scanCmd.Flags().IntVar(&scanTopN, "top-n", 20, "maximum signals to print")
	scanCmd.Flags().BoolVar(&scanForce, "force-refresh", false, "bypass cached prices")
	scanCmd.Flags().StringVar(&scanFormat, "format", "plain", "output format: plain|telegram")
	rootCmd.AddCommand(scanCmd)
}
