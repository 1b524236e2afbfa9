package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	syncName string
	syncFile string
)

var screenerCmd = &cobra.Command{
	Use:   "screener",
	Short: "Manage third-party screener exports",
}

var screenerSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Ingest a screener CSV export, replacing the screener's rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if syncName == "" || syncFile == "" {
			return eris.New("--name and --file are required")
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		f, err := os.Open(syncFile)
		if err != nil {
			return eris.Wrapf(err, "open export %s", syncFile)
		}
		defer f.Close() //nolint:errcheck

		n, err := e.screener.Sync(ctx, syncName, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "synced %d rows into screener %q\n", n, syncName)
		return nil
	},
}

func init() {
	screenerSyncCmd.Flags().StringVar(&syncName, "name", "", "screener name")
	screenerSyncCmd.Flags().StringVar(&syncFile, "file", "", "path to CSV export")
	screenerCmd.AddCommand(screenerSyncCmd)
	rootCmd.AddCommand(screenerCmd)
}
