package cmd

import (
	"github.com/spf13/cobra"
)

var (
	flagConfig string
	flagStore  string
)

var rootCmd = &cobra.Command{
	Use:   "floatchat-ingest",
	Short: "Incremental Argo mirror and ingestion driver",
	Long: `floatchat-ingest runs one ingestion tick: it discovers new profile files
on the remote Argo mirror, downloads and parses them, writes profiles and
measurements into the selected relational store, and updates the semantic
index. Invoke it periodically (cron or a systemd timer, at least an hour
apart); re-running after a crash is safe.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVarP(&flagStore, "store", "s", "live", "target store: dev or live")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
}
