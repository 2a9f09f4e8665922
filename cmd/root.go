// Package cmd implements the command-line interface for the page monitor.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/pagemonitor/cmd/changes"
	"github.com/jonesrussell/north-cloud/pagemonitor/cmd/common"
	"github.com/jonesrussell/north-cloud/pagemonitor/cmd/crawl"
	"github.com/jonesrussell/north-cloud/pagemonitor/cmd/migrate"
	"github.com/jonesrussell/north-cloud/pagemonitor/cmd/pages"
	"github.com/jonesrussell/north-cloud/pagemonitor/cmd/serve"
)

// Version is set at build time with -ldflags "-X ...cmd.Version=...".
var Version = "dev"

// rootCmd represents the root command for the pagemonitor CLI.
var rootCmd = &cobra.Command{
	Use:   "pagemonitor",
	Short: "Tax-law page change monitor",
	Long: `Watches a fleet of government tax web pages, detects content changes,
classifies them as substantive or cosmetic and feeds approved changes to the
knowledge-base ingestion pipeline.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&common.ConfigFile, "config", "config.yml",
		"config file (CONFIG_PATH overrides)")
	rootCmd.PersistentFlags().BoolVar(&common.Debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pagemonitor version %s\n", Version)
		},
	})

	rootCmd.AddCommand(
		serve.Command(),
		crawl.Command(),
		pages.Command(),
		changes.Command(),
		migrate.Command(),
	)
}
