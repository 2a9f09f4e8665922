// Package serve implements the serve command.
package serve

import (
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/pagemonitor/cmd/common"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/bootstrap"
)

// Command returns the serve command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the crawl scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return bootstrap.Start(common.ConfigFile, common.Debug)
		},
	}
}
