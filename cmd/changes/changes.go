// Package changes implements the changes command.
package changes

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/pagemonitor/cmd/common"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
)

const defaultPendingLimit = 50

// Command returns the changes command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Inspect detected changes",
	}
	cmd.AddCommand(newPendingCommand())
	return cmd
}

func newPendingCommand() *cobra.Command {
	var (
		scope string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List changes awaiting review",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, db, cleanup, err := common.OpenDatabase(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			entries, total, err := db.Changes.List(ctx, scope, domain.ChangeFilter{
				ReviewStatus: domain.ReviewPending,
				Limit:        limit,
			})
			if err != nil {
				return fmt.Errorf("failed to list pending changes: %w", err)
			}

			RenderChanges(cmd.OutOrStdout(), entries, total)
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", domain.DefaultScope, "change scope")
	cmd.Flags().IntVar(&limit, "limit", defaultPendingLimit, "maximum rows")
	return cmd
}

// RenderChanges prints change log entries followed by the total.
func RenderChanges(out io.Writer, entries []domain.ChangeLogEntry, total int) {
	t := common.NewTable(out)
	t.AppendHeader(table.Row{"ID", "Type", "Substantive", "+/-", "Title", "Detected"})
	for _, e := range entries {
		t.AppendRow(table.Row{
			e.ID,
			string(e.ChangeType),
			e.IsSubstantive,
			fmt.Sprintf("+%d/-%d", e.DiffAdditions, e.DiffDeletions),
			e.Title,
			e.DetectedAt.UTC().Format("2006-01-02 15:04"),
		})
	}
	t.Render()
	fmt.Fprintf(out, "%d of %d pending\n", len(entries), total)
}
