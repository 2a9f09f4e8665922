// Package crawl implements the crawl command, a foreground one-off crawl.
package crawl

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/pagemonitor/cmd/common"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
)

// Command returns the crawl command.
func Command() *cobra.Command {
	var (
		scope      string
		autoIngest bool
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl every active page in a scope and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			deps, db, cleanup, err := common.OpenDatabase(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			job, err := bootstrap.RunCrawl(ctx, deps, db, scope, autoIngest)
			if err != nil {
				return fmt.Errorf("crawl failed: %w", err)
			}

			out := cmd.OutOrStdout()
			RenderSummary(out, job)
			if len(job.Changes) > 0 {
				RenderChanges(out, job.Changes)
			}

			if job.Status == domain.JobError {
				return fmt.Errorf("crawl job %s ended in error: %s", job.JobID, job.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "scope to crawl (default from config)")
	cmd.Flags().BoolVar(&autoIngest, "auto-ingest", false, "ingest substantive changes immediately")

	return cmd
}

// RenderSummary prints the job counters.
func RenderSummary(out io.Writer, job domain.CrawlJob) {
	t := common.NewTable(out)
	t.SetTitle("Crawl " + job.JobID)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Scope", job.Scope},
		{"Status", string(job.Status)},
		{"Pages crawled", fmt.Sprintf("%d / %d", job.PagesCrawled, job.TotalPages)},
		{"New", job.PagesNew},
		{"Modified", job.PagesModified},
		{"Unchanged", job.PagesUnchanged},
		{"Errors", job.PagesError},
		{"Removed", job.PagesRemoved},
		{"Substantive changes", job.SubstantiveChanges},
		{"Auto-ingested", job.AutoIngested},
		{"Pages discovered", job.PagesDiscovered},
		{"Documents found", job.DocumentsFound},
		{"Documents ingested", job.DocumentsIngested},
		{"Elapsed", strconv.FormatFloat(job.ElapsedSeconds, 'f', 1, 64) + "s"},
	})
	t.Render()
}

// RenderChanges prints the changes detected by a job.
func RenderChanges(out io.Writer, changes []domain.JobChange) {
	t := common.NewTable(out)
	t.SetTitle("Changes")
	t.AppendHeader(table.Row{"Type", "Substantive", "Title", "URL"})
	for _, c := range changes {
		t.AppendRow(table.Row{string(c.ChangeType), c.IsSubstantive, c.Title, c.URL})
	}
	t.Render()
}
