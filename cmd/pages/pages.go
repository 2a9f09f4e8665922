// Package pages implements the pages command and its subcommands.
package pages

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/pagemonitor/cmd/common"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
)

const defaultListLimit = 100

// Command returns the pages command.
func Command() *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "pages",
		Short: "Manage monitored pages",
	}
	cmd.PersistentFlags().StringVar(&scope, "scope", domain.DefaultScope, "page scope")

	cmd.AddCommand(
		newListCommand(&scope),
		newAddCommand(&scope),
		newSeedCommand(&scope),
		newRemoveCommand(),
	)
	return cmd
}

func newListCommand(scope *string) *cobra.Command {
	var filter domain.PageFilter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List monitored pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, db, cleanup, err := common.OpenDatabase(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			pages, total, err := db.Pages.List(ctx, *scope, filter)
			if err != nil {
				return fmt.Errorf("failed to list pages: %w", err)
			}

			RenderPages(cmd.OutOrStdout(), pages, total)
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Status, "status", "", "filter by status")
	cmd.Flags().StringVar(&filter.Category, "category", "", "filter by category")
	cmd.Flags().IntVar(&filter.Limit, "limit", defaultListLimit, "maximum rows")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "rows to skip")
	return cmd
}

// RenderPages prints pages as a table followed by the total.
func RenderPages(out io.Writer, pages []domain.MonitoredPage, total int) {
	t := common.NewTable(out)
	t.AppendHeader(table.Row{"ID", "URL", "Category", "Status", "Last Checked", "Last Changed"})
	for _, p := range pages {
		t.AppendRow(table.Row{
			p.ID,
			p.URL,
			common.Deref(p.Category),
			string(p.Status),
			formatTime(p.LastCheckedAt),
			formatTime(p.LastChangedAt),
		})
	}
	t.Render()
	fmt.Fprintf(out, "%d of %d pages\n", len(pages), total)
}

func newAddCommand(scope *string) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Add a page to monitor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, db, cleanup, err := common.OpenDatabase(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			page, err := db.Pages.Add(ctx, *scope, args[0], category)
			if err != nil {
				return fmt.Errorf("failed to add page: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s) as %s\n", page.URL, common.Deref(page.Category), page.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "category (derived from the URL when empty)")
	return cmd
}

func newSeedCommand(scope *string) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the built-in page list, or URLs from a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			urls := domain.DefaultMonitoredURLs
			if file != "" {
				loaded, err := readURLFile(file)
				if err != nil {
					return err
				}
				urls = loaded
			}

			ctx := cmd.Context()
			_, db, cleanup, err := common.OpenDatabase(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			inserted, err := db.Pages.Seed(ctx, *scope, urls)
			if err != nil {
				return fmt.Errorf("failed to seed pages: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d new pages (%d given)\n", inserted, len(urls))
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "file with one URL per line; # starts a comment")
	return cmd
}

func newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Stop monitoring a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, db, cleanup, err := common.OpenDatabase(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if removeErr := db.Pages.Remove(ctx, args[0]); removeErr != nil {
				return fmt.Errorf("failed to remove page: %w", removeErr)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open url file: %w", err)
	}
	defer f.Close()

	return ParseURLList(f)
}

// ParseURLList reads one URL per line, skipping blanks and # comments.
func ParseURLList(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}
	return urls, nil
}
