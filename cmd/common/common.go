// Package common holds state and helpers shared by the CLI commands.
package common

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/bootstrap"
)

var (
	// ConfigFile is the --config flag value.
	ConfigFile string
	// Debug is the --debug flag value.
	Debug bool
)

// NewCommandDeps loads config and logger from the global flags.
func NewCommandDeps() (*bootstrap.CommandDeps, error) {
	deps, err := bootstrap.NewCommandDeps(ConfigFile, Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to get dependencies: %w", err)
	}
	return deps, nil
}

// OpenDatabase loads dependencies and connects to the database. The caller
// must call the returned cleanup.
func OpenDatabase(ctx context.Context) (*bootstrap.CommandDeps, *bootstrap.DatabaseComponents, func(), error) {
	deps, err := NewCommandDeps()
	if err != nil {
		return nil, nil, nil, err
	}

	db, err := bootstrap.SetupDatabase(ctx, deps.Config, deps.Logger)
	if err != nil {
		_ = deps.Logger.Sync()
		return nil, nil, nil, err
	}

	cleanup := func() {
		_ = db.Close()
		_ = deps.Logger.Sync()
	}
	return deps, db, cleanup, nil
}

// NewTable returns a table writer mirrored to out in the CLI's style.
func NewTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	return t
}

// Deref returns *s or "-" when s is nil or empty.
func Deref(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
