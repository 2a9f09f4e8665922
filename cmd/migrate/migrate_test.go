package migrate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/pagemonitor/cmd/migrate"
)

func TestFormatVersion(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "schema version: none (no migrations applied)", migrate.FormatVersion(0, false, false))
	assert.Equal(t, "schema version: 4", migrate.FormatVersion(4, false, true))
	assert.Equal(t, "schema version: 3 (dirty)", migrate.FormatVersion(3, true, true))
}

func TestCommand_Subcommands(t *testing.T) {
	t.Parallel()

	cmd := migrate.Command()
	for _, name := range []string{"up", "down", "version"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}

	down, _, err := cmd.Find([]string{"down"})
	require.NoError(t, err)
	steps := down.Flags().Lookup("steps")
	require.NotNil(t, steps)
	assert.Equal(t, "1", steps.DefValue)
}

func TestDown_RejectsZeroSteps(t *testing.T) {
	t.Parallel()

	cmd := migrate.Command()
	cmd.SetArgs([]string{"down", "--steps", "0"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--steps must be at least 1")
}
