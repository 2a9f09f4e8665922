package database_test

import (
	"errors"
	"io"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/database"
)

func TestMigrationSource_UpAndDownPairs(t *testing.T) {
	src, err := database.MigrationSource()
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	var versions []uint
	version, err := src.First()
	for err == nil {
		versions = append(versions, version)

		up, _, upErr := src.ReadUp(version)
		require.NoError(t, upErr, "version %d has no up migration", version)
		body, readErr := io.ReadAll(up)
		_ = up.Close()
		require.NoError(t, readErr)
		assert.Contains(t, string(body), "CREATE TABLE")

		down, _, downErr := src.ReadDown(version)
		require.NoError(t, downErr, "version %d has no down migration", version)
		body, readErr = io.ReadAll(down)
		_ = down.Close()
		require.NoError(t, readErr)
		assert.Contains(t, string(body), "DROP TABLE")

		version, err = src.Next(version)
	}
	assert.True(t, errors.Is(err, fs.ErrNotExist), "iteration ends with ErrNotExist, got %v", err)
	assert.Equal(t, []uint{1, 2, 3, 4}, versions)
}
