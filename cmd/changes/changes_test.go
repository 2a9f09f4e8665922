package changes_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/north-cloud/pagemonitor/cmd/changes"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
)

func TestRenderChanges(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	changes.RenderChanges(&buf, []domain.ChangeLogEntry{
		{
			ID:            "c1",
			ChangeType:    domain.ChangeModified,
			IsSubstantive: true,
			DiffAdditions: 4,
			DiffDeletions: 2,
			Title:         "Retail sales tax",
			DetectedAt:    time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		},
	}, 3)

	out := buf.String()
	assert.Contains(t, out, "c1")
	assert.Contains(t, out, "+4/-2")
	assert.Contains(t, out, "2026-03-01 09:30")
	assert.Contains(t, out, "1 of 3 pending")
}
