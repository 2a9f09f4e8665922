package jobs_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/jobs"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		t.Skip("REDIS_ADDRESS not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisHistory_SaveGetList(t *testing.T) {
	client := newTestRedis(t)
	history := jobs.NewRedisHistory(client, time.Minute)
	ctx := context.Background()

	scope := "test-" + uuid.NewString()
	base := time.Now().UTC()
	older := domain.CrawlJob{JobID: uuid.NewString(), Scope: scope, Status: domain.JobComplete, StartedAt: base}
	newer := domain.CrawlJob{JobID: uuid.NewString(), Scope: scope, Status: domain.JobStopped, StartedAt: base.Add(time.Second)}

	require.NoError(t, history.Save(ctx, older))
	require.NoError(t, history.Save(ctx, newer))

	got, err := history.Get(ctx, older.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobComplete, got.Status)

	list, err := history.List(ctx, scope, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.JobID, list[0].JobID)

	_, err = history.Get(ctx, uuid.NewString())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
