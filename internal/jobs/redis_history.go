package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
)

// DefaultHistoryTTL is how long terminal job snapshots stay in Redis.
const DefaultHistoryTTL = 7 * 24 * time.Hour

const (
	historyKeyPrefix = "pagemonitor:job:"
	historyIndexKey  = "pagemonitor:jobs:"
	historyAllScopes = "*"
)

// RedisHistory stores terminal job snapshots as JSON strings with a TTL and
// indexes them per scope in sorted sets scored by start time.
type RedisHistory struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisHistory creates a Redis-backed History.
func NewRedisHistory(client *redis.Client, ttl time.Duration) *RedisHistory {
	if ttl <= 0 {
		ttl = DefaultHistoryTTL
	}
	return &RedisHistory{client: client, ttl: ttl}
}

func jobKey(id string) string { return historyKeyPrefix + id }

func indexKey(scope string) string { return historyIndexKey + scope }

// Save writes the snapshot and adds it to its scope index and the global one.
func (h *RedisHistory) Save(ctx context.Context, job domain.CrawlJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.JobID, err)
	}

	member := redis.Z{Score: float64(job.StartedAt.UnixNano()), Member: job.JobID}

	_, err = h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, jobKey(job.JobID), data, h.ttl)
		for _, key := range []string{indexKey(job.Scope), indexKey(historyAllScopes)} {
			pipe.ZAdd(ctx, key, member)
			pipe.Expire(ctx, key, h.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save job %s: %w", job.JobID, err)
	}
	return nil
}

// Get loads one snapshot.
func (h *RedisHistory) Get(ctx context.Context, id string) (*domain.CrawlJob, error) {
	data, err := h.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, &domain.NotFoundError{Resource: "crawl job", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	var job domain.CrawlJob
	if err = json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// List returns the newest snapshots of scope, or of every scope when scope
// is empty. Index members whose snapshot expired are removed.
func (h *RedisHistory) List(ctx context.Context, scope string, limit int) ([]domain.CrawlJob, error) {
	if scope == "" {
		scope = historyAllScopes
	}
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ids, err := h.client.ZRevRange(ctx, indexKey(scope), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list job ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = jobKey(id)
	}
	values, err := h.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}

	jobs := make([]domain.CrawlJob, 0, len(values))
	var expired []any
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var job domain.CrawlJob
		if err = json.Unmarshal([]byte(s), &job); err != nil {
			return nil, fmt.Errorf("decode job %s: %w", ids[i], err)
		}
		jobs = append(jobs, job)
	}

	if len(expired) > 0 {
		// Cleanup errors are ignored.
		_ = h.client.ZRem(ctx, indexKey(scope), expired...).Err()
	}

	return jobs, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
