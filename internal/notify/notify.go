// Package notify announces finished crawls that detected changes.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
)

// DefaultChannel is the pub/sub channel change summaries are published on.
const DefaultChannel = "pagemonitor:changes"

// Summary describes a finished job and what it found.
type Summary struct {
	JobID              string             `json:"job_id"`
	Scope              string             `json:"scope"`
	Status             domain.JobStatus   `json:"status"`
	Trigger            domain.Trigger     `json:"trigger"`
	PagesCrawled       int                `json:"pages_crawled"`
	PagesNew           int                `json:"pages_new"`
	PagesModified      int                `json:"pages_modified"`
	PagesRemoved       int                `json:"pages_removed"`
	PagesError         int                `json:"pages_error"`
	SubstantiveChanges int                `json:"substantive_changes"`
	AutoIngested       int                `json:"auto_ingested"`
	Changes            []domain.JobChange `json:"changes"`
	FinishedAt         *time.Time         `json:"finished_at,omitempty"`
}

// SummaryOf builds the summary of a job snapshot. ok is false when the job
// recorded no changes.
func SummaryOf(job domain.CrawlJob) (Summary, bool) {
	if len(job.Changes) == 0 {
		return Summary{}, false
	}
	return Summary{
		JobID:              job.JobID,
		Scope:              job.Scope,
		Status:             job.Status,
		Trigger:            job.Trigger,
		PagesCrawled:       job.PagesCrawled,
		PagesNew:           job.PagesNew,
		PagesModified:      job.PagesModified,
		PagesRemoved:       job.PagesRemoved,
		PagesError:         job.PagesError,
		SubstantiveChanges: job.SubstantiveChanges,
		AutoIngested:       job.AutoIngested,
		Changes:            job.Changes,
		FinishedAt:         job.FinishedAt,
	}, true
}

// Notifier delivers change summaries.
type Notifier interface {
	NotifyChanges(ctx context.Context, summary Summary) error
}

// RedisNotifier publishes summaries as JSON on a Redis channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier creates a RedisNotifier. An empty channel uses
// DefaultChannel.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{client: client, channel: channel}
}

// NotifyChanges publishes the summary.
func (n *RedisNotifier) NotifyChanges(ctx context.Context, summary Summary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err = n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", n.channel, err)
	}
	return nil
}

// LogNotifier writes summaries to the log.
type LogNotifier struct {
	log logger.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// NotifyChanges logs the summary.
func (n *LogNotifier) NotifyChanges(_ context.Context, summary Summary) error {
	urls := make([]string, 0, len(summary.Changes))
	for _, c := range summary.Changes {
		urls = append(urls, string(c.ChangeType)+" "+c.URL)
	}
	n.log.Info("Crawl detected changes",
		logger.JobID(summary.JobID),
		logger.Scope(summary.Scope),
		logger.String("status", string(summary.Status)),
		logger.Int("pages_new", summary.PagesNew),
		logger.Int("pages_modified", summary.PagesModified),
		logger.Int("pages_removed", summary.PagesRemoved),
		logger.Int("substantive_changes", summary.SubstantiveChanges),
		logger.Strings("changes", urls),
	)
	return nil
}

// Multi fans a summary out to several notifiers and returns the first error.
type Multi []Notifier

// NotifyChanges calls every notifier.
func (m Multi) NotifyChanges(ctx context.Context, summary Summary) error {
	var first error
	for _, n := range m {
		if err := n.NotifyChanges(ctx, summary); err != nil && first == nil {
			first = err
		}
	}
	return first
}
