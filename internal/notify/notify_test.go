package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/notify"
)

type recordingNotifier struct {
	got []notify.Summary
	err error
}

func (r *recordingNotifier) NotifyChanges(_ context.Context, s notify.Summary) error {
	r.got = append(r.got, s)
	return r.err
}

func TestSummaryOf(t *testing.T) {
	t.Parallel()

	if _, ok := notify.SummaryOf(domain.CrawlJob{JobID: "j1"}); ok {
		t.Error("SummaryOf() ok = true for a job without changes")
	}

	job := domain.CrawlJob{
		JobID:              "j1",
		Scope:              "default",
		Status:             domain.JobComplete,
		PagesModified:      1,
		SubstantiveChanges: 1,
		Changes: []domain.JobChange{
			{URL: "https://dor.wa.gov/a", ChangeType: domain.ChangeModified},
		},
	}
	s, ok := notify.SummaryOf(job)
	if !ok {
		t.Fatal("SummaryOf() ok = false")
	}
	if s.JobID != "j1" || s.PagesModified != 1 || len(s.Changes) != 1 {
		t.Errorf("SummaryOf() = %+v", s)
	}
}

func TestMulti(t *testing.T) {
	t.Parallel()

	failing := &recordingNotifier{err: errors.New("redis down")}
	ok := &recordingNotifier{}
	m := notify.Multi{failing, ok, notify.NewLogNotifier(logger.NewNop())}

	err := m.NotifyChanges(context.Background(), notify.Summary{JobID: "j1"})
	if err == nil || err.Error() != "redis down" {
		t.Errorf("NotifyChanges() error = %v, want redis down", err)
	}
	if len(ok.got) != 1 {
		t.Error("later notifiers must still be called after a failure")
	}
}
