package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/database"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
)

var scheduleColumns = []string{
	"scope", "enabled", "hour_utc", "minute_utc", "runs_per_day", "auto_ingest",
	"last_run_at", "last_run_status", "last_run_changes", "next_run_at", "updated_at",
}

func TestScheduleRepository_EnsureDefault(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewScheduleRepository(db)

	mock.ExpectExec("INSERT INTO schedule_config .+ ON CONFLICT \\(scope\\) DO NOTHING").
		WithArgs("default", false, 6, 0, 1, false, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.EnsureDefault(context.Background(), domain.ScheduleConfig{Scope: "default", HourUTC: 6, RunsPerDay: 1})
	if err != nil {
		t.Fatalf("EnsureDefault() error = %v", err)
	}

	expectationsMet(t, mock)
}

func TestScheduleRepository_SaveAndGet(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewScheduleRepository(db)
	now := time.Now().UTC()
	next := now.Add(time.Hour)

	mock.ExpectQuery("INSERT INTO schedule_config .+ ON CONFLICT \\(scope\\) DO UPDATE").
		WithArgs("default", true, 14, 30, 2, true, next).
		WillReturnRows(sqlmock.NewRows(scheduleColumns).
			AddRow("default", true, 14, 30, 2, true, nil, nil, nil, next, now))

	saved, err := repo.Save(context.Background(), domain.ScheduleConfig{
		Scope: "default", Enabled: true, HourUTC: 14, MinuteUTC: 30, RunsPerDay: 2, AutoIngest: true, NextRunAt: &next,
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved.NextRunAt == nil || !saved.NextRunAt.Equal(next) {
		t.Errorf("Save() NextRunAt = %v, want %v", saved.NextRunAt, next)
	}

	mock.ExpectQuery("SELECT .+ FROM schedule_config WHERE scope").
		WithArgs("other").
		WillReturnRows(sqlmock.NewRows(scheduleColumns))

	if _, err := repo.Get(context.Background(), "other"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want not found", err)
	}

	expectationsMet(t, mock)
}

func TestScheduleRepository_ListDueAndRecord(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewScheduleRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery("WHERE enabled AND next_run_at IS NOT NULL AND next_run_at <= \\$1").
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows(scheduleColumns).
			AddRow("default", true, 6, 0, 1, false, nil, nil, nil, now.Add(-time.Minute), now))
	mock.ExpectExec("UPDATE schedule_config SET next_run_at").
		WithArgs("default", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE schedule_config SET last_run_at").
		WithArgs("default", now, "complete", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	due, err := repo.ListDue(ctx, now)
	if err != nil {
		t.Fatalf("ListDue() error = %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("ListDue() = %d, want 1", len(due))
	}

	next := now.Add(24 * time.Hour)
	if err := repo.SetNextRun(ctx, "default", &next); err != nil {
		t.Fatalf("SetNextRun() error = %v", err)
	}
	if err := repo.RecordRun(ctx, "default", now, domain.JobComplete, 3); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	expectationsMet(t, mock)
}

func TestDocumentRepository_RecordNew(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewDocumentRepository(db)

	mock.ExpectExec("INSERT INTO discovered_documents").
		WithArgs(sqlmock.AnyArg(), "default", "https://dor.wa.gov/37WTD123.pdf", "37 WTD 123", "tax-decisions", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO discovered_documents").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE discovered_documents SET ingested = TRUE").
		WithArgs("default", "https://dor.wa.gov/37WTD123.pdf").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	doc := &domain.DiscoveredDocument{
		Scope: "default", URL: "https://dor.wa.gov/37WTD123.pdf", Title: "37 WTD 123", Source: "tax-decisions",
	}

	isNew, err := repo.RecordNew(ctx, doc)
	if err != nil || !isNew {
		t.Fatalf("RecordNew() = %v, %v; want true, nil", isNew, err)
	}

	again := *doc
	again.ID = ""
	isNew, err = repo.RecordNew(ctx, &again)
	if err != nil || isNew {
		t.Fatalf("second RecordNew() = %v, %v; want false, nil", isNew, err)
	}

	if err := repo.MarkIngested(ctx, "default", doc.URL); err != nil {
		t.Fatalf("MarkIngested() error = %v", err)
	}

	expectationsMet(t, mock)
}
