package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
)

const scheduleSelectColumns = `scope, enabled, hour_utc, minute_utc, runs_per_day, auto_ingest,
	last_run_at, last_run_status, last_run_changes, next_run_at, updated_at`

// ScheduleRepository stores per-scope schedule configuration.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// EnsureDefault inserts cfg unless a row for its scope already exists.
func (r *ScheduleRepository) EnsureDefault(ctx context.Context, cfg domain.ScheduleConfig) error {
	query := `
		INSERT INTO schedule_config (scope, enabled, hour_utc, minute_utc, runs_per_day, auto_ingest, next_run_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (scope) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query,
		cfg.Scope, cfg.Enabled, cfg.HourUTC, cfg.MinuteUTC, cfg.RunsPerDay, cfg.AutoIngest, cfg.NextRunAt,
	); err != nil {
		return fmt.Errorf("ensure schedule %s: %w", cfg.Scope, err)
	}

	return nil
}

// Get returns the schedule for scope.
func (r *ScheduleRepository) Get(ctx context.Context, scope string) (*domain.ScheduleConfig, error) {
	query := `SELECT ` + scheduleSelectColumns + ` FROM schedule_config WHERE scope = $1`

	var cfg domain.ScheduleConfig
	if err := r.db.GetContext(ctx, &cfg, query, scope); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Resource: "schedule", ID: scope}
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}

	return &cfg, nil
}

// Save writes the client-settable fields and next_run_at, creating the row
// if needed, and returns the stored config.
func (r *ScheduleRepository) Save(ctx context.Context, cfg domain.ScheduleConfig) (*domain.ScheduleConfig, error) {
	query := `
		INSERT INTO schedule_config (scope, enabled, hour_utc, minute_utc, runs_per_day, auto_ingest, next_run_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (scope) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			hour_utc = EXCLUDED.hour_utc,
			minute_utc = EXCLUDED.minute_utc,
			runs_per_day = EXCLUDED.runs_per_day,
			auto_ingest = EXCLUDED.auto_ingest,
			next_run_at = EXCLUDED.next_run_at,
			updated_at = NOW()
		RETURNING ` + scheduleSelectColumns

	var saved domain.ScheduleConfig
	if err := r.db.GetContext(ctx, &saved, query,
		cfg.Scope, cfg.Enabled, cfg.HourUTC, cfg.MinuteUTC, cfg.RunsPerDay, cfg.AutoIngest, cfg.NextRunAt,
	); err != nil {
		return nil, fmt.Errorf("save schedule: %w", err)
	}

	return &saved, nil
}

// ListDue returns enabled schedules whose next run is at or before now.
func (r *ScheduleRepository) ListDue(ctx context.Context, now time.Time) ([]domain.ScheduleConfig, error) {
	query := `SELECT ` + scheduleSelectColumns + `
		FROM schedule_config
		WHERE enabled AND next_run_at IS NOT NULL AND next_run_at <= $1
		ORDER BY next_run_at`

	due := []domain.ScheduleConfig{}
	if err := r.db.SelectContext(ctx, &due, query, now); err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}

	return due, nil
}

// SetNextRun stores a recomputed next run time (nil when disabled).
func (r *ScheduleRepository) SetNextRun(ctx context.Context, scope string, next *time.Time) error {
	query := `UPDATE schedule_config SET next_run_at = $2, updated_at = NOW() WHERE scope = $1`

	result, err := r.db.ExecContext(ctx, query, scope, next)
	if err = execRequireRows(result, err, &domain.NotFoundError{Resource: "schedule", ID: scope}); err != nil {
		return fmt.Errorf("set next run: %w", err)
	}

	return nil
}

// RecordRun stores the outcome of a scheduled run.
func (r *ScheduleRepository) RecordRun(
	ctx context.Context,
	scope string,
	finishedAt time.Time,
	status domain.JobStatus,
	changes int,
) error {
	query := `
		UPDATE schedule_config
		SET last_run_at = $2, last_run_status = $3, last_run_changes = $4, updated_at = NOW()
		WHERE scope = $1
	`

	result, err := r.db.ExecContext(ctx, query, scope, finishedAt, string(status), changes)
	if err = execRequireRows(result, err, &domain.NotFoundError{Resource: "schedule", ID: scope}); err != nil {
		return fmt.Errorf("record schedule run: %w", err)
	}

	return nil
}
