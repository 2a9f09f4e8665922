package domain

import "time"

// ScheduleConfig is the recurring crawl configuration for one scope.
type ScheduleConfig struct {
	Scope          string     `db:"scope"            json:"scope"`
	Enabled        bool       `db:"enabled"          json:"enabled"`
	HourUTC        int        `db:"hour_utc"         json:"hour_utc"`
	MinuteUTC      int        `db:"minute_utc"       json:"minute_utc"`
	RunsPerDay     int        `db:"runs_per_day"     json:"runs_per_day"`
	AutoIngest     bool       `db:"auto_ingest"      json:"auto_ingest"`
	LastRunAt      *time.Time `db:"last_run_at"      json:"last_run_at,omitempty"`
	LastRunStatus  *string    `db:"last_run_status"  json:"last_run_status,omitempty"`
	LastRunChanges *int       `db:"last_run_changes" json:"last_run_changes,omitempty"`
	NextRunAt      *time.Time `db:"next_run_at"      json:"next_run_at,omitempty"`
	UpdatedAt      time.Time  `db:"updated_at"       json:"updated_at"`
}
