package domain

import "time"

// JobStatus is the lifecycle state of a crawl job.
type JobStatus string

const (
	JobStarting JobStatus = "starting"
	JobRunning  JobStatus = "running"
	JobComplete JobStatus = "complete"
	JobStopped  JobStatus = "stopped"
	JobError    JobStatus = "error"
)

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobComplete || s == JobStopped || s == JobError
}

// rank orders statuses so transitions can be checked for monotonicity.
func (s JobStatus) rank() int {
	switch s {
	case JobStarting:
		return 0
	case JobRunning:
		return 1
	case JobComplete, JobStopped, JobError:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether moving from s to next keeps the lifecycle
// monotonic. Terminal states are final.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s.IsTerminal() {
		return false
	}
	return next.rank() >= s.rank()
}

// Trigger records what started a job.
type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerSchedule Trigger = "schedule"
	TriggerCLI      Trigger = "cli"
	// TriggerRunNow is a schedule fired on demand.
	TriggerRunNow   Trigger = "run_now"
)

// JobChange is a change recorded during a job, in detection order.
type JobChange struct {
	ChangeID      string     `json:"change_id"`
	URL           string     `json:"url"`
	ChangeType    ChangeType `json:"change_type"`
	Title         string     `json:"title"`
	Summary       string     `json:"summary"`
	IsSubstantive bool       `json:"is_substantive"`
	LastModified  string     `json:"last_modified,omitempty"`
}

// PageError is a per-page failure recorded during a job.
type PageError struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// CrawlJob is the observable state of one crawl. Values handed out by the
// job registry are immutable snapshots.
type CrawlJob struct {
	JobID              string      `json:"job_id"`
	Scope              string      `json:"scope"`
	AutoIngest         bool        `json:"auto_ingest"`
	Trigger            Trigger     `json:"trigger"`
	Status             JobStatus   `json:"status"`
	TotalPages         int         `json:"total_pages"`
	PagesCrawled       int         `json:"pages_crawled"`
	PagesNew           int         `json:"pages_new"`
	PagesModified      int         `json:"pages_modified"`
	PagesUnchanged     int         `json:"pages_unchanged"`
	PagesError         int         `json:"pages_error"`
	PagesRemoved       int         `json:"pages_removed"`
	SubstantiveChanges int         `json:"substantive_changes"`
	AutoIngested       int         `json:"auto_ingested"`
	PagesDiscovered    int         `json:"pages_discovered"`
	DocumentsFound     int         `json:"documents_found"`
	DocumentsIngested  int         `json:"documents_ingested"`
	CurrentURL         string      `json:"current_url,omitempty"`
	StartedAt          time.Time   `json:"started_at"`
	FinishedAt         *time.Time  `json:"finished_at,omitempty"`
	ElapsedSeconds     float64     `json:"elapsed_seconds"`
	Changes            []JobChange `json:"changes"`
	Errors             []PageError `json:"errors"`
	Error              string      `json:"error,omitempty"`
}

// Clone returns a deep copy safe to publish to readers.
func (j *CrawlJob) Clone() *CrawlJob {
	c := *j
	c.Changes = append([]JobChange(nil), j.Changes...)
	c.Errors = append([]PageError(nil), j.Errors...)
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	if c.Changes == nil {
		c.Changes = []JobChange{}
	}
	if c.Errors == nil {
		c.Errors = []PageError{}
	}
	return &c
}
