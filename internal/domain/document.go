package domain

import "time"

// DiscoveredDocument is a document link (such as a tax decision PDF) found
// on a listing page. Each is handed to ingestion at most once.
type DiscoveredDocument struct {
	ID            string    `db:"id"             json:"id"`
	Scope         string    `db:"scope"          json:"scope"`
	URL           string    `db:"url"            json:"url"`
	Title         string    `db:"title"          json:"title"`
	Source        string    `db:"source"         json:"source"`
	PublishedDate *string   `db:"published_date" json:"published_date,omitempty"`
	FirstSeenAt   time.Time `db:"first_seen_at"  json:"first_seen_at"`
	Ingested      bool      `db:"ingested"       json:"ingested"`
}
