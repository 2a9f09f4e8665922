// Package domain holds the page monitor's core types and the pure helpers
// shared by storage, crawling and the API.
package domain

import (
	"net/url"
	"strings"
	"time"
)

// PageStatus is the health of a monitored page.
type PageStatus string

const (
	// PageStatusActive pages are crawled and last fetched cleanly.
	PageStatusActive PageStatus = "active"
	// PageStatusError pages failed their last fetch.
	PageStatusError PageStatus = "error"
	// PageStatusPaused pages are skipped by crawl sweeps.
	PageStatusPaused PageStatus = "paused"
)

// IsValid reports whether s is a known page status.
func (s PageStatus) IsValid() bool {
	switch s {
	case PageStatusActive, PageStatusError, PageStatusPaused:
		return true
	default:
		return false
	}
}

// DefaultScope is used when a request does not name a scope.
const DefaultScope = "default"

// MonitoredPage is one URL under watch within a scope.
type MonitoredPage struct {
	ID               string     `db:"id"                json:"id"`
	URL              string     `db:"url"               json:"url"`
	Category         *string    `db:"category"          json:"category,omitempty"`
	Title            *string    `db:"title"             json:"title,omitempty"`
	ContentSignature *string    `db:"content_signature" json:"content_signature,omitempty"`
	ContentText      *string    `db:"content_text"      json:"-"`
	LastCheckedAt    *time.Time `db:"last_checked_at"   json:"last_checked_at,omitempty"`
	LastChangedAt    *time.Time `db:"last_changed_at"   json:"last_changed_at,omitempty"`
	Status           PageStatus `db:"status"            json:"status"`
	ErrorMessage     *string    `db:"error_message"     json:"error_message,omitempty"`
	ErrorType        *string    `db:"error_type"        json:"error_type,omitempty"`
	Scope            string     `db:"scope"             json:"scope"`
	CreatedAt        time.Time  `db:"created_at"        json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"        json:"updated_at"`
}

// PageFilter narrows a page listing.
type PageFilter struct {
	Status   string
	Category string
	Limit    int
	Offset   int
}

// ValidatePageURL checks that raw is an absolute http(s) URL and returns it
// trimmed.
func ValidatePageURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", &ValidationError{Field: "url", Message: "must be an absolute http(s) URL"}
	}
	return raw, nil
}
