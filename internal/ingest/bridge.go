// Package ingest hands approved or auto-ingested changes to the external
// retrieval pipeline.
package ingest

import (
	"context"
	"errors"
	"fmt"
)

// ErrIngestionDisabled is returned by NoopBridge.
var ErrIngestionDisabled = errors.New("ingestion is disabled")

// Request describes one document to ingest.
type Request struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Category   string `json:"category"`
	Citation   string `json:"citation"`
	Scope      string `json:"scope"`
	ChangeID   string `json:"change_id,omitempty"`
	ChangeType string `json:"change_type,omitempty"`
	Text       string `json:"text,omitempty"`
}

// Result is what the pipeline reports back.
type Result struct {
	DocumentID    string `json:"document_id"`
	ChunksCreated int    `json:"chunks_created"`
}

// Bridge is the boundary to the ingestion pipeline.
type Bridge interface {
	Ingest(ctx context.Context, req Request) (*Result, error)
}

// IngestionError wraps a failed ingestion attempt.
type IngestionError struct {
	URL        string
	StatusCode int
	Retryable  bool
	Cause      error
}

func (e *IngestionError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("ingest %s: HTTP %d: %v", e.URL, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("ingest %s: %v", e.URL, e.Cause)
}

func (e *IngestionError) Unwrap() error { return e.Cause }

// isRetryable reports whether err is a transient ingestion failure.
func isRetryable(err error) bool {
	var ie *IngestionError
	return errors.As(err, &ie) && ie.Retryable
}

// NoopBridge rejects every request. It is used when no pipeline is configured.
type NoopBridge struct{}

// Ingest always fails with ErrIngestionDisabled.
func (NoopBridge) Ingest(_ context.Context, req Request) (*Result, error) {
	return nil, &IngestionError{URL: req.URL, Cause: ErrIngestionDisabled}
}

// BridgeFunc adapts a function to Bridge.
type BridgeFunc func(ctx context.Context, req Request) (*Result, error)

// Ingest calls f.
func (f BridgeFunc) Ingest(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}
