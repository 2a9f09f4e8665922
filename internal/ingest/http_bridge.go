package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 1024

// HTTPConfig configures HTTPBridge.
type HTTPConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	Retry   RetryConfig
	Breaker BreakerConfig
}

// HTTPBridge posts ingestion requests as JSON to the pipeline endpoint,
// retrying transient failures behind a circuit breaker.
type HTTPBridge struct {
	client  *http.Client
	cfg     HTTPConfig
	breaker *Breaker
}

// NewHTTPBridge creates an HTTPBridge. A nil client gets a default one.
func NewHTTPBridge(cfg HTTPConfig, client *http.Client) *HTTPBridge {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPBridge{client: client, cfg: cfg, breaker: NewBreaker(cfg.Breaker)}
}

// Ingest sends req and decodes the pipeline's result.
func (b *HTTPBridge) Ingest(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal ingest request: %w", err)
	}

	var result *Result
	err = retry(ctx, b.cfg.Retry, func() error {
		return b.breaker.Execute(func() error {
			var attemptErr error
			result, attemptErr = b.post(ctx, req.URL, body)
			return attemptErr
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// BreakerState exposes the circuit state for health reporting.
func (b *HTTPBridge) BreakerState() BreakerState {
	return b.breaker.State()
}

func (b *HTTPBridge) post(ctx context.Context, docURL string, body []byte) (*Result, error) {
	if b.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &IngestionError{URL: docURL, Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, &IngestionError{URL: docURL, Retryable: !errors.Is(err, context.Canceled), Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &IngestionError{
			URL:        docURL,
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError,
			Cause:      fmt.Errorf("%s", bytes.TrimSpace(msg)),
		}
	}

	var result Result
	if decodeErr := json.NewDecoder(resp.Body).Decode(&result); decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
		return nil, &IngestionError{URL: docURL, StatusCode: resp.StatusCode, Cause: fmt.Errorf("decode response: %w", decodeErr)}
	}

	return &result, nil
}
