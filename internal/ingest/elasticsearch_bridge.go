package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
)

// pageDocument is the indexed form of a monitored page.
type pageDocument struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Category   string    `json:"category"`
	Citation   string    `json:"citation"`
	Scope      string    `json:"scope"`
	ChangeID   string    `json:"change_id,omitempty"`
	ChangeType string    `json:"change_type,omitempty"`
	Text       string    `json:"text"`
	IngestedAt time.Time `json:"ingested_at"`
}

// ElasticsearchBridge indexes each page as one document, keyed by scope and
// url so re-ingesting a page replaces it.
type ElasticsearchBridge struct {
	client *es.Client
	index  string
	now    func() time.Time
}

// ElasticsearchConfig configures the Elasticsearch client.
type ElasticsearchConfig struct {
	URL      string
	Index    string
	APIKey   string
	Username string
	Password string
}

// NewElasticsearchBridge creates the client. It does not ping; the first
// ingest surfaces connection problems on the change entry.
func NewElasticsearchBridge(cfg ElasticsearchConfig) (*ElasticsearchBridge, error) {
	esCfg := es.Config{Addresses: []string{cfg.URL}}
	switch {
	case cfg.APIKey != "":
		esCfg.APIKey = cfg.APIKey
	case cfg.Username != "" && cfg.Password != "":
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	client, err := es.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	return &ElasticsearchBridge{client: client, index: cfg.Index, now: time.Now}, nil
}

// DocumentID is the stable id of a page document.
func DocumentID(scope, url string) string {
	h := sha256.Sum256([]byte(scope + "\x00" + url))
	return hex.EncodeToString(h[:])
}

// Ingest indexes req.
func (b *ElasticsearchBridge) Ingest(ctx context.Context, req Request) (*Result, error) {
	doc := pageDocument{
		URL:        req.URL,
		Title:      req.Title,
		Category:   req.Category,
		Citation:   req.Citation,
		Scope:      req.Scope,
		ChangeID:   req.ChangeID,
		ChangeType: req.ChangeType,
		Text:       req.Text,
		IngestedAt: b.now().UTC(),
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal page document: %w", err)
	}

	id := DocumentID(req.Scope, req.URL)
	res, err := b.client.Index(
		b.index,
		bytes.NewReader(body),
		b.client.Index.WithContext(ctx),
		b.client.Index.WithDocumentID(id),
		b.client.Index.WithRefresh("true"),
	)
	if err != nil {
		return nil, &IngestionError{URL: req.URL, Retryable: true, Cause: err}
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, &IngestionError{
			URL:        req.URL,
			StatusCode: res.StatusCode,
			Retryable:  res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError,
			Cause:      fmt.Errorf("index %s: %s", b.index, bytes.TrimSpace(msg)),
		}
	}

	return &Result{DocumentID: id, ChunksCreated: 1}, nil
}
