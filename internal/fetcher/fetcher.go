// Package fetcher retrieves monitored pages, extracts their main content and
// reduces it to a normalized text with a stable signature.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Default fetch settings.
const (
	DefaultUserAgent    = "TaxPageMonitor/1.0"
	DefaultTimeout      = 30 * time.Second
	DefaultMaxBodyBytes = 10 * 1024 * 1024
)

// ErrEmptyURL is returned when Fetch is called without a URL.
var ErrEmptyURL = errors.New("fetch: empty url")

// Config configures a Fetcher.
type Config struct {
	UserAgent           string
	Timeout             time.Duration
	MaxBodyBytes        int64
	TitleSuffixPattern  string
	BoilerplatePatterns []string
}

// Result is a successfully fetched and normalized page.
type Result struct {
	URL          string
	FinalURL     string
	StatusCode   int
	ContentType  string
	Title        string
	Text         string
	Signature    string
	LastModified string
}

// RawResponse is an accepted response body before extraction.
type RawResponse struct {
	URL          string
	FinalURL     string
	StatusCode   int
	ContentType  string
	LastModified string
	Body         []byte
}

// Fetcher performs page fetches. It is safe for concurrent use.
type Fetcher struct {
	client      *http.Client
	cfg         Config
	normalizer  *Normalizer
	titleSuffix *regexp.Regexp
}

// New creates a Fetcher. A nil client gets a default http.Client, which
// follows redirects.
func New(cfg Config, client *http.Client) (*Fetcher, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if client == nil {
		client = &http.Client{}
	}

	normalizer, err := NewNormalizer(cfg.BoilerplatePatterns)
	if err != nil {
		return nil, err
	}

	var suffix *regexp.Regexp
	if cfg.TitleSuffixPattern != "" {
		suffix, err = regexp.Compile(cfg.TitleSuffixPattern)
		if err != nil {
			return nil, fmt.Errorf("compile title suffix pattern: %w", err)
		}
	}

	return &Fetcher{client: client, cfg: cfg, normalizer: normalizer, titleSuffix: suffix}, nil
}

// Fetch retrieves url and returns its normalized content. Failures are
// returned as *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	raw, err := f.FetchRaw(ctx, url, acceptPage)
	if err != nil {
		return nil, err
	}

	res := &Result{
		URL:          url,
		FinalURL:     raw.FinalURL,
		StatusCode:   raw.StatusCode,
		ContentType:  raw.ContentType,
		LastModified: raw.LastModified,
	}

	var text string
	if raw.ContentType == "text/plain" {
		text = string(raw.Body)
	} else {
		ex, exErr := extractHTML(raw.Body, f.titleSuffix)
		if exErr != nil {
			return nil, &FetchError{Kind: KindAmbiguous, Type: ErrTypeEmptyContent, URL: url, Cause: exErr}
		}
		text = ex.Text
		res.Title = ex.Title
		if res.LastModified == "" {
			res.LastModified = ex.LastModified
		}
	}

	res.Text = f.normalizer.Normalize(text)
	if res.Text == "" {
		return nil, &FetchError{
			Kind:  KindAmbiguous,
			Type:  ErrTypeEmptyContent,
			URL:   url,
			Cause: errors.New("no text after normalization"),
		}
	}
	res.Signature = Signature(res.Text)

	return res, nil
}

// Accept decides whether a media type can be processed.
type Accept func(mediaType string) bool

func acceptPage(mediaType string) bool {
	switch mediaType {
	case "", "text/html", "application/xhtml+xml", "text/plain":
		return true
	default:
		return false
	}
}

// AcceptAny accepts every content type.
func AcceptAny(string) bool { return true }

// FetchRaw performs the GET with the configured timeout, user agent and
// body limit, classifying status and transport failures.
func (f *Fetcher) FetchRaw(ctx context.Context, url string, accept Accept) (*RawResponse, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &FetchError{Kind: KindPermanent, Type: ErrTypeClientError, URL: url, Cause: err}
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, ClassifyNetworkError(err, url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, ClassifyHTTPStatus(resp.StatusCode, url)
	}

	mediaType := parseMediaType(resp.Header.Get("Content-Type"))
	if !accept(mediaType) {
		return nil, &FetchError{
			Kind:       KindPermanent,
			Type:       ErrTypeUnsupportedContentType,
			StatusCode: resp.StatusCode,
			URL:        url,
			Cause:      fmt.Errorf("content type %q", mediaType),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, ClassifyNetworkError(err, url)
	}
	if int64(len(body)) > f.cfg.MaxBodyBytes {
		return nil, &FetchError{
			Kind:       KindPermanent,
			Type:       ErrTypeTooLarge,
			StatusCode: resp.StatusCode,
			URL:        url,
			Cause:      fmt.Errorf("body exceeds %d bytes", f.cfg.MaxBodyBytes),
		}
	}

	return &RawResponse{
		URL:          url,
		FinalURL:     resp.Request.URL.String(),
		StatusCode:   resp.StatusCode,
		ContentType:  mediaType,
		LastModified: resp.Header.Get("Last-Modified"),
		Body:         body,
	}, nil
}

func parseMediaType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(header, ";")[0]))
	}
	return mt
}
