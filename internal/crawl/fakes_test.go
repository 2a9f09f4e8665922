package crawl_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/database"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/discovery"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/fetcher"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/ingest"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/jobs"
)

// fakePages mimics PageRepository over a map.
type fakePages struct {
	mu      sync.Mutex
	pages   map[string]*domain.MonitoredPage
	listErr error
}

func newFakePages(pages ...domain.MonitoredPage) *fakePages {
	f := &fakePages{pages: make(map[string]*domain.MonitoredPage)}
	for i := range pages {
		p := pages[i]
		if p.Scope == "" {
			p.Scope = domain.DefaultScope
		}
		if p.Status == "" {
			p.Status = domain.PageStatusActive
		}
		f.pages[p.ID] = &p
	}
	return f
}

func (f *fakePages) ListForCrawl(_ context.Context, scope string) ([]domain.MonitoredPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.MonitoredPage
	for _, p := range f.pages {
		if p.Scope == scope && p.Status != domain.PageStatusPaused {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out, nil
}

func (f *fakePages) UpsertAfterCrawl(_ context.Context, p database.UpsertParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	page, ok := f.pages[p.PageID]
	if !ok {
		return &domain.NotFoundError{Resource: "page", ID: p.PageID}
	}
	now := time.Now()
	page.LastCheckedAt = &now
	if p.Signature != nil && (page.ContentSignature == nil || *page.ContentSignature != *p.Signature) {
		page.LastChangedAt = &now
	}
	if p.Signature != nil {
		page.ContentSignature = p.Signature
	}
	if p.Text != nil {
		page.ContentText = p.Text
	}
	if p.Title != nil {
		page.Title = p.Title
	}
	if page.Status != domain.PageStatusPaused {
		page.Status = p.Status
	}
	page.ErrorMessage = p.ErrorMessage
	page.ErrorType = p.ErrorType
	return nil
}

func (f *fakePages) Seed(_ context.Context, scope string, urls []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range urls {
		dup := false
		for _, p := range f.pages {
			if p.URL == u && p.Scope == scope {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		id := fmt.Sprintf("seeded-%d", len(f.pages))
		f.pages[id] = &domain.MonitoredPage{ID: id, URL: u, Scope: scope, Status: domain.PageStatusActive}
		n++
	}
	return n, nil
}

func (f *fakePages) get(id string) domain.MonitoredPage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.pages[id]
}

// fakeChanges records appended entries and auto-ingestion calls.
type fakeChanges struct {
	mu         sync.Mutex
	entries    []*domain.ChangeLogEntry
	ingestErr  error
	ingestHits int
}

func (f *fakeChanges) Append(_ context.Context, entry *domain.ChangeLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = fmt.Sprintf("change-%d", len(f.entries)+1)
	entry.ReviewStatus = domain.ReviewPending
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeChanges) AutoIngest(_ context.Context, entry *domain.ChangeLogEntry, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingestHits++
	if f.ingestErr != nil {
		return f.ingestErr
	}
	entry.AutoIngested = true
	return nil
}

func (f *fakeChanges) all() []domain.ChangeLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ChangeLogEntry, len(f.entries))
	for i, e := range f.entries {
		out[i] = *e
	}
	return out
}

// fakeFetcher serves canned texts and errors per URL. A URL listed in
// gates blocks until its channel is closed.
type fakeFetcher struct {
	mu     sync.Mutex
	texts  map[string]string
	errs   map[string]error
	gates  map[string]chan struct{}
	called map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		texts:  make(map[string]string),
		errs:   make(map[string]error),
		gates:  make(map[string]chan struct{}),
		called: make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*fetcher.Result, error) {
	f.mu.Lock()
	f.called[url]++
	gate := f.gates[url]
	text, hasText := f.texts[url]
	err := f.errs[url]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, fetcher.ClassifyNetworkError(ctx.Err(), url)
		}
	}
	if err != nil {
		return nil, err
	}
	if !hasText {
		return nil, fetcher.ClassifyHTTPStatus(404, url)
	}
	return &fetcher.Result{
		URL:        url,
		FinalURL:   url,
		StatusCode: 200,
		Title:      "Title of " + url,
		Text:       text,
		Signature:  fetcher.Signature(text),
	}, nil
}

func (f *fakeFetcher) calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.called[url]
}

type fakeDiscoverer struct {
	result discovery.Result
	err    error
}

func (f fakeDiscoverer) Discover(context.Context) (discovery.Result, error) {
	return f.result, f.err
}

type fakeDocs struct {
	mu   sync.Mutex
	docs map[string]*domain.DiscoveredDocument
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: make(map[string]*domain.DiscoveredDocument)}
}

func (f *fakeDocs) RecordNew(_ context.Context, doc *domain.DiscoveredDocument) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[doc.URL]; ok {
		return false, nil
	}
	d := *doc
	f.docs[doc.URL] = &d
	return true, nil
}

func (f *fakeDocs) MarkIngested(_ context.Context, _, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[url].Ingested = true
	return nil
}

func (f *fakeDocs) ListPending(_ context.Context, _ string, _ int) ([]domain.DiscoveredDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DiscoveredDocument
	for _, d := range f.docs {
		if !d.Ingested {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out, nil
}

type countingBridge struct {
	mu    sync.Mutex
	calls []ingest.Request
}

func (b *countingBridge) Ingest(_ context.Context, req ingest.Request) (*ingest.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, req)
	return &ingest.Result{DocumentID: req.URL, ChunksCreated: 1}, nil
}

// waitForJob blocks until the job is terminal and returns its snapshot.
func waitForJob(t *testing.T, reg *jobs.Registry, id string) domain.CrawlJob {
	t.Helper()

	run, ok := reg.Run(id)
	if !ok {
		t.Fatalf("job %s not in registry", id)
	}
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("job %s did not finish", id)
	}
	return run.Snapshot()
}

func ptr[T any](v T) *T { return &v }
