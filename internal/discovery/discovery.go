// Package discovery finds new pages and documents on listing pages, tables
// and feeds published by the monitored sites.
package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/fetcher"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
)

// Kind selects how a source is scraped.
type Kind string

const (
	// KindFeed is an RSS or Atom feed; items become pages.
	KindFeed Kind = "feed"
	// KindListing is an HTML page of dated links; items become pages.
	KindListing Kind = "listing"
	// KindTable is an HTML table of link and date rows; items become pages.
	KindTable Kind = "table"
	// KindPDFLinks collects PDF links; items become documents.
	KindPDFLinks Kind = "pdf_links"
)

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindFeed, KindListing, KindTable, KindPDFLinks:
		return true
	default:
		return false
	}
}

var datePattern = regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{4})`)

// ErrInvalidSource is returned by New for a malformed source.
var ErrInvalidSource = errors.New("invalid discovery source")

// Source is one place discovery looks.
type Source struct {
	Name  string
	Kind  Kind
	URL   string
	Match string
}

// Item is a discovered link.
type Item struct {
	URL           string
	Title         string
	Source        string
	PublishedDate string
}

// Result groups discovered items by what they become.
type Result struct {
	Pages     []Item
	Documents []Item
}

// Getter fetches raw bodies. *fetcher.Fetcher satisfies it.
type Getter interface {
	FetchRaw(ctx context.Context, url string, accept fetcher.Accept) (*fetcher.RawResponse, error)
}

// Discoverer scrapes a fixed set of sources.
type Discoverer struct {
	getter  Getter
	sources []Source
	log     logger.Logger
}

// New validates sources and creates a Discoverer.
func New(getter Getter, sources []Source, log logger.Logger) (*Discoverer, error) {
	for i, s := range sources {
		if !s.Kind.IsValid() {
			return nil, fmt.Errorf("%w: source %d (%s): unknown kind %q", ErrInvalidSource, i, s.Name, s.Kind)
		}
		u, err := url.Parse(s.URL)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("%w: source %d (%s): bad url %q", ErrInvalidSource, i, s.Name, s.URL)
		}
	}
	return &Discoverer{getter: getter, sources: sources, log: log}, nil
}

// Sources returns the configured sources.
func (d *Discoverer) Sources() []Source {
	return d.sources
}

// Discover scrapes every source. A failing source does not stop the others;
// its error is joined into the returned error alongside the partial result.
func (d *Discoverer) Discover(ctx context.Context) (Result, error) {
	var (
		res  Result
		errs []error
	)
	seenPages := make(map[string]struct{})
	seenDocs := make(map[string]struct{})

	for _, src := range d.sources {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		items, err := d.scrape(ctx, src)
		if err != nil {
			d.log.Warn("Discovery source failed",
				logger.String("source", src.Name),
				logger.URL(src.URL),
				logger.Error(err),
			)
			errs = append(errs, fmt.Errorf("source %s: %w", src.Name, err))
			continue
		}

		target, seen := &res.Pages, seenPages
		if src.Kind == KindPDFLinks {
			target, seen = &res.Documents, seenDocs
		}
		for _, item := range items {
			if _, dup := seen[item.URL]; dup {
				continue
			}
			seen[item.URL] = struct{}{}
			*target = append(*target, item)
		}

		d.log.Debug("Discovery source scraped",
			logger.String("source", src.Name),
			logger.Int("items", len(items)),
		)
	}

	return res, errors.Join(errs...)
}

func (d *Discoverer) scrape(ctx context.Context, src Source) ([]Item, error) {
	raw, err := d.getter.FetchRaw(ctx, src.URL, fetcher.AcceptAny)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(raw.FinalURL)
	if err != nil || raw.FinalURL == "" {
		base, _ = url.Parse(src.URL)
	}

	switch src.Kind {
	case KindFeed:
		return parseFeed(base, raw.Body, src)
	case KindListing:
		return parseListing(base, raw.Body, src)
	case KindTable:
		return parseTable(base, raw.Body, src)
	case KindPDFLinks:
		return parsePDFLinks(base, raw.Body, src)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidSource, src.Kind)
	}
}

func parseFeed(base *url.URL, body []byte, src Source) ([]Item, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		link := entry.Link
		if link == "" && strings.HasPrefix(entry.GUID, "http") {
			link = entry.GUID
		}
		resolved, ok := resolve(base, link)
		if !ok || !matches(resolved, src.Match) {
			continue
		}

		item := Item{URL: resolved, Title: strings.TrimSpace(entry.Title), Source: src.Name}
		switch {
		case entry.PublishedParsed != nil:
			item.PublishedDate = entry.PublishedParsed.UTC().Format(time.DateOnly)
		case entry.UpdatedParsed != nil:
			item.PublishedDate = entry.UpdatedParsed.UTC().Format(time.DateOnly)
		}
		items = append(items, item)
	}
	return items, nil
}

func parseListing(base *url.URL, body []byte, src Source) ([]Item, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	root := doc.Find("main").First()
	if root.Length() == 0 {
		root = doc.Selection
	}

	self := strings.TrimSuffix(base.String(), "/")
	var items []Item
	root.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !matches(href, src.Match) {
			return
		}
		resolved, ok := resolve(base, href)
		if !ok || strings.TrimSuffix(resolved, "/") == self {
			return
		}

		parent := a.Closest("p, div, li")
		if parent.Length() == 0 {
			return
		}
		date, ok := parseDate(parent.Text())
		if !ok {
			return
		}

		items = append(items, Item{
			URL:           resolved,
			Title:         strings.TrimSpace(a.Text()),
			Source:        src.Name,
			PublishedDate: date,
		})
	})
	return items, nil
}

func parseTable(base *url.URL, body []byte, src Source) ([]Item, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse table: %w", err)
	}

	var items []Item
	doc.Find("table").First().Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		a := cells.Eq(0).Find("a[href]").First()
		href, ok := a.Attr("href")
		if !ok || !matches(href, src.Match) {
			return
		}
		date, ok := parseDate(cells.Eq(1).Text())
		if !ok {
			return
		}
		resolved, ok := resolve(base, href)
		if !ok {
			return
		}

		items = append(items, Item{
			URL:           resolved,
			Title:         strings.TrimSpace(a.Text()),
			Source:        src.Name,
			PublishedDate: date,
		})
	})
	return items, nil
}

func parsePDFLinks(base *url.URL, body []byte, src Source) ([]Item, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse pdf links: %w", err)
	}

	match := strings.ToLower(src.Match)
	var items []Item
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		resolved, ok := resolve(base, href)
		if !ok {
			return
		}
		u, _ := url.Parse(resolved)
		lower := strings.ToLower(u.Path)
		if !strings.HasSuffix(lower, ".pdf") || !strings.Contains(lower, match) {
			return
		}

		title := strings.TrimSpace(a.Text())
		if title == "" {
			title = path.Base(u.Path)
		}
		items = append(items, Item{URL: resolved, Title: title, Source: src.Name})
	})
	return items, nil
}

// resolve makes href absolute against base, dropping fragments. Only http(s)
// results are accepted.
func resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	return u.String(), true
}

func matches(s, match string) bool {
	return match == "" || strings.Contains(strings.ToLower(s), strings.ToLower(match))
}

// parseDate finds the first M/D/YYYY date in s and returns it as YYYY-MM-DD.
func parseDate(s string) (string, bool) {
	m := datePattern.FindString(s)
	if m == "" {
		return "", false
	}
	t, err := time.Parse("1/2/2006", m)
	if err != nil {
		return "", false
	}
	return t.Format(time.DateOnly), true
}
