package discovery_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/discovery"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/fetcher"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
)

const newsHTML = `<html><body>
<nav><a href="/about/news-releases/ignored">Nav 01/01/2020</a></nav>
<main>
  <p><a href="/about/news-releases">All releases</a> 02/02/2024</p>
  <div><a href="/about/news-releases/new-rates">New rates announced</a> 03/15/2025</div>
  <li><a href="/about/news-releases/no-date">Undated</a></li>
  <p><a href="/about/news-releases/new-rates#top">Duplicate</a> 03/15/2025</p>
  <p><a href="/other/page">Other</a> 04/01/2025</p>
</main></body></html>`

const noticesHTML = `<html><body><table>
<tr><th>Title</th><th>Date</th></tr>
<tr><td><a href="/notices/sn-1.pdf">Notice one</a></td><td>1/5/2025</td><td>x</td></tr>
<tr><td>No link</td><td>1/6/2025</td></tr>
<tr><td><a href="https://dor.example/notices/sn-2">Notice two</a></td><td>not a date</td></tr>
</table></body></html>`

const wtdHTML = `<html><body>
<a href="/wtd/44WTD001.pdf">44 WTD 001</a>
<a href="/wtd/44WTD002.pdf?v=2"></a>
<a href="/forms/other.pdf">Other form</a>
<a href="/wtd/index.html">Index</a>
</body></html>`

const feedXML = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>DOR</title>
<item><title>Item one</title><link>https://dor.example/feed/one</link><pubDate>Mon, 02 Jun 2025 10:00:00 GMT</pubDate></item>
<item><title>No link</title><guid isPermaLink="false">abc</guid></item>
</channel></rss>`

func newSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	serve := func(path, contentType, body string) {
		mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", contentType)
			_, _ = w.Write([]byte(body))
		})
	}
	serve("/about/news-releases", "text/html", newsHTML)
	serve("/notices", "text/html", noticesHTML)
	serve("/decisions", "text/html", wtdHTML)
	serve("/feed.xml", "application/rss+xml", feedXML)
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newDiscoverer(t *testing.T, sources []discovery.Source) *discovery.Discoverer {
	t.Helper()

	f, err := fetcher.New(fetcher.Config{}, nil)
	require.NoError(t, err)
	d, err := discovery.New(f, sources, logger.NewNop())
	require.NoError(t, err)
	return d
}

func TestDiscover_Listing(t *testing.T) {
	t.Parallel()
	srv := newSite(t)

	d := newDiscoverer(t, []discovery.Source{{
		Name: "news-releases", Kind: discovery.KindListing,
		URL: srv.URL + "/about/news-releases", Match: "/about/news-releases/",
	}})

	res, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, srv.URL+"/about/news-releases/new-rates", res.Pages[0].URL)
	assert.Equal(t, "New rates announced", res.Pages[0].Title)
	assert.Equal(t, "2025-03-15", res.Pages[0].PublishedDate)
	assert.Equal(t, "news-releases", res.Pages[0].Source)
	assert.Empty(t, res.Documents)
}

func TestDiscover_Table(t *testing.T) {
	t.Parallel()
	srv := newSite(t)

	d := newDiscoverer(t, []discovery.Source{{
		Name: "special-notices", Kind: discovery.KindTable, URL: srv.URL + "/notices",
	}})

	res, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, srv.URL+"/notices/sn-1.pdf", res.Pages[0].URL)
	assert.Equal(t, "2025-01-05", res.Pages[0].PublishedDate)
}

func TestDiscover_PDFLinks(t *testing.T) {
	t.Parallel()
	srv := newSite(t)

	d := newDiscoverer(t, []discovery.Source{{
		Name: "tax-decisions", Kind: discovery.KindPDFLinks, URL: srv.URL + "/decisions", Match: "wtd",
	}})

	res, err := d.Discover(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Pages)
	require.Len(t, res.Documents, 2)
	assert.Equal(t, "44 WTD 001", res.Documents[0].Title)
	assert.Equal(t, "44WTD002.pdf", res.Documents[1].Title, "empty link text falls back to file name")
}

func TestDiscover_Feed(t *testing.T) {
	t.Parallel()
	srv := newSite(t)

	d := newDiscoverer(t, []discovery.Source{{
		Name: "feed", Kind: discovery.KindFeed, URL: srv.URL + "/feed.xml",
	}})

	res, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, "https://dor.example/feed/one", res.Pages[0].URL)
	assert.Equal(t, "2025-06-02", res.Pages[0].PublishedDate)
}

func TestDiscover_FailingSourceKeepsOthers(t *testing.T) {
	t.Parallel()
	srv := newSite(t)

	d := newDiscoverer(t, []discovery.Source{
		{Name: "broken", Kind: discovery.KindListing, URL: srv.URL + "/broken"},
		{Name: "tax-decisions", Kind: discovery.KindPDFLinks, URL: srv.URL + "/decisions", Match: "wtd"},
	})

	res, err := d.Discover(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source broken")
	assert.Len(t, res.Documents, 2)
}

func TestNew_RejectsInvalidSources(t *testing.T) {
	t.Parallel()

	_, err := discovery.New(nil, []discovery.Source{{Name: "x", Kind: "sitemap", URL: "https://a.example"}}, logger.NewNop())
	require.ErrorIs(t, err, discovery.ErrInvalidSource)

	_, err = discovery.New(nil, []discovery.Source{{Name: "x", Kind: discovery.KindFeed, URL: "/relative"}}, logger.NewNop())
	require.ErrorIs(t, err, discovery.ErrInvalidSource)
}
