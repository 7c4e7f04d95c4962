package research

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vendor-research/pkg/firecrawl"
)

// fakeFirecrawl serves POST /crawl and GET /crawl/{id}. Crawls whose target
// URL contains a key in fail are rejected with that status.
type fakeFirecrawl struct {
	mu      sync.Mutex
	started []firecrawl.CrawlRequest
	fail    map[string]int
	pages   []firecrawl.PageData
}

func (f *fakeFirecrawl) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /crawl", func(w http.ResponseWriter, r *http.Request) {
		var req firecrawl.CrawlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.started = append(f.started, req)
		f.mu.Unlock()

		target, _ := url.QueryUnescape(req.URL)
		for key, status := range f.fail {
			if strings.Contains(target, key) {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"error":"blocked"}`))
				return
			}
		}
		_ = json.NewEncoder(w).Encode(firecrawl.CrawlResponse{Success: true, ID: "job-1"})
	})
	mux.HandleFunc("GET /crawl/{id}", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(firecrawl.CrawlStatusResponse{
			Status: "completed", Total: len(f.pages), Completed: len(f.pages), Data: f.pages,
		})
	})
	return mux
}

func newFirecrawlResearcher(srv *httptest.Server) *Firecrawl {
	client := firecrawl.NewClient("key", firecrawl.WithBaseURL(srv.URL))
	return NewFirecrawl(client, 20, 2, WithPollOptions(firecrawl.WithPollInterval(5*time.Millisecond)))
}

func TestSearchURLs(t *testing.T) {
	urls := SearchURLs(Query{Category: "Architect", Location: "Austin, TX", ZipCode: "78701"})
	require.Len(t, urls, 5)

	for i, suffix := range directorySuffixes {
		u, err := url.Parse(urls[i])
		require.NoError(t, err)
		assert.Equal(t, "www.google.com", u.Host)
		assert.Equal(t, "Architect near Austin, TX 78701"+suffix, u.Query().Get("q"))
	}
}

func TestFirecrawlResearch(t *testing.T) {
	fake := &fakeFirecrawl{pages: []firecrawl.PageData{
		{URL: "https://yelp.example/acme", Title: "Acme Architects", Markdown: "Acme Architects\nPhone: 512-555-1234"},
		{URL: "https://bbb.example/blank", Title: "Empty"},
		{URL: "https://yp.example/hill", HTML: "<html><body><nav>Menu</nav><p>Hill Country Design</p><p>Call 512 555 9876</p></body></html>"},
	}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	out, err := newFirecrawlResearcher(srv).Research(context.Background(), Query{Category: "Architect", Location: "Austin, TX"})
	require.NoError(t, err)

	assert.Equal(t, "firecrawl", out.Provider)
	assert.Contains(t, out.Text, "## Acme Architects")
	assert.Contains(t, out.Text, "Hill Country Design")
	assert.NotContains(t, out.Text, "Menu")
	assert.NotContains(t, out.Text, "## Empty")
	// Five crawls, two contributing pages each.
	assert.Len(t, out.Sources, 10)

	require.Len(t, fake.started, 5)
	for _, req := range fake.started {
		assert.Equal(t, 20, req.Limit)
		require.NotNil(t, req.ScrapeOptions)
		assert.Equal(t, []string{"markdown", "html"}, req.ScrapeOptions.Formats)
		assert.True(t, req.ScrapeOptions.OnlyMainContent)
	}
}

func TestFirecrawlResearch_PartialFailure(t *testing.T) {
	fake := &fakeFirecrawl{
		fail:  map[string]int{"site:yelp.com": http.StatusForbidden, "site:bbb.org": http.StatusBadGateway},
		pages: []firecrawl.PageData{{URL: "https://a.example", Markdown: "Acme Architects"}},
	}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	out, err := newFirecrawlResearcher(srv).Research(context.Background(), Query{Category: "Architect", Location: "Austin"})
	require.NoError(t, err)
	assert.Len(t, out.Sources, 3)
}

func TestFirecrawlResearch_AllFail(t *testing.T) {
	fake := &fakeFirecrawl{fail: map[string]int{"Architect": http.StatusServiceUnavailable}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	_, err := newFirecrawlResearcher(srv).Research(context.Background(), Query{Category: "Architect", Location: "Austin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all crawls failed")

	var apiErr *firecrawl.APIError
	assert.ErrorAs(t, err, &apiErr)
}

func TestHTMLText(t *testing.T) {
	html := `<html><head><style>p{}</style><script>var x=1;</script></head>
<body><header>Top</header>
<h2>Lone Star   Builders</h2>
<ul><li>Rating: 4.8</li><li>Phone: (512) 555-0000</li></ul>
<footer>Copyright</footer></body></html>`

	got := HTMLText(html)
	assert.Equal(t, "Lone Star Builders\nRating: 4.8\nPhone: (512) 555-0000", got)
}

func TestHTMLText_PlainBody(t *testing.T) {
	assert.Equal(t, "just some text", HTMLText("<div>just   some\ntext</div>"))
}
