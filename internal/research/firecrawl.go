package research

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/vendor-research/pkg/firecrawl"
)

// directorySuffixes target business directories and review listings.
var directorySuffixes = []string{
	" site:yelp.com",
	" site:yellowpages.com",
	" site:bbb.org",
	" contractor directory",
	" reviews ratings",
}

// Firecrawl researches vendors by crawling directory search result pages.
type Firecrawl struct {
	client      firecrawl.Client
	maxPages    int
	concurrency int
	pollOpts    []firecrawl.PollOption
}

// FirecrawlOption configures a Firecrawl researcher.
type FirecrawlOption func(*Firecrawl)

// WithPollOptions passes polling options through to firecrawl.PollCrawl.
func WithPollOptions(opts ...firecrawl.PollOption) FirecrawlOption {
	return func(f *Firecrawl) {
		f.pollOpts = append(f.pollOpts, opts...)
	}
}

// NewFirecrawl creates a Firecrawl researcher. maxPages caps each crawl and
// concurrency bounds how many directory searches run at once.
func NewFirecrawl(client firecrawl.Client, maxPages, concurrency int, opts ...FirecrawlOption) *Firecrawl {
	if maxPages <= 0 {
		maxPages = 20
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	f := &Firecrawl{client: client, maxPages: maxPages, concurrency: concurrency}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name implements Researcher.
func (f *Firecrawl) Name() string { return "firecrawl" }

// SearchURLs returns the directory search pages crawled for q.
func SearchURLs(q Query) []string {
	terms := SearchTerms(q)
	urls := make([]string, 0, len(directorySuffixes))
	for _, s := range directorySuffixes {
		urls = append(urls, "https://www.google.com/search?q="+url.QueryEscape(terms+s))
	}
	return urls
}

// Research implements Researcher. Failed crawls are skipped; the call fails
// only when every crawl fails.
func (f *Firecrawl) Research(ctx context.Context, q Query) (*Output, error) {
	log := zap.L().With(zap.String("category", q.Category))
	urls := SearchURLs(q)

	pages := make([][]firecrawl.PageData, len(urls))
	var (
		mu      sync.Mutex
		lastErr error
		failed  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			data, err := f.crawl(gctx, u)
			if err != nil {
				log.Warn("research: crawl failed", zap.String("url", u), zap.Error(err))
				mu.Lock()
				failed++
				lastErr = err
				mu.Unlock()
				return nil
			}
			pages[i] = data
			return nil
		})
	}
	_ = g.Wait()

	if failed == len(urls) {
		return nil, eris.Wrap(classify(lastErr), "research: firecrawl all crawls failed")
	}

	var (
		b       strings.Builder
		sources []string
	)
	for _, batch := range pages {
		for _, p := range batch {
			text := pageText(p)
			if text == "" {
				continue
			}
			if title := p.PageTitle(); title != "" {
				fmt.Fprintf(&b, "## %s\n", title)
			}
			b.WriteString(text)
			b.WriteString("\n\n")
			if u := p.PageURL(); u != "" {
				sources = append(sources, u)
			}
		}
	}

	log.Debug("research: firecrawl complete",
		zap.Int("crawls_failed", failed),
		zap.Int("pages", len(sources)),
	)

	return &Output{Provider: f.Name(), Text: strings.TrimSpace(b.String()), Sources: sources}, nil
}

func (f *Firecrawl) crawl(ctx context.Context, u string) ([]firecrawl.PageData, error) {
	resp, err := f.client.Crawl(ctx, firecrawl.CrawlRequest{
		URL:   u,
		Limit: f.maxPages,
		ScrapeOptions: &firecrawl.ScrapeOptions{
			Formats:         []string{"markdown", "html"},
			OnlyMainContent: true,
		},
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success || resp.ID == "" {
		return nil, eris.Errorf("research: crawl of %s not accepted", u)
	}

	status, err := firecrawl.PollCrawl(ctx, f.client, resp.ID, f.pollOpts...)
	if err != nil {
		return nil, err
	}
	return status.Data, nil
}

// pageText prefers the markdown rendering and falls back to the visible
// text of the HTML body.
func pageText(p firecrawl.PageData) string {
	if md := strings.TrimSpace(p.Markdown); md != "" {
		return md
	}
	if strings.TrimSpace(p.HTML) == "" {
		return ""
	}
	return HTMLText(p.HTML)
}

// HTMLText extracts whitespace-normalized visible text from an HTML document,
// dropping scripts, styles and navigation chrome.
func HTMLText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, nav, header, footer").Remove()

	var lines []string
	doc.Find("h1, h2, h3, h4, p, li, td, address").Each(func(_ int, s *goquery.Selection) {
		if s.Find("p, li, td").Length() > 0 {
			return
		}
		if t := strings.Join(strings.Fields(s.Text()), " "); t != "" {
			lines = append(lines, t)
		}
	})
	if len(lines) == 0 {
		return strings.Join(strings.Fields(doc.Text()), " ")
	}
	return strings.Join(lines, "\n")
}
