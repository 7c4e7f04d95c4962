// Package firecrawl is a client for the Firecrawl crawl API, used to pull
// vendor listings from directory search pages.
package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.firecrawl.dev/v2"

// Client is the subset of the crawl API the researcher uses.
type Client interface {
	Crawl(ctx context.Context, req CrawlRequest) (*CrawlResponse, error)
	// CrawlStatus fetches a job's status. next, when set, is the absolute
	// URL of a later result page from a previous status response.
	CrawlStatus(ctx context.Context, id, next string) (*CrawlStatusResponse, error)
	CancelCrawl(ctx context.Context, id string) error
}

// CrawlRequest is the POST /crawl body.
type CrawlRequest struct {
	URL           string         `json:"url"`
	Limit         int            `json:"limit,omitempty"`
	MaxDepth      int            `json:"maxDiscoveryDepth,omitempty"`
	ScrapeOptions *ScrapeOptions `json:"scrapeOptions,omitempty"`
}

type ScrapeOptions struct {
	Formats         []string `json:"formats,omitempty"`
	OnlyMainContent bool     `json:"onlyMainContent,omitempty"`
}

type CrawlResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// CrawlStatusResponse is one page of GET /crawl/{id}. Large crawls split
// their data across pages linked by Next.
type CrawlStatusResponse struct {
	Status    string     `json:"status"`
	Total     int        `json:"total"`
	Completed int        `json:"completed"`
	Next      string     `json:"next,omitempty"`
	Data      []PageData `json:"data"`
}

// PageData is one crawled page.
type PageData struct {
	URL      string       `json:"url"`
	Markdown string       `json:"markdown"`
	HTML     string       `json:"html"`
	Title    string       `json:"title"`
	Metadata PageMetadata `json:"metadata"`
}

type PageMetadata struct {
	Title      string `json:"title"`
	SourceURL  string `json:"sourceURL"`
	StatusCode int    `json:"statusCode"`
}

// PageTitle returns the page title, falling back to the metadata title.
func (p PageData) PageTitle() string {
	if p.Title != "" {
		return p.Title
	}
	return p.Metadata.Title
}

// PageURL returns the page URL, falling back to the metadata source URL.
func (p PageData) PageURL() string {
	if p.URL != "" {
		return p.URL
	}
	return p.Metadata.SourceURL
}

// APIError carries a non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("firecrawl: HTTP %d: %s", e.StatusCode, e.Body)
}

type Option func(*httpClient)

func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient returns a client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Crawl(ctx context.Context, req CrawlRequest) (*CrawlResponse, error) {
	var out CrawlResponse
	if err := c.call(ctx, http.MethodPost, c.baseURL+"/crawl", req, &out); err != nil {
		return nil, eris.Wrap(err, "firecrawl: start crawl")
	}
	return &out, nil
}

func (c *httpClient) CrawlStatus(ctx context.Context, id, next string) (*CrawlStatusResponse, error) {
	target := c.baseURL + "/crawl/" + id
	if next != "" {
		target = next
	}
	var out CrawlStatusResponse
	if err := c.call(ctx, http.MethodGet, target, nil, &out); err != nil {
		return nil, eris.Wrapf(err, "firecrawl: crawl status %s", id)
	}
	return &out, nil
}

func (c *httpClient) CancelCrawl(ctx context.Context, id string) error {
	return eris.Wrapf(c.call(ctx, http.MethodDelete, c.baseURL+"/crawl/"+id, nil, nil), "firecrawl: cancel crawl %s", id)
}

// call sends one request. A nil in skips the body and a nil out skips
// decoding.
func (c *httpClient) call(ctx context.Context, method, target string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return eris.Wrap(err, "encode request")
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return eris.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}
	return eris.Wrap(json.Unmarshal(data, out), "decode response")
}
