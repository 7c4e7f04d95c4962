// Package jina is a small client for Jina AI web search, used to find local
// vendor listings.
package jina

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultSearchBaseURL = "https://s.jina.ai"

	// DefaultResultCount is how many results a search asks for when no
	// count is given.
	DefaultResultCount = 10
)

// Client searches the web through Jina.
type Client interface {
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
}

// SearchResponse is the decoded search payload.
type SearchResponse struct {
	Code int            `json:"code"`
	Data []SearchResult `json:"data"`
}

// SearchResult is one hit. Content holds the page body when Jina could read
// it; Description is the snippet.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content"`
	Description string `json:"description"`
}

// APIError carries a non-200 search status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jina: search unexpected status %d: %s", e.StatusCode, e.Body)
}

// SearchOption narrows a single search.
type SearchOption func(url.Values)

// WithLocation biases results toward a place, e.g. "Austin, TX 78701".
func WithLocation(place string) SearchOption {
	return func(v url.Values) {
		if place != "" {
			v.Set("location", place)
		}
	}
}

// WithResultCount caps the number of results.
func WithResultCount(n int) SearchOption {
	return func(v url.Values) {
		if n > 0 {
			v.Set("num", strconv.Itoa(n))
		}
	}
}

// Option configures the client.
type Option func(*httpClient)

// WithSearchBaseURL points the client at another host.
func WithSearchBaseURL(u string) Option {
	return func(c *httpClient) {
		c.searchBaseURL = u
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey        string
	searchBaseURL string
	http          *http.Client
}

// NewClient returns a search client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:        apiKey,
		searchBaseURL: defaultSearchBaseURL,
		http:          &http.Client{Timeout: 45 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs one query. A 422 is Jina's way of saying nothing matched and
// comes back as an empty response.
func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	params := url.Values{"q": {query}}
	for _, opt := range opts {
		opt(params)
	}
	reqURL := c.searchBaseURL + "/?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jina: build search request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "jina: search")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "jina: read search body")
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnprocessableEntity:
		return &SearchResponse{Code: resp.StatusCode}, nil
	default:
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out SearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "jina: decode search response")
	}
	return &out, nil
}
