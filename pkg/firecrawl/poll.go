package firecrawl

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// PollOption tunes PollCrawl.
type PollOption func(*pollConfig)

type pollConfig struct {
	interval time.Duration
	max      time.Duration
	timeout  time.Duration
}

// WithPollInterval sets the first wait between status checks.
func WithPollInterval(d time.Duration) PollOption {
	return func(c *pollConfig) { c.interval = d }
}

// WithPollCap bounds the doubling wait.
func WithPollCap(d time.Duration) PollOption {
	return func(c *pollConfig) { c.max = d }
}

// WithPollTimeout bounds the whole poll when ctx has no deadline.
func WithPollTimeout(d time.Duration) PollOption {
	return func(c *pollConfig) { c.timeout = d }
}

// PollCrawl waits for crawl id to finish and returns its status with the data
// of every result page merged in. If ctx ends first the crawl is cancelled
// upstream so it stops consuming credits.
func PollCrawl(ctx context.Context, client Client, id string, opts ...PollOption) (*CrawlStatusResponse, error) {
	cfg := pollConfig{interval: 2 * time.Second, max: 15 * time.Second, timeout: 5 * time.Minute}
	for _, opt := range opts {
		opt(&cfg)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	wait := cfg.interval
	for {
		status, err := client.CrawlStatus(ctx, id, "")
		if err != nil {
			if ctx.Err() != nil {
				abandon(ctx, client, id)
			}
			return nil, eris.Wrapf(err, "firecrawl: poll crawl %s", id)
		}

		switch status.Status {
		case "completed":
			return collectPages(ctx, client, id, status)
		case "failed", "cancelled":
			return nil, eris.Errorf("firecrawl: crawl %s %s", id, status.Status)
		}

		select {
		case <-ctx.Done():
			abandon(ctx, client, id)
			return nil, eris.Wrapf(ctx.Err(), "firecrawl: crawl %s did not finish", id)
		case <-time.After(wait):
		}
		wait = min(wait*2, cfg.max)
	}
}

func collectPages(ctx context.Context, client Client, id string, first *CrawlStatusResponse) (*CrawlStatusResponse, error) {
	out := *first
	for next := first.Next; next != ""; {
		page, err := client.CrawlStatus(ctx, id, next)
		if err != nil {
			return nil, eris.Wrapf(err, "firecrawl: crawl %s next page", id)
		}
		out.Data = append(out.Data, page.Data...)
		next = page.Next
	}
	out.Next = ""
	return &out, nil
}

// abandon cancels the crawl on a context detached from the expired one.
func abandon(ctx context.Context, client Client, id string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	_ = client.CancelCrawl(cctx, id)
}
