package watchfeed

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// defaultBaseURL is the site every watchlist, detail page, and activity feed
// is fetched from.
const defaultBaseURL = "https://letterboxd.com"

// requestTimeout bounds each individual request. A timed-out request ends
// that attempt only; it is never escalated to abort the run.
const requestTimeout = 30 * time.Second

// userAgent identifies this client on every outbound request.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// Fetcher issues rate-limited HTTP GET requests with the fixed header set
// the site expects. Every outbound request in a run passes through the same
// pacer.
type Fetcher struct {
	client *http.Client
	pacer  *Pacer
}

// NewFetcher creates a fetcher that paces requests through the given pacer.
func NewFetcher(pacer *Pacer) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: requestTimeout},
		pacer:  pacer,
	}
}

// get performs a paced GET request. The caller owns the response body.
func (f *Fetcher) get(ctx context.Context, url string) (*http.Response, error) {
	if err := f.pacer.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter interrupted: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	// Accept-Encoding is left to the transport: advertising brotli makes the
	// site serve different markup, and the transport's implicit gzip is
	// decompressed transparently.

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	return resp, nil
}
