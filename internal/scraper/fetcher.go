package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.0.0 Safari/537.36"

// Fetcher supplies the raw page payload for one ingestion run. A fetch error
// short-circuits the whole run; the pipeline never retries here.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// PageFetcher fetches a listing page over HTTP with browser-like headers.
// It owns its own timeout policy.
type PageFetcher struct {
	url       string
	userAgent string
	client    *http.Client
}

// NewPageFetcher creates a fetcher for the given listing URL.
func NewPageFetcher(url, userAgent string) *PageFetcher {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &PageFetcher{
		url:       url,
		userAgent: userAgent,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Fetch retrieves the listing page and returns its body as text.
func (f *PageFetcher) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "nl-NL,nl;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", f.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status code %d", f.url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	return string(body), nil
}
