package fetcher

import (
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// HTTPFetcher is the base Fetcher implementation backed by http.Client.
type HTTPFetcher struct {
	client *http.Client
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates an HTTPFetcher with the default 30 second timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return NewHTTPFetcherWithTimeout(defaultTimeout)
}

// NewHTTPFetcherWithTimeout creates an HTTPFetcher with a custom timeout.
// A non-positive timeout falls back to the default.
func NewHTTPFetcherWithTimeout(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (f *HTTPFetcher) Do(req *http.Request) (*http.Response, error) {
	return f.client.Do(req)
}

// Close releases idle connections held by the underlying client.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}
