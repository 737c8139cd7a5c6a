package fetcher

import (
	"math/rand/v2"
	"net/http"
)

// defaultUserAgents is the pool used when no custom list is configured.
// Rotating across common desktop browsers keeps the scraper from presenting
// a single fingerprint on every request.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
}

// UserAgentFetcher sets a User-Agent on requests that don't already carry
// one, picked at random per request from its pool. Place it above
// RetryFetcher when retried attempts should reuse the same identity.
type UserAgentFetcher struct {
	delegate Fetcher
	pool     []string
}

var _ Fetcher = (*UserAgentFetcher)(nil)

// NewUserAgentFetcher creates a UserAgentFetcher. A nil or empty pool falls
// back to the built-in browser list.
func NewUserAgentFetcher(delegate Fetcher, pool []string) *UserAgentFetcher {
	if len(pool) == 0 {
		pool = defaultUserAgents
	}
	return &UserAgentFetcher{delegate: delegate, pool: pool}
}

func (f *UserAgentFetcher) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return f.delegate.Do(req)
	}

	// clone so the caller's request is not mutated
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", f.pool[rand.IntN(len(f.pool))])

	return f.delegate.Do(clone)
}

func (f *UserAgentFetcher) Close() error {
	return f.delegate.Close()
}
