package scraper

import (
	"context"
	"time"

	apperrors "github.com/quimera/catalog-ingest/internal/pkg/errors"
	"github.com/quimera/catalog-ingest/internal/service/catalog"
	"github.com/quimera/catalog-ingest/internal/service/ingest"
	"github.com/quimera/catalog-ingest/internal/service/ingest/fetcher"
	applog "github.com/quimera/catalog-ingest/pkg/log"
)

const (
	defaultFetchAttempts = 2
	defaultFetchDelay    = 5 * time.Second
)

// Scraper dispatches scrape requests to the source configured for each
// store. A transient source failure is retried once after a pause; store
// sites wobble often enough that a single retry pays for itself.
type Scraper struct {
	sources map[int64]Source
	fetcher fetcher.Fetcher

	attempts   int
	retryDelay time.Duration
}

// New builds a Scraper from the configured sources. The fetcher is shared
// by all sources; pass nil to get the default stack with retries, status
// checking and browser user agents.
func New(configs []SourceConfig, f fetcher.Fetcher) (*Scraper, error) {
	if f == nil {
		f = NewDefaultFetcher()
	}

	sources := make(map[int64]Source, len(configs))
	for _, cfg := range configs {
		if _, ok := sources[cfg.StoreID]; ok {
			return nil, apperrors.Newf(apperrors.InvalidInput, "duplicate source for store %d", cfg.StoreID)
		}
		source, err := newSource(cfg, f)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.InvalidInput, "invalid source for store %d", cfg.StoreID)
		}
		sources[cfg.StoreID] = source
	}

	return &Scraper{
		sources:    sources,
		fetcher:    f,
		attempts:   defaultFetchAttempts,
		retryDelay: defaultFetchDelay,
	}, nil
}

// NewDefaultFetcher assembles the fetcher stack used for store scraping:
// plain HTTP at the core, wrapped with status validation, transient-error
// retries and rotating browser user agents.
func NewDefaultFetcher() fetcher.Fetcher {
	var f fetcher.Fetcher = fetcher.NewHTTPFetcher()
	f = fetcher.NewStatusCodeFetcher(f)
	f = fetcher.NewRetryFetcher(f, 2, 1*time.Second, 15*time.Second)
	f = fetcher.NewUserAgentFetcher(f, nil)
	return f
}

// Scrape extracts the raw records of the given store.
func (s *Scraper) Scrape(ctx context.Context, store catalog.Store) ([]ingest.RawRecord, error) {
	source, ok := s.sources[store.ID]
	if !ok {
		return nil, apperrors.Newf(apperrors.NotFound, "no source configured for store %q", store.Nombre)
	}

	logger := applog.WithComponentAndFields(component, applog.Fields{
		"store": store.Nombre,
		"kind":  source.Kind(),
	})

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		records, err := source.Fetch(ctx)
		if err == nil {
			logger.WithField("records", len(records)).Info("store scraped")
			return records, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == s.attempts {
			break
		}
		logger.WithField("attempt", attempt).WithError(err).Warn("scrape failed, retrying")

		timer := time.NewTimer(s.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, apperrors.Wrapf(lastErr, apperrors.ExecutionFailed, "failed to scrape store %q", store.Nombre)
}

// Close releases the underlying fetcher's connections.
func (s *Scraper) Close() error {
	return s.fetcher.Close()
}

// SourceKinds returns the configured source kind per store ID, for the
// status endpoint.
func (s *Scraper) SourceKinds() map[int64]string {
	kinds := make(map[int64]string, len(s.sources))
	for id, source := range s.sources {
		kinds[id] = source.Kind()
	}
	return kinds
}
