// Package scraper extracts raw sneaker records from store websites. Each
// store is backed by a configured source: a JSON product feed or an HTML
// catalog page.
package scraper

import (
	"context"

	"github.com/mitchellh/mapstructure"

	apperrors "github.com/quimera/catalog-ingest/internal/pkg/errors"
	"github.com/quimera/catalog-ingest/internal/service/ingest"
	"github.com/quimera/catalog-ingest/internal/service/ingest/fetcher"
)

const component = "scraper"

// Source kinds accepted in configuration.
const (
	SourceJSONFeed    = "jsonfeed"
	SourceHTMLCatalog = "htmlcatalog"
)

// Source extracts the raw records of one store.
type Source interface {
	// Kind identifies the source type.
	Kind() string
	// Fetch extracts all records currently published by the store.
	Fetch(ctx context.Context) ([]ingest.RawRecord, error)
}

// SourceConfig declares which source serves a store. Options are decoded
// into the source's own option struct, so each source kind documents its
// own keys.
type SourceConfig struct {
	StoreID int64
	Kind    string
	Options map[string]any
}

// newSource builds the configured source backed by the given fetcher.
func newSource(cfg SourceConfig, f fetcher.Fetcher) (Source, error) {
	switch cfg.Kind {
	case SourceJSONFeed:
		var opts jsonFeedOptions
		if err := decodeOptions(cfg.Options, &opts); err != nil {
			return nil, err
		}
		return newJSONFeedSource(opts, f)

	case SourceHTMLCatalog:
		var opts htmlCatalogOptions
		if err := decodeOptions(cfg.Options, &opts); err != nil {
			return nil, err
		}
		return newHTMLCatalogSource(opts, f)

	default:
		return nil, apperrors.Newf(apperrors.InvalidInput, "unknown source kind %q", cfg.Kind)
	}
}

// decodeOptions maps the free-form options block onto a source's option
// struct. Unknown keys are rejected so configuration typos surface at
// startup instead of as silently empty records.
func decodeOptions(options map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      target,
		ErrorUnused: true,
		TagName:     "option",
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.Internal, "failed to build source option decoder")
	}
	if err := decoder.Decode(options); err != nil {
		return apperrors.Wrap(err, apperrors.InvalidInput, "invalid source options")
	}
	return nil
}
