package scraper

import (
	"context"
	"net/url"

	"github.com/tidwall/gjson"

	apperrors "github.com/quimera/catalog-ingest/internal/pkg/errors"
	"github.com/quimera/catalog-ingest/internal/service/ingest"
	"github.com/quimera/catalog-ingest/internal/service/ingest/fetcher"
	applog "github.com/quimera/catalog-ingest/pkg/log"
)

// jsonFeedOptions configures a jsonfeed source. Paths use gjson syntax and
// are evaluated relative to each record unless noted.
type jsonFeedOptions struct {
	// URL of the feed endpoint.
	URL string `option:"url"`
	// Header carries extra request headers (API keys and the like).
	Header map[string]string `option:"header"`

	// RecordsPath locates the record array in the response document. An
	// empty path means the document root is the array.
	RecordsPath string `option:"records_path"`

	// Brand is a fixed brand for single-brand stores; BrandPath wins when
	// both are set.
	Brand     string `option:"brand"`
	BrandPath string `option:"brand_path"`

	ModelPath       string `option:"model_path"`
	SKUPath         string `option:"sku_path"`
	PricePath       string `option:"price_path"`
	URLPath         string `option:"url_path"`
	ImagePath       string `option:"image_path"`
	DescriptionPath string `option:"description_path"`
	StoreModelPath  string `option:"store_model_path"`

	// AvailablePath is optional. Without it records default to
	// unavailable unless AssumeAvailable is set, which is the explicit
	// statement that the feed only publishes what is in stock.
	AvailablePath   string `option:"available_path"`
	AssumeAvailable bool   `option:"assume_available"`

	// SizesPath locates the size array within a record. SizeLabelPath and
	// SizeAvailablePath are evaluated relative to each size element; an
	// empty SizeLabelPath treats the element itself as the label.
	SizesPath         string `option:"sizes_path"`
	SizeLabelPath     string `option:"size_label_path"`
	SizeAvailablePath string `option:"size_available_path"`
}

func (o jsonFeedOptions) validate() error {
	switch {
	case o.URL == "":
		return apperrors.New(apperrors.InvalidInput, "jsonfeed source requires url")
	case o.ModelPath == "":
		return apperrors.New(apperrors.InvalidInput, "jsonfeed source requires model_path")
	case o.PricePath == "":
		return apperrors.New(apperrors.InvalidInput, "jsonfeed source requires price_path")
	case o.URLPath == "":
		return apperrors.New(apperrors.InvalidInput, "jsonfeed source requires url_path")
	case o.Brand == "" && o.BrandPath == "":
		return apperrors.New(apperrors.InvalidInput, "jsonfeed source requires brand or brand_path")
	}
	return nil
}

type jsonFeedSource struct {
	opts    jsonFeedOptions
	fetcher fetcher.Fetcher
	base    *url.URL
}

func newJSONFeedSource(opts jsonFeedOptions, f fetcher.Fetcher) (*jsonFeedSource, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(opts.URL)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.InvalidInput, "invalid jsonfeed url %q", opts.URL)
	}
	return &jsonFeedSource{opts: opts, fetcher: f, base: base}, nil
}

func (s *jsonFeedSource) Kind() string { return SourceJSONFeed }

func (s *jsonFeedSource) Fetch(ctx context.Context) ([]ingest.RawRecord, error) {
	body, err := fetcher.FetchJSONBody(ctx, s.fetcher, s.opts.URL, s.opts.Header)
	if err != nil {
		return nil, err
	}

	root := gjson.ParseBytes(body)
	records := root
	if s.opts.RecordsPath != "" {
		records = root.Get(s.opts.RecordsPath)
	}
	if !records.IsArray() {
		return nil, apperrors.Newf(apperrors.ParsingFailed,
			"jsonfeed %s: no record array at %q", s.base.Host, s.opts.RecordsPath)
	}

	var out []ingest.RawRecord
	records.ForEach(func(_, rec gjson.Result) bool {
		out = append(out, s.record(rec))
		return true
	})

	applog.WithComponentAndFields(component, applog.Fields{
		"source":  SourceJSONFeed,
		"host":    s.base.Host,
		"records": len(out),
	}).Debug("feed fetched")

	return out, nil
}

func (s *jsonFeedSource) record(rec gjson.Result) ingest.RawRecord {
	brand := s.opts.Brand
	if s.opts.BrandPath != "" {
		brand = rec.Get(s.opts.BrandPath).String()
	}

	available := s.opts.AssumeAvailable
	if s.opts.AvailablePath != "" {
		available = rec.Get(s.opts.AvailablePath).Bool()
	}

	raw := ingest.RawRecord{
		Brand:     brand,
		Model:     rec.Get(s.opts.ModelPath).String(),
		Price:     rec.Get(s.opts.PricePath).String(),
		URL:       s.resolveURL(rec.Get(s.opts.URLPath).String()),
		Available: available,
		Sizes:     s.sizes(rec),
	}
	if s.opts.SKUPath != "" {
		raw.SKU = rec.Get(s.opts.SKUPath).String()
	}
	if s.opts.ImagePath != "" {
		raw.Image = s.resolveURL(rec.Get(s.opts.ImagePath).String())
	}
	if s.opts.DescriptionPath != "" {
		raw.Description = rec.Get(s.opts.DescriptionPath).String()
	}
	if s.opts.StoreModelPath != "" {
		raw.StoreModel = rec.Get(s.opts.StoreModelPath).String()
	}
	return raw
}

func (s *jsonFeedSource) sizes(rec gjson.Result) []ingest.SizeEntry {
	if s.opts.SizesPath == "" {
		return nil
	}

	var sizes []ingest.SizeEntry
	rec.Get(s.opts.SizesPath).ForEach(func(_, elem gjson.Result) bool {
		label := elem.String()
		if s.opts.SizeLabelPath != "" {
			label = elem.Get(s.opts.SizeLabelPath).String()
		}

		available := s.opts.AssumeAvailable
		if s.opts.SizeAvailablePath != "" {
			available = elem.Get(s.opts.SizeAvailablePath).Bool()
		}

		sizes = append(sizes, ingest.SizeEntry{Label: label, Available: available})
		return true
	})
	return sizes
}

// resolveURL turns store-relative links into absolute ones.
func (s *jsonFeedSource) resolveURL(raw string) string {
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return s.base.ResolveReference(ref).String()
}
