package scraper

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	apperrors "github.com/quimera/catalog-ingest/internal/pkg/errors"
	"github.com/quimera/catalog-ingest/internal/service/ingest"
	"github.com/quimera/catalog-ingest/internal/service/ingest/fetcher"
	applog "github.com/quimera/catalog-ingest/pkg/log"
)

const (
	defaultMaxPages = 1
	maxPagesLimit   = 20
)

// htmlCatalogOptions configures an htmlcatalog source. Selectors use CSS
// syntax; item-level selectors are evaluated within each catalog item.
type htmlCatalogOptions struct {
	// URL of the first catalog page.
	URL string `option:"url"`

	// ItemSelector matches one catalog item per product.
	ItemSelector string `option:"item_selector"`

	// Brand is a fixed brand for single-brand stores; BrandSelector wins
	// when both are set.
	Brand         string `option:"brand"`
	BrandSelector string `option:"brand_selector"`

	ModelSelector string `option:"model_selector"`
	SKUSelector   string `option:"sku_selector"`
	PriceSelector string `option:"price_selector"`

	// URLSelector matches the product link; URLAttr defaults to href.
	URLSelector string `option:"url_selector"`
	URLAttr     string `option:"url_attr"`

	ImageSelector string `option:"image_selector"`
	ImageAttr     string `option:"image_attr"`

	DescriptionSelector string `option:"description_selector"`
	StoreModelSelector  string `option:"store_model_selector"`

	// SoldOutSelector marks an item as unavailable when it matches
	// anything inside the item. Without it items default to unavailable
	// unless AssumeAvailable says the store only lists what is in stock.
	SoldOutSelector string `option:"sold_out_selector"`
	AssumeAvailable bool   `option:"assume_available"`

	// SizeSelector matches the size elements of an item; a size carrying
	// SizeDisabledClass counts as unavailable.
	SizeSelector      string `option:"size_selector"`
	SizeDisabledClass string `option:"size_disabled_class"`

	// NextSelector matches the next-page link; pagination stops when it
	// matches nothing or MaxPages is reached.
	NextSelector string `option:"next_selector"`
	MaxPages     int    `option:"max_pages"`
}

func (o htmlCatalogOptions) validate() error {
	switch {
	case o.URL == "":
		return apperrors.New(apperrors.InvalidInput, "htmlcatalog source requires url")
	case o.ItemSelector == "":
		return apperrors.New(apperrors.InvalidInput, "htmlcatalog source requires item_selector")
	case o.ModelSelector == "":
		return apperrors.New(apperrors.InvalidInput, "htmlcatalog source requires model_selector")
	case o.PriceSelector == "":
		return apperrors.New(apperrors.InvalidInput, "htmlcatalog source requires price_selector")
	case o.URLSelector == "":
		return apperrors.New(apperrors.InvalidInput, "htmlcatalog source requires url_selector")
	case o.Brand == "" && o.BrandSelector == "":
		return apperrors.New(apperrors.InvalidInput, "htmlcatalog source requires brand or brand_selector")
	case o.MaxPages < 0 || o.MaxPages > maxPagesLimit:
		return apperrors.Newf(apperrors.InvalidInput, "htmlcatalog max_pages must be between 0 and %d", maxPagesLimit)
	}
	return nil
}

type htmlCatalogSource struct {
	opts    htmlCatalogOptions
	fetcher fetcher.Fetcher
	base    *url.URL
}

func newHTMLCatalogSource(opts htmlCatalogOptions, f fetcher.Fetcher) (*htmlCatalogSource, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.URLAttr == "" {
		opts.URLAttr = "href"
	}
	if opts.ImageAttr == "" {
		opts.ImageAttr = "src"
	}
	if opts.MaxPages == 0 {
		opts.MaxPages = defaultMaxPages
	}

	base, err := url.Parse(opts.URL)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.InvalidInput, "invalid htmlcatalog url %q", opts.URL)
	}
	return &htmlCatalogSource{opts: opts, fetcher: f, base: base}, nil
}

func (s *htmlCatalogSource) Kind() string { return SourceHTMLCatalog }

func (s *htmlCatalogSource) Fetch(ctx context.Context) ([]ingest.RawRecord, error) {
	var out []ingest.RawRecord

	pageURL := s.opts.URL
	for page := 1; page <= s.opts.MaxPages && pageURL != ""; page++ {
		doc, err := fetcher.FetchHTMLDocument(ctx, s.fetcher, pageURL)
		if err != nil {
			return nil, err
		}

		items := doc.Find(s.opts.ItemSelector)
		if items.Length() == 0 && page == 1 {
			// an empty first page almost always means the store changed
			// its markup, not that it sells nothing
			return nil, fetcher.NewErrHTMLStructureChanged(pageURL, s.opts.ItemSelector)
		}

		items.Each(func(_ int, item *goquery.Selection) {
			out = append(out, s.record(item))
		})

		pageURL = s.nextPageURL(doc)
	}

	applog.WithComponentAndFields(component, applog.Fields{
		"source":  SourceHTMLCatalog,
		"host":    s.base.Host,
		"records": len(out),
	}).Debug("catalog scraped")

	return out, nil
}

func (s *htmlCatalogSource) record(item *goquery.Selection) ingest.RawRecord {
	brand := s.opts.Brand
	if s.opts.BrandSelector != "" {
		brand = selectionText(item, s.opts.BrandSelector)
	}

	available := s.opts.AssumeAvailable
	if s.opts.SoldOutSelector != "" {
		available = item.Find(s.opts.SoldOutSelector).Length() == 0
	}

	raw := ingest.RawRecord{
		Brand:     brand,
		Model:     selectionText(item, s.opts.ModelSelector),
		Price:     selectionText(item, s.opts.PriceSelector),
		URL:       s.resolveURL(selectionAttr(item, s.opts.URLSelector, s.opts.URLAttr)),
		Available: available,
		Sizes:     s.sizes(item),
	}
	if s.opts.SKUSelector != "" {
		raw.SKU = selectionText(item, s.opts.SKUSelector)
	}
	if s.opts.ImageSelector != "" {
		raw.Image = s.resolveURL(selectionAttr(item, s.opts.ImageSelector, s.opts.ImageAttr))
	}
	if s.opts.DescriptionSelector != "" {
		raw.Description = selectionText(item, s.opts.DescriptionSelector)
	}
	if s.opts.StoreModelSelector != "" {
		raw.StoreModel = selectionText(item, s.opts.StoreModelSelector)
	}
	return raw
}

func (s *htmlCatalogSource) sizes(item *goquery.Selection) []ingest.SizeEntry {
	if s.opts.SizeSelector == "" {
		return nil
	}

	var sizes []ingest.SizeEntry
	item.Find(s.opts.SizeSelector).Each(func(_ int, elem *goquery.Selection) {
		available := s.opts.AssumeAvailable
		if s.opts.SizeDisabledClass != "" {
			available = !elem.HasClass(s.opts.SizeDisabledClass)
		}
		sizes = append(sizes, ingest.SizeEntry{
			Label:     strings.TrimSpace(elem.Text()),
			Available: available,
		})
	})
	return sizes
}

func (s *htmlCatalogSource) nextPageURL(doc *goquery.Document) string {
	if s.opts.NextSelector == "" {
		return ""
	}
	href, ok := doc.Find(s.opts.NextSelector).First().Attr("href")
	if !ok {
		return ""
	}
	return s.resolveURL(href)
}

func (s *htmlCatalogSource) resolveURL(raw string) string {
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return s.base.ResolveReference(ref).String()
}

func selectionText(item *goquery.Selection, selector string) string {
	return strings.TrimSpace(item.Find(selector).First().Text())
}

func selectionAttr(item *goquery.Selection, selector, attr string) string {
	value, _ := item.Find(selector).First().Attr(attr)
	return strings.TrimSpace(value)
}
