package ingest

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/quimera/catalog-ingest/internal/pkg/errors"
	"github.com/quimera/catalog-ingest/pkg/strutil"
)

const (
	maxSKUBrandLen = 15
	maxSKUModelLen = 25

	// minScrapedSKULen is the shortest store-published SKU taken at face
	// value; anything shorter falls back to the deterministic generator.
	minScrapedSKULen = 3
)

// defaultBrandAliases maps lowercase store spellings to canonical brand
// names. Matching is done on the normalized brand string; the alias table
// can be extended through configuration.
var defaultBrandAliases = map[string]string{
	"nb":             "New Balance",
	"newbalance":     "New Balance",
	"ua":             "Under Armour",
	"underarmour":    "Under Armour",
	"adi":            "Adidas",
	"adidas":         "Adidas",
	"asicstiger":     "Asics",
	"nikesb":         "Nike",
	"jordanbrand":    "Jordan",
	"airjordan":      "Jordan",
	"vansoffthewall": "Vans",
	"pumaselect":     "Puma",
	"reebokclassic":  "Reebok",
	"salomonlab":     "Salomon",
}

var (
	priceJunkRe  = regexp.MustCompile(`[^0-9.,]`)
	sizeSystemRe = regexp.MustCompile(`(?i)^(eur|eu|us|uk)\s*|\s*(eur|eu|us|uk)$`)
	multiDotRe   = regexp.MustCompile(`\.{2,}`)
)

// Normalizer turns raw store records into canonical records. It is stateless
// apart from the alias table and safe for concurrent use.
type Normalizer struct {
	aliases map[string]string
}

// NewNormalizer builds a Normalizer. extraAliases extends (and can override)
// the built-in brand alias table; keys are compared case- and
// accent-insensitively.
func NewNormalizer(extraAliases map[string]string) *Normalizer {
	aliases := make(map[string]string, len(defaultBrandAliases)+len(extraAliases))
	for k, v := range defaultBrandAliases {
		aliases[k] = v
	}
	for k, v := range extraAliases {
		aliases[normalizeKey(k)] = v
	}
	return &Normalizer{aliases: aliases}
}

// Normalize converts a raw record into a canonical Record. Records without
// a usable brand, model or price are rejected with an InvalidInput error.
func (n *Normalizer) Normalize(raw RawRecord) (Record, error) {
	brand := n.CanonicalBrand(raw.Brand)
	if brand == "" {
		return Record{}, apperrors.New(apperrors.InvalidInput, "record has no brand")
	}

	model := strutil.NormalizeSpaces(strutil.StripHTMLTags(raw.Model))
	if model == "" {
		return Record{}, apperrors.New(apperrors.InvalidInput, "record has no model")
	}

	price, err := ParsePrice(raw.Price)
	if err != nil {
		return Record{}, err
	}

	productURL, err := normalizeURL(raw.URL)
	if err != nil {
		return Record{}, err
	}

	// the store-published SKU is the reconciliation key when it looks
	// real; the generator only covers stores that don't publish one
	sku := strings.TrimSpace(raw.SKU)
	if len(sku) < minScrapedSKULen {
		sku = GenerateSKU(brand, model)
	}

	sizes := make([]SizeEntry, 0, len(raw.Sizes))
	seen := make(map[string]bool, len(raw.Sizes))
	for _, s := range raw.Sizes {
		label := NormalizeSizeLabel(s.Label)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		sizes = append(sizes, SizeEntry{Label: label, Available: s.Available})
	}

	return Record{
		Brand:       brand,
		Model:       model,
		SKU:         sku,
		Price:       price,
		URL:         productURL,
		Image:       strings.TrimSpace(raw.Image),
		Description: strutil.NormalizeSpaces(strutil.StripHTMLTags(raw.Description)),
		StoreModel:  strutil.NormalizeSpaces(raw.StoreModel),
		Available:   raw.Available,
		Sizes:       sizes,
	}, nil
}

// normalizeURL validates the product URL and repairs a missing scheme;
// stores that publish schemeless absolute links get https.
func normalizeURL(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "", apperrors.New(apperrors.InvalidInput, "record has no product URL")
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + strings.TrimPrefix(u, "//")
	}
	return u, nil
}

// CanonicalBrand resolves a store's brand spelling to its canonical name.
// Exact alias hits win; otherwise any alias key contained in the normalized
// input resolves, and unknown brands fall back to title case.
func (n *Normalizer) CanonicalBrand(brand string) string {
	cleaned := strutil.NormalizeSpaces(strutil.StripHTMLTags(brand))
	if cleaned == "" {
		return ""
	}

	key := normalizeKey(cleaned)
	if canonical, ok := n.aliases[key]; ok {
		return canonical
	}
	for alias, canonical := range n.aliases {
		// short aliases like "nb" only match exactly, anything else
		// produces false positives on substring matching
		if len(alias) >= 4 && strings.Contains(key, alias) {
			return canonical
		}
	}
	return strutil.TitleCase(strings.ToLower(cleaned))
}

// normalizeKey lowercases, strips accents and drops everything outside
// [a-z0-9] so alias lookups survive store formatting quirks.
func normalizeKey(s string) string {
	return strutil.AlphanumericOnly(strutil.StripAccents(strings.ToLower(s)))
}

// ParsePrice parses a store price string ("129,99 €", "$ 89.95", "1.099,00")
// into a float. The last separator found is taken as the decimal mark.
func ParsePrice(raw string) (float64, error) {
	cleaned := priceJunkRe.ReplaceAllString(raw, "")
	if cleaned == "" {
		return 0, apperrors.Newf(apperrors.InvalidInput, "unparseable price %q", raw)
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")
	if lastComma > lastDot {
		// comma is the decimal mark; dots are thousands separators
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}
	cleaned = multiDotRe.ReplaceAllString(cleaned, ".")

	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, apperrors.Wrapf(err, apperrors.InvalidInput, "unparseable price %q", raw)
	}
	if price <= 0 {
		return 0, apperrors.Newf(apperrors.InvalidInput, "non-positive price %q", raw)
	}
	return math.Round(price*100) / 100, nil
}

// NormalizeSizeLabel canonicalizes a size label: sizing-system prefixes and
// suffixes (EU, EUR, US, UK) are stripped and the decimal comma becomes a
// dot, so "EU 42,5" and "42.5 EUR" compare equal.
func NormalizeSizeLabel(raw string) string {
	label := strutil.NormalizeSpaces(raw)
	label = sizeSystemRe.ReplaceAllString(label, "")
	label = strings.TrimSpace(label)
	label = strings.ReplaceAll(label, ",", ".")
	return label
}

// GenerateSKU derives the deterministic product SKU from the canonical
// brand and model. Same brand and model always yield the same SKU, which is
// what lets records from different stores converge on one product.
func GenerateSKU(brand, model string) string {
	b := skuToken(brand, maxSKUBrandLen)
	m := skuToken(model, maxSKUModelLen)

	// a brand repeated inside the model would bloat the SKU
	if b != "" {
		m = strings.ReplaceAll(m, b, "")
	}
	if m == "" {
		m = "modelo"
	}
	if b == "" {
		b = "marca"
	}

	return b + "-" + m + "-" + hash8(b+"-"+m)
}

func skuToken(s string, maxLen int) string {
	token := strutil.AlphanumericOnly(strutil.StripAccents(strings.ToLower(s)))
	return strutil.Truncate(token, maxLen)
}

// hash8 is a 32-bit rolling hash rendered as eight zero-padded digits.
func hash8(s string) string {
	var h int32
	for _, c := range s {
		h = (h << 5) - h + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v%100000000+100000000, 10)[1:]
}
