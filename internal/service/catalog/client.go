package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/quimera/catalog-ingest/internal/pkg/errors"
	applog "github.com/quimera/catalog-ingest/pkg/log"
)

// component is the logging component name for this package.
const component = "catalog"

const defaultRequestTimeout = 30 * time.Second

// Client talks to the catalog REST API. Every request carries a bearer
// token from the TokenSource; a 401 invalidates the cached token and the
// request is replayed once with a fresh one.
type Client struct {
	baseURL string
	tokens  *TokenSource
	client  *http.Client
}

// NewClient creates a catalog Client. A nil httpClient falls back to a
// default with a 30 second timeout.
func NewClient(baseURL string, tokens *TokenSource, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		client:  httpClient,
	}
}

// ActiveStores returns the stores flagged active in the catalog.
func (c *Client) ActiveStores(ctx context.Context) ([]Store, error) {
	var stores []Store
	if err := c.do(ctx, http.MethodGet, "/tiendas", nil, &stores); err != nil {
		return nil, err
	}

	active := stores[:0]
	for _, s := range stores {
		if s.Activa {
			active = append(active, s)
		}
	}
	return active, nil
}

// Store fetches a single store by ID.
func (c *Client) Store(ctx context.Context, id int64) (Store, error) {
	var store Store
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tiendas/%d", id), nil, &store)
	return store, err
}

// Product fetches a single product by ID.
func (c *Client) Product(ctx context.Context, id int64) (Product, error) {
	var product Product
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/zapatillas/%d", id), nil, &product)
	return product, err
}

// FindProductBySKU looks a product up by exact SKU. Returns nil when no
// product matches; the search endpoint may return fuzzy matches, so results
// are filtered again client-side.
func (c *Client) FindProductBySKU(ctx context.Context, sku string) (*Product, error) {
	path := "/zapatillas?sku=" + url.QueryEscape(sku)

	var products []Product
	if err := c.do(ctx, http.MethodGet, path, nil, &products); err != nil {
		return nil, err
	}

	for i := range products {
		if products[i].SKU == sku {
			return &products[i], nil
		}
	}
	return nil, nil
}

// CreateProduct creates a new product.
func (c *Client) CreateProduct(ctx context.Context, p NewProduct) (Product, error) {
	var created Product
	err := c.do(ctx, http.MethodPost, "/zapatillas", p, &created)
	return created, err
}

// PatchProduct applies a partial update to a product. An empty patch is a
// no-op and skips the request.
func (c *Client) PatchProduct(ctx context.Context, id int64, patch ProductPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/zapatillas/%d", id), patch, nil)
}

// CreateListing creates a product-store listing.
func (c *Client) CreateListing(ctx context.Context, l NewListing) (Listing, error) {
	var created Listing
	err := c.do(ctx, http.MethodPost, "/zapatillas-tienda", l, &created)
	return created, err
}

// ListingsByStore returns every listing of the given store.
func (c *Client) ListingsByStore(ctx context.Context, storeID int64) ([]Listing, error) {
	path := fmt.Sprintf("/zapatillas-tienda?tienda_id=%d", storeID)

	var listings []Listing
	if err := c.do(ctx, http.MethodGet, path, nil, &listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// DeleteListing removes a listing.
func (c *Client) DeleteListing(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/zapatillas-tienda/%d", id), nil, nil)
}

// FindSize looks up a size by its unique (listing, label) pair. Returns nil
// when the size does not exist.
func (c *Client) FindSize(ctx context.Context, listingID int64, label string) (*Size, error) {
	path := fmt.Sprintf("/tallas?zapatilla_tienda_id=%d&talla=%s", listingID, url.QueryEscape(label))

	var sizes []Size
	if err := c.do(ctx, http.MethodGet, path, nil, &sizes); err != nil {
		return nil, err
	}

	if len(sizes) == 0 {
		return nil, nil
	}
	return &sizes[0], nil
}

// SizesByListing returns every size row of a listing.
func (c *Client) SizesByListing(ctx context.Context, listingID int64) ([]Size, error) {
	path := fmt.Sprintf("/tallas?zapatilla_tienda_id=%d", listingID)

	var sizes []Size
	if err := c.do(ctx, http.MethodGet, path, nil, &sizes); err != nil {
		return nil, err
	}
	return sizes, nil
}

// CreateSize creates a size entry. A duplicate (listing, label) pair maps
// to a Conflict error, which the caller resolves by looking the size up and
// patching it instead.
func (c *Client) CreateSize(ctx context.Context, s NewSize) (Size, error) {
	var created Size
	err := c.do(ctx, http.MethodPost, "/tallas", s, &created)
	return created, err
}

// PatchSizeAvailability updates the availability flag of a size.
func (c *Client) PatchSizeAvailability(ctx context.Context, id int64, available bool) error {
	payload := map[string]bool{"disponible": available}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/tallas/%d", id), payload, nil)
}

// DeleteSize removes a size entry.
func (c *Client) DeleteSize(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/tallas/%d", id), nil, nil)
}

// do executes an authenticated request and decodes the JSON response into
// out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	resp, err := c.send(ctx, method, path, payload, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		// drain so the connection returns to the pool
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrapf(err, apperrors.ParsingFailed, "failed to decode response of %s %s", method, path)
	}
	return nil
}

// send performs the HTTP exchange. allowAuthRetry permits a single replay
// with a fresh token after a 401.
func (c *Client) send(ctx context.Context, method, path string, payload any, allowAuthRetry bool) (*http.Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.Internal, "failed to encode request body for %s %s", method, path)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.Internal, "failed to build request %s %s", method, path)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.Unavailable, "request %s %s failed", method, path)
	}

	if resp.StatusCode == http.StatusUnauthorized && allowAuthRetry {
		// The cached token may have been revoked server-side. Discard it
		// and replay exactly once.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		applog.WithComponentAndFields(component, applog.Fields{
			"method": method,
			"path":   path,
		}).Warn("received 401, refreshing token and retrying once")

		c.tokens.Invalidate()
		return c.send(ctx, method, path, payload, false)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()

		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, statusError(method, path, resp.StatusCode, resp.Status, string(snippet))
	}

	return resp, nil
}

// statusError maps an HTTP failure to a classified domain error.
func statusError(method, path string, code int, status, snippet string) error {
	errType := apperrors.ExecutionFailed

	switch code {
	case http.StatusNotFound:
		errType = apperrors.NotFound
	case http.StatusConflict:
		errType = apperrors.Conflict
	case http.StatusUnauthorized, http.StatusForbidden:
		errType = apperrors.Unauthorized
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		errType = apperrors.InvalidInput
	case http.StatusTooManyRequests, http.StatusRequestTimeout:
		errType = apperrors.Unavailable
	default:
		if code >= 500 {
			errType = apperrors.Unavailable
		}
	}

	message := fmt.Sprintf("catalog API %s %s returned %s", method, path, status)
	if snippet != "" {
		message += fmt.Sprintf(" (body: %s)", snippet)
	}
	return apperrors.New(errType, message)
}
