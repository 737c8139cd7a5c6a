// Package fetcher provides a composable HTTP client stack. The base
// HTTPFetcher performs real requests; decorators add user-agent injection,
// status code validation and retry with exponential backoff. Decorators are
// stacked outermost-first:
//
//	f := fetcher.NewUserAgentFetcher(
//	        fetcher.NewRetryFetcher(
//	                fetcher.NewStatusCodeFetcher(fetcher.NewHTTPFetcher()),
//	                3, 2*time.Second, 30*time.Second),
//	        nil)
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/PuerkitoBio/goquery"

	apperrors "github.com/quimera/catalog-ingest/internal/pkg/errors"
)

// component is the logging component name for this package.
const component = "ingest.fetcher"

// Fetcher performs HTTP requests.
//
// Implementation notes:
//   - The caller must close the Body of a returned response.
//   - A non-nil response may accompany an error.
//   - Implementations must abort promptly when the request context is
//     cancelled.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
	Close() error
}

// Get sends an HTTP GET request to the given URL.
func Get(ctx context.Context, f Fetcher, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.Do(req)
	if err != nil {
		if resp != nil {
			drainAndCloseBody(resp.Body)
		}
		return nil, err
	}

	return resp, nil
}

// FetchHTMLDocument fetches the URL and parses the response body as an HTML
// document.
func FetchHTMLDocument(ctx context.Context, f Fetcher, url string) (*goquery.Document, error) {
	resp, err := Get(ctx, f, url)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Unavailable, fmt.Sprintf("request for HTML page (%s) failed", url))
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ParsingFailed, fmt.Sprintf("failed to parse HTML page (%s)", url))
	}

	return doc, nil
}

// FetchHTMLSelection fetches the URL and returns the elements matching the
// CSS selector. A selector matching nothing is treated as an error so that
// changed page structures are detected early.
func FetchHTMLSelection(ctx context.Context, f Fetcher, url string, selector string) (*goquery.Selection, error) {
	doc, err := FetchHTMLDocument(ctx, f, url)
	if err != nil {
		return nil, err
	}

	sel := doc.Find(selector)
	if sel.Length() <= 0 {
		return nil, NewErrHTMLStructureChanged(url, selector)
	}

	return sel, nil
}

// FetchJSONBody fetches the URL and returns the raw response body. Used by
// sources that extract fields with gjson instead of struct decoding.
func FetchJSONBody(ctx context.Context, f Fetcher, url string, header map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, fmt.Sprintf("failed to build JSON request (URL: %s)", url))
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range header {
		req.Header.Set(key, value)
	}

	resp, err := f.Do(req)
	if err != nil {
		if resp != nil {
			drainAndCloseBody(resp.Body)
		}
		return nil, apperrors.Wrap(err, apperrors.Unavailable, fmt.Sprintf("JSON request (%s) failed", url))
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Unavailable, fmt.Sprintf("failed to read JSON response (%s)", url))
	}

	return body, nil
}

// FetchJSON fetches the URL and decodes the JSON response body into v.
func FetchJSON(ctx context.Context, f Fetcher, method, url string, header map[string]string, body io.Reader, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return apperrors.Wrap(err, apperrors.Internal, fmt.Sprintf("failed to build JSON request (URL: %s)", url))
	}
	for key, value := range header {
		req.Header.Set(key, value)
	}

	resp, err := f.Do(req)
	if err != nil {
		if resp != nil {
			drainAndCloseBody(resp.Body)
		}
		return apperrors.Wrap(err, apperrors.Unavailable, fmt.Sprintf("JSON request (%s) failed", url))
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if err = json.NewDecoder(resp.Body).Decode(v); err != nil {
		return apperrors.Wrap(err, apperrors.ParsingFailed, fmt.Sprintf("failed to decode JSON response (%s)", url))
	}

	return nil
}
