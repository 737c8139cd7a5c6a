package fetcher

import (
	"io"
	"net/http"
	"slices"
	"strings"

	apperrors "github.com/quimera/catalog-ingest/internal/pkg/errors"
)

// snippetLimit caps how much of a failed response body is copied into the
// error.
const snippetLimit = 4096

// HTTPStatusError reports a response rejected for its status code. It keeps
// the redacted URL and headers plus a body snippet, so a failed scrape can
// be diagnosed from the log line alone. Cause carries the classified domain
// error for the apperrors type checks.
type HTTPStatusError struct {
	StatusCode  int
	Status      string
	URL         string
	Header      http.Header
	BodySnippet string
	Cause       error
}

func (e *HTTPStatusError) Error() string {
	var b strings.Builder
	b.WriteString("HTTP ")
	b.WriteString(e.Status)
	if e.URL != "" {
		b.WriteString(" (URL: ")
		b.WriteString(e.URL)
		b.WriteString(")")
	}
	if e.BodySnippet != "" {
		b.WriteString(", body: ")
		b.WriteString(e.BodySnippet)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *HTTPStatusError) Unwrap() error {
	return e.Cause
}

// checkStatus rejects a response whose status code is not in allowed; with
// no explicit codes only 200 OK passes. It consumes up to snippetLimit bytes
// of the body for the error, so callers must not read the body after a
// failed check. Every current caller drains and closes it instead.
func checkStatus(resp *http.Response, allowed ...int) error {
	ok := resp.StatusCode == http.StatusOK
	if len(allowed) > 0 {
		ok = slices.Contains(allowed, resp.StatusCode)
	}
	if ok {
		return nil
	}

	urlStr := ""
	if resp.Request != nil && resp.Request.URL != nil {
		urlStr = redactURL(resp.Request.URL)
	}

	var snippet string
	if resp.Body != nil {
		bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, snippetLimit))
		if err == nil {
			snippet = string(bodyBytes)
		}
	}

	return &HTTPStatusError{
		StatusCode:  resp.StatusCode,
		Status:      resp.Status,
		URL:         urlStr,
		Header:      redactHeaders(resp.Header),
		BodySnippet: snippet,
		Cause:       newErrHTTPStatus(classifyStatus(resp.StatusCode), resp.Status, urlStr),
	}
}

// classifyStatus maps a rejected HTTP status code onto the error taxonomy.
func classifyStatus(code int) apperrors.ErrorType {
	switch code {
	case http.StatusBadRequest:
		return apperrors.InvalidInput
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.Unauthorized
	case http.StatusNotFound:
		return apperrors.NotFound
	case http.StatusConflict:
		return apperrors.Conflict
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return apperrors.Unavailable
	}
	if code >= 500 {
		return apperrors.Unavailable
	}
	return apperrors.ExecutionFailed
}

// StatusCodeFetcher converts responses with disallowed status codes into
// errors. Rejected bodies are drained and closed here, so the caller only
// closes the body on success.
type StatusCodeFetcher struct {
	delegate Fetcher
	allowed  []int
}

var _ Fetcher = (*StatusCodeFetcher)(nil)

// NewStatusCodeFetcher creates a StatusCodeFetcher. With no explicit
// allowed codes only 200 OK is accepted.
func NewStatusCodeFetcher(delegate Fetcher, allowed ...int) *StatusCodeFetcher {
	return &StatusCodeFetcher{delegate: delegate, allowed: allowed}
}

func (f *StatusCodeFetcher) Do(req *http.Request) (*http.Response, error) {
	resp, err := f.delegate.Do(req)
	if err != nil {
		if resp != nil {
			drainAndCloseBody(resp.Body)
		}
		return nil, err
	}

	if statusErr := checkStatus(resp, f.allowed...); statusErr != nil {
		drainAndCloseBody(resp.Body)
		return nil, statusErr
	}

	return resp, nil
}

func (f *StatusCodeFetcher) Close() error {
	return f.delegate.Close()
}
