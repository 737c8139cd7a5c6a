package fetcher

import (
	"fmt"

	apperrors "github.com/quimera/catalog-ingest/internal/pkg/errors"
)

var (
	// ErrHTMLStructureChanged is returned when a page parses but the
	// expected elements are missing, which usually means the site layout
	// changed under the configured CSS selectors.
	ErrHTMLStructureChanged = apperrors.New(apperrors.ParsingFailed, "document structure of the fetched page has changed; check the CSS selectors")

	// ErrMaxRetriesExceeded is returned when every retry attempt failed.
	ErrMaxRetriesExceeded = apperrors.New(apperrors.Unavailable, "request failed after exhausting all retries")
)

// NewErrHTMLStructureChanged builds a structure-changed error carrying the
// URL and selector for debugging.
func NewErrHTMLStructureChanged(url, selector string) error {
	message := "document structure of the fetched page has changed; check the CSS selectors"
	if url != "" {
		message += fmt.Sprintf(" (%s)", url)
	}
	if selector != "" {
		message += fmt.Sprintf(": selector %q matched nothing", selector)
	}
	return apperrors.New(apperrors.ParsingFailed, message)
}

func newErrMaxRetriesExceeded(cause error) error {
	if cause == nil {
		return ErrMaxRetriesExceeded
	}
	return apperrors.Wrap(cause, apperrors.Unavailable, "request failed after exhausting all retries")
}

func newErrRetryAfterExceeded(retryAfter, maxDelay string) error {
	return apperrors.Newf(apperrors.Unavailable, "server requested a Retry-After of %s which exceeds the maximum delay %s", retryAfter, maxDelay)
}

func newErrGetBodyFailed(cause error) error {
	return apperrors.Wrap(cause, apperrors.Internal, "failed to rebuild the request body for retry")
}

func newErrHTTPStatus(errType apperrors.ErrorType, status, url string) error {
	message := fmt.Sprintf("HTTP request failed with status %s", status)
	if url != "" {
		message += fmt.Sprintf(" (URL: %s)", url)
	}
	return apperrors.New(errType, message)
}
