package fetcher

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/quimera/catalog-ingest/internal/pkg/errors"
	applog "github.com/quimera/catalog-ingest/pkg/log"
)

const (
	// bounds on the configured retry count
	minAllowedRetries = 0
	maxAllowedRetries = 10

	defaultMaxRetryDelay = 30 * time.Second
)

// RetryFetcher retries failed requests with exponential backoff.
//
// Behavior:
//   - exponential backoff with full jitter, capped at maxRetryDelay
//   - a Retry-After header from the server overrides the computed delay;
//     a Retry-After beyond maxRetryDelay aborts instead of waiting
//   - only idempotent methods are retried; POST and PATCH go through once
//   - context cancellation interrupts any backoff wait immediately
type RetryFetcher struct {
	delegate Fetcher

	maxRetries    int
	minRetryDelay time.Duration
	maxRetryDelay time.Duration
}

var _ Fetcher = (*RetryFetcher)(nil)

// NewRetryFetcher creates a RetryFetcher. Out-of-range settings are clamped:
// retries to [0, 10], minRetryDelay to at least 1s, maxRetryDelay to at
// least minRetryDelay.
func NewRetryFetcher(delegate Fetcher, maxRetries int, minRetryDelay time.Duration, maxRetryDelay time.Duration) *RetryFetcher {
	maxRetries = normalizeMaxRetries(maxRetries)
	minRetryDelay, maxRetryDelay = normalizeRetryDelays(minRetryDelay, maxRetryDelay)

	return &RetryFetcher{
		delegate:      delegate,
		maxRetries:    maxRetries,
		minRetryDelay: minRetryDelay,
		maxRetryDelay: maxRetryDelay,
	}
}

func (f *RetryFetcher) Do(req *http.Request) (*http.Response, error) {
	effectiveMaxRetries := f.maxRetries

	// Non-idempotent methods must not be replayed; a duplicate POST could
	// create duplicate resources on the server.
	if !isIdempotentMethod(req.Method) {
		effectiveMaxRetries = 0
	}

	// Without GetBody the request body cannot be replayed after the first
	// attempt consumed it.
	if req.Body != nil && req.GetBody == nil && effectiveMaxRetries > 0 {
		applog.WithComponentAndFields(component, applog.Fields{
			"url":         redactURL(req.URL),
			"method":      req.Method,
			"max_retries": f.maxRetries,
		}).Warn("retries disabled: request body cannot be rebuilt (GetBody is nil)")

		effectiveMaxRetries = 0
	}

	var lastErr error
	var lastResp *http.Response

	for i := 0; i <= effectiveMaxRetries; i++ {
		if i > 0 {
			// exponential backoff: minRetryDelay * 2^(i-1), capped
			delay := f.minRetryDelay * time.Duration(1<<(i-1))
			if delay > f.maxRetryDelay {
				delay = f.maxRetryDelay
			}

			// full jitter spreads concurrent retries apart
			if delay > 0 {
				delay = time.Duration(rand.Int64N(int64(delay) + 1))
			}

			var retryAfter string
			var explicitDelayFound bool

			if lastResp != nil {
				retryAfter = lastResp.Header.Get("Retry-After")
			} else if lastErr != nil {
				var statusErr *HTTPStatusError
				if errors.As(lastErr, &statusErr) {
					retryAfter = statusErr.Header.Get("Retry-After")
				}
			}

			if retryAfter != "" {
				if retryAfterDelay, ok := parseRetryAfter(retryAfter); ok {
					if retryAfterDelay > f.maxRetryDelay {
						if lastResp != nil && lastResp.Body != nil {
							drainAndCloseBody(lastResp.Body)
						}

						return nil, newErrRetryAfterExceeded(retryAfterDelay.String(), f.maxRetryDelay.String())
					}

					// the server's explicit delay wins over the computed one
					delay = retryAfterDelay
					explicitDelayFound = true
				}
			}

			// Guard against a jittered delay of effectively zero hammering
			// the server, unless the server itself asked for it.
			if !explicitDelayFound && delay < time.Millisecond {
				delay = f.minRetryDelay
			}

			fields := applog.Fields{
				"url":               redactURL(req.URL),
				"retry":             i,
				"max_retries":       f.maxRetries,
				"remaining_retries": effectiveMaxRetries - i,
				"delay":             delay.String(),
			}
			if lastErr != nil {
				fields["error"] = lastErr.Error()
			}
			if lastResp != nil {
				fields["status_code"] = lastResp.StatusCode
			}
			if retryAfter != "" {
				fields["retry_after_header"] = retryAfter
			}

			applog.WithComponentAndFields(component, fields).
				Warn("waiting before retry after transient failure")

			timer := time.NewTimer(delay)

			select {
			case <-req.Context().Done():
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}

				if lastResp != nil && lastResp.Body != nil {
					// prioritize responsiveness over connection reuse
					lastResp.Body.Close()
				}

				return nil, req.Context().Err()

			case <-timer.C:
			}
		}

		// Rebuild the body the previous attempt consumed. Clone so the
		// caller's request is untouched.
		if i > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				if lastResp != nil && lastResp.Body != nil {
					drainAndCloseBody(lastResp.Body)
				}

				return nil, newErrGetBodyFailed(err)
			}

			req = req.Clone(req.Context())
			req.Body = body
		}

		resp, err := f.delegate.Do(req)
		lastResp = resp

		// Decide whether this attempt warrants a retry. The status-code
		// checks also cover deployments where no StatusCodeFetcher sits
		// below this decorator.
		shouldRetry := false

		if resp != nil {
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout {
				shouldRetry = true
			} else if resp.StatusCode >= 500 {
				switch resp.StatusCode {
				case http.StatusNotImplemented, http.StatusHTTPVersionNotSupported, http.StatusNetworkAuthenticationRequired:
					// permanent conditions
					shouldRetry = false

				default:
					shouldRetry = true
				}
			}
		}

		if err != nil {
			// An exceeded request deadline cannot recover by retrying.
			if errors.Is(err, context.DeadlineExceeded) && req.Context().Err() != nil {
				if resp != nil && resp.Body != nil {
					resp.Body.Close()
				}

				return nil, err
			}

			if !isRetriable(err) {
				if resp != nil && resp.Body != nil {
					if errors.Is(err, context.Canceled) {
						resp.Body.Close()
					} else {
						drainAndCloseBody(resp.Body)
					}
				}

				return nil, err
			}
		} else if !shouldRetry {
			// success, or a permanent status not worth retrying
			return resp, nil
		}

		lastErr = err
		if resp != nil {
			if i == effectiveMaxRetries {
				finalErr := lastErr
				if finalErr == nil {
					// The server kept answering with a retriable status.
					// Capture a body snippet for the error before closing.
					var bodySnippet string
					if resp.Body != nil {
						lr := io.LimitReader(resp.Body, 4096)
						bodyBytes, _ := io.ReadAll(lr)
						if len(bodyBytes) > 0 {
							bodySnippet = string(bodyBytes)
						}
					}

					finalErr = &HTTPStatusError{
						StatusCode:  resp.StatusCode,
						Status:      resp.Status,
						URL:         redactURL(req.URL),
						Header:      redactHeaders(resp.Header),
						BodySnippet: bodySnippet,
						Cause:       ErrMaxRetriesExceeded,
					}
				} else {
					finalErr = newErrMaxRetriesExceeded(finalErr)
				}

				drainAndCloseBody(resp.Body)

				return nil, finalErr
			}

			drainAndCloseBody(resp.Body)
		}
	}

	// All attempts failed without any response (timeouts, refused
	// connections). Failures with a response returned inside the loop.
	return nil, newErrMaxRetriesExceeded(lastErr)
}

func (f *RetryFetcher) Close() error {
	return f.delegate.Close()
}

func normalizeMaxRetries(maxRetries int) int {
	if maxRetries < minAllowedRetries {
		return minAllowedRetries
	}
	if maxRetries > maxAllowedRetries {
		return maxAllowedRetries
	}
	return maxRetries
}

func normalizeRetryDelays(minRetryDelay, maxRetryDelay time.Duration) (time.Duration, time.Duration) {
	if minRetryDelay < time.Second {
		minRetryDelay = 1 * time.Second
	}

	if maxRetryDelay == 0 {
		maxRetryDelay = defaultMaxRetryDelay
	}

	if maxRetryDelay < minRetryDelay {
		maxRetryDelay = minRetryDelay
	}

	return minRetryDelay, maxRetryDelay
}

// isRetriable reports whether the error is a transient failure worth
// retrying. Permanent conditions (cancellation, TLS errors, malformed URLs,
// classified business errors) are excluded.
func isRetriable(err error) bool {
	if err == nil {
		return false
	}

	// explicit cancellation is never retried; DeadlineExceeded surfaces
	// through net.Error.Timeout below
	if errors.Is(err, context.Canceled) {
		return false
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		switch urlErr.Err.Error() {
		case "stopped after 10 redirects":
			return false

		case "invalid control character in URL":
			return false
		}

		if strings.Contains(urlErr.Error(), "unsupported protocol scheme") {
			return false
		}
	}

	// certificate problems do not heal on retry
	var x509HostnameErr x509.HostnameError
	var x509UnknownAuthorityErr x509.UnknownAuthorityError
	var x509CertificateInvalidErr x509.CertificateInvalidError
	if errors.As(err, &x509HostnameErr) || errors.As(err, &x509UnknownAuthorityErr) || errors.As(err, &x509CertificateInvalidErr) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true
		}
		// other net errors may still be transient; fall through
	}

	if apperrors.Is(err, apperrors.Unavailable) {
		// 501/505/511 are permanent even though they map to Unavailable
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) {
			switch statusErr.StatusCode {
			case http.StatusNotImplemented,
				http.StatusHTTPVersionNotSupported,
				http.StatusNetworkAuthenticationRequired:
				return false
			}
		}

		return true
	}

	// classified business failures return the same result every time
	if apperrors.Is(err, apperrors.ExecutionFailed) ||
		apperrors.Is(err, apperrors.ParsingFailed) ||
		apperrors.Is(err, apperrors.InvalidInput) ||
		apperrors.Is(err, apperrors.Unauthorized) ||
		apperrors.Is(err, apperrors.Conflict) ||
		apperrors.Is(err, apperrors.NotFound) {
		return false
	}

	// anything else (DNS failures, refused connections) is treated as
	// transient
	return true
}

// isIdempotentMethod reports whether the method is safe to replay per
// RFC 7231 section 4.2.2.
func isIdempotentMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace, http.MethodPut, http.MethodDelete:
		return true

	default:
		return false
	}
}

// parseRetryAfter parses a Retry-After header value, either delay-seconds
// ("120") or an HTTP-date.
func parseRetryAfter(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}

	var seconds int
	if _, err := fmt.Sscanf(value, "%d", &seconds); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}

	if date, err := http.ParseTime(value); err == nil {
		duration := time.Until(date)
		if duration < 0 {
			// clock skew; retry immediately
			duration = 0
		}

		return duration, true
	}

	return 0, false
}
