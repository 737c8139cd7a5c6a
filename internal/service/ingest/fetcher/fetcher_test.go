package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/quimera/catalog-ingest/internal/pkg/errors"
)

func TestGet(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := NewHTTPFetcher()
	defer f.Close()

	resp, err := Get(context.Background(), f, server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGet_InvalidURL(t *testing.T) {
	t.Parallel()

	f := NewHTTPFetcher()
	defer f.Close()

	_, err := Get(context.Background(), f, "://invalid")
	assert.Error(t, err)
}

func TestFetchJSON(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Air Max 90","price":129.95}`))
	}))
	defer server.Close()

	f := NewHTTPFetcher()
	defer f.Close()

	var payload struct {
		Name  string  `json:"name"`
		Price float64 `json:"price"`
	}
	err := FetchJSON(context.Background(), f, http.MethodGet, server.URL, map[string]string{"Accept": "application/json"}, nil, &payload)
	require.NoError(t, err)

	assert.Equal(t, "Air Max 90", payload.Name)
	assert.InDelta(t, 129.95, payload.Price, 0.001)
}

func TestFetchJSON_MalformedBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	f := NewHTTPFetcher()
	defer f.Close()

	var payload map[string]any
	err := FetchJSON(context.Background(), f, http.MethodGet, server.URL, nil, nil, &payload)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ParsingFailed))
}

func TestFetchJSONBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	f := NewHTTPFetcher()
	defer f.Close()

	body, err := FetchJSONBody(context.Background(), f, server.URL, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[]}`, string(body))
}

func TestFetchHTMLSelection(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div class="product">Air Max</div></body></html>`))
	}))
	defer server.Close()

	f := NewHTTPFetcher()
	defer f.Close()

	t.Run("Found", func(t *testing.T) {
		sel, err := FetchHTMLSelection(context.Background(), f, server.URL, "div.product")
		require.NoError(t, err)
		assert.Equal(t, 1, sel.Length())
		assert.Equal(t, "Air Max", sel.Text())
	})

	t.Run("SelectorMatchesNothing", func(t *testing.T) {
		_, err := FetchHTMLSelection(context.Background(), f, server.URL, "div.missing")
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ParsingFailed))
	})
}

func TestStatusCodeFetcher(t *testing.T) {
	t.Parallel()

	t.Run("DefaultAllowsOnly200", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		f := NewStatusCodeFetcher(NewHTTPFetcher())
		defer f.Close()

		resp, err := Get(context.Background(), f, server.URL)
		require.Error(t, err)
		assert.Nil(t, resp)
		assert.True(t, apperrors.Is(err, apperrors.NotFound))

		var statusErr *HTTPStatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	})

	t.Run("CustomAllowedCodes", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusCreated)
		}))
		defer server.Close()

		f := NewStatusCodeFetcher(NewHTTPFetcher(), http.StatusOK, http.StatusCreated)
		defer f.Close()

		resp, err := Get(context.Background(), f, server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("UnauthorizedMapping", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		f := NewStatusCodeFetcher(NewHTTPFetcher())
		defer f.Close()

		_, err := Get(context.Background(), f, server.URL)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.Unauthorized))
	})
}

func TestUserAgentFetcher(t *testing.T) {
	t.Parallel()

	t.Run("InjectsWhenMissing", func(t *testing.T) {
		var gotUA atomic.Value
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA.Store(r.Header.Get("User-Agent"))
		}))
		defer server.Close()

		f := NewUserAgentFetcher(NewHTTPFetcher(), []string{"custom-agent/1.0"})
		defer f.Close()

		resp, err := Get(context.Background(), f, server.URL)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, "custom-agent/1.0", gotUA.Load())
	})

	t.Run("KeepsExistingHeader", func(t *testing.T) {
		var gotUA atomic.Value
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA.Store(r.Header.Get("User-Agent"))
		}))
		defer server.Close()

		f := NewUserAgentFetcher(NewHTTPFetcher(), []string{"custom-agent/1.0"})
		defer f.Close()

		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "preset-agent/2.0")

		resp, err := f.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, "preset-agent/2.0", gotUA.Load())
	})
}

func TestRetryFetcher(t *testing.T) {
	t.Parallel()

	t.Run("SucceedsAfterTransientFailures", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if atomic.AddInt32(&calls, 1) <= 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		f := NewRetryFetcher(NewHTTPFetcher(), 3, time.Second, time.Second)
		defer f.Close()

		resp, err := Get(context.Background(), f, server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("ExhaustsRetries", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		f := NewRetryFetcher(NewHTTPFetcher(), 2, time.Second, time.Second)
		defer f.Close()

		_, err := Get(context.Background(), f, server.URL)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.Unavailable))
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls)) // initial + 2 retries
	})

	t.Run("PostIsNotRetried", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		f := NewRetryFetcher(NewHTTPFetcher(), 3, time.Second, time.Second)
		defer f.Close()

		req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, server.URL, nil)
		require.NoError(t, err)

		_, doErr := f.Do(req)
		require.Error(t, doErr)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("FourOhFourIsNotRetried", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		// StatusCodeFetcher below converts 404 into a NotFound error which
		// the retry loop treats as permanent.
		f := NewRetryFetcher(NewStatusCodeFetcher(NewHTTPFetcher()), 3, time.Second, time.Second)
		defer f.Close()

		_, err := Get(context.Background(), f, server.URL)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.NotFound))
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("ContextCancelDuringBackoff", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		f := NewRetryFetcher(NewHTTPFetcher(), 5, 2*time.Second, 10*time.Second)
		defer f.Close()

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(100 * time.Millisecond)
			cancel()
		}()

		start := time.Now()
		_, err := Get(ctx, f, server.URL)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}

func TestNormalizeMaxRetries(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, normalizeMaxRetries(-5))
	assert.Equal(t, 3, normalizeMaxRetries(3))
	assert.Equal(t, maxAllowedRetries, normalizeMaxRetries(100))
}

func TestNormalizeRetryDelays(t *testing.T) {
	t.Parallel()

	minDelay, maxDelay := normalizeRetryDelays(0, 0)
	assert.Equal(t, time.Second, minDelay)
	assert.Equal(t, defaultMaxRetryDelay, maxDelay)

	minDelay, maxDelay = normalizeRetryDelays(40*time.Second, 10*time.Second)
	assert.Equal(t, 40*time.Second, minDelay)
	assert.Equal(t, 40*time.Second, maxDelay)
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	d, ok := parseRetryAfter("120")
	assert.True(t, ok)
	assert.Equal(t, 120*time.Second, d)

	d, ok = parseRetryAfter(time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat))
	assert.True(t, ok)
	assert.Equal(t, time.Duration(0), d)

	_, ok = parseRetryAfter("")
	assert.False(t, ok)

	_, ok = parseRetryAfter("soon")
	assert.False(t, ok)
}

func TestIsIdempotentMethod(t *testing.T) {
	t.Parallel()

	assert.True(t, isIdempotentMethod(http.MethodGet))
	assert.True(t, isIdempotentMethod(http.MethodPut))
	assert.True(t, isIdempotentMethod(http.MethodDelete))
	assert.False(t, isIdempotentMethod(http.MethodPost))
	assert.False(t, isIdempotentMethod(http.MethodPatch))
}
