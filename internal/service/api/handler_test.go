package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/quimera/catalog-ingest/internal/pkg/errors"
	"github.com/quimera/catalog-ingest/internal/service/ingest"
)

const testAppKey = "test-app-key-12345"

// stubRunner implements Runner for handler tests.
type stubRunner struct {
	startStoreFn func(ctx context.Context, storeID int64) (ingest.ActiveRun, error)
	startAllFn   func() error
	startAllN    int
	active       []ingest.ActiveRun
	lastReports  []ingest.StoreReport
}

func (r *stubRunner) StartStore(ctx context.Context, storeID int64) (ingest.ActiveRun, error) {
	if r.startStoreFn != nil {
		return r.startStoreFn(ctx, storeID)
	}
	return ingest.ActiveRun{}, apperrors.New(apperrors.NotFound, "store not found")
}

func (r *stubRunner) StartAll() error {
	r.startAllN++
	if r.startAllFn != nil {
		return r.startAllFn()
	}
	return nil
}

func (r *stubRunner) Status() ([]ingest.ActiveRun, []ingest.StoreReport) {
	return r.active, r.lastReports
}

func newTestServer(runner Runner) *echo.Echo {
	e := NewHTTPServer(HTTPServerConfig{})
	SetupRoutes(e, NewHandler(runner), testAppKey)
	return e
}

func doRequest(e *echo.Echo, method, target string, withKey bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if withKey {
		req.Header.Set(appKeyHeader, testAppKey)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	e := newTestServer(&stubRunner{})

	rec := doRequest(e, http.MethodGet, "/health", false)

	require.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
}

func TestAppKeyAuth(t *testing.T) {
	t.Run("MissingKey", func(t *testing.T) {
		e := newTestServer(&stubRunner{})

		rec := doRequest(e, http.MethodGet, "/api/v1/status", false)

		require.Equal(t, http.StatusUnauthorized, rec.Code)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, http.StatusUnauthorized, body.ResultCode)
	})

	t.Run("WrongKey", func(t *testing.T) {
		e := newTestServer(&stubRunner{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		req.Header.Set(appKeyHeader, "not-the-key")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("QueryParamFallback", func(t *testing.T) {
		e := newTestServer(&stubRunner{})

		rec := doRequest(e, http.MethodGet, "/api/v1/status?app_key="+testAppKey, false)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestScrapeStore(t *testing.T) {
	t.Run("Accepted", func(t *testing.T) {
		started := time.Now().UTC()
		runner := &stubRunner{
			startStoreFn: func(_ context.Context, storeID int64) (ingest.ActiveRun, error) {
				require.Equal(t, int64(3), storeID)
				return ingest.ActiveRun{
					RunID:     "20260830-070000-abcd1234",
					StoreID:   storeID,
					StoreName: "Zapas Madrid",
					StartedAt: started,
				}, nil
			},
		}
		e := newTestServer(runner)

		rec := doRequest(e, http.MethodPost, "/api/v1/scrape/stores/3", true)

		require.Equal(t, http.StatusAccepted, rec.Code)

		var body RunResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "20260830-070000-abcd1234", body.RunID)
		assert.Equal(t, int64(3), body.StoreID)
		assert.Equal(t, "Zapas Madrid", body.StoreName)
	})

	t.Run("InvalidID", func(t *testing.T) {
		e := newTestServer(&stubRunner{})

		rec := doRequest(e, http.MethodPost, "/api/v1/scrape/stores/abc", true)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("UnknownStore", func(t *testing.T) {
		e := newTestServer(&stubRunner{})

		rec := doRequest(e, http.MethodPost, "/api/v1/scrape/stores/99", true)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("AlreadyRunning", func(t *testing.T) {
		runner := &stubRunner{
			startStoreFn: func(context.Context, int64) (ingest.ActiveRun, error) {
				return ingest.ActiveRun{}, apperrors.New(apperrors.Conflict, "a run is already in progress")
			},
		}
		e := newTestServer(runner)

		rec := doRequest(e, http.MethodPost, "/api/v1/scrape/stores/3", true)

		require.Equal(t, http.StatusConflict, rec.Code)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body.Message, "already in progress")
	})

	t.Run("InactiveStore", func(t *testing.T) {
		runner := &stubRunner{
			startStoreFn: func(context.Context, int64) (ingest.ActiveRun, error) {
				return ingest.ActiveRun{}, apperrors.New(apperrors.InvalidInput, "store is inactive")
			},
		}
		e := newTestServer(runner)

		rec := doRequest(e, http.MethodPost, "/api/v1/scrape/stores/3", true)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestScrapeAll(t *testing.T) {
	t.Run("Accepted", func(t *testing.T) {
		runner := &stubRunner{}
		e := newTestServer(runner)

		rec := doRequest(e, http.MethodPost, "/api/v1/scrape", true)

		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, 1, runner.startAllN)
	})

	t.Run("AlreadyRunning", func(t *testing.T) {
		runner := &stubRunner{
			startAllFn: func() error {
				return apperrors.New(apperrors.Conflict, "a full catalog run is already in progress")
			},
		}
		e := newTestServer(runner)

		rec := doRequest(e, http.MethodPost, "/api/v1/scrape", true)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestStatus(t *testing.T) {
	started := time.Date(2026, 8, 30, 7, 0, 0, 0, time.UTC)
	runner := &stubRunner{
		active: []ingest.ActiveRun{
			{RunID: "run-a", StoreID: 1, StoreName: "Tienda Uno", StartedAt: started},
		},
		lastReports: []ingest.StoreReport{
			{
				RunID:        "run-b",
				StoreID:      2,
				StoreName:    "Tienda Dos",
				StartedAt:    started.Add(-time.Hour),
				FinishedAt:   started.Add(-50 * time.Minute),
				Scraped:      12,
				Created:      3,
				Matched:      8,
				Skipped:      1,
				SizesApplied: 40,
				SizesFailed:  1,
				Reaped:       2,
			},
			{
				RunID:     "run-c",
				StoreID:   3,
				StoreName: "Tienda Tres",
				Err:       apperrors.New(apperrors.Unavailable, "catalog service unavailable"),
			},
		},
	}
	e := newTestServer(runner)

	rec := doRequest(e, http.MethodGet, "/api/v1/status", true)

	require.Equal(t, http.StatusOK, rec.Code)

	var body StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	require.Len(t, body.Active, 1)
	assert.Equal(t, "run-a", body.Active[0].RunID)
	assert.Equal(t, "Tienda Uno", body.Active[0].StoreName)

	require.Len(t, body.LastReports, 2)
	assert.Equal(t, 12, body.LastReports[0].Scraped)
	assert.Equal(t, 3, body.LastReports[0].Created)
	assert.Equal(t, 40, body.LastReports[0].SizesApplied)
	assert.Equal(t, 1, body.LastReports[0].SizesFailed)
	assert.Empty(t, body.LastReports[0].Error)
	assert.Contains(t, body.LastReports[1].Error, "unavailable")
}

func TestStatus_EmptyListsAreNotNull(t *testing.T) {
	e := newTestServer(&stubRunner{})

	rec := doRequest(e, http.MethodGet, "/api/v1/status", true)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"active":[]`)
	assert.Contains(t, rec.Body.String(), `"last_reports":[]`)
}
