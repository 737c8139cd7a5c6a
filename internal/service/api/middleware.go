package api

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"

	applog "github.com/quimera/catalog-ingest/pkg/log"
)

const (
	// appKeyHeader carries the API key on authenticated endpoints.
	appKeyHeader = "X-App-Key"

	// appKeyQuery is the query-string fallback for clients that cannot
	// set custom headers.
	appKeyQuery = "app_key"

	panicStackSize = 4 << 10
)

// panicRecovery turns handler panics into 500 responses instead of taking
// the whole server down. The stack trace goes to the log, never to the
// client.
func panicRecovery() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					stack := make([]byte, panicStackSize)
					stack = stack[:runtime.Stack(stack, false)]

					applog.WithComponentAndFields(component, applog.Fields{
						"panic":      fmt.Sprintf("%v", r),
						"stack":      string(stack),
						"path":       c.Request().URL.Path,
						"method":     c.Request().Method,
						"remote_ip":  c.RealIP(),
						"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
					}).Error("panic recovered in HTTP handler")

					err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
				}
			}()

			return next(c)
		}
	}
}

// httpLogger records one structured log line per request.
func httpLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)
			if err != nil {
				// route through the error handler so the response
				// status below is the one actually sent
				c.Error(err)
			}

			applog.WithComponentAndFields(component, applog.Fields{
				"method":     req.Method,
				"path":       req.URL.Path,
				"status":     c.Response().Status,
				"latency_ms": time.Since(start).Milliseconds(),
				"bytes_out":  c.Response().Size,
				"remote_ip":  c.RealIP(),
				"user_agent": req.UserAgent(),
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			}).Info("HTTP request")

			return nil
		}
	}
}

// appKeyAuth guards the scrape endpoints with a shared application key,
// accepted either in the X-App-Key header or the app_key query parameter.
func appKeyAuth(appKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			received := c.Request().Header.Get(appKeyHeader)
			if received == "" {
				received = c.QueryParam(appKeyQuery)
			}

			if received != appKey {
				applog.WithComponentAndFields(component, applog.Fields{
					"path":             c.Request().URL.Path,
					"remote_ip":        c.RealIP(),
					"received_app_key": applog.MaskSensitiveData(received),
				}).Warn("rejected request with an invalid app key")

				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing app key")
			}

			return next(c)
		}
	}
}
