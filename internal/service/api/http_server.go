package api

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const component = "api"

const (
	defaultReadTimeout       = 10 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 60 * time.Second

	defaultRequestTimeout = 30 * time.Second
	defaultMaxBodySize    = "64KB"
)

// HTTPServerConfig holds the knobs for building the Echo instance.
type HTTPServerConfig struct {
	// Debug enables Echo's debug mode.
	Debug bool

	// RequestTimeout caps the handling time of a single request. Zero
	// means the default of 30 seconds.
	RequestTimeout time.Duration
}

// NewHTTPServer builds an Echo instance with the application's middleware
// chain. The order matters: panic recovery first so it covers everything,
// request IDs before logging so log lines can carry them, and the security
// headers last so every response gets them.
//
// Routes are not registered here, the caller wires them on the returned
// instance.
func NewHTTPServer(cfg HTTPServerConfig) *echo.Echo {
	e := echo.New()

	e.Debug = cfg.Debug
	e.HideBanner = true
	e.HidePort = true

	e.Server.ReadTimeout = defaultReadTimeout
	e.Server.ReadHeaderTimeout = defaultReadHeaderTimeout
	e.Server.WriteTimeout = defaultWriteTimeout
	e.Server.IdleTimeout = defaultIdleTimeout

	e.HTTPErrorHandler = errorHandler

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}

	e.Use(panicRecovery())
	e.Use(middleware.RequestID())
	// do not advertise the server stack
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(echo.HeaderServer, "")
			return next(c)
		}
	})
	e.Use(httpLogger())
	e.Use(middleware.BodyLimit(defaultMaxBodySize))
	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: timeout,
	}))
	e.Use(middleware.Secure())

	return e
}
