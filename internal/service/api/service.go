// Package api exposes the HTTP control surface: triggering scrape runs and
// inspecting their status.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/quimera/catalog-ingest/internal/config"
	applog "github.com/quimera/catalog-ingest/pkg/log"
)

const shutdownTimeout = 5 * time.Second

// Service runs the HTTP API server and manages its lifecycle.
//
// Start returns immediately; the server runs in a goroutine until the stop
// context is canceled, then shuts down gracefully within five seconds.
type Service struct {
	appConfig *config.AppConfig

	runner Runner

	running   bool
	runningMu sync.Mutex
}

// NewService creates the API service.
func NewService(appConfig *config.AppConfig, runner Runner) *Service {
	if appConfig == nil {
		panic("api: appConfig is required")
	}
	if runner == nil {
		panic("api: runner is required")
	}

	return &Service{
		appConfig: appConfig,

		runner: runner,
	}
}

// Start launches the HTTP server in the background. It returns an error
// only when called while already running.
func (s *Service) Start(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) error {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()

	applog.WithComponent(component).Info("starting the API service")

	if s.running {
		defer serviceStopWG.Done()
		applog.WithComponent(component).Warn("the API service is already running")
		return nil
	}

	s.running = true

	go s.run(serviceStopCtx, serviceStopWG)

	return nil
}

func (s *Service) run(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) {
	defer serviceStopWG.Done()

	e := s.setupServer()

	httpServerDone := make(chan struct{})
	go s.startHTTPServer(e, httpServerDone)

	s.waitForShutdown(serviceStopCtx, e, httpServerDone)
}

func (s *Service) setupServer() *echo.Echo {
	e := NewHTTPServer(HTTPServerConfig{
		Debug: s.appConfig.Debug,
	})

	SetupRoutes(e, NewHandler(s.runner), s.appConfig.API.AppKey)

	return e
}

func (s *Service) startHTTPServer(e *echo.Echo, done chan struct{}) {
	defer close(done)

	port := s.appConfig.API.ListenPort
	applog.WithComponentAndFields(component, applog.Fields{
		"port": port,
	}).Info("HTTP server listening")

	err := e.Start(fmt.Sprintf(":%d", port))
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		applog.WithComponent(component).Info("HTTP server stopped")
		return
	}

	applog.WithComponentAndFields(component, applog.Fields{
		"port":  port,
		"error": err,
	}).Error("HTTP server terminated unexpectedly")
}

func (s *Service) waitForShutdown(serviceStopCtx context.Context, e *echo.Echo, httpServerDone chan struct{}) {
	select {
	case <-serviceStopCtx.Done():
		applog.WithComponent(component).Info("stopping the API service")
	case <-httpServerDone:
		// the server died on its own (port already bound, ...); there is
		// nothing left to shut down
		s.cleanup()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"error": err,
		}).Error("HTTP server shutdown failed")
	}

	<-httpServerDone

	s.cleanup()
}

func (s *Service) cleanup() {
	s.runningMu.Lock()
	s.running = false
	s.runningMu.Unlock()

	applog.WithComponent(component).Info("the API service has stopped")
}
