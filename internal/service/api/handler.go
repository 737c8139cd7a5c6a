package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	apperrors "github.com/quimera/catalog-ingest/internal/pkg/errors"
	"github.com/quimera/catalog-ingest/internal/service/ingest"
)

// Runner is the slice of the scrape orchestrator the API depends on.
type Runner interface {
	// StartStore begins a run for one store in the background. It returns
	// once the run is registered, or an error when the store is unknown,
	// inactive or already being scraped.
	StartStore(ctx context.Context, storeID int64) (ingest.ActiveRun, error)

	// StartAll begins a background run over every active store. It
	// returns an error when a full run is already in flight.
	StartAll() error

	// Status reports the in-flight runs and the last finished report per
	// store.
	Status() (active []ingest.ActiveRun, lastReports []ingest.StoreReport)
}

// Handler serves the scrape control endpoints.
type Handler struct {
	runner Runner

	serverStartTime time.Time
}

// NewHandler creates a Handler around the given runner.
func NewHandler(runner Runner) *Handler {
	if runner == nil {
		panic("api: runner is required")
	}

	return &Handler{
		runner: runner,

		serverStartTime: time.Now(),
	}
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime int64  `json:"uptime"`
}

// RunResponse describes a run that was just accepted or is in flight.
type RunResponse struct {
	RunID     string    `json:"run_id"`
	StoreID   int64     `json:"store_id"`
	StoreName string    `json:"store_name"`
	StartedAt time.Time `json:"started_at"`
}

// ReportResponse is the wire form of a finished store run.
type ReportResponse struct {
	RunID        string    `json:"run_id"`
	StoreID      int64     `json:"store_id"`
	StoreName    string    `json:"store_name"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Scraped      int       `json:"scraped"`
	Created      int       `json:"created"`
	Matched      int       `json:"matched"`
	Skipped      int       `json:"skipped"`
	Failed       int       `json:"failed"`
	SizesApplied int       `json:"sizes_applied"`
	SizesFailed  int       `json:"sizes_failed"`
	Reaped       int       `json:"reaped"`
	Error        string    `json:"error,omitempty"`
}

// StatusResponse is the body of the status endpoint.
type StatusResponse struct {
	Active      []RunResponse    `json:"active"`
	LastReports []ReportResponse `json:"last_reports"`
}

// MessageResponse carries a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthCheckHandler reports liveness. It is not authenticated so that
// monitoring systems can poll it.
func (h *Handler) HealthCheckHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: int64(time.Since(h.serverStartTime).Seconds()),
	})
}

// ScrapeStoreHandler triggers a scrape run for a single store. The run
// executes in the background; the response only acknowledges that it was
// accepted.
func (h *Handler) ScrapeStoreHandler(c echo.Context) error {
	storeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || storeID <= 0 {
		return apperrors.Newf(apperrors.InvalidInput, "invalid store id %q", c.Param("id"))
	}

	run, err := h.runner.StartStore(c.Request().Context(), storeID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusAccepted, RunResponse{
		RunID:     run.RunID,
		StoreID:   run.StoreID,
		StoreName: run.StoreName,
		StartedAt: run.StartedAt,
	})
}

// ScrapeAllHandler triggers a scrape run over every active store.
func (h *Handler) ScrapeAllHandler(c echo.Context) error {
	if err := h.runner.StartAll(); err != nil {
		return err
	}

	return c.JSON(http.StatusAccepted, MessageResponse{
		Message: "scrape started for all active stores",
	})
}

// StatusHandler reports the in-flight runs and the last finished report of
// every store that ran since startup.
func (h *Handler) StatusHandler(c echo.Context) error {
	active, lastReports := h.runner.Status()

	resp := StatusResponse{
		Active:      make([]RunResponse, 0, len(active)),
		LastReports: make([]ReportResponse, 0, len(lastReports)),
	}

	for _, run := range active {
		resp.Active = append(resp.Active, RunResponse{
			RunID:     run.RunID,
			StoreID:   run.StoreID,
			StoreName: run.StoreName,
			StartedAt: run.StartedAt,
		})
	}

	for _, report := range lastReports {
		r := ReportResponse{
			RunID:        report.RunID,
			StoreID:      report.StoreID,
			StoreName:    report.StoreName,
			StartedAt:    report.StartedAt,
			FinishedAt:   report.FinishedAt,
			Scraped:      report.Scraped,
			Created:      report.Created,
			Matched:      report.Matched,
			Skipped:      report.Skipped,
			Failed:       report.Failed,
			SizesApplied: report.SizesApplied,
			SizesFailed:  report.SizesFailed,
			Reaped:       report.Reaped,
		}
		if report.Err != nil {
			r.Error = report.Err.Error()
		}
		resp.LastReports = append(resp.LastReports, r)
	}

	return c.JSON(http.StatusOK, resp)
}
