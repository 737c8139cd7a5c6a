// Package scheduler runs the full catalog scrape on a cron schedule.
package scheduler

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/quimera/catalog-ingest/internal/config"
	"github.com/quimera/catalog-ingest/internal/service/ingest"
	"github.com/quimera/catalog-ingest/pkg/cronx"
	applog "github.com/quimera/catalog-ingest/pkg/log"
)

const component = "scheduler"

// Runner is the slice of the scrape orchestrator the scheduler depends on.
type Runner interface {
	// RunAll scrapes every active store and blocks until the sweep
	// finishes. Keeping it synchronous lets the cron chain skip a tick
	// when the previous sweep is still running.
	RunAll(ctx context.Context) ([]ingest.StoreReport, error)
}

// Scheduler triggers a full scrape sweep on the configured cron expression.
type Scheduler struct {
	cfg config.SchedulerConfig

	runner Runner

	cron *cron.Cron

	running   bool
	runningMu sync.Mutex
}

// NewService creates the scheduler service.
func NewService(cfg config.SchedulerConfig, runner Runner) *Scheduler {
	if runner == nil {
		panic("scheduler: runner is required")
	}

	return &Scheduler{
		cfg: cfg,

		runner: runner,
	}
}

// Start registers the scrape sweep with the cron engine and begins
// scheduling. When the configuration marks the scheduler as not runnable it
// still starts cleanly, with nothing registered.
func (s *Scheduler) Start(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) error {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()

	applog.WithComponent(component).Info("starting the scheduler service")

	if s.running {
		serviceStopWG.Done()
		applog.WithComponent(component).Warn("the scheduler service is already running")
		return nil
	}

	// Recover keeps a panicking sweep from killing the process and
	// SkipIfStillRunning drops a tick instead of stacking sweeps.
	s.cron = cron.New(
		cron.WithParser(cronx.StandardParser()),
		cron.WithLogger(cron.VerbosePrintfLogger(applog.StandardLogger())),
		cron.WithChain(
			cron.Recover(cron.VerbosePrintfLogger(applog.StandardLogger())),
			cron.SkipIfStillRunning(cron.VerbosePrintfLogger(applog.StandardLogger())),
		),
	)

	if s.cfg.Runnable {
		if err := s.registerSweep(); err != nil {
			serviceStopWG.Done()
			s.cron = nil
			return err
		}
	} else {
		applog.WithComponent(component).Info("the scheduler is disabled in the configuration")
	}

	s.cron.Start()
	s.running = true

	applog.WithComponentAndFields(component, applog.Fields{
		"time_spec": s.cfg.TimeSpec,
		"runnable":  s.cfg.Runnable,
	}).Info("the scheduler service has started")

	go func() {
		defer serviceStopWG.Done()

		<-serviceStopCtx.Done()

		s.Stop()
	}()

	return nil
}

// Stop halts scheduling and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()

	if !s.running {
		return
	}

	applog.WithComponent(component).Info("stopping the scheduler service")

	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	s.cron = nil
	s.running = false

	applog.WithComponent(component).Info("the scheduler service has stopped")
}

func (s *Scheduler) registerSweep() error {
	// the sweep runs on a detached context on purpose: shutdown waits
	// for it via cron.Stop instead of canceling it halfway through a
	// store
	_, err := s.cron.AddFunc(s.cfg.TimeSpec, func() {
		applog.WithComponent(component).Info("scheduled scrape sweep starting")

		reports, err := s.runner.RunAll(context.Background())
		if err != nil {
			applog.WithComponentAndFields(component, applog.Fields{
				"error": err,
			}).Error("the scheduled scrape sweep failed")
			return
		}

		failed := 0
		for _, r := range reports {
			if r.Err != nil {
				failed++
			}
		}

		applog.WithComponentAndFields(component, applog.Fields{
			"stores": len(reports),
			"failed": failed,
		}).Info("scheduled scrape sweep finished")
	})
	if err != nil {
		return err
	}

	return nil
}
