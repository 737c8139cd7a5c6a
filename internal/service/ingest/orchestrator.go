package ingest

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/quimera/catalog-ingest/internal/pkg/errors"
	"github.com/quimera/catalog-ingest/internal/service/catalog"
	"github.com/quimera/catalog-ingest/pkg/concurrency"
	applog "github.com/quimera/catalog-ingest/pkg/log"
)

// Scraper produces the raw records of a store. Implementations live in the
// scraper package.
type Scraper interface {
	Scrape(ctx context.Context, store catalog.Store) ([]RawRecord, error)
}

// Notifier receives run reports. The notification package provides the
// Telegram implementation and a no-op one.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// Options tunes the orchestrator's batching and retry behavior. The zero
// value is not usable; use DefaultOptions.
type Options struct {
	// BatchSize is how many records are reconciled before a cooldown.
	BatchSize int
	// RecordAttempts is how often a failing record is tried in total.
	RecordAttempts int
	// RecordRetryDelay is the linear backoff base between record attempts.
	RecordRetryDelay time.Duration
	// RecordTimeout bounds the reconciliation of a single record.
	RecordTimeout time.Duration
	// BatchCooldown is the pause between batches.
	BatchCooldown time.Duration
	// StoreCooldown is the pause between stores in a full run.
	StoreCooldown time.Duration
}

// allRunsGuardKey is the guard key shared by all full catalog runs.
const allRunsGuardKey = "all"

// DefaultOptions returns the production tuning.
func DefaultOptions() Options {
	return Options{
		BatchSize:        5,
		RecordAttempts:   3,
		RecordRetryDelay: 2 * time.Second,
		RecordTimeout:    60 * time.Second,
		BatchCooldown:    3 * time.Second,
		StoreCooldown:    10 * time.Second,
	}
}

// Orchestrator runs the scrape-normalize-reconcile pipeline per store. A
// run guard rejects overlapping runs against the same store instead of
// queueing them.
type Orchestrator struct {
	client     *catalog.Client
	engine     *Engine
	scraper    Scraper
	normalizer *Normalizer
	notifier   Notifier
	registry   *Registry
	guard      *concurrency.RunGuard
	opts       Options
}

// NewOrchestrator wires the pipeline. notifier may be nil when run reports
// are not wanted.
func NewOrchestrator(client *catalog.Client, engine *Engine, scraper Scraper, normalizer *Normalizer, notifier Notifier, opts Options) *Orchestrator {
	return &Orchestrator{
		client:     client,
		engine:     engine,
		scraper:    scraper,
		normalizer: normalizer,
		notifier:   notifier,
		registry:   NewRegistry(),
		guard:      concurrency.NewRunGuard(),
		opts:       opts,
	}
}

// Status exposes the run registry for the status endpoint.
func (o *Orchestrator) Status() (active []ActiveRun, lastReports []StoreReport) {
	return o.registry.Active(), o.registry.LastReports()
}

// RunStore executes one full run against a single store. A run already in
// flight for the store yields a Conflict error; it is never interrupted or
// reset.
func (o *Orchestrator) RunStore(ctx context.Context, storeID int64) (StoreReport, error) {
	store, err := o.resolveStore(ctx, storeID)
	if err != nil {
		return StoreReport{}, err
	}
	return o.runStore(ctx, store)
}

// StartStore begins a store run in the background and returns as soon as
// the run is registered. Guard conflicts and unknown stores still fail
// synchronously; everything later is visible through Status and the run
// report.
func (o *Orchestrator) StartStore(ctx context.Context, storeID int64) (ActiveRun, error) {
	store, err := o.resolveStore(ctx, storeID)
	if err != nil {
		return ActiveRun{}, err
	}

	run, release, err := o.begin(store)
	if err != nil {
		return ActiveRun{}, err
	}

	go func() {
		defer release()
		// detached from the request context on purpose: an aborted HTTP
		// request must not kill a running scrape
		o.execute(context.Background(), store, run)
	}()

	return run, nil
}

// StartAll begins a full catalog run in the background. A full run already
// in flight yields a Conflict error; per-store runs triggered on the side
// are skipped individually by their own guards.
func (o *Orchestrator) StartAll() error {
	release, err := o.beginAll()
	if err != nil {
		return err
	}

	go func() {
		defer release()
		// detached from the request context on purpose, same as StartStore
		_, _ = o.runAll(context.Background())
	}()

	return nil
}

func (o *Orchestrator) resolveStore(ctx context.Context, storeID int64) (catalog.Store, error) {
	store, err := o.client.Store(ctx, storeID)
	if err != nil {
		return catalog.Store{}, err
	}
	if !store.Activa {
		return catalog.Store{}, apperrors.Newf(apperrors.InvalidInput, "store %q is inactive", store.Nombre)
	}
	return store, nil
}

// RunAll runs every active store sequentially with a cooldown between
// stores. Stores whose run fails or is already in flight are reported but
// do not stop the remaining ones. A second full run while one is in flight
// yields a Conflict error.
func (o *Orchestrator) RunAll(ctx context.Context) ([]StoreReport, error) {
	release, err := o.beginAll()
	if err != nil {
		return nil, err
	}
	defer release()

	return o.runAll(ctx)
}

// beginAll claims the guard shared by all full catalog runs.
func (o *Orchestrator) beginAll() (func(), error) {
	ok, heldSince := o.guard.TryAcquire(allRunsGuardKey)
	if !ok {
		return nil, apperrors.Newf(apperrors.Conflict,
			"a full catalog run is already in progress since %s", heldSince.Format(time.RFC3339))
	}
	return func() { o.guard.Release(allRunsGuardKey) }, nil
}

func (o *Orchestrator) runAll(ctx context.Context) ([]StoreReport, error) {
	stores, err := o.client.ActiveStores(ctx)
	if err != nil {
		return nil, err
	}

	logger := applog.WithComponent(component)
	logger.WithField("stores", len(stores)).Info("full catalog run started")

	reports := make([]StoreReport, 0, len(stores))
	for i, store := range stores {
		if i > 0 {
			if err := sleepCtx(ctx, o.opts.StoreCooldown); err != nil {
				return reports, err
			}
		}

		report, err := o.runStore(ctx, store)
		if err != nil {
			if ctx.Err() != nil {
				return reports, err
			}
			logger.WithField("store", store.Nombre).WithError(err).Error("store run failed")
			report = StoreReport{StoreID: store.ID, StoreName: store.Nombre, Err: err}
		}
		reports = append(reports, report)
	}

	logger.Info("full catalog run finished")
	return reports, nil
}

func (o *Orchestrator) runStore(ctx context.Context, store catalog.Store) (StoreReport, error) {
	run, release, err := o.begin(store)
	if err != nil {
		return StoreReport{}, err
	}
	defer release()
	return o.execute(ctx, store, run)
}

// begin claims the store's run guard and registers the run. The returned
// release function must be called when the run ends.
func (o *Orchestrator) begin(store catalog.Store) (ActiveRun, func(), error) {
	guardKey := fmt.Sprintf("store:%d", store.ID)
	ok, heldSince := o.guard.TryAcquire(guardKey)
	if !ok {
		return ActiveRun{}, nil, apperrors.Newf(apperrors.Conflict,
			"a run against %q is already in progress since %s", store.Nombre, heldSince.Format(time.RFC3339))
	}

	run := ActiveRun{
		RunID:     newRunID(),
		StoreID:   store.ID,
		StoreName: store.Nombre,
		StartedAt: time.Now(),
	}
	o.registry.Begin(run)
	return run, func() { o.guard.Release(guardKey) }, nil
}

func (o *Orchestrator) execute(ctx context.Context, store catalog.Store, run ActiveRun) (StoreReport, error) {
	runID := run.RunID
	report := StoreReport{
		StoreID:   store.ID,
		StoreName: store.Nombre,
		RunID:     runID,
		StartedAt: run.StartedAt,
	}

	defer func() {
		report.FinishedAt = time.Now()
		o.registry.Finish(report)
		o.notify(report)
	}()

	logger := applog.WithComponentAndFields(component, applog.Fields{
		"store": store.Nombre,
		"run":   runID,
	})
	logger.Info("store run started")

	raws, err := o.scraper.Scrape(ctx, store)
	if err != nil {
		report.Err = err
		return report, err
	}
	report.Scraped = len(raws)

	records := make([]Record, 0, len(raws))
	for _, raw := range raws {
		rec, err := o.normalizer.Normalize(raw)
		if err != nil {
			report.Skipped++
			logger.WithField("model", raw.Model).WithError(err).Debug("record rejected during normalization")
			continue
		}
		records = append(records, rec)
	}

	for start := 0; start < len(records); start += o.opts.BatchSize {
		if start > 0 {
			if err := sleepCtx(ctx, o.opts.BatchCooldown); err != nil {
				report.Err = err
				return report, err
			}
		}

		end := min(start+o.opts.BatchSize, len(records))
		for _, rec := range records[start:end] {
			result := o.reconcileWithRetry(ctx, store, runID, rec)
			report.SizesApplied += result.Sizes.Applied
			report.SizesFailed += result.Sizes.Failed
			switch result.Outcome {
			case OutcomeCreated:
				report.Created++
			case OutcomeMatched:
				report.Matched++
			case OutcomeFailed:
				report.Failed++
				logger.WithField("sku", result.SKU).WithError(result.Err).Error("record reconciliation failed")
				if isFatalRunError(result.Err) {
					err := apperrors.Wrap(result.Err, apperrors.ExecutionFailed, "aborting run, catalog rejected our credentials")
					report.Err = err
					return report, err
				}
			}
			if ctx.Err() != nil {
				report.Err = ctx.Err()
				return report, ctx.Err()
			}
		}
	}

	reaped, err := o.engine.ReapStaleListings(ctx, store, runID)
	if err != nil {
		logger.WithError(err).Warn("stale listing cleanup failed")
	}
	report.Reaped = reaped

	logger.WithFields(applog.Fields{
		"scraped":       report.Scraped,
		"created":       report.Created,
		"matched":       report.Matched,
		"skipped":       report.Skipped,
		"failed":        report.Failed,
		"sizes_applied": report.SizesApplied,
		"sizes_failed":  report.SizesFailed,
		"reaped":        report.Reaped,
	}).Info("store run finished")

	return report, nil
}

// isFatalRunError reports whether a record failure dooms the whole run.
// Rejected credentials survive the client's single auth-retry, so every
// remaining record would fail the same way; the run stops instead of
// grinding through them. Transient 5xx stay per-record failures.
func isFatalRunError(err error) bool {
	return apperrors.UnderlyingType(err) == apperrors.Unauthorized
}

// reconcileWithRetry pushes one record with a bounded number of attempts
// and a per-record timeout. Permanent failures abort immediately.
func (o *Orchestrator) reconcileWithRetry(ctx context.Context, store catalog.Store, runID string, rec Record) RecordResult {
	result := RecordResult{SKU: rec.SKU, Model: rec.Model}

	for attempt := 1; attempt <= o.opts.RecordAttempts; attempt++ {
		recCtx, cancel := context.WithTimeout(ctx, o.opts.RecordTimeout)
		outcome, sizes, err := o.engine.Reconcile(recCtx, store, runID, rec)
		cancel()

		result.Sizes = sizes
		if err == nil {
			result.Outcome = outcome
			return result
		}
		result.Outcome = OutcomeFailed
		result.Err = err

		if ctx.Err() != nil || !isRetriableWrite(err) || attempt == o.opts.RecordAttempts {
			return result
		}
		if err := sleepCtx(ctx, time.Duration(attempt)*o.opts.RecordRetryDelay); err != nil {
			result.Err = err
			return result
		}
	}
	return result
}

// notify sends the run report without holding up the caller on failures.
func (o *Orchestrator) notify(report StoreReport) {
	if o.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := o.notifier.Send(ctx, formatReport(report)); err != nil {
		applog.WithComponent(component).WithError(err).Warn("failed to send run report")
	}
}

func formatReport(report StoreReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s · %s\n", report.RunID, report.StoreName)
	if report.Err != nil {
		fmt.Fprintf(&b, "FAILED: %v\n", report.Err)
	}
	fmt.Fprintf(&b, "scraped %d · created %d · matched %d · skipped %d · failed %d · reaped %d\n",
		report.Scraped, report.Created, report.Matched, report.Skipped, report.Failed, report.Reaped)
	fmt.Fprintf(&b, "sizes %d applied · %d failed\n", report.SizesApplied, report.SizesFailed)
	fmt.Fprintf(&b, "took %s", report.Duration().Round(time.Second))
	return b.String()
}

// newRunID builds a unique, sortable run identifier.
func newRunID() string {
	var suffix [4]byte
	_, _ = rand.Read(suffix[:])
	return time.Now().UTC().Format("20060102-150405") + "-" + hex.EncodeToString(suffix[:])
}
