package ingest

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/quimera/catalog-ingest/internal/pkg/errors"
	"github.com/quimera/catalog-ingest/internal/service/catalog"
	applog "github.com/quimera/catalog-ingest/pkg/log"
)

const (
	defaultListingAttempts = 3
	defaultListingDelay    = 2 * time.Second

	// sizeWriteInterval paces size writes so a listing with forty sizes
	// does not hammer the API.
	sizeWriteInterval = 100 * time.Millisecond
)

// Engine reconciles normalized records into the catalog: it resolves or
// creates the product, creates the run's listing and upserts every size.
type Engine struct {
	client *catalog.Client

	sizeLimiter       *rate.Limiter
	listingAttempts   int
	listingRetryDelay time.Duration
}

// NewEngine creates a reconciliation engine on top of the catalog client.
func NewEngine(client *catalog.Client) *Engine {
	return &Engine{
		client:            client,
		sizeLimiter:       rate.NewLimiter(rate.Every(sizeWriteInterval), 1),
		listingAttempts:   defaultListingAttempts,
		listingRetryDelay: defaultListingDelay,
	}
}

// Reconcile pushes one record into the catalog for the given store and run.
// Once the product and listing exist the record counts as reconciled; size
// write failures are tallied in the returned stats instead of failing it.
func (e *Engine) Reconcile(ctx context.Context, store catalog.Store, runID string, rec Record) (RecordOutcome, SizeStats, error) {
	logger := applog.WithComponentAndFields(component, applog.Fields{
		"store": store.Nombre,
		"sku":   rec.SKU,
		"run":   runID,
	})

	product, outcome, err := e.resolveProduct(ctx, rec)
	if err != nil {
		return OutcomeFailed, SizeStats{}, err
	}

	listing, err := e.createListing(ctx, store, product, runID, rec)
	if err != nil {
		return OutcomeFailed, SizeStats{}, err
	}

	stats, err := e.upsertSizes(ctx, rec.SKU, listing, rec.Sizes)
	if err != nil {
		return OutcomeFailed, stats, err
	}

	logger.WithFields(applog.Fields{
		"outcome":       outcome.String(),
		"sizes_applied": stats.Applied,
		"sizes_failed":  stats.Failed,
	}).Debug("record reconciled")
	return outcome, stats, nil
}

// resolveProduct finds the product by SKU or creates it. An existing
// product gets the smallest patch that brings it up to date: reactivation
// if it was inactive, and an image if it had none.
func (e *Engine) resolveProduct(ctx context.Context, rec Record) (catalog.Product, RecordOutcome, error) {
	existing, err := e.client.FindProductBySKU(ctx, rec.SKU)
	if err != nil {
		return catalog.Product{}, OutcomeFailed, err
	}

	if existing != nil {
		var patch catalog.ProductPatch
		if !existing.Activa {
			active := true
			patch.Activa = &active
		}
		if existing.Imagen == "" && rec.Image != "" {
			patch.Imagen = &rec.Image
		}
		if existing.Descripcion == "" && rec.Description != "" {
			patch.Descripcion = &rec.Description
		}
		if err := e.client.PatchProduct(ctx, existing.ID, patch); err != nil {
			return catalog.Product{}, OutcomeFailed, err
		}
		if patch.Activa != nil {
			existing.Activa = true
		}
		if patch.Imagen != nil {
			existing.Imagen = rec.Image
		}
		if patch.Descripcion != nil {
			existing.Descripcion = rec.Description
		}
		return *existing, OutcomeMatched, nil
	}

	created, err := e.client.CreateProduct(ctx, catalog.NewProduct{
		Marca:       rec.Brand,
		Modelo:      rec.Model,
		SKU:         rec.SKU,
		Imagen:      rec.Image,
		Descripcion: rec.Description,
		Activa:      true,
	})
	if err != nil {
		return catalog.Product{}, OutcomeFailed, err
	}
	return created, OutcomeCreated, nil
}

// createListing creates the run's listing for the product. Failures are
// retried with a linear backoff; before each retry both referenced rows are
// re-verified so a retry never chases a product or store that vanished.
func (e *Engine) createListing(ctx context.Context, store catalog.Store, product catalog.Product, runID string, rec Record) (catalog.Listing, error) {
	payload := catalog.NewListing{
		ZapatillaID:  product.ID,
		TiendaID:     store.ID,
		Precio:       rec.Price,
		URLProducto:  rec.URL,
		ModeloTienda: rec.StoreModel,
		ScrapeRunID:  runID,
		Disponible:   rec.Available,
	}

	var lastErr error
	for attempt := 1; attempt <= e.listingAttempts; attempt++ {
		if attempt > 1 {
			if _, err := e.client.Product(ctx, product.ID); err != nil {
				return catalog.Listing{}, apperrors.Wrap(err, apperrors.ExecutionFailed, "product disappeared before listing retry")
			}
			if _, err := e.client.Store(ctx, store.ID); err != nil {
				return catalog.Listing{}, apperrors.Wrap(err, apperrors.ExecutionFailed, "store disappeared before listing retry")
			}
		}

		listing, err := e.client.CreateListing(ctx, payload)
		if err == nil {
			return listing, nil
		}
		lastErr = err

		if !isRetriableWrite(err) || attempt == e.listingAttempts {
			break
		}

		applog.WithComponentAndFields(component, applog.Fields{
			"sku":     rec.SKU,
			"attempt": attempt,
		}).WithError(err).Warn("listing creation failed, retrying")

		if err := sleepCtx(ctx, time.Duration(attempt)*e.listingRetryDelay); err != nil {
			return catalog.Listing{}, err
		}
	}

	return catalog.Listing{}, apperrors.Wrapf(lastErr, apperrors.ExecutionFailed,
		"failed to create listing for %s after %d attempts", rec.SKU, e.listingAttempts)
}

// upsertSizes writes every size of the listing. A duplicate create resolves
// to a lookup plus an availability patch, so repeated runs converge instead
// of erroring. One size failing never stops the rest: the failure is logged,
// counted and the loop moves on. Only a dead context aborts the loop.
func (e *Engine) upsertSizes(ctx context.Context, sku string, listing catalog.Listing, sizes []SizeEntry) (SizeStats, error) {
	var stats SizeStats
	for _, entry := range sizes {
		if err := e.sizeLimiter.Wait(ctx); err != nil {
			return stats, err
		}

		if err := e.upsertSize(ctx, listing, entry); err != nil {
			stats.Failed++
			applog.WithComponentAndFields(component, applog.Fields{
				"sku":     sku,
				"listing": listing.ID,
				"size":    entry.Label,
			}).WithError(err).Warn("size write failed")
			continue
		}
		stats.Applied++
	}
	return stats, nil
}

// upsertSize writes one size row: create, or on a duplicate look it up and
// patch its availability when it differs.
func (e *Engine) upsertSize(ctx context.Context, listing catalog.Listing, entry SizeEntry) error {
	_, err := e.client.CreateSize(ctx, catalog.NewSize{
		ZapatillaTiendaID: listing.ID,
		Talla:             entry.Label,
		Disponible:        entry.Available,
	})
	if err == nil {
		return nil
	}
	if !apperrors.Is(err, apperrors.Conflict) {
		return err
	}

	existing, err := e.client.FindSize(ctx, listing.ID, entry.Label)
	if err != nil {
		return err
	}
	if existing == nil {
		return apperrors.Newf(apperrors.ExecutionFailed,
			"size %s of listing %d conflicted on create but cannot be found", entry.Label, listing.ID)
	}
	if existing.Disponible != entry.Available {
		return e.client.PatchSizeAvailability(ctx, existing.ID, entry.Available)
	}
	return nil
}

// isRetriableWrite reports whether a failed catalog write is worth another
// attempt. Client-side mistakes and conflicts are permanent.
func isRetriableWrite(err error) bool {
	switch apperrors.UnderlyingType(err) {
	case apperrors.InvalidInput, apperrors.Conflict, apperrors.Unauthorized, apperrors.NotFound:
		return false
	}
	return true
}

// sleepCtx sleeps for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
