package ingest

import (
	"context"

	"github.com/quimera/catalog-ingest/internal/service/catalog"
	applog "github.com/quimera/catalog-ingest/pkg/log"
)

// ReapStaleListings removes a store's listings left behind by earlier runs.
// For every product the newest listing survives: the one tagged with the
// current run, or failing that the most recently created one. Returns the
// number of listings deleted.
//
// Reaping is best-effort; a delete failure is logged and skipped so one bad
// row cannot block cleanup of the rest.
func (e *Engine) ReapStaleListings(ctx context.Context, store catalog.Store, runID string) (int, error) {
	listings, err := e.client.ListingsByStore(ctx, store.ID)
	if err != nil {
		return 0, err
	}

	keep := make(map[int64]catalog.Listing, len(listings))
	for _, l := range listings {
		current, ok := keep[l.ZapatillaID]
		if !ok || betterSurvivor(l, current, runID) {
			keep[l.ZapatillaID] = l
		}
	}

	logger := applog.WithComponentAndFields(component, applog.Fields{
		"store": store.Nombre,
		"run":   runID,
	})

	reaped := 0
	for _, l := range listings {
		if keep[l.ZapatillaID].ID == l.ID {
			continue
		}
		if err := e.deleteListingWithSizes(ctx, l.ID); err != nil {
			if ctx.Err() != nil {
				return reaped, ctx.Err()
			}
			logger.WithField("listing", l.ID).WithError(err).Warn("failed to delete stale listing")
			continue
		}
		reaped++
	}

	if reaped > 0 {
		logger.WithField("reaped", reaped).Info("stale listings removed")
	}
	return reaped, nil
}

// deleteListingWithSizes removes a listing's size rows before the listing
// itself; the API exposes no cascade, so deleting the listing directly
// would orphan them.
func (e *Engine) deleteListingWithSizes(ctx context.Context, listingID int64) error {
	sizes, err := e.client.SizesByListing(ctx, listingID)
	if err != nil {
		return err
	}
	for _, s := range sizes {
		if err := e.client.DeleteSize(ctx, s.ID); err != nil {
			return err
		}
	}
	return e.client.DeleteListing(ctx, listingID)
}

// betterSurvivor reports whether candidate should replace current as the
// listing kept for a product. A current-run listing always wins; among
// same-age listings the higher ID is the newer row.
func betterSurvivor(candidate, current catalog.Listing, runID string) bool {
	candidateCurrent := candidate.ScrapeRunID == runID
	currentCurrent := current.ScrapeRunID == runID

	if candidateCurrent != currentCurrent {
		return candidateCurrent
	}
	return candidate.ID > current.ID
}
