// Package ingest normalizes scraped sneaker records and reconciles them
// into the remote catalog.
package ingest

import "time"

const component = "ingest"

// SizeEntry is one size observed on a store's product page.
type SizeEntry struct {
	Label     string
	Available bool
}

// RawRecord is a record as a scraper source produced it, before any
// normalization. Field contents are whatever the store published.
type RawRecord struct {
	Brand       string
	Model       string
	SKU         string
	Price       string
	URL         string
	Image       string
	Description string
	StoreModel  string
	Available   bool
	Sizes       []SizeEntry
}

// Record is a normalized record ready for reconciliation.
type Record struct {
	Brand       string
	Model       string
	SKU         string
	Price       float64
	URL         string
	Image       string
	Description string
	StoreModel  string
	Available   bool
	Sizes       []SizeEntry
}

// RecordOutcome classifies what reconciling one record did.
type RecordOutcome int

const (
	// OutcomeCreated means a new product was created in the catalog.
	OutcomeCreated RecordOutcome = iota
	// OutcomeMatched means an existing product was reused, possibly patched.
	OutcomeMatched
	// OutcomeSkipped means the record was dropped during normalization.
	OutcomeSkipped
	// OutcomeFailed means reconciliation gave up after exhausting retries.
	OutcomeFailed
)

func (o RecordOutcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeMatched:
		return "matched"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SizeStats counts the size writes done for one listing.
type SizeStats struct {
	Applied int
	Failed  int
}

// RecordResult is the per-record reconciliation result.
type RecordResult struct {
	SKU     string
	Model   string
	Outcome RecordOutcome
	Sizes   SizeStats
	Err     error
}

// StoreReport summarizes a finished run against one store.
type StoreReport struct {
	StoreID      int64
	StoreName    string
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	Scraped      int
	Created      int
	Matched      int
	Skipped      int
	Failed       int
	SizesApplied int
	SizesFailed  int
	Reaped       int
	Err          error
}

// Duration returns how long the run took.
func (r StoreReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
