// Package estimates defines the reference dataset of scrapeable work items
// and the query surface the filter resolver runs against.
package estimates

import "context"

// Estimate is one row of the reference dataset: a schedulable unit of
// scraping work. Rows are externally owned and read-only from this service's
// point of view (the seed utility is the only writer).
type Estimate struct {
	ID       int64  `json:"id"`
	State    string `json:"state"`
	City     string `json:"city"`
	Category string `json:"category"`
	Count    int64  `json:"count"`
	Pending  int64  `json:"pending"`
	BCount   int64  `json:"bcount"`
}

// Query is the read surface over the reference dataset. Implementations must
// aggregate pagination internally so callers never observe partial results.
// The dataset carries no secondary indices worth assuming; implementations
// are free to scan, which bounds the expected dataset size, and can later be
// swapped for indexed lookups without touching resolver logic.
type Query interface {
	// ScanAll returns every estimate in the dataset.
	ScanAll(ctx context.Context) ([]Estimate, error)

	// ScanByState returns all estimates for a state. An unknown state yields
	// an empty slice, not an error.
	ScanByState(ctx context.Context, state string) ([]Estimate, error)

	// ScanByStateCity returns all estimates for a state/city pair. Unknown
	// pairs yield an empty slice, not an error.
	ScanByStateCity(ctx context.Context, state, city string) ([]Estimate, error)

	// UniqueStates returns the distinct states in the dataset, sorted.
	UniqueStates(ctx context.Context) ([]string, error)

	// CitiesInState returns the distinct cities within a state, sorted.
	CitiesInState(ctx context.Context, state string) ([]string, error)
}
