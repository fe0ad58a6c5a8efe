package fetcher

import (
	"context"

	"cropfetcher/internal/table"
)

// Fetcher is the core interface that every data source implements.
// Each fetcher knows how to retrieve one dataset and turn it into a table.
type Fetcher interface {
	// Fetch retrieves the dataset. It returns a non-nil error when the
	// source failed or produced no rows; it never returns partial data
	// alongside an error.
	Fetch(ctx context.Context) (*table.Table, error)

	// Name returns the source name used in logs and outcomes.
	// Examples: futures, farm, trends, weather, trade
	Name() string
}
