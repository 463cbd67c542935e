package types

import (
	"context"
	"time"
)

// Store persists lists of records under a persistence name.
// A name that was never saved loads as an empty list and a zero time.
type Store interface {
	// Load returns the records saved under name, in saved order.
	Load(name string) ([]Record, error)

	// Save replaces the records saved under name.
	Save(name string, records []Record) error

	// Erase removes the records and refresh time saved under name.
	// Erasing an unknown name is not an error.
	Erase(name string) error

	// LoadRefreshed returns the latest refresh time saved under name.
	LoadRefreshed(name string) (time.Time, error)

	// SaveRefreshed records the latest refresh time for name.
	SaveRefreshed(name string, at time.Time) error
}

// Fetcher retrieves a list of records from a remote location.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]Record, error)
}
