// Package repository keeps the fleet earnings ranking.
package repository

import "context"

// Entry represents a ranking row.
type Entry struct {
	Rank     int     `json:"rank"`
	DriverID string  `json:"driverId"`
	Earnings float64 `json:"earnings"`
}

// Store provides read/write access to the ranking state.
//
// Ordering is lifetime earnings DESC, then driver id ASC. Ranks use
// competition ranking: equal earnings share a rank and the next rank skips.
type Store interface {
	// Set records the driver's current lifetime earnings.
	Set(ctx context.Context, driverID string, earnings float64) error

	// Remove drops a driver. Returns false if it was not ranked.
	Remove(ctx context.Context, driverID string) bool

	// Rank returns the current rank and earnings for a driver.
	// Returns ErrNotFound if the driver is unknown.
	Rank(ctx context.Context, driverID string) (Entry, error)

	// TopN returns the top-N entries ordered by earnings desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of ranked drivers.
	Count(ctx context.Context) int
}
