package model

// DriverStatus is the availability of a driver.
type DriverStatus string

// Driver statuses.
const (
	DriverActive  DriverStatus = "active"
	DriverOffline DriverStatus = "offline"
)

// Driver is a driver record owned by the directory. The ledger only
// mutates the aggregate fields (Earnings through PerformanceScore).
type Driver struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Email      string       `json:"email,omitempty"`
	Phone      string       `json:"phone,omitempty"`
	Status     DriverStatus `json:"status"`
	VehicleID  string       `json:"vehicleId,omitempty"`
	ContractID string       `json:"contractId,omitempty"`

	Earnings         float64 `json:"earnings"`
	EarningsToday    float64 `json:"earnings_today"`
	Trips            int     `json:"trips"`
	TripsToday       int     `json:"trips_today"`
	PerformanceScore int     `json:"performanceScore"`

	// OpeningEarnings is the part of Earnings carried in at seeding time
	// that no ledger event accounts for.
	OpeningEarnings float64 `json:"openingEarnings,omitempty"`
}

// Active reports whether the driver is on duty.
func (d *Driver) Active() bool {
	return d.Status == DriverActive
}

// ResetToday zeroes the same-day aggregates.
func (d *Driver) ResetToday() {
	d.TripsToday = 0
	d.EarningsToday = 0
}
