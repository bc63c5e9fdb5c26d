package ledger

import "errors"

// Sentinel errors.
var (
	ErrModeMismatch       = errors.New("operation not available in this fleet mode")
	ErrInvalidType        = errors.New("invalid earning type")
	ErrInvalidAmount      = errors.New("invalid earning amount")
	ErrInvalidTrip        = errors.New("invalid trip")
	ErrNilDriver          = errors.New("nil driver")
	ErrSimulationDisabled = errors.New("simulation disabled")
	ErrArchiveDisabled    = errors.New("archive not configured")
)
