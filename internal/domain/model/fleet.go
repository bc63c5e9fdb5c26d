package model

import (
	"fmt"
	"strings"
)

// FleetMode selects how a fleet earns: per-trip fares or rental contracts.
type FleetMode string

// Fleet modes.
const (
	FleetTrip   FleetMode = "trip"
	FleetRental FleetMode = "rental"
)

// ParseFleetMode accepts "trip", "rental" and the legacy alias "taxi".
func ParseFleetMode(s string) (FleetMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trip", "taxi":
		return FleetTrip, nil
	case "rental":
		return FleetRental, nil
	}
	return "", fmt.Errorf("unknown fleet mode %q", s)
}
