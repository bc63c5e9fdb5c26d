// Package scoring derives a driver's same-day performance score.
package scoring

import (
	"errors"
	"math"
)

// Score weights and bounds.
const (
	EarningsWeight = 0.5
	TripWeight     = 2.0
	MaxScore       = 100
	MinScore       = 0
)

// ErrNegativeInput is returned by ValidateInputs for negative trips or earnings.
var ErrNegativeInput = errors.New("negative score input")

// RoundHalfUp rounds x to the nearest integer, with halves going up
// (toward positive infinity). It is the single rounding rule for fares and scores.
func RoundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

// Score returns round(min(100, earningsToday*0.5 + tripsToday*2)).
//
// Both inputs must be non-negative; callers validate with ValidateInputs.
// The result is always within [0, 100] for valid inputs.
func Score(tripsToday int, earningsToday float64) int {
	raw := earningsToday*EarningsWeight + float64(tripsToday)*TripWeight
	return int(RoundHalfUp(math.Min(MaxScore, raw)))
}

// ValidateInputs rejects negative score inputs.
func ValidateInputs(tripsToday int, earningsToday float64) error {
	if tripsToday < 0 || earningsToday < 0 || math.IsNaN(earningsToday) {
		return ErrNegativeInput
	}
	return nil
}
