// Package model contains domain models passed between layers.
package model

import "time"

// EventType classifies a monetary event.
type EventType string

// Earning event types.
const (
	EventTrip    EventType = "trip"
	EventRental  EventType = "rental"
	EventBonus   EventType = "bonus"
	EventPenalty EventType = "penalty"
)

// EventTypes lists every valid type in summary order.
var EventTypes = []EventType{EventTrip, EventRental, EventBonus, EventPenalty}

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventTrip, EventRental, EventBonus, EventPenalty:
		return true
	}
	return false
}

// Details is the type-dependent payload of an earning event.
// Trip events fill the trip fields, rental events the rental fields;
// bonus and penalty events may carry a free-form note.
type Details struct {
	TripID        string  `json:"tripId,omitempty"`
	DistanceKM    float64 `json:"distance,omitempty"`
	DurationMin   float64 `json:"duration,omitempty"`
	StartLocation string  `json:"startLocation,omitempty"`
	EndLocation   string  `json:"endLocation,omitempty"`

	ContractID string `json:"contractId,omitempty"`
	RentalDays int    `json:"rentalDays,omitempty"`

	Note string `json:"note,omitempty"`
}

// EarningEvent is an immutable record of one monetary event tied to a driver.
// Timestamp is set by the ledger and serializes as an RFC 3339 instant.
type EarningEvent struct {
	ID        string    `json:"id"`
	DriverID  string    `json:"driverId"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Details   Details   `json:"details"`
}
