package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/fleetledger/internal/domain/model"
)

// EarningsHandler records and queries earning events.
type EarningsHandler struct {
	deps Dependencies
}

// NewEarningsHandler creates a new earnings handler.
func NewEarningsHandler(deps Dependencies) *EarningsHandler {
	return &EarningsHandler{deps: deps}
}

// earningRequest is the body of POST /earnings.
type earningRequest struct {
	DriverID string          `json:"driver_id"`
	Amount   float64         `json:"amount"`
	Type     model.EventType `json:"type"`
	Note     string          `json:"note"`
}

// tripRequest is the body of POST /trips.
type tripRequest struct {
	DriverID      string  `json:"driver_id"`
	DistanceKM    float64 `json:"distance_km"`
	DurationMin   float64 `json:"duration_min"`
	StartLocation string  `json:"start_location"`
	EndLocation   string  `json:"end_location"`
}

// rentalRequest is the body of POST /rentals. Non-positive days default to 30.
type rentalRequest struct {
	DriverID   string `json:"driver_id"`
	ContractID string `json:"contract_id"`
	Days       int    `json:"days"`
}

type recordResponse struct {
	Recorded bool                `json:"recorded"`
	Event    *model.EarningEvent `json:"event,omitempty"`
}

func requireDriver(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: missing driver_id", ErrBadRequest)
	}
	return nil
}

// HandleRecord handles POST /earnings.
func (h *EarningsHandler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	var req earningRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	if err := requireDriver(req.DriverID); err != nil {
		writeFailure(w, err)
		return
	}
	ev, err := h.deps.RecordEarning(r.Context(), req.DriverID, req.Amount, req.Type, model.Details{Note: req.Note})
	writeRecorded(w, ev, err)
}

// HandleTrip handles POST /trips.
func (h *EarningsHandler) HandleTrip(w http.ResponseWriter, r *http.Request) {
	var req tripRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	if err := requireDriver(req.DriverID); err != nil {
		writeFailure(w, err)
		return
	}
	ev, err := h.deps.RecordTrip(r.Context(), req.DriverID, req.DistanceKM, req.DurationMin, req.StartLocation, req.EndLocation)
	writeRecorded(w, ev, err)
}

// HandleRental handles POST /rentals.
func (h *EarningsHandler) HandleRental(w http.ResponseWriter, r *http.Request) {
	var req rentalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	if err := requireDriver(req.DriverID); err != nil {
		writeFailure(w, err)
		return
	}
	ev, err := h.deps.RecordRental(r.Context(), req.DriverID, req.ContractID, req.Days)
	writeRecorded(w, ev, err)
}

// writeRecorded answers 201 with the event, or 202 when tracking is paused.
func writeRecorded(w http.ResponseWriter, ev *model.EarningEvent, err error) {
	switch {
	case err != nil:
		writeFailure(w, err)
	case ev == nil:
		writeJSON(w, http.StatusAccepted, recordResponse{Recorded: false})
	default:
		writeJSON(w, http.StatusCreated, recordResponse{Recorded: true, Event: ev})
	}
}

// HandleSummary handles GET /earnings/summary?driver_id=.
func (h *EarningsHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.deps.Summary(r.URL.Query().Get("driver_id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// HandlePeriod handles GET /earnings?from=&to=&driver_id=. Bounds are
// RFC 3339 and inclusive.
func (h *EarningsHandler) HandlePeriod(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseBound(q.Get("from"), "from")
	if err != nil {
		writeFailure(w, err)
		return
	}
	to, err := parseBound(q.Get("to"), "to")
	if err != nil {
		writeFailure(w, err)
		return
	}
	if to.Before(from) {
		writeFailure(w, fmt.Errorf("%w: to is before from", ErrBadRequest))
		return
	}
	events, err := h.deps.EarningsForPeriod(from, to, q.Get("driver_id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func parseBound(v, name string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("%w: missing %s", ErrBadRequest, name)
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid %s; must be RFC3339", ErrBadRequest, name)
	}
	return t, nil
}
