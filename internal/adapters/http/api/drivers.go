package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// DriversHandler serves driver records and their histories.
type DriversHandler struct {
	deps Dependencies
}

// NewDriversHandler creates a new drivers handler.
func NewDriversHandler(deps Dependencies) *DriversHandler {
	return &DriversHandler{deps: deps}
}

// HandleList handles GET /drivers.
func (h *DriversHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	drivers, err := h.deps.Drivers()
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drivers)
}

// HandleGet handles GET /drivers/{id}.
func (h *DriversHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	d, err := h.deps.Driver(chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleEarnings handles GET /drivers/{id}/earnings. Events are newest first.
func (h *DriversHandler) HandleEarnings(w http.ResponseWriter, r *http.Request) {
	events, err := h.deps.DriverEarnings(chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// HandlePerformance handles GET /drivers/{id}/performance. Entries are oldest first.
func (h *DriversHandler) HandlePerformance(w http.ResponseWriter, r *http.Request) {
	history, err := h.deps.DriverPerformance(chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}
