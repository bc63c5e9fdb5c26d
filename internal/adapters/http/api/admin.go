package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/fleetledger/internal/ledger"
)

// AdminHandler exposes operational controls.
type AdminHandler struct {
	deps Dependencies
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps Dependencies) *AdminHandler {
	return &AdminHandler{deps: deps}
}

type trackingRequest struct {
	Enabled bool `json:"enabled"`
}

type reconcileResponse struct {
	Consistent bool           `json:"consistent"`
	Drifts     []ledger.Drift `json:"drifts"`
}

// HandleTracking handles POST /tracking.
func (h *AdminHandler) HandleTracking(w http.ResponseWriter, r *http.Request) {
	var req trackingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	if err := h.deps.SetTracking(req.Enabled); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// HandleReconcile handles POST /reconcile.
func (h *AdminHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	drifts, err := h.deps.Reconcile(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reconcileResponse{Consistent: len(drifts) == 0, Drifts: drifts})
}

// HandleSimulate handles POST /simulate.
func (h *AdminHandler) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.Simulate(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"recorded": n})
}

// HandleArchive handles POST /archive/{day} with day as YYYY-MM-DD.
func (h *AdminHandler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	key, err := h.deps.ArchiveDay(r.Context(), chi.URLParam(r, "day"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key})
}
