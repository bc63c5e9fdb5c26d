package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const defaultLeaderboardSize = 10

// RankingHandler serves the fleet earnings ranking.
type RankingHandler struct {
	deps Dependencies
}

// NewRankingHandler creates a new ranking handler.
func NewRankingHandler(deps Dependencies) *RankingHandler {
	return &RankingHandler{deps: deps}
}

// HandleLeaderboard handles GET /leaderboard?n=.
func (h *RankingHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	n := defaultLeaderboardSize
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeFailure(w, fmt.Errorf("%w: n must be an integer", ErrBadRequest))
			return
		}
		n = parsed
	}
	entries, err := h.deps.Leaderboard(r.Context(), n)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleRank handles GET /drivers/{id}/rank.
func (h *RankingHandler) HandleRank(w http.ResponseWriter, r *http.Request) {
	entry, err := h.deps.DriverRank(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
