package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/paddleduel/internal/api/request"
	"github.com/mcoot/paddleduel/internal/api/response"
	"github.com/mcoot/paddleduel/internal/storage"
)

// PlayerHandler serves stored player statistics and match history
type PlayerHandler struct {
	storage storage.Storage
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(store storage.Storage) *PlayerHandler {
	return &PlayerHandler{
		storage: store,
	}
}

// Stats handles GET /api/v1/players/{username}/stats
func (h *PlayerHandler) Stats(w http.ResponseWriter, r *http.Request) {
	profile, err := h.storage.GetProfileByUsername(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		WriteError(w, err)
		return
	}

	stats, err := h.storage.GetStats(r.Context(), profile.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PlayerStatsFromModel(stats))
}

// Matches handles GET /api/v1/players/{username}/matches
func (h *PlayerHandler) Matches(w http.ResponseWriter, r *http.Request) {
	limit, err := request.Limit(r, storage.DefaultMatchHistoryLimit)
	if err != nil {
		WriteError(w, NewInvalidRequestError(err.Error()))
		return
	}

	profile, err := h.storage.GetProfileByUsername(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		WriteError(w, err)
		return
	}

	records, err := h.storage.GetMatchesForPlayer(r.Context(), profile.ID, limit)
	if err != nil {
		WriteError(w, err)
		return
	}

	matches := make([]response.Match, len(records))
	for i, m := range records {
		matches[i] = response.MatchFromModel(m, profile.ID)
	}
	response.JSON(w, http.StatusOK, response.MatchHistory{Username: profile.Username, Matches: matches})
}
