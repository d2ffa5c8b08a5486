package handler

import (
	"net/http"

	"github.com/mcoot/paddleduel/internal/api/request"
	"github.com/mcoot/paddleduel/internal/api/response"
	"github.com/mcoot/paddleduel/internal/services/session"
	"github.com/mcoot/paddleduel/internal/storage"
)

// DefaultLeaderboardLimit is used when no limit is requested
const DefaultLeaderboardLimit = 10

// StatusSource reports the live session summary
type StatusSource interface {
	Status() session.Status
}

// StatusHandler serves server health, live status and the leaderboard
type StatusHandler struct {
	sessions StatusSource
	storage  storage.Storage
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(sessions StatusSource, store storage.Storage) *StatusHandler {
	return &StatusHandler{
		sessions: sessions,
		storage:  store,
	}
}

// Health handles GET /api/v1/health
func (h *StatusHandler) Health(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}

// Status handles GET /api/v1/status
func (h *StatusHandler) Status(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.StatusFromSession(h.sessions.Status()))
}

// Leaderboard handles GET /api/v1/leaderboard
func (h *StatusHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := request.Limit(r, DefaultLeaderboardLimit)
	if err != nil {
		WriteError(w, NewInvalidRequestError(err.Error()))
		return
	}

	stats, err := h.storage.GetLeaderboard(r.Context(), limit)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.LeaderboardFromModel(stats))
}
