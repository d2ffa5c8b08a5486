package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/paddleduel/internal/api/apierr"
	"github.com/mcoot/paddleduel/internal/api/handler"
	"github.com/mcoot/paddleduel/internal/metrics"
	"github.com/mcoot/paddleduel/internal/middleware"
	"github.com/mcoot/paddleduel/internal/storage"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger   *slog.Logger
	Storage  storage.Storage
	Sessions handler.StatusSource
	Metrics  *metrics.Metrics
	// WebSocket serves the game connection endpoint; nil leaves /ws unrouted
	WebSocket http.Handler
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	statusHandler := handler.NewStatusHandler(cfg.Sessions, cfg.Storage)
	playerHandler := handler.NewPlayerHandler(cfg.Storage)

	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger, apierr.WritePanic)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	api.HandleFunc("/health", statusHandler.Health).Methods(http.MethodGet)
	api.HandleFunc("/status", statusHandler.Status).Methods(http.MethodGet)
	api.HandleFunc("/leaderboard", statusHandler.Leaderboard).Methods(http.MethodGet)

	api.HandleFunc("/players/{username}/stats", playerHandler.Stats).Methods(http.MethodGet)
	api.HandleFunc("/players/{username}/matches", playerHandler.Matches).Methods(http.MethodGet)

	if cfg.WebSocket != nil {
		r.Handle("/ws", loggingMiddleware(cfg.WebSocket)).Methods(http.MethodGet)
	}

	// Scrapes are frequent, so they skip request logging
	r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		apierr.WriteError(w, apierr.NewNotFoundError())
	})

	return r
}
