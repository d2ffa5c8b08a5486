package rating

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/paddleduel/internal/dependencies/clock"
	"github.com/mcoot/paddleduel/internal/metrics"
	"github.com/mcoot/paddleduel/internal/model"
	"github.com/mcoot/paddleduel/internal/storage"
)

// Result is a completed match ready to be rated
type Result struct {
	Room        *model.Room
	WinnerIndex int
	Duration    time.Duration
}

// Service applies rating and statistics updates for completed matches
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger

	// serializes read-modify-write of player stats
	mu sync.Mutex
}

// NewService creates a rating Service
func NewService(store storage.Storage, clk clock.Clock, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		storage: store,
		clock:   clk,
		metrics: m,
		logger:  logger.With(slog.String("component", "rating")),
	}
}

// RecordMatch updates both players' stats and stores a match record.
// Matches involving a player without a stored profile are skipped and
// return a nil record.
func (s *Service) RecordMatch(ctx context.Context, res Result) (*model.MatchRecord, error) {
	room := res.Room
	if room == nil || len(room.Players) != model.MaxRoomPlayers {
		return nil, fmt.Errorf("%w: match needs two players", model.ErrValidation)
	}
	if res.WinnerIndex != 0 && res.WinnerIndex != 1 {
		return nil, fmt.Errorf("%w: winner index %d", model.ErrValidation, res.WinnerIndex)
	}

	loserIndex := 1 - res.WinnerIndex
	winner := room.Players[res.WinnerIndex].Player
	loser := room.Players[loserIndex].Player
	if winner.PlayerID == "" || loser.PlayerID == "" {
		s.logger.Debug("skipping rating for guest match", slog.String("room_code", string(room.Code)))
		return nil, nil
	}
	if winner.PlayerID == loser.PlayerID {
		s.logger.Warn("skipping rating for match against self",
			slog.String("room_code", string(room.Code)),
			slog.String("username", winner.Username))
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	winnerStats, err := s.loadStats(ctx, winner)
	if err != nil {
		return nil, s.fail(room, err)
	}
	loserStats, err := s.loadStats(ctx, loser)
	if err != nil {
		return nil, s.fail(room, err)
	}

	change := CalculateEloChange(winnerStats.Rating, loserStats.Rating)
	now := s.clock.Now()

	winnerStats.Rating = ApplyEloChange(winnerStats.Rating, change)
	winnerStats.Wins++
	winnerStats.CurrentStreak++
	winnerStats.BestStreak = max(winnerStats.BestStreak, winnerStats.CurrentStreak)

	loserStats.Rating = ApplyEloChange(loserStats.Rating, -change)
	loserStats.Losses++
	loserStats.CurrentStreak = 0

	for i, st := range []*model.PlayerStats{winnerStats, loserStats} {
		idx := res.WinnerIndex
		if i == 1 {
			idx = loserIndex
		}
		st.GamesPlayed++
		st.PointsFor += room.Scores[idx]
		st.PointsAgainst += room.Scores[1-idx]
		st.LongestRally = max(st.LongestRally, room.LongestRally)
		st.UpdatedAt = now
	}

	if err := s.storage.SaveStats(ctx, winnerStats); err != nil {
		return nil, s.fail(room, err)
	}
	if err := s.storage.SaveStats(ctx, loserStats); err != nil {
		return nil, s.fail(room, err)
	}

	record := &model.MatchRecord{
		ID:             uuid.NewString(),
		RoomCode:       room.Code,
		Variant:        room.Variant,
		WinnerID:       winner.PlayerID,
		LoserID:        loser.PlayerID,
		WinnerUsername: winner.Username,
		LoserUsername:  loser.Username,
		Scores:         room.Scores,
		WinnerIndex:    res.WinnerIndex,
		RatingChange:   change,
		LongestRally:   room.LongestRally,
		Duration:       res.Duration,
		CompletedAt:    now,
	}
	if err := s.storage.SaveMatch(ctx, record); err != nil {
		return nil, s.fail(room, err)
	}

	s.logger.Info("match rated",
		slog.String("room_code", string(room.Code)),
		slog.String("winner", winner.Username),
		slog.String("loser", loser.Username),
		slog.Int("change", change),
		slog.Int("winner_rating", winnerStats.Rating),
		slog.Int("loser_rating", loserStats.Rating))
	return record, nil
}

func (s *Service) loadStats(ctx context.Context, p model.Player) (*model.PlayerStats, error) {
	stats, err := s.storage.GetStats(ctx, p.PlayerID)
	if errors.Is(err, model.ErrStatsNotFound) {
		return model.NewPlayerStats(p.PlayerID, p.Username), nil
	}
	if err != nil {
		return nil, err
	}
	stats.Username = p.Username
	return stats, nil
}

func (s *Service) fail(room *model.Room, err error) error {
	s.metrics.RatingFailed()
	s.logger.Error("rating update failed",
		slog.String("room_code", string(room.Code)),
		slog.String("error", err.Error()))
	return fmt.Errorf("record match: %w", err)
}
