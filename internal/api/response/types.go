package response

import (
	"time"

	"github.com/mcoot/paddleduel/internal/model"
	"github.com/mcoot/paddleduel/internal/services/session"
)

// Health is the body of the health endpoint
type Health struct {
	Status string `json:"status"`
}

// Status summarizes the live session state
type Status struct {
	Rooms             map[string]int `json:"rooms"`
	QueueLength       int            `json:"queue_length"`
	QueueByVariant    map[string]int `json:"queue_by_variant"`
	RegisteredPlayers int            `json:"registered_players"`
}

// PlayerStats represents a player's rating and record
type PlayerStats struct {
	Username      string    `json:"username"`
	Rating        int       `json:"rating"`
	GamesPlayed   int       `json:"games_played"`
	Wins          int       `json:"wins"`
	Losses        int       `json:"losses"`
	WinRate       float64   `json:"win_rate"`
	PointsFor     int       `json:"points_for"`
	PointsAgainst int       `json:"points_against"`
	CurrentStreak int       `json:"current_streak"`
	BestStreak    int       `json:"best_streak"`
	LongestRally  int       `json:"longest_rally"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PlayerStatsFromModel converts model.PlayerStats
func PlayerStatsFromModel(s *model.PlayerStats) PlayerStats {
	var winRate float64
	if s.GamesPlayed > 0 {
		winRate = float64(s.Wins) / float64(s.GamesPlayed)
	}
	return PlayerStats{
		Username:      s.Username,
		Rating:        s.Rating,
		GamesPlayed:   s.GamesPlayed,
		Wins:          s.Wins,
		Losses:        s.Losses,
		WinRate:       winRate,
		PointsFor:     s.PointsFor,
		PointsAgainst: s.PointsAgainst,
		CurrentStreak: s.CurrentStreak,
		BestStreak:    s.BestStreak,
		LongestRally:  s.LongestRally,
		UpdatedAt:     s.UpdatedAt,
	}
}

// LeaderboardEntry is one ranked row of the leaderboard
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	Username    string `json:"username"`
	Rating      int    `json:"rating"`
	GamesPlayed int    `json:"games_played"`
	Wins        int    `json:"wins"`
	Losses      int    `json:"losses"`
}

// Leaderboard is the response of the leaderboard endpoint
type Leaderboard struct {
	Players []LeaderboardEntry `json:"players"`
}

// LeaderboardFromModel ranks stats in the order given, starting at 1
func LeaderboardFromModel(stats []*model.PlayerStats) Leaderboard {
	entries := make([]LeaderboardEntry, len(stats))
	for i, s := range stats {
		entries[i] = LeaderboardEntry{
			Rank:        i + 1,
			Username:    s.Username,
			Rating:      s.Rating,
			GamesPlayed: s.GamesPlayed,
			Wins:        s.Wins,
			Losses:      s.Losses,
		}
	}
	return Leaderboard{Players: entries}
}

// Match represents a completed match from one player's point of view
type Match struct {
	ID           string    `json:"id"`
	RoomCode     string    `json:"room_code"`
	Variant      string    `json:"variant"`
	Opponent     string    `json:"opponent"`
	Won          bool      `json:"won"`
	Scores       [2]int    `json:"scores"`
	RatingChange int       `json:"rating_change"`
	LongestRally int       `json:"longest_rally"`
	DurationMS   int64     `json:"duration_ms"`
	CompletedAt  time.Time `json:"completed_at"`
}

// MatchFromModel converts model.MatchRecord for the given player. The rating
// change is signed from that player's side.
func MatchFromModel(m *model.MatchRecord, playerID model.PlayerID) Match {
	won := m.WinnerID == playerID
	opponent := m.WinnerUsername
	change := -m.RatingChange
	if won {
		opponent = m.LoserUsername
		change = m.RatingChange
	}
	return Match{
		ID:           m.ID,
		RoomCode:     string(m.RoomCode),
		Variant:      string(m.Variant),
		Opponent:     opponent,
		Won:          won,
		Scores:       m.Scores,
		RatingChange: change,
		LongestRally: m.LongestRally,
		DurationMS:   m.Duration.Milliseconds(),
		CompletedAt:  m.CompletedAt,
	}
}

// MatchHistory is the response of the match history endpoint
type MatchHistory struct {
	Username string  `json:"username"`
	Matches  []Match `json:"matches"`
}

// StatusFromSession converts the session summary
func StatusFromSession(s session.Status) Status {
	rooms := make(map[string]int, len(s.RoomsByState))
	for state, n := range s.RoomsByState {
		rooms[string(state)] = n
	}
	queue := make(map[string]int, len(s.QueueByVariant))
	for variant, n := range s.QueueByVariant {
		queue[string(variant)] = n
	}
	return Status{
		Rooms:             rooms,
		QueueLength:       s.QueueLength,
		QueueByVariant:    queue,
		RegisteredPlayers: s.RegisteredPlayers,
	}
}
