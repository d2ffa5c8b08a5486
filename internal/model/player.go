package model

import "time"

// ConnectionID identifies a live transport connection
type ConnectionID string

// PlayerID identifies a persistent player profile
type PlayerID string

const (
	// DefaultRating is the rating assigned to players with no recorded matches
	DefaultRating = 1000
	// MinRating is the lowest rating a player can fall to
	MinRating = 100
)

// Player is a registered connection. It lives only as long as the connection.
type Player struct {
	ConnectionID ConnectionID
	PlayerID     PlayerID // empty for players without a stored profile
	Username     string
	DisplayName  string
	RegisteredAt time.Time
}

// Profile is the durable identity of a player, keyed by username
type Profile struct {
	ID          PlayerID  `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// PlayerStats holds the persistent rating and match statistics of a player
type PlayerStats struct {
	PlayerID      PlayerID  `json:"player_id"`
	Username      string    `json:"username"`
	Rating        int       `json:"rating"`
	GamesPlayed   int       `json:"games_played"`
	Wins          int       `json:"wins"`
	Losses        int       `json:"losses"`
	PointsFor     int       `json:"points_for"`
	PointsAgainst int       `json:"points_against"`
	CurrentStreak int       `json:"current_streak"`
	BestStreak    int       `json:"best_streak"`
	LongestRally  int       `json:"longest_rally"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewPlayerStats returns fresh stats for a player who has not played yet
func NewPlayerStats(id PlayerID, username string) *PlayerStats {
	return &PlayerStats{
		PlayerID: id,
		Username: username,
		Rating:   DefaultRating,
	}
}
