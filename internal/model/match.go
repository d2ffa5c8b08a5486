package model

import "time"

// MatchmakingEntry is a player waiting in the matchmaking queue
type MatchmakingEntry struct {
	Player     Player
	Variant    Variant
	EnqueuedAt time.Time
}

// MatchRecord is the persisted summary of a completed match
type MatchRecord struct {
	ID             string        `json:"id"`
	RoomCode       RoomCode      `json:"room_code"`
	Variant        Variant       `json:"variant"`
	WinnerID       PlayerID      `json:"winner_id"`
	LoserID        PlayerID      `json:"loser_id"`
	WinnerUsername string        `json:"winner_username"`
	LoserUsername  string        `json:"loser_username"`
	Scores         [2]int        `json:"scores"`
	WinnerIndex    int           `json:"winner_index"`
	RatingChange   int           `json:"rating_change"`
	LongestRally   int           `json:"longest_rally"`
	Duration       time.Duration `json:"duration"`
	CompletedAt    time.Time     `json:"completed_at"`
}
