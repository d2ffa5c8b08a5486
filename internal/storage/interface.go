package storage

import (
	"context"

	"github.com/mcoot/paddleduel/internal/model"
)

// DefaultMatchHistoryLimit caps match lists when no limit is requested
const DefaultMatchHistoryLimit = 20

// Storage defines the interface for durable player data.
// Rooms and the matchmaking queue are in-memory only and never stored here.
type Storage interface {
	// Profile operations

	// EnsureProfile returns the profile stored for candidate.Username, creating it
	// from candidate if none exists. The stored LastSeenAt is refreshed either way.
	EnsureProfile(ctx context.Context, candidate *model.Profile) (*model.Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (*model.Profile, error)

	// Stats operations
	GetStats(ctx context.Context, playerID model.PlayerID) (*model.PlayerStats, error)
	SaveStats(ctx context.Context, stats *model.PlayerStats) error
	GetLeaderboard(ctx context.Context, limit int) ([]*model.PlayerStats, error)

	// Match history operations
	SaveMatch(ctx context.Context, match *model.MatchRecord) error
	GetMatchesForPlayer(ctx context.Context, playerID model.PlayerID, limit int) ([]*model.MatchRecord, error)
}
