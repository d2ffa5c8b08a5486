package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// MatchTTL bounds how long individual match records are kept
	MatchTTL time.Duration
	// MatchHistoryLength caps the per-player match list
	MatchHistoryLength int64
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:                "redis://localhost:6379",
		PoolSize:           10,
		MinIdleConns:       2,
		MatchTTL:           30 * 24 * time.Hour,
		MatchHistoryLength: 100,
	}
}
