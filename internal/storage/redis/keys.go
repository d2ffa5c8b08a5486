package redis

import (
	"fmt"

	"github.com/mcoot/paddleduel/internal/model"
)

// Key prefix for all stored data
const keyPrefix = "paddle"

// profileKey returns the Redis key for a Profile
func profileKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:profile:%s", keyPrefix, id)
}

// usernameIndexKey returns the Redis key for the username -> player_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// statsKey returns the Redis key for PlayerStats
func statsKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:stats:%s", keyPrefix, id)
}

// leaderboardKey returns the Redis key for the rating ZSET
func leaderboardKey() string {
	return fmt.Sprintf("%s:leaderboard", keyPrefix)
}

// matchKey returns the Redis key for a MatchRecord
func matchKey(id string) string {
	return fmt.Sprintf("%s:match:%s", keyPrefix, id)
}

// playerMatchesKey returns the Redis key for the LIST of a player's match IDs, newest first
func playerMatchesKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:idx:player_matches:%s", keyPrefix, id)
}
