package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/paddleduel/internal/model"
	"github.com/mcoot/paddleduel/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Profile operations

func (s *Storage) EnsureProfile(ctx context.Context, candidate *model.Profile) (*model.Profile, error) {
	data, err := json.Marshal(candidate)
	if err != nil {
		return nil, err
	}

	// Write the candidate first so the index never points at a missing profile
	if err := s.client.Set(ctx, profileKey(candidate.ID), data, 0).Err(); err != nil {
		return nil, err
	}
	claimed, err := s.client.SetNX(ctx, usernameIndexKey(candidate.Username), string(candidate.ID), 0).Result()
	if err != nil {
		return nil, err
	}
	if claimed {
		p := *candidate
		return &p, nil
	}

	// Username already taken: drop the candidate and refresh the existing profile
	if err := s.client.Del(ctx, profileKey(candidate.ID)).Err(); err != nil {
		return nil, err
	}
	existing, err := s.GetProfileByUsername(ctx, candidate.Username)
	if err != nil {
		return nil, err
	}
	existing.LastSeenAt = candidate.LastSeenAt
	if err := s.saveProfile(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *Storage) GetProfileByUsername(ctx context.Context, username string) (*model.Profile, error) {
	id, err := s.client.Get(ctx, usernameIndexKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrProfileNotFound
		}
		return nil, err
	}

	data, err := s.client.Get(ctx, profileKey(model.PlayerID(id))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrProfileNotFound
		}
		return nil, err
	}

	var p model.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Storage) saveProfile(ctx context.Context, p *model.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, profileKey(p.ID), data, 0).Err()
}

// Stats operations

func (s *Storage) GetStats(ctx context.Context, playerID model.PlayerID) (*model.PlayerStats, error) {
	data, err := s.client.Get(ctx, statsKey(playerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrStatsNotFound
		}
		return nil, err
	}

	var st model.PlayerStats
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Storage) SaveStats(ctx context.Context, stats *model.PlayerStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}

	// Stats and leaderboard rank are written together
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, statsKey(stats.PlayerID), data, 0)
	pipe.ZAdd(ctx, leaderboardKey(), redis.Z{
		Score:  float64(stats.Rating),
		Member: string(stats.PlayerID),
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetLeaderboard(ctx context.Context, limit int) ([]*model.PlayerStats, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ids, err := s.client.ZRevRange(ctx, leaderboardKey(), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.PlayerStats{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = statsKey(model.PlayerID(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*model.PlayerStats, 0, len(values))
	for _, val := range values {
		raw, ok := val.(string)
		if !ok {
			continue
		}
		var st model.PlayerStats
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			continue
		}
		result = append(result, &st)
	}
	return result, nil
}

// Match history operations

func (s *Storage) SaveMatch(ctx context.Context, match *model.MatchRecord) error {
	data, err := json.Marshal(match)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, matchKey(match.ID), data, s.cfg.MatchTTL)
	for _, id := range []model.PlayerID{match.WinnerID, match.LoserID} {
		if id == "" {
			continue
		}
		key := playerMatchesKey(id)
		pipe.LPush(ctx, key, match.ID)
		if s.cfg.MatchHistoryLength > 0 {
			pipe.LTrim(ctx, key, 0, s.cfg.MatchHistoryLength-1)
		}
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetMatchesForPlayer(ctx context.Context, playerID model.PlayerID, limit int) ([]*model.MatchRecord, error) {
	if limit <= 0 {
		limit = storage.DefaultMatchHistoryLimit
	}

	ids, err := s.client.LRange(ctx, playerMatchesKey(playerID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.MatchRecord{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = matchKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*model.MatchRecord, 0, len(values))
	for _, val := range values {
		raw, ok := val.(string)
		if !ok {
			continue // Record may have expired
		}
		var m model.MatchRecord
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			continue
		}
		result = append(result, &m)
	}
	return result, nil
}
