package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcoot/paddleduel/internal/model"
	"github.com/mcoot/paddleduel/internal/storage"
)

// Storage is a PostgreSQL-backed implementation of the storage interface
type Storage struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL, optionally migrating the schema first
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Storage, error) {
	if cfg.AutoMigrate {
		if err := Migrate(cfg.URL, logger); err != nil {
			return nil, err
		}
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return NewWithPool(pool), nil
}

// NewWithPool creates a storage over an existing pool (for testing)
func NewWithPool(pool *pgxpool.Pool) *Storage {
	return &Storage{pool: pool}
}

// Close releases all pooled connections
func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

const profileColumns = `id, username, display_name, created_at, last_seen_at`

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var p model.Profile
	if err := row.Scan(&p.ID, &p.Username, &p.DisplayName, &p.CreatedAt, &p.LastSeenAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// Profile operations

func (s *Storage) EnsureProfile(ctx context.Context, candidate *model.Profile) (*model.Profile, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (username) DO UPDATE SET last_seen_at = EXCLUDED.last_seen_at
		RETURNING `+profileColumns,
		candidate.ID, candidate.Username, candidate.DisplayName, candidate.CreatedAt, candidate.LastSeenAt)
	return scanProfile(row)
}

func (s *Storage) GetProfileByUsername(ctx context.Context, username string) (*model.Profile, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE username = $1`, username)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrProfileNotFound
		}
		return nil, err
	}
	return p, nil
}

// Stats operations

const statsColumns = `player_id, username, rating, games_played, wins, losses, points_for,
	points_against, current_streak, best_streak, longest_rally, updated_at`

func scanStats(row pgx.Row) (*model.PlayerStats, error) {
	var st model.PlayerStats
	err := row.Scan(&st.PlayerID, &st.Username, &st.Rating, &st.GamesPlayed, &st.Wins, &st.Losses,
		&st.PointsFor, &st.PointsAgainst, &st.CurrentStreak, &st.BestStreak, &st.LongestRally, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Storage) GetStats(ctx context.Context, playerID model.PlayerID) (*model.PlayerStats, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+statsColumns+` FROM player_stats WHERE player_id = $1`, playerID)
	st, err := scanStats(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrStatsNotFound
		}
		return nil, err
	}
	return st, nil
}

func (s *Storage) SaveStats(ctx context.Context, st *model.PlayerStats) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO player_stats (`+statsColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (player_id) DO UPDATE SET
			username = EXCLUDED.username,
			rating = EXCLUDED.rating,
			games_played = EXCLUDED.games_played,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			points_for = EXCLUDED.points_for,
			points_against = EXCLUDED.points_against,
			current_streak = EXCLUDED.current_streak,
			best_streak = EXCLUDED.best_streak,
			longest_rally = EXCLUDED.longest_rally,
			updated_at = EXCLUDED.updated_at`,
		st.PlayerID, st.Username, st.Rating, st.GamesPlayed, st.Wins, st.Losses,
		st.PointsFor, st.PointsAgainst, st.CurrentStreak, st.BestStreak, st.LongestRally, st.UpdatedAt)
	return err
}

func (s *Storage) GetLeaderboard(ctx context.Context, limit int) ([]*model.PlayerStats, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+statsColumns+` FROM player_stats ORDER BY rating DESC, username LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []*model.PlayerStats{}
	for rows.Next() {
		st, err := scanStats(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, st)
	}
	return result, rows.Err()
}

// Match history operations

func (s *Storage) SaveMatch(ctx context.Context, m *model.MatchRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO matches (id, room_code, variant, winner_id, loser_id, winner_username, loser_username,
			score_0, score_1, winner_index, rating_change, longest_rally, duration_ms, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		m.ID, m.RoomCode, m.Variant, m.WinnerID, m.LoserID, m.WinnerUsername, m.LoserUsername,
		m.Scores[0], m.Scores[1], m.WinnerIndex, m.RatingChange, m.LongestRally,
		m.Duration.Milliseconds(), m.CompletedAt)
	return err
}

func (s *Storage) GetMatchesForPlayer(ctx context.Context, playerID model.PlayerID, limit int) ([]*model.MatchRecord, error) {
	if limit <= 0 {
		limit = storage.DefaultMatchHistoryLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_code, variant, winner_id, loser_id, winner_username, loser_username,
			score_0, score_1, winner_index, rating_change, longest_rally, duration_ms, completed_at
		FROM matches
		WHERE winner_id = $1 OR loser_id = $1
		ORDER BY completed_at DESC
		LIMIT $2`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []*model.MatchRecord{}
	for rows.Next() {
		var m model.MatchRecord
		var durationMS int64
		err := rows.Scan(&m.ID, &m.RoomCode, &m.Variant, &m.WinnerID, &m.LoserID, &m.WinnerUsername,
			&m.LoserUsername, &m.Scores[0], &m.Scores[1], &m.WinnerIndex, &m.RatingChange,
			&m.LongestRally, &durationMS, &m.CompletedAt)
		if err != nil {
			return nil, err
		}
		m.Duration = time.Duration(durationMS) * time.Millisecond
		result = append(result, &m)
	}
	return result, rows.Err()
}
