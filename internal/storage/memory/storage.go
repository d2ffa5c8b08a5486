package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mcoot/paddleduel/internal/model"
	"github.com/mcoot/paddleduel/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	profiles      map[model.PlayerID]*model.Profile
	usernameIndex map[string]model.PlayerID
	stats         map[model.PlayerID]*model.PlayerStats
	matches       []*model.MatchRecord // oldest first
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		profiles:      make(map[model.PlayerID]*model.Profile),
		usernameIndex: make(map[string]model.PlayerID),
		stats:         make(map[model.PlayerID]*model.PlayerStats),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Profile operations

func (s *Storage) EnsureProfile(ctx context.Context, candidate *model.Profile) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.usernameIndex[candidate.Username]; ok {
		existing := s.profiles[id]
		existing.LastSeenAt = candidate.LastSeenAt
		p := *existing
		return &p, nil
	}

	p := *candidate
	s.profiles[p.ID] = &p
	s.usernameIndex[p.Username] = p.ID
	out := p
	return &out, nil
}

func (s *Storage) GetProfileByUsername(ctx context.Context, username string) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usernameIndex[username]
	if !ok {
		return nil, model.ErrProfileNotFound
	}
	p := *s.profiles[id]
	return &p, nil
}

// Stats operations

func (s *Storage) GetStats(ctx context.Context, playerID model.PlayerID) (*model.PlayerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stats[playerID]
	if !ok {
		return nil, model.ErrStatsNotFound
	}
	out := *st
	return &out, nil
}

func (s *Storage) SaveStats(ctx context.Context, stats *model.PlayerStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := *stats
	s.stats[st.PlayerID] = &st
	return nil
}

func (s *Storage) GetLeaderboard(ctx context.Context, limit int) ([]*model.PlayerStats, error) {
	s.mu.RLock()
	all := make([]*model.PlayerStats, 0, len(s.stats))
	for _, st := range s.stats {
		out := *st
		all = append(all, &out)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Rating != all[j].Rating {
			return all[i].Rating > all[j].Rating
		}
		return all[i].Username < all[j].Username
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Match history operations

func (s *Storage) SaveMatch(ctx context.Context, match *model.MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := *match
	s.matches = append(s.matches, &m)
	return nil
}

func (s *Storage) GetMatchesForPlayer(ctx context.Context, playerID model.PlayerID, limit int) ([]*model.MatchRecord, error) {
	if limit <= 0 {
		limit = storage.DefaultMatchHistoryLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []*model.MatchRecord{}
	for i := len(s.matches) - 1; i >= 0 && len(result) < limit; i-- {
		m := s.matches[i]
		if m.WinnerID == playerID || m.LoserID == playerID {
			out := *m
			result = append(result, &out)
		}
	}
	return result, nil
}
