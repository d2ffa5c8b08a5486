// Package storagetest holds behaviour tests shared by every storage backend.
package storagetest

import (
	"context"
	"fmt"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/paddleduel/internal/model"
	"github.com/mcoot/paddleduel/internal/storage"
)

// Suite runs the storage contract against Store. Backends embed it and
// assign Store in their SetupTest before calling Suite.SetupTest.
type Suite struct {
	suite.Suite
	Store storage.Storage
	Ctx   context.Context
	Now   time.Time
}

// SetupTest prepares the context and reference time
func (s *Suite) SetupTest() {
	s.Ctx = context.Background()
	s.Now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *Suite) profile(id, username string) *model.Profile {
	return &model.Profile{
		ID:          model.PlayerID(id),
		Username:    username,
		DisplayName: username,
		CreatedAt:   s.Now,
		LastSeenAt:  s.Now,
	}
}

// Profile tests

func (s *Suite) TestEnsureProfileCreates() {
	p, err := s.Store.EnsureProfile(s.Ctx, s.profile("p-1", "alice"))
	s.Require().NoError(err)
	s.Equal(model.PlayerID("p-1"), p.ID)

	got, err := s.Store.GetProfileByUsername(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("p-1"), got.ID)
	s.Equal("alice", got.DisplayName)
}

func (s *Suite) TestEnsureProfileIsIdempotentByUsername() {
	_, err := s.Store.EnsureProfile(s.Ctx, s.profile("p-1", "alice"))
	s.Require().NoError(err)

	later := s.profile("p-2", "alice")
	later.LastSeenAt = s.Now.Add(time.Hour)
	p, err := s.Store.EnsureProfile(s.Ctx, later)
	s.Require().NoError(err)

	s.Equal(model.PlayerID("p-1"), p.ID)
	s.True(p.LastSeenAt.Equal(s.Now.Add(time.Hour)))

	got, err := s.Store.GetProfileByUsername(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("p-1"), got.ID)
}

func (s *Suite) TestGetProfileNotFound() {
	_, err := s.Store.GetProfileByUsername(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrProfileNotFound)
}

// Stats tests

func (s *Suite) TestSaveAndGetStats() {
	_, err := s.Store.EnsureProfile(s.Ctx, s.profile("p-1", "alice"))
	s.Require().NoError(err)

	stats := model.NewPlayerStats("p-1", "alice")
	stats.Rating = 1016
	stats.GamesPlayed = 1
	stats.Wins = 1
	stats.PointsFor = 11
	stats.PointsAgainst = 4
	stats.CurrentStreak = 1
	stats.BestStreak = 1
	stats.LongestRally = 23
	stats.UpdatedAt = s.Now

	s.Require().NoError(s.Store.SaveStats(s.Ctx, stats))

	got, err := s.Store.GetStats(s.Ctx, "p-1")
	s.Require().NoError(err)
	s.Equal(1016, got.Rating)
	s.Equal(1, got.Wins)
	s.Equal(11, got.PointsFor)
	s.Equal(23, got.LongestRally)
	s.Equal("alice", got.Username)
}

func (s *Suite) TestGetStatsNotFound() {
	_, err := s.Store.GetStats(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrStatsNotFound)
}

func (s *Suite) TestLeaderboardOrdersByRating() {
	ratings := map[string]int{"alice": 1100, "bob": 950, "carol": 1200}
	i := 0
	for name, rating := range ratings {
		id := fmt.Sprintf("p-%d", i)
		i++
		_, err := s.Store.EnsureProfile(s.Ctx, s.profile(id, name))
		s.Require().NoError(err)
		st := model.NewPlayerStats(model.PlayerID(id), name)
		st.Rating = rating
		st.UpdatedAt = s.Now
		s.Require().NoError(s.Store.SaveStats(s.Ctx, st))
	}

	board, err := s.Store.GetLeaderboard(s.Ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(board, 2)
	s.Equal("carol", board[0].Username)
	s.Equal("alice", board[1].Username)
}

func (s *Suite) TestLeaderboardReflectsUpdatedRating() {
	_, err := s.Store.EnsureProfile(s.Ctx, s.profile("p-1", "alice"))
	s.Require().NoError(err)
	_, err = s.Store.EnsureProfile(s.Ctx, s.profile("p-2", "bob"))
	s.Require().NoError(err)

	a := model.NewPlayerStats("p-1", "alice")
	b := model.NewPlayerStats("p-2", "bob")
	b.Rating = 1010
	s.Require().NoError(s.Store.SaveStats(s.Ctx, a))
	s.Require().NoError(s.Store.SaveStats(s.Ctx, b))

	a.Rating = 1050
	s.Require().NoError(s.Store.SaveStats(s.Ctx, a))

	board, err := s.Store.GetLeaderboard(s.Ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(board, 2)
	s.Equal("alice", board[0].Username)
	s.Equal(1050, board[0].Rating)
}

// Match history tests

func (s *Suite) TestMatchesForPlayerNewestFirst() {
	_, err := s.Store.EnsureProfile(s.Ctx, s.profile("p-1", "alice"))
	s.Require().NoError(err)
	_, err = s.Store.EnsureProfile(s.Ctx, s.profile("p-2", "bob"))
	s.Require().NoError(err)
	_, err = s.Store.EnsureProfile(s.Ctx, s.profile("p-3", "carol"))
	s.Require().NoError(err)

	records := []*model.MatchRecord{
		{ID: "m-1", RoomCode: "AAAAAA", Variant: model.VariantClassic, WinnerID: "p-1", LoserID: "p-2",
			WinnerUsername: "alice", LoserUsername: "bob", Scores: [2]int{5, 3}, RatingChange: 16,
			Duration: time.Minute, CompletedAt: s.Now},
		{ID: "m-2", RoomCode: "BBBBBB", Variant: model.VariantChaos, WinnerID: "p-2", LoserID: "p-3",
			WinnerUsername: "bob", LoserUsername: "carol", Scores: [2]int{2, 5}, WinnerIndex: 1, RatingChange: 15,
			Duration: time.Minute, CompletedAt: s.Now.Add(time.Minute)},
		{ID: "m-3", RoomCode: "CCCCCC", Variant: model.VariantSpeedrun, WinnerID: "p-3", LoserID: "p-1",
			WinnerUsername: "carol", LoserUsername: "alice", Scores: [2]int{7, 6}, RatingChange: 17,
			Duration: time.Minute, CompletedAt: s.Now.Add(2 * time.Minute)},
	}
	for _, r := range records {
		s.Require().NoError(s.Store.SaveMatch(s.Ctx, r))
	}

	matches, err := s.Store.GetMatchesForPlayer(s.Ctx, "p-1", 10)
	s.Require().NoError(err)
	s.Require().Len(matches, 2)
	s.Equal("m-3", matches[0].ID)
	s.Equal("m-1", matches[1].ID)
	s.Equal([2]int{5, 3}, matches[1].Scores)

	limited, err := s.Store.GetMatchesForPlayer(s.Ctx, "p-2", 1)
	s.Require().NoError(err)
	s.Require().Len(limited, 1)
	s.Equal("m-2", limited[0].ID)
	s.Equal(1, limited[0].WinnerIndex)
}

func (s *Suite) TestMatchesForUnknownPlayerIsEmpty() {
	matches, err := s.Store.GetMatchesForPlayer(s.Ctx, "nobody", 5)
	s.Require().NoError(err)
	s.Empty(matches)
}
