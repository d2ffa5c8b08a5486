package rating

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/paddleduel/internal/dependencies/mocks"
	"github.com/mcoot/paddleduel/internal/metrics"
	"github.com/mcoot/paddleduel/internal/model"
	"github.com/mcoot/paddleduel/internal/storage/memory"
	logtest "github.com/mcoot/paddleduel/internal/testutil"
)

var errStoreDown = errors.New("store down")

// failingStorage rejects stats writes
type failingStorage struct {
	*memory.Storage
}

func (f failingStorage) SaveStats(context.Context, *model.PlayerStats) error {
	return errStoreDown
}

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	metrics *metrics.Metrics
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.metrics = metrics.New()
	s.service = NewService(s.storage, s.clock, s.metrics, logtest.NopLogger())
	s.ctx = context.Background()
}

func finishedRoom(scores [2]int) *model.Room {
	return &model.Room{
		Code:    "ROOM01",
		Variant: model.VariantClassic,
		State:   model.RoomStateFinished,
		Players: []model.RoomMember{
			{Player: model.Player{ConnectionID: "c1", PlayerID: "p-alice", Username: "alice"}, Connected: true},
			{Player: model.Player{ConnectionID: "c2", PlayerID: "p-bob", Username: "bob"}, Connected: true},
		},
		Scores:       scores,
		LongestRally: 14,
	}
}

func (s *ServiceSuite) TestFirstMatchUsesDefaultRatings() {
	record, err := s.service.RecordMatch(s.ctx, Result{
		Room:        finishedRoom([2]int{11, 7}),
		WinnerIndex: 0,
		Duration:    90 * time.Second,
	})
	s.Require().NoError(err)
	s.Require().NotNil(record)
	s.Equal(16, record.RatingChange)
	s.Equal(model.PlayerID("p-alice"), record.WinnerID)
	s.Equal(model.PlayerID("p-bob"), record.LoserID)
	s.Equal(90*time.Second, record.Duration)

	winner, err := s.storage.GetStats(s.ctx, "p-alice")
	s.Require().NoError(err)
	s.Equal(1016, winner.Rating)
	s.Equal(1, winner.GamesPlayed)
	s.Equal(1, winner.Wins)
	s.Equal(11, winner.PointsFor)
	s.Equal(7, winner.PointsAgainst)
	s.Equal(1, winner.CurrentStreak)
	s.Equal(1, winner.BestStreak)
	s.Equal(14, winner.LongestRally)

	loser, err := s.storage.GetStats(s.ctx, "p-bob")
	s.Require().NoError(err)
	s.Equal(984, loser.Rating)
	s.Equal(1, loser.Losses)
	s.Equal(7, loser.PointsFor)
	s.Equal(11, loser.PointsAgainst)
	s.Equal(0, loser.CurrentStreak)

	matches, err := s.storage.GetMatchesForPlayer(s.ctx, "p-bob", 10)
	s.Require().NoError(err)
	s.Require().Len(matches, 1)
	s.Equal(record.ID, matches[0].ID)
}

func (s *ServiceSuite) TestStreaksAccumulateAndReset() {
	for i := 0; i < 3; i++ {
		_, err := s.service.RecordMatch(s.ctx, Result{Room: finishedRoom([2]int{5, 3}), WinnerIndex: 0})
		s.Require().NoError(err)
	}
	_, err := s.service.RecordMatch(s.ctx, Result{Room: finishedRoom([2]int{2, 5}), WinnerIndex: 1})
	s.Require().NoError(err)

	alice, err := s.storage.GetStats(s.ctx, "p-alice")
	s.Require().NoError(err)
	s.Equal(4, alice.GamesPlayed)
	s.Equal(3, alice.Wins)
	s.Equal(1, alice.Losses)
	s.Equal(0, alice.CurrentStreak)
	s.Equal(3, alice.BestStreak)

	bob, err := s.storage.GetStats(s.ctx, "p-bob")
	s.Require().NoError(err)
	s.Equal(1, bob.CurrentStreak)
}

func (s *ServiceSuite) TestLoserRatingIsFloored() {
	s.Require().NoError(s.storage.SaveStats(s.ctx, &model.PlayerStats{PlayerID: "p-bob", Username: "bob", Rating: 105}))
	s.Require().NoError(s.storage.SaveStats(s.ctx, &model.PlayerStats{PlayerID: "p-alice", Username: "alice", Rating: 105}))

	_, err := s.service.RecordMatch(s.ctx, Result{Room: finishedRoom([2]int{5, 0}), WinnerIndex: 0})
	s.Require().NoError(err)

	bob, err := s.storage.GetStats(s.ctx, "p-bob")
	s.Require().NoError(err)
	s.Equal(model.MinRating, bob.Rating)
}

func (s *ServiceSuite) TestGuestMatchIsSkipped() {
	room := finishedRoom([2]int{5, 0})
	room.Players[1].Player.PlayerID = ""

	record, err := s.service.RecordMatch(s.ctx, Result{Room: room, WinnerIndex: 0})
	s.Require().NoError(err)
	s.Nil(record)

	_, err = s.storage.GetStats(s.ctx, "p-alice")
	s.ErrorIs(err, model.ErrStatsNotFound)
}

func (s *ServiceSuite) TestMatchAgainstSelfIsSkipped() {
	room := finishedRoom([2]int{5, 0})
	room.Players[1].Player.PlayerID = "p-alice"
	room.Players[1].Player.Username = "alice"

	record, err := s.service.RecordMatch(s.ctx, Result{Room: room, WinnerIndex: 0})
	s.Require().NoError(err)
	s.Nil(record)

	_, err = s.storage.GetStats(s.ctx, "p-alice")
	s.ErrorIs(err, model.ErrStatsNotFound)
}

func (s *ServiceSuite) TestInvalidResult() {
	_, err := s.service.RecordMatch(s.ctx, Result{Room: finishedRoom([2]int{5, 0}), WinnerIndex: 2})
	s.ErrorIs(err, model.ErrValidation)

	room := finishedRoom([2]int{5, 0})
	room.Players = room.Players[:1]
	_, err = s.service.RecordMatch(s.ctx, Result{Room: room, WinnerIndex: 0})
	s.ErrorIs(err, model.ErrValidation)
}

func (s *ServiceSuite) TestPersistenceFailureIsCounted() {
	s.service = NewService(failingStorage{s.storage}, s.clock, s.metrics, logtest.NopLogger())

	_, err := s.service.RecordMatch(s.ctx, Result{Room: finishedRoom([2]int{5, 0}), WinnerIndex: 0})
	s.ErrorIs(err, errStoreDown)

	expected := `
# HELP paddleduel_rating_update_failures_total Rating updates that failed to persist.
# TYPE paddleduel_rating_update_failures_total counter
paddleduel_rating_update_failures_total 1
`
	s.NoError(testutil.GatherAndCompare(s.metrics.Registry(), strings.NewReader(expected),
		"paddleduel_rating_update_failures_total"))
}
