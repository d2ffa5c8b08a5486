package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/paddleduel/internal/api"
	"github.com/mcoot/paddleduel/internal/api/response"
	"github.com/mcoot/paddleduel/internal/factory"
	"github.com/mcoot/paddleduel/internal/model"
	"github.com/mcoot/paddleduel/internal/services/session"
	"github.com/mcoot/paddleduel/internal/testutil"
)

type APISuite struct {
	suite.Suite
	app     *factory.TestApp
	handler http.Handler
	ctx     context.Context
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	s.app = factory.NewTestApp()
	s.ctx = context.Background()
	s.handler = api.NewRouter(api.RouterConfig{
		Logger:   testutil.NopLogger(),
		Storage:  s.app.Storage,
		Sessions: s.app.Session,
		Metrics:  s.app.Metrics,
	})
}

func (s *APISuite) get(path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func (s *APISuite) decode(rr *httptest.ResponseRecorder, v any) {
	s.Require().Equal("application/json", rr.Header().Get("Content-Type"))
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), v))
}

func (s *APISuite) send(conn model.ConnectionID, msgType, payload string) {
	var raw json.RawMessage
	if payload != "" {
		raw = json.RawMessage(payload)
	}
	_, err := s.app.Session.Dispatch(s.ctx, conn, msgType, raw)
	s.Require().NoError(err)
}

// playMatch registers both players and plays a match that winner wins 1-0
func (s *APISuite) playMatch(code, winner, loser string) {
	s.app.MockRandom.QueueString(code)
	s.send("w", session.MsgRegister, `{"username":"`+winner+`"}`)
	s.send("l", session.MsgRegister, `{"username":"`+loser+`"}`)
	s.send("w", session.MsgCreateRoom, "")
	s.send("l", session.MsgJoinRoom, `{"roomCode":"`+code+`"}`)
	s.send("w", session.MsgScoreUpdate, `{"scores":[1,0],"longestRally":7}`)
	s.send("w", session.MsgGameOver, "")
	s.send("w", session.MsgLeaveRoom, "")
	s.send("l", session.MsgLeaveRoom, "")
}

func (s *APISuite) TestHealthCheck() {
	rr := s.get("/api/v1/health")
	s.Equal(http.StatusOK, rr.Code)

	var body response.Health
	s.decode(rr, &body)
	s.Equal("ok", body.Status)
}

func (s *APISuite) TestStatus() {
	s.app.MockRandom.QueueString("WAIT01")
	s.send("c1", session.MsgRegister, `{"username":"alice"}`)
	s.send("c2", session.MsgRegister, `{"username":"bob"}`)
	s.send("c1", session.MsgCreateRoom, "")
	s.send("c2", session.MsgFindMatch, `{"variant":"chaos"}`)

	rr := s.get("/api/v1/status")
	s.Equal(http.StatusOK, rr.Code)

	var body response.Status
	s.decode(rr, &body)
	s.Equal(1, body.Rooms["waiting"])
	s.Equal(0, body.Rooms["playing"])
	s.Equal(1, body.QueueLength)
	s.Equal(1, body.QueueByVariant["chaos"])
	s.Equal(2, body.RegisteredPlayers)
}

func (s *APISuite) TestLeaderboardRanksByRating() {
	s.playMatch("GAME01", "alice", "bob")
	s.playMatch("GAME02", "alice", "carol")

	rr := s.get("/api/v1/leaderboard")
	s.Equal(http.StatusOK, rr.Code)

	var body response.Leaderboard
	s.decode(rr, &body)
	s.Require().Len(body.Players, 3)
	s.Equal("alice", body.Players[0].Username)
	s.Equal(1, body.Players[0].Rank)
	s.Equal(2, body.Players[0].Wins)

	rr = s.get("/api/v1/leaderboard?limit=1")
	s.decode(rr, &body)
	s.Len(body.Players, 1)
}

func (s *APISuite) TestLeaderboardRejectsBadLimit() {
	for _, limit := range []string{"0", "-3", "ten"} {
		rr := s.get("/api/v1/leaderboard?limit=" + limit)
		s.Equal(http.StatusBadRequest, rr.Code, limit)
		s.Contains(rr.Body.String(), "INVALID_REQUEST")
	}
}

func (s *APISuite) TestPlayerStats() {
	s.playMatch("GAME01", "alice", "bob")

	rr := s.get("/api/v1/players/bob/stats")
	s.Equal(http.StatusOK, rr.Code)

	var body response.PlayerStats
	s.decode(rr, &body)
	s.Equal("bob", body.Username)
	s.Equal(984, body.Rating)
	s.Equal(1, body.Losses)
	s.Equal(0.0, body.WinRate)
	s.Equal(1, body.PointsAgainst)
}

func (s *APISuite) TestPlayerStatsErrors() {
	rr := s.get("/api/v1/players/nobody/stats")
	s.Equal(http.StatusNotFound, rr.Code)
	s.Contains(rr.Body.String(), "PLAYER_NOT_FOUND")

	// Registered but never finished a match
	s.send("c1", session.MsgRegister, `{"username":"newbie"}`)
	rr = s.get("/api/v1/players/newbie/stats")
	s.Equal(http.StatusNotFound, rr.Code)
	s.Contains(rr.Body.String(), "STATS_NOT_FOUND")
}

func (s *APISuite) TestPlayerMatchesFromEachSide() {
	s.playMatch("GAME01", "alice", "bob")

	var winner response.MatchHistory
	s.decode(s.get("/api/v1/players/alice/matches"), &winner)
	s.Require().Len(winner.Matches, 1)
	s.True(winner.Matches[0].Won)
	s.Equal("bob", winner.Matches[0].Opponent)
	s.Equal(16, winner.Matches[0].RatingChange)
	s.Equal(7, winner.Matches[0].LongestRally)

	var loser response.MatchHistory
	s.decode(s.get("/api/v1/players/bob/matches"), &loser)
	s.Require().Len(loser.Matches, 1)
	s.False(loser.Matches[0].Won)
	s.Equal("alice", loser.Matches[0].Opponent)
	s.Equal(-16, loser.Matches[0].RatingChange)
}

func (s *APISuite) TestMetricsEndpoint() {
	s.send("c1", session.MsgRegister, `{"username":"alice"}`)

	rr := s.get("/metrics")
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "paddleduel_registrations_total 1")
	s.Contains(rr.Body.String(), `paddleduel_messages_total{type="register"} 1`)
}

func (s *APISuite) TestUnknownRouteIsJSON() {
	rr := s.get("/api/v1/nope")
	s.Equal(http.StatusNotFound, rr.Code)
	s.True(strings.Contains(rr.Body.String(), `"code":"NOT_FOUND"`))
}

func (s *APISuite) TestWebSocketRouteIsOptional() {
	rr := s.get("/ws")
	s.Equal(http.StatusNotFound, rr.Code)
}
