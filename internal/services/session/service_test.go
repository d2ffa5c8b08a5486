package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/paddleduel/internal/dependencies/mocks"
	"github.com/mcoot/paddleduel/internal/dependencies/random"
	"github.com/mcoot/paddleduel/internal/model"
	"github.com/mcoot/paddleduel/internal/services/matchmaking"
	"github.com/mcoot/paddleduel/internal/services/rating"
	"github.com/mcoot/paddleduel/internal/services/registry"
	"github.com/mcoot/paddleduel/internal/services/relay"
	"github.com/mcoot/paddleduel/internal/services/room"
	"github.com/mcoot/paddleduel/internal/services/supervisor"
	"github.com/mcoot/paddleduel/internal/storage/memory"
	"github.com/mcoot/paddleduel/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage  *memory.Storage
	clock    *mocks.MockClock
	random   *mocks.MockRandom
	notifier *mocks.MockNotifier
	queue    *matchmaking.Queue
	rooms    *room.Manager
	service  *Service
	ctx      context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom().WithFallback(random.New())
	s.notifier = mocks.NewMockNotifier()
	s.ctx = context.Background()

	s.wire(s.random)
}

func (s *ServiceSuite) wire(rnd random.Random) {
	logger := testutil.NopLogger()
	reg := registry.New(s.storage, s.clock, registry.DefaultConfig(), nil, logger)
	s.queue = matchmaking.New(s.clock)
	s.rooms = room.NewManager(s.clock, rnd, nil, logger)
	ratings := rating.NewService(s.storage, s.clock, nil, logger)
	engine := relay.NewEngine(s.rooms, s.notifier, ratings, s.clock, nil, logger)
	sup := supervisor.New(s.queue, s.rooms, reg, s.notifier, nil, supervisor.DefaultGracePeriod, logger)
	s.service = NewService(reg, s.queue, s.rooms, engine, sup, s.notifier, nil, logger)
}

func (s *ServiceSuite) register(conn model.ConnectionID, username string) {
	_, err := s.service.Register(s.ctx, conn, username)
	s.Require().NoError(err)
}

func (s *ServiceSuite) dispatch(conn model.ConnectionID, msgType string, payload string) (any, error) {
	var raw json.RawMessage
	if payload != "" {
		raw = json.RawMessage(payload)
	}
	return s.service.Dispatch(s.ctx, conn, msgType, raw)
}

func (s *ServiceSuite) startRoomMatch() model.RoomCode {
	s.register("c1", "alice")
	s.register("c2", "bob")
	s.random.QueueString("ROOM01")
	created, err := s.service.CreateRoom("c1", "")
	s.Require().NoError(err)
	_, err = s.service.JoinRoom("c2", string(created.RoomCode))
	s.Require().NoError(err)
	s.notifier.Reset()
	return created.RoomCode
}

// Registration tests

func (s *ServiceSuite) TestRegisterViaDispatch() {
	result, err := s.dispatch("c1", MsgRegister, `{"username":"  alice "}`)
	s.Require().NoError(err)

	reg := result.(*RegisterResult)
	s.Equal("alice", reg.Username)
	s.NotEmpty(reg.PlayerID)
}

func (s *ServiceSuite) TestRegisterRejectsNonStringUsername() {
	_, err := s.dispatch("c1", MsgRegister, `{"username":42}`)
	s.ErrorIs(err, model.ErrValidation)
}

func (s *ServiceSuite) TestActionsRequireRegistration() {
	_, err := s.service.CreateRoom("c1", "")
	s.ErrorIs(err, model.ErrNotRegistered)
	_, err = s.service.JoinRoom("c1", "ROOM01")
	s.ErrorIs(err, model.ErrNotRegistered)
	_, err = s.service.FindMatch("c1", "")
	s.ErrorIs(err, model.ErrNotRegistered)
}

func (s *ServiceSuite) TestUnknownAndMalformedMessages() {
	_, err := s.dispatch("c1", "launch-missiles", `{}`)
	s.ErrorIs(err, model.ErrValidation)

	_, err = s.dispatch("c1", MsgJoinRoom, `{"roomCode": 7}`)
	s.ErrorIs(err, model.ErrValidation)
}

// Room tests

func (s *ServiceSuite) TestCreateAndJoinRoomStartsMatch() {
	s.register("c1", "alice")
	s.register("c2", "bob")

	s.random.QueueString("ROOM01")
	created, err := s.dispatch("c1", MsgCreateRoom, `{"variant":"chaos"}`)
	s.Require().NoError(err)
	s.Equal(&RoomResult{RoomCode: "ROOM01", PlayerIndex: 0, Variant: model.VariantChaos}, created)

	joined, err := s.dispatch("c2", MsgJoinRoom, `{"roomCode":"room01"}`)
	s.Require().NoError(err)
	s.Equal(&RoomResult{RoomCode: "ROOM01", PlayerIndex: 1, Variant: model.VariantChaos}, joined)

	starts := s.notifier.OfType(model.EventGameStart)
	s.Require().Len(starts, 2)
	for _, sent := range starts {
		payload := sent.Event.Payload.(model.GameStartPayload)
		s.Equal(model.VariantChaos, payload.Variant)
		s.False(payload.IsRematch)
	}
}

func (s *ServiceSuite) TestCreateRoomRejectsUnknownVariant() {
	s.register("c1", "alice")
	_, err := s.service.CreateRoom("c1", "hyperspeed")
	s.ErrorIs(err, model.ErrValidation)
}

func (s *ServiceSuite) TestJoinRoomAcceptsBareCode() {
	s.register("c1", "alice")
	s.register("c2", "bob")
	s.random.QueueString("ROOM01")
	_, err := s.service.CreateRoom("c1", "")
	s.Require().NoError(err)

	result, err := s.dispatch("c2", MsgJoinRoom, `" room01 "`)
	s.Require().NoError(err)
	s.Equal(model.RoomCode("ROOM01"), result.(*RoomResult).RoomCode)
	s.Equal(1, result.(*RoomResult).PlayerIndex)
}

func (s *ServiceSuite) TestThirdJoinIsRoomFull() {
	code := s.startRoomMatch()
	s.register("c3", "carol")

	_, err := s.service.JoinRoom("c3", string(code))
	s.ErrorIs(err, model.ErrRoomFull)
}

func (s *ServiceSuite) TestCreateRoomCancelsQueueEntry() {
	s.register("c1", "alice")
	_, err := s.service.FindMatch("c1", "")
	s.Require().NoError(err)

	_, err = s.service.CreateRoom("c1", "")
	s.Require().NoError(err)
	s.Equal(0, s.queue.Len())
}

func (s *ServiceSuite) TestLeaveRoomNotifiesOpponent() {
	s.startRoomMatch()

	result, err := s.dispatch("c2", MsgLeaveRoom, "")
	s.Require().NoError(err)
	s.Equal(&LeaveResult{RoomCode: "ROOM01"}, result)

	events := s.notifier.EventsFor("c1")
	s.Require().Len(events, 1)
	s.Equal(model.EventOpponentLeft, events[0].Type)
	s.Equal(model.PlayerIndexPayload{PlayerIndex: 1}, events[0].Payload)
}

// Matchmaking tests

func (s *ServiceSuite) TestTwoFindMatchRequestsPair() {
	s.register("c1", "alice")
	s.register("c2", "bob")

	first, err := s.dispatch("c1", MsgFindMatch, `{}`)
	s.Require().NoError(err)
	s.Equal(&FindMatchResult{Matched: false, Position: 1}, first)

	second, err := s.dispatch("c2", MsgFindMatch, `{"variant":"classic"}`)
	s.Require().NoError(err)
	res := second.(*FindMatchResult)
	s.True(res.Matched)
	s.Equal(1, res.PlayerIndex)
	s.NotEmpty(res.RoomCode)
	s.Equal(0, s.queue.Len())

	r, err := s.rooms.Get(res.RoomCode)
	s.Require().NoError(err)
	s.Equal(model.RoomStatePlaying, r.State)
	s.Equal("alice", r.Players[0].Player.Username)
	s.Equal("bob", r.Players[1].Player.Username)

	s.Len(s.notifier.EventsFor("c1"), 1)
	s.Len(s.notifier.EventsFor("c2"), 1)
}

// gatedRandom blocks room code generation until released
type gatedRandom struct {
	random.Random
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRandom) String(length int, alphabet string) string {
	g.entered <- struct{}{}
	<-g.release
	return "PAIR01"
}

func (s *ServiceSuite) TestDisconnectDuringPairingKeepsSeatForGrace() {
	gate := &gatedRandom{Random: random.New(), entered: make(chan struct{}), release: make(chan struct{})}
	s.wire(gate)
	s.register("c1", "alice")
	s.register("c2", "bob")
	_, err := s.service.FindMatch("c1", "")
	s.Require().NoError(err)

	matched := make(chan *FindMatchResult, 1)
	go func() {
		res, _ := s.service.FindMatch("c2", "")
		matched <- res
	}()
	<-gate.entered

	// alice drops while her queue entry is being seated
	disconnected := make(chan struct{})
	go func() {
		s.service.Disconnect("c1")
		close(disconnected)
	}()
	select {
	case <-disconnected:
		s.Fail("disconnect completed while pairing was in progress")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate.release)
	res := <-matched
	s.Require().NotNil(res)
	s.True(res.Matched)
	<-disconnected

	r, err := s.rooms.Get("PAIR01")
	s.Require().NoError(err)
	s.False(r.Players[0].Connected)
	s.Len(s.notifier.OfType(model.EventOpponentDisconnected), 1)

	s.clock.Advance(supervisor.DefaultGracePeriod)
	_, err = s.rooms.Get("PAIR01")
	s.ErrorIs(err, model.ErrRoomNotFound)
	s.Len(s.notifier.OfType(model.EventRoomClosed), 1)
}

func (s *ServiceSuite) TestFindMatchWhileInRoom() {
	s.startRoomMatch()
	_, err := s.service.FindMatch("c1", "")
	s.ErrorIs(err, model.ErrAlreadyInRoom)
}

func (s *ServiceSuite) TestFindMatchRequeuesWhenRoomCannotBeCreated() {
	s.register("c1", "alice")
	s.register("c2", "bob")
	_, err := s.service.FindMatch("c1", "")
	s.Require().NoError(err)

	// Malformed candidates exhaust code generation
	for i := 0; i < room.DefaultCodeAttempts; i++ {
		s.random.QueueString("bad")
	}
	_, err = s.service.FindMatch("c2", "")
	s.ErrorIs(err, model.ErrCodeGeneration)
	s.Equal(1, s.queue.Position("c1"))
}

func (s *ServiceSuite) TestCancelMatchmakingIsIdempotent() {
	s.register("c1", "alice")
	_, err := s.service.FindMatch("c1", "")
	s.Require().NoError(err)

	result, err := s.dispatch("c1", MsgCancelMatchmaking, "")
	s.Require().NoError(err)
	s.Equal(&CancelResult{Cancelled: true}, result)

	result, err = s.dispatch("c1", MsgCancelMatchmaking, "")
	s.Require().NoError(err)
	s.Equal(&CancelResult{Cancelled: false}, result)
}

func (s *ServiceSuite) TestDisconnectingQueuedPlayerRemovesEntry() {
	s.register("c1", "alice")
	_, err := s.service.FindMatch("c1", "")
	s.Require().NoError(err)

	s.service.Disconnect("c1")
	s.Equal(0, s.queue.Len())
	s.Equal(0, s.service.Status().RegisteredPlayers)
}

// Relay tests

func (s *ServiceSuite) TestPaddleMoveIgnoresNonNumericPosition() {
	s.startRoomMatch()

	_, err := s.dispatch("c1", MsgPaddleMove, `{"position":"up"}`)
	s.Require().NoError(err)
	s.Empty(s.notifier.Sent())

	_, err = s.dispatch("c1", MsgPaddleMove, `{"position":0.5}`)
	s.Require().NoError(err)
	s.Len(s.notifier.EventsFor("c2"), 1)
}

func (s *ServiceSuite) TestScoreUpdateViaDispatch() {
	s.startRoomMatch()

	_, err := s.dispatch("c1", MsgScoreUpdate, `{"scores":[1,0],"longestRally":10.7}`)
	s.Require().NoError(err)
	_, err = s.dispatch("c1", MsgScoreUpdate, `{"scores":[1,2]}`)
	s.Require().NoError(err)
	_, err = s.dispatch("c2", MsgScoreUpdate, `{"scores":[1,1]}`)
	s.Require().NoError(err)
	_, err = s.dispatch("c1", MsgScoreUpdate, `{"scores":[2]}`)
	s.ErrorIs(err, model.ErrValidation)

	r, err := s.rooms.Get("ROOM01")
	s.Require().NoError(err)
	s.Equal([2]int{1, 0}, r.Scores)
	s.Equal(10, r.LongestRally)
}

func (s *ServiceSuite) TestConcurrentGameOverRatesOnce() {
	s.startRoomMatch()
	_, err := s.dispatch("c1", MsgScoreUpdate, `{"scores":[1,0]}`)
	s.Require().NoError(err)
	s.notifier.Reset()

	var wg sync.WaitGroup
	start := make(chan struct{})
	for _, conn := range []model.ConnectionID{"c1", "c2"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _ = s.dispatch(conn, MsgGameOver, `{"scores":[1,0]}`)
		}()
	}
	close(start)
	wg.Wait()

	s.Len(s.notifier.OfType(model.EventMatchComplete), 2)
	s.Len(s.notifier.EventsFor("c1"), 1)
	s.Len(s.notifier.EventsFor("c2"), 1)

	alice, err := s.storage.GetProfileByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	stats, err := s.storage.GetStats(s.ctx, alice.ID)
	s.Require().NoError(err)
	s.Equal(1, stats.GamesPlayed)
	s.Equal(1016, stats.Rating)

	matches, err := s.storage.GetMatchesForPlayer(s.ctx, alice.ID, 10)
	s.Require().NoError(err)
	s.Len(matches, 1)
}

func (s *ServiceSuite) TestRematchViaDispatch() {
	s.startRoomMatch()
	_, err := s.dispatch("c1", MsgScoreUpdate, `{"scores":[0,1]}`)
	s.Require().NoError(err)
	_, err = s.dispatch("c2", MsgGameOver, "")
	s.Require().NoError(err)

	_, err = s.dispatch("c1", MsgRematchRequest, "")
	s.Require().NoError(err)
	_, err = s.dispatch("c2", MsgRematchAccept, "")
	s.Require().NoError(err)

	r, err := s.rooms.Get("ROOM01")
	s.Require().NoError(err)
	s.Equal(model.RoomStatePlaying, r.State)
	s.Equal([2]int{0, 0}, r.Scores)
}

// Reconnect tests

func (s *ServiceSuite) TestRejoinAfterDisconnect() {
	s.startRoomMatch()
	s.service.Disconnect("c2")

	s.register("c3", "bob")
	result, err := s.dispatch("c3", MsgRejoinRoom, `{"roomCode":"ROOM01"}`)
	s.Require().NoError(err)
	state := result.(*model.RoomStatePayload)
	s.Equal(1, state.PlayerIndex)

	s.service.Disconnect("c3")
	s.register("c4", "bob")
	result, err = s.dispatch("c4", MsgRejoinRoom, `"ROOM01"`)
	s.Require().NoError(err)
	s.Equal(1, result.(*model.RoomStatePayload).PlayerIndex)
	s.notifier.Reset()

	_, err = s.dispatch("c4", MsgPaddleMove, `{"position":0.1}`)
	s.Require().NoError(err)
	s.NotEmpty(s.notifier.OfType(model.EventOpponentMove))
}

func (s *ServiceSuite) TestStatus() {
	s.startRoomMatch()
	s.register("c3", "carol")
	_, err := s.service.FindMatch("c3", "speedrun")
	s.Require().NoError(err)

	status := s.service.Status()
	s.Equal(1, status.RoomsByState[model.RoomStatePlaying])
	s.Equal(1, status.QueueLength)
	s.Equal(1, status.QueueByVariant[model.VariantSpeedrun])
	s.Equal(3, status.RegisteredPlayers)
}
