package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mcoot/paddleduel/internal/dependencies/notifier"
	"github.com/mcoot/paddleduel/internal/metrics"
	"github.com/mcoot/paddleduel/internal/model"
	"github.com/mcoot/paddleduel/internal/services/matchmaking"
	"github.com/mcoot/paddleduel/internal/services/registry"
	"github.com/mcoot/paddleduel/internal/services/relay"
	"github.com/mcoot/paddleduel/internal/services/room"
	"github.com/mcoot/paddleduel/internal/services/supervisor"
)

// Service is the single entry point for connection-scoped operations. Every
// method returns synchronously with the result the caller acknowledges.
type Service struct {
	registry   *registry.Registry
	queue      *matchmaking.Queue
	rooms      *room.Manager
	relay      *relay.Engine
	supervisor *supervisor.Supervisor
	notifier   notifier.Notifier
	metrics    *metrics.Metrics
	logger     *slog.Logger

	// pairMu orders queue pairing against disconnects, so a popped queue
	// entry is seated before its connection's disconnect is handled
	pairMu sync.Mutex
}

// NewService creates a session Service over its component services
func NewService(
	reg *registry.Registry,
	queue *matchmaking.Queue,
	rooms *room.Manager,
	engine *relay.Engine,
	sup *supervisor.Supervisor,
	n notifier.Notifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		registry:   reg,
		queue:      queue,
		rooms:      rooms,
		relay:      engine,
		supervisor: sup,
		notifier:   n,
		metrics:    m,
		logger:     logger.With(slog.String("component", "session")),
	}
}

// Register binds a username to the connection
func (s *Service) Register(ctx context.Context, connID model.ConnectionID, rawUsername any) (*RegisterResult, error) {
	p, err := s.registry.Register(ctx, connID, rawUsername)
	if err != nil {
		return nil, err
	}
	return &RegisterResult{PlayerID: p.PlayerID, Username: p.Username, DisplayName: p.DisplayName}, nil
}

// CreateRoom opens a room with a shareable code. Any queue entry is cancelled.
func (s *Service) CreateRoom(connID model.ConnectionID, rawVariant string) (*RoomResult, error) {
	p, err := s.registry.Get(connID)
	if err != nil {
		return nil, err
	}
	variant, err := model.ParseVariant(rawVariant)
	if err != nil {
		return nil, err
	}

	s.queue.Remove(connID)
	r, err := s.rooms.Create(*p, variant)
	if err != nil {
		return nil, err
	}
	return &RoomResult{RoomCode: r.Code, PlayerIndex: 0, Variant: r.Variant}, nil
}

// JoinRoom takes the second seat of a waiting room and starts the match
func (s *Service) JoinRoom(connID model.ConnectionID, rawCode string) (*RoomResult, error) {
	p, err := s.registry.Get(connID)
	if err != nil {
		return nil, err
	}

	s.queue.Remove(connID)
	r, idx, err := s.rooms.Join(*p, rawCode)
	if err != nil {
		return nil, err
	}
	s.relay.AnnounceStart(r, false)
	return &RoomResult{RoomCode: r.Code, PlayerIndex: idx, Variant: r.Variant}, nil
}

// LeaveRoom gives up the connection's seat. A remaining opponent is told and
// waits in the room for someone new.
func (s *Service) LeaveRoom(connID model.ConnectionID) (*LeaveResult, error) {
	res, err := s.rooms.Leave(connID)
	if err != nil {
		return nil, err
	}
	if !res.Deleted && res.Room != nil {
		s.notifier.Broadcast(res.Room.ConnectedIDs(), model.Event{
			Type:    model.EventOpponentLeft,
			Payload: model.PlayerIndexPayload{PlayerIndex: res.Index},
		})
	}
	return &LeaveResult{RoomCode: res.Code}, nil
}

// RejoinRoom reclaims a seat lost to a disconnect
func (s *Service) RejoinRoom(connID model.ConnectionID, rawCode string) (*model.RoomStatePayload, error) {
	p, err := s.registry.Get(connID)
	if err != nil {
		return nil, err
	}
	return s.supervisor.Rejoin(*p, rawCode)
}

// FindMatch pairs the player with the oldest waiting player of the same
// variant, or queues them
func (s *Service) FindMatch(connID model.ConnectionID, rawVariant string) (*FindMatchResult, error) {
	p, err := s.registry.Get(connID)
	if err != nil {
		return nil, err
	}
	variant, err := model.ParseVariant(rawVariant)
	if err != nil {
		return nil, err
	}
	if s.rooms.InRoom(connID) {
		return nil, model.ErrAlreadyInRoom
	}

	s.pairMu.Lock()
	r, res, err := s.pair(*p, variant)
	s.pairMu.Unlock()
	if err != nil {
		return nil, err
	}
	if r == nil {
		s.logger.Debug("player queued",
			slog.String("username", p.Username),
			slog.String("variant", string(variant)),
			slog.Int("position", res.Position))
		return &FindMatchResult{Matched: false, Position: res.Position}, nil
	}

	s.metrics.PlayersPaired(string(variant))
	s.relay.AnnounceStart(r, false)
	return &FindMatchResult{Matched: true, PlayerIndex: 1, RoomCode: r.Code}, nil
}

func (s *Service) pair(p model.Player, variant model.Variant) (*model.Room, matchmaking.Result, error) {
	res := s.queue.FindOrEnqueue(p, variant)
	if res.Opponent == nil {
		return nil, res, nil
	}
	r, err := s.rooms.CreateMatched(res.Opponent.Player, p, variant)
	if err != nil {
		if errors.Is(err, model.ErrCodeGeneration) {
			s.queue.Requeue(*res.Opponent)
		}
		return nil, res, err
	}
	return r, res, nil
}

// CancelMatchmaking removes the connection from the queue if present
func (s *Service) CancelMatchmaking(connID model.ConnectionID) *CancelResult {
	return &CancelResult{Cancelled: s.queue.Remove(connID)}
}

// Disconnect releases everything held by a lost connection
func (s *Service) Disconnect(connID model.ConnectionID) {
	s.pairMu.Lock()
	defer s.pairMu.Unlock()
	s.supervisor.Disconnect(connID)
}

// Status summarizes rooms, the queue and registered players
func (s *Service) Status() Status {
	return Status{
		RoomsByState:      s.rooms.CountByState(),
		QueueLength:       s.queue.Len(),
		QueueByVariant:    s.queue.LenByVariant(),
		RegisteredPlayers: s.registry.Count(),
	}
}

// Dispatch decodes and routes one inbound message. The returned value, if
// any, is the acknowledgement payload.
func (s *Service) Dispatch(ctx context.Context, connID model.ConnectionID, msgType string, payload json.RawMessage) (any, error) {
	if _, known := knownMessages[msgType]; known {
		s.metrics.MessageReceived(msgType)
	} else {
		s.metrics.MessageReceived("unknown")
	}

	switch msgType {
	case MsgRegister:
		var req RegisterRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		return s.Register(ctx, connID, req.Username)

	case MsgCreateRoom:
		var req VariantRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		return s.CreateRoom(connID, req.Variant)

	case MsgJoinRoom:
		var req RoomCodeRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		return s.JoinRoom(connID, req.RoomCode)

	case MsgLeaveRoom:
		return s.LeaveRoom(connID)

	case MsgRejoinRoom:
		var req RoomCodeRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		return s.RejoinRoom(connID, req.RoomCode)

	case MsgFindMatch:
		var req VariantRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		return s.FindMatch(connID, req.Variant)

	case MsgCancelMatchmaking:
		return s.CancelMatchmaking(connID), nil

	case MsgPaddleMove:
		var req PaddleMoveRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		position, ok := req.Position.(float64)
		if !ok {
			return nil, nil
		}
		return nil, s.relay.PaddleMove(connID, position)

	case MsgBallSync:
		if len(payload) == 0 {
			return nil, fmt.Errorf("%w: ball state is required", model.ErrValidation)
		}
		return nil, s.relay.BallSync(connID, payload)

	case MsgScoreUpdate:
		var req ScoreUpdateRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		scores, err := relay.ParseScores(req.Scores)
		if err != nil {
			return nil, err
		}
		var rally *float64
		if v, ok := req.LongestRally.(float64); ok {
			rally = &v
		}
		return nil, s.relay.ScoreUpdate(connID, scores, rally)

	case MsgGameOver:
		var req GameOverRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		var submitted *[2]int
		if len(req.Scores) > 0 {
			if scores, err := relay.ParseScores(req.Scores); err == nil {
				submitted = &scores
			}
		}
		result, err := s.relay.GameOver(ctx, connID, submitted)
		if err != nil || result == nil {
			return nil, err
		}
		return result, nil

	case MsgRematchRequest:
		return nil, s.relay.RequestRematch(connID)

	case MsgRematchAccept:
		return nil, s.relay.AcceptRematch(connID)

	default:
		return nil, fmt.Errorf("%w: unknown message type %q", model.ErrValidation, msgType)
	}
}
