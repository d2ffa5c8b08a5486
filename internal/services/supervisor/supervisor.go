package supervisor

import (
	"log/slog"
	"time"

	"github.com/mcoot/paddleduel/internal/dependencies/notifier"
	"github.com/mcoot/paddleduel/internal/metrics"
	"github.com/mcoot/paddleduel/internal/model"
	"github.com/mcoot/paddleduel/internal/services/matchmaking"
	"github.com/mcoot/paddleduel/internal/services/registry"
	"github.com/mcoot/paddleduel/internal/services/room"
)

// DefaultGracePeriod is how long a disconnected seat is held for its player
const DefaultGracePeriod = 30 * time.Second

// ReasonOpponentTimeout is the room-closed reason when a seat's grace period ran out
const ReasonOpponentTimeout = "opponent_timeout"

// Supervisor cleans up after lost connections and lets players reclaim their seats
type Supervisor struct {
	queue    *matchmaking.Queue
	rooms    *room.Manager
	registry *registry.Registry
	notifier notifier.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	grace    time.Duration
}

// New creates a Supervisor. A non-positive grace uses DefaultGracePeriod.
func New(
	queue *matchmaking.Queue,
	rooms *room.Manager,
	reg *registry.Registry,
	n notifier.Notifier,
	m *metrics.Metrics,
	grace time.Duration,
	logger *slog.Logger,
) *Supervisor {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Supervisor{
		queue:    queue,
		rooms:    rooms,
		registry: reg,
		notifier: n,
		metrics:  m,
		logger:   logger.With(slog.String("component", "supervisor")),
		grace:    grace,
	}
}

// Disconnect releases everything held by a lost connection. The room seat,
// if any, is kept for the grace period before the room is closed.
func (s *Supervisor) Disconnect(connID model.ConnectionID) {
	s.metrics.Disconnected()

	if s.queue.Remove(connID) {
		s.logger.Debug("removed disconnected player from queue", slog.String("connection_id", string(connID)))
	}

	r, idx, err := s.rooms.MarkDisconnected(connID, s.grace, s.closeExpired)
	if err == nil {
		if opp := r.Opponent(idx); opp != nil && opp.Connected {
			s.notifier.Send(opp.Player.ConnectionID, model.Event{
				Type:    model.EventOpponentDisconnected,
				Payload: model.PlayerIndexPayload{PlayerIndex: idx},
			})
		}
	}

	s.registry.Unregister(connID)
}

func (s *Supervisor) closeExpired(r *model.Room) {
	s.notifier.Broadcast(r.ConnectedIDs(), model.Event{
		Type:    model.EventRoomClosed,
		Payload: model.RoomClosedPayload{RoomCode: r.Code, Reason: ReasonOpponentTimeout},
	})
}

// Rejoin seats a registered player back into the room they were disconnected
// from. The opponent is told and the caller receives the room's current state.
func (s *Supervisor) Rejoin(player model.Player, rawCode string) (*model.RoomStatePayload, error) {
	s.queue.Remove(player.ConnectionID)

	r, idx, err := s.rooms.Rejoin(player, rawCode)
	if err != nil {
		return nil, err
	}

	if opp := r.Opponent(idx); opp != nil && opp.Connected {
		s.notifier.Send(opp.Player.ConnectionID, model.Event{
			Type:    model.EventOpponentReconnected,
			Payload: model.PlayerIndexPayload{PlayerIndex: idx},
		})
	}

	state := &model.RoomStatePayload{
		RoomCode:     r.Code,
		PlayerIndex:  idx,
		State:        r.State,
		Variant:      r.Variant,
		Scores:       r.Scores,
		LongestRally: r.LongestRally,
	}
	s.notifier.Send(player.ConnectionID, model.Event{Type: model.EventRoomState, Payload: *state})
	return state, nil
}
