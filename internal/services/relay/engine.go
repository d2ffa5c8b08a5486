package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcoot/paddleduel/internal/dependencies/clock"
	"github.com/mcoot/paddleduel/internal/dependencies/notifier"
	"github.com/mcoot/paddleduel/internal/metrics"
	"github.com/mcoot/paddleduel/internal/model"
	"github.com/mcoot/paddleduel/internal/services/rating"
	"github.com/mcoot/paddleduel/internal/services/room"
)

// DefaultRatingTimeout bounds the persistence work done after a match
const DefaultRatingTimeout = 5 * time.Second

// AuthorityIndex is the player whose client owns the ball simulation
const AuthorityIndex = 0

// MatchRecorder persists the outcome of a completed match
type MatchRecorder interface {
	RecordMatch(ctx context.Context, res rating.Result) (*model.MatchRecord, error)
}

// errNotPlaying marks a game-over that arrived after the match ended
var errNotPlaying = errors.New("match is not in progress")

// Engine relays in-match messages between the two players of a room and
// validates the ones that change room state
type Engine struct {
	rooms         *room.Manager
	notifier      notifier.Notifier
	recorder      MatchRecorder
	clock         clock.Clock
	metrics       *metrics.Metrics
	logger        *slog.Logger
	ratingTimeout time.Duration
}

// NewEngine creates a relay Engine
func NewEngine(
	rooms *room.Manager,
	n notifier.Notifier,
	recorder MatchRecorder,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		rooms:         rooms,
		notifier:      n,
		recorder:      recorder,
		clock:         clk,
		metrics:       m,
		logger:        logger.With(slog.String("component", "relay")),
		ratingTimeout: DefaultRatingTimeout,
	}
}

// AnnounceStart sends game-start to every connected member of the room
func (e *Engine) AnnounceStart(r *model.Room, isRematch bool) {
	for i, member := range r.Players {
		if !member.Connected {
			continue
		}
		payload := model.GameStartPayload{
			RoomCode:    r.Code,
			PlayerIndex: i,
			Variant:     r.Variant,
			IsRematch:   isRematch,
		}
		if opp := r.Opponent(i); opp != nil {
			payload.Opponent = &model.OpponentInfo{
				Username:    opp.Player.Username,
				DisplayName: opp.Player.DisplayName,
			}
		}
		e.notifier.Send(member.Player.ConnectionID, model.Event{Type: model.EventGameStart, Payload: payload})
	}
}

// PaddleMove relays a paddle position to the opponent without validation
func (e *Engine) PaddleMove(connID model.ConnectionID, position float64) error {
	r, idx, err := e.rooms.Locate(connID)
	if err != nil {
		return err
	}
	e.sendToOpponent(r, idx, model.Event{
		Type:    model.EventOpponentMove,
		Payload: model.OpponentMovePayload{Position: position, PlayerIndex: idx},
	})
	return nil
}

// BallSync forwards the authority's ball state verbatim to the other player.
// Updates from the non-authority or outside a match are dropped.
func (e *Engine) BallSync(connID model.ConnectionID, ball json.RawMessage) error {
	r, idx, err := e.rooms.Locate(connID)
	if err != nil {
		return err
	}
	if idx != AuthorityIndex || r.State != model.RoomStatePlaying {
		e.logger.Debug("dropping ball sync",
			slog.String("room_code", string(r.Code)),
			slog.Int("player_index", idx),
			slog.String("state", string(r.State)))
		return nil
	}
	e.sendToOpponent(r, idx, model.Event{Type: model.EventBallUpdate, Payload: ball})
	return nil
}

// ScoreUpdate validates and commits a score change reported by the authority.
// Reports that fail validation are logged and dropped without an error.
// A rally value, if present and valid, raises the room's longest rally.
func (e *Engine) ScoreUpdate(connID model.ConnectionID, scores [2]int, rally *float64) error {
	var rejectReason string
	r, idx, err := e.rooms.Mutate(connID, func(r *model.Room, idx int) error {
		if r.State != model.RoomStatePlaying {
			rejectReason = "not_playing"
			return fmt.Errorf("%w: room is %s", model.ErrInvalidState, r.State)
		}
		if idx != AuthorityIndex {
			rejectReason = "not_authority"
			return fmt.Errorf("%w: only player %d reports scores", model.ErrInvalidState, AuthorityIndex)
		}
		if err := ValidateScoreDelta(scores, r.Scores); err != nil {
			rejectReason = "delta"
			return err
		}
		r.Scores = scores
		if rally != nil {
			if v, err := ValidateRally(*rally, r.LongestRally); err == nil {
				r.LongestRally = v
			} else {
				e.logger.Debug("ignoring rally", slog.String("room_code", string(r.Code)), slog.String("error", err.Error()))
			}
		}
		return nil
	})
	if err != nil {
		if rejectReason != "" {
			e.metrics.ScoreRejected(rejectReason)
			e.logger.Warn("score update rejected",
				slog.String("connection_id", string(connID)),
				slog.Int("player_index", idx),
				slog.String("reason", rejectReason),
				slog.Any("scores", scores),
				slog.String("error", err.Error()))
			return nil
		}
		return err
	}

	e.sendToOpponent(r, idx, model.Event{
		Type:    model.EventScoreSync,
		Payload: model.ScoreSyncPayload{Scores: r.Scores},
	})
	return nil
}

// GameOver ends the match in the connection's room. The room flips to
// finished under its lock, so concurrent reports complete the match once;
// later reports return a nil payload and no error.
func (e *Engine) GameOver(ctx context.Context, connID model.ConnectionID, submitted *[2]int) (*model.MatchCompletePayload, error) {
	r, idx, err := e.rooms.Mutate(connID, func(r *model.Room, _ int) error {
		if r.State != model.RoomStatePlaying {
			return errNotPlaying
		}
		if len(r.Players) != model.MaxRoomPlayers {
			return fmt.Errorf("%w: match needs two players", model.ErrInvalidState)
		}
		if r.Scores[0] == r.Scores[1] {
			return fmt.Errorf("%w: match cannot end tied at %v", model.ErrValidation, r.Scores)
		}
		r.State = model.RoomStateFinished
		r.RematchRequestedBy = nil
		return nil
	})
	if errors.Is(err, errNotPlaying) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if submitted != nil && *submitted != r.Scores {
		e.logger.Warn("game over scores disagree with recorded scores",
			slog.String("room_code", string(r.Code)),
			slog.Int("player_index", idx),
			slog.Any("submitted", *submitted),
			slog.Any("recorded", r.Scores))
	}

	winner := 0
	if r.Scores[1] > r.Scores[0] {
		winner = 1
	}
	duration := e.clock.Now().Sub(r.StartTime)
	payload := &model.MatchCompletePayload{
		Scores:      r.Scores,
		WinnerIndex: winner,
		Duration:    duration.Milliseconds(),
	}
	e.notifier.Broadcast(r.ConnectedIDs(), model.Event{Type: model.EventMatchComplete, Payload: *payload})
	e.metrics.MatchCompleted(string(r.Variant), duration.Seconds())
	e.logger.Info("match complete",
		slog.String("room_code", string(r.Code)),
		slog.Any("scores", r.Scores),
		slog.Int("winner_index", winner),
		slog.Duration("duration", duration))

	// Rating must not be cut short by the reporting connection going away
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.ratingTimeout)
	defer cancel()
	if _, err := e.recorder.RecordMatch(rctx, rating.Result{Room: r, WinnerIndex: winner, Duration: duration}); err != nil {
		e.logger.Warn("match result not recorded",
			slog.String("room_code", string(r.Code)),
			slog.String("error", err.Error()))
	}
	return payload, nil
}

// RequestRematch records the caller's rematch request and tells the opponent
func (e *Engine) RequestRematch(connID model.ConnectionID) error {
	r, idx, err := e.rooms.Mutate(connID, func(r *model.Room, idx int) error {
		if r.State != model.RoomStateFinished {
			return fmt.Errorf("%w: rematch needs a finished match", model.ErrInvalidState)
		}
		r.RematchRequestedBy = &idx
		return nil
	})
	if err != nil {
		return err
	}
	e.sendToOpponent(r, idx, model.Event{
		Type:    model.EventRematchRequested,
		Payload: model.RematchRequestedPayload{FromPlayer: idx},
	})
	return nil
}

// AcceptRematch starts a new match if the opponent has asked for one
func (e *Engine) AcceptRematch(connID model.ConnectionID) error {
	r, _, err := e.rooms.Mutate(connID, func(r *model.Room, idx int) error {
		if r.State != model.RoomStateFinished {
			return fmt.Errorf("%w: rematch needs a finished match", model.ErrInvalidState)
		}
		if r.RematchRequestedBy == nil || *r.RematchRequestedBy == idx {
			return fmt.Errorf("%w: no rematch request from opponent", model.ErrInvalidState)
		}
		r.ResetMatch(e.clock.Now())
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("rematch started", slog.String("room_code", string(r.Code)))
	e.AnnounceStart(r, true)
	return nil
}

func (e *Engine) sendToOpponent(r *model.Room, idx int, event model.Event) {
	opp := r.Opponent(idx)
	if opp == nil || !opp.Connected {
		return
	}
	e.notifier.Send(opp.Player.ConnectionID, event)
}
