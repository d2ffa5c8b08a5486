package session

import (
	"encoding/json"
	"fmt"

	"github.com/mcoot/paddleduel/internal/model"
)

// Inbound message types
const (
	MsgRegister          = "register"
	MsgCreateRoom        = "create-room"
	MsgJoinRoom          = "join-room"
	MsgLeaveRoom         = "leave-room"
	MsgRejoinRoom        = "rejoin-room"
	MsgFindMatch         = "find-match"
	MsgCancelMatchmaking = "cancel-matchmaking"
	MsgPaddleMove        = "paddle-move"
	MsgBallSync          = "ball-sync"
	MsgScoreUpdate       = "score-update"
	MsgGameOver          = "game-over"
	MsgRematchRequest    = "rematch-request"
	MsgRematchAccept     = "rematch-accept"
)

var knownMessages = map[string]struct{}{
	MsgRegister: {}, MsgCreateRoom: {}, MsgJoinRoom: {}, MsgLeaveRoom: {}, MsgRejoinRoom: {},
	MsgFindMatch: {}, MsgCancelMatchmaking: {}, MsgPaddleMove: {}, MsgBallSync: {},
	MsgScoreUpdate: {}, MsgGameOver: {}, MsgRematchRequest: {}, MsgRematchAccept: {},
}

// RegisterRequest is the payload of a register message. Username is left
// untyped so that non-string values are reported as validation errors.
type RegisterRequest struct {
	Username any `json:"username"`
}

// VariantRequest is the payload of create-room and find-match
type VariantRequest struct {
	Variant string `json:"variant"`
}

// RoomCodeRequest is the payload of join-room and rejoin-room. Clients may
// send the bare code string or {"roomCode": ...}.
type RoomCodeRequest struct {
	RoomCode string `json:"roomCode"`
}

// UnmarshalJSON accepts either payload form
func (r *RoomCodeRequest) UnmarshalJSON(data []byte) error {
	var code string
	if err := json.Unmarshal(data, &code); err == nil {
		r.RoomCode = code
		return nil
	}
	type object RoomCodeRequest
	var o object
	if err := json.Unmarshal(data, &o); err != nil {
		return err
	}
	*r = RoomCodeRequest(o)
	return nil
}

// PaddleMoveRequest is the payload of paddle-move
type PaddleMoveRequest struct {
	Position any `json:"position"`
}

// ScoreUpdateRequest is the payload of score-update
type ScoreUpdateRequest struct {
	Scores       json.RawMessage `json:"scores"`
	LongestRally any             `json:"longestRally"`
}

// GameOverRequest is the payload of game-over
type GameOverRequest struct {
	Scores json.RawMessage `json:"scores"`
}

// RegisterResult acknowledges a registration
type RegisterResult struct {
	PlayerID    model.PlayerID `json:"playerId"`
	Username    string         `json:"username"`
	DisplayName string         `json:"displayName"`
}

// RoomResult acknowledges create-room and join-room
type RoomResult struct {
	RoomCode    model.RoomCode `json:"roomCode"`
	PlayerIndex int            `json:"playerIndex"`
	Variant     model.Variant  `json:"variant"`
}

// FindMatchResult acknowledges find-match
type FindMatchResult struct {
	Matched     bool           `json:"matched"`
	PlayerIndex int            `json:"playerIndex,omitempty"`
	RoomCode    model.RoomCode `json:"roomCode,omitempty"`
	Position    int            `json:"position,omitempty"`
}

// CancelResult acknowledges cancel-matchmaking
type CancelResult struct {
	Cancelled bool `json:"cancelled"`
}

// LeaveResult acknowledges leave-room
type LeaveResult struct {
	RoomCode model.RoomCode `json:"roomCode"`
}

// Status is a point-in-time summary of server activity
type Status struct {
	RoomsByState      map[model.RoomState]int `json:"roomsByState"`
	QueueLength       int                     `json:"queueLength"`
	QueueByVariant    map[model.Variant]int   `json:"queueByVariant"`
	RegisteredPlayers int                     `json:"registeredPlayers"`
}

func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: malformed payload", model.ErrValidation)
	}
	return nil
}
