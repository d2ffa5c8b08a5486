package model

import (
	"fmt"
	"time"
)

// RoomCode is the 6-character code players use to join a room
type RoomCode string

// RoomState represents the lifecycle state of a room
type RoomState string

const (
	RoomStateWaiting  RoomState = "waiting"  // One player, waiting for an opponent
	RoomStatePlaying  RoomState = "playing"  // Match in progress
	RoomStateFinished RoomState = "finished" // Match over, rematch possible
)

// Variant selects the ruleset clients play with
type Variant string

const (
	VariantClassic  Variant = "classic"
	VariantChaos    Variant = "chaos"
	VariantSpeedrun Variant = "speedrun"
)

// MaxRoomPlayers is the capacity of a room
const MaxRoomPlayers = 2

// ParseVariant validates a requested variant, defaulting to classic when empty
func ParseVariant(raw string) (Variant, error) {
	switch Variant(raw) {
	case "":
		return VariantClassic, nil
	case VariantClassic, VariantChaos, VariantSpeedrun:
		return Variant(raw), nil
	default:
		return "", fmt.Errorf("%w: unknown variant %q", ErrValidation, raw)
	}
}

// RoomMember is a player's seat in a room
type RoomMember struct {
	Player         Player
	Connected      bool
	DisconnectedAt time.Time
}

// Room is a two-player match session
type Room struct {
	Code               RoomCode
	Variant            Variant
	State              RoomState
	Players            []RoomMember // index 0 is the ball authority
	Scores             [2]int
	LongestRally       int
	StartTime          time.Time
	RematchRequestedBy *int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Clone returns a deep copy of the room
func (r *Room) Clone() *Room {
	c := *r
	c.Players = make([]RoomMember, len(r.Players))
	copy(c.Players, r.Players)
	if r.RematchRequestedBy != nil {
		idx := *r.RematchRequestedBy
		c.RematchRequestedBy = &idx
	}
	return &c
}

// IndexOf returns the player index of a connection, or -1 if not seated
func (r *Room) IndexOf(connID ConnectionID) int {
	for i := range r.Players {
		if r.Players[i].Player.ConnectionID == connID {
			return i
		}
	}
	return -1
}

// Opponent returns the member opposite the given index, or nil if the seat is empty
func (r *Room) Opponent(index int) *RoomMember {
	other := 1 - index
	if other < 0 || other >= len(r.Players) {
		return nil
	}
	return &r.Players[other]
}

// ConnectedIDs returns the connection IDs of all connected members
func (r *Room) ConnectedIDs() []ConnectionID {
	ids := make([]ConnectionID, 0, len(r.Players))
	for _, m := range r.Players {
		if m.Connected {
			ids = append(ids, m.Player.ConnectionID)
		}
	}
	return ids
}

// ResetMatch clears per-match state and starts a new match at the given time
func (r *Room) ResetMatch(now time.Time) {
	r.Scores = [2]int{}
	r.LongestRally = 0
	r.RematchRequestedBy = nil
	r.StartTime = now
	r.State = RoomStatePlaying
}
