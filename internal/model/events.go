package model

// EventType identifies an outbound event sent to a client
type EventType string

const (
	// Match events
	EventGameStart     EventType = "game-start"
	EventMatchComplete EventType = "match-complete"
	EventRoomState     EventType = "room-state"
	EventRoomClosed    EventType = "room-closed"

	// Relay events
	EventOpponentMove EventType = "opponent-move"
	EventBallUpdate   EventType = "ball-update"
	EventScoreSync    EventType = "score-sync"

	// Rematch events
	EventRematchRequested EventType = "rematch-requested"

	// Presence events
	EventOpponentDisconnected EventType = "opponent-disconnected"
	EventOpponentReconnected  EventType = "opponent-reconnected"
	EventOpponentLeft         EventType = "opponent-left"

	// Transport events
	EventAck  EventType = "ack"
	EventPong EventType = "pong"
)

// Event is a message pushed to a connection
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// OpponentInfo describes the other player in a room
type OpponentInfo struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// GameStartPayload is sent to each player when a match begins
type GameStartPayload struct {
	RoomCode    RoomCode      `json:"roomCode"`
	PlayerIndex int           `json:"playerIndex"`
	Variant     Variant       `json:"variant"`
	Opponent    *OpponentInfo `json:"opponent,omitempty"`
	IsRematch   bool          `json:"isRematch,omitempty"`
}

// OpponentMovePayload relays a paddle position
type OpponentMovePayload struct {
	Position    float64 `json:"position"`
	PlayerIndex int     `json:"playerIndex"`
}

// BallState is the authority's ball position and velocity
type BallState struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
}

// ScoreSyncPayload carries accepted scores to the non-authority
type ScoreSyncPayload struct {
	Scores [2]int `json:"scores"`
}

// MatchCompletePayload announces the authoritative match result
type MatchCompletePayload struct {
	Scores      [2]int `json:"scores"`
	WinnerIndex int    `json:"winnerIndex"`
	Duration    int64  `json:"duration"` // milliseconds
}

// RematchRequestedPayload tells a player their opponent wants a rematch
type RematchRequestedPayload struct {
	FromPlayer int `json:"fromPlayer"`
}

// PlayerIndexPayload identifies the player an event refers to
type PlayerIndexPayload struct {
	PlayerIndex int `json:"playerIndex"`
}

// RoomStatePayload restores a reconnecting player's view of the room
type RoomStatePayload struct {
	RoomCode     RoomCode  `json:"roomCode"`
	PlayerIndex  int       `json:"playerIndex"`
	State        RoomState `json:"state"`
	Variant      Variant   `json:"variant"`
	Scores       [2]int    `json:"scores"`
	LongestRally int       `json:"longestRally"`
}

// RoomClosedPayload explains why a room was removed
type RoomClosedPayload struct {
	RoomCode RoomCode `json:"roomCode"`
	Reason   string   `json:"reason"`
}
