package room

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/paddleduel/internal/dependencies/clock"
	"github.com/mcoot/paddleduel/internal/dependencies/random"
	"github.com/mcoot/paddleduel/internal/metrics"
	"github.com/mcoot/paddleduel/internal/model"
)

// Manager owns the table of active rooms. The table has its own lock and
// each room has another; when both are needed the table lock is taken first.
type Manager struct {
	clock        clock.Clock
	random       random.Random
	metrics      *metrics.Metrics
	logger       *slog.Logger
	codeAttempts int

	mu     sync.Mutex
	rooms  map[model.RoomCode]*entry
	byConn map[model.ConnectionID]model.RoomCode
}

type entry struct {
	mu      sync.Mutex
	room    *model.Room
	deleted bool

	// grace timers per slot; gen invalidates timers that fired after being stopped
	timers [model.MaxRoomPlayers]clock.Timer
	gen    [model.MaxRoomPlayers]uint64
}

// NewManager creates an empty room Manager
func NewManager(clk clock.Clock, rnd random.Random, m *metrics.Metrics, logger *slog.Logger) *Manager {
	return &Manager{
		clock:        clk,
		random:       rnd,
		metrics:      m,
		logger:       logger.With(slog.String("component", "rooms")),
		codeAttempts: DefaultCodeAttempts,
		rooms:        make(map[model.RoomCode]*entry),
		byConn:       make(map[model.ConnectionID]model.RoomCode),
	}
}

// Create opens a waiting room with the player at index 0
func (m *Manager) Create(player model.Player, variant model.Variant) (*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byConn[player.ConnectionID]; ok {
		return nil, model.ErrAlreadyInRoom
	}

	code, err := m.generateCode(m.codeAttempts)
	if err != nil {
		m.logger.Error("room code generation exhausted", slog.Int("attempts", m.codeAttempts))
		return nil, err
	}

	now := m.clock.Now()
	room := &model.Room{
		Code:      code,
		Variant:   variant,
		State:     model.RoomStateWaiting,
		Players:   []model.RoomMember{{Player: player, Connected: true}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.rooms[code] = &entry{room: room}
	m.byConn[player.ConnectionID] = code

	m.metrics.RoomCreated("code")
	m.logger.Info("room created",
		slog.String("room_code", string(code)),
		slog.String("variant", string(variant)),
		slog.String("username", player.Username))
	return room.Clone(), nil
}

// CreateMatched opens a room that starts playing immediately, with first at
// index 0 and second at index 1
func (m *Manager) CreateMatched(first, second model.Player, variant model.Variant) (*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range []model.Player{first, second} {
		if _, ok := m.byConn[p.ConnectionID]; ok {
			return nil, model.ErrAlreadyInRoom
		}
	}

	code, err := m.generateCode(m.codeAttempts)
	if err != nil {
		m.logger.Error("room code generation exhausted", slog.Int("attempts", m.codeAttempts))
		return nil, err
	}

	now := m.clock.Now()
	room := &model.Room{
		Code:    code,
		Variant: variant,
		State:   model.RoomStatePlaying,
		Players: []model.RoomMember{
			{Player: first, Connected: true},
			{Player: second, Connected: true},
		},
		StartTime: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.rooms[code] = &entry{room: room}
	m.byConn[first.ConnectionID] = code
	m.byConn[second.ConnectionID] = code

	m.metrics.RoomCreated("matchmaking")
	m.logger.Info("matched room created",
		slog.String("room_code", string(code)),
		slog.String("variant", string(variant)),
		slog.String("player_0", first.Username),
		slog.String("player_1", second.Username))
	return room.Clone(), nil
}

// Join seats the player at index 1 of a waiting room and starts the match
func (m *Manager) Join(player model.Player, rawCode string) (*model.Room, int, error) {
	code := NormalizeCode(rawCode)
	if err := ValidateCode(code); err != nil {
		return nil, -1, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byConn[player.ConnectionID]; ok {
		return nil, -1, model.ErrAlreadyInRoom
	}
	e, ok := m.rooms[code]
	if !ok {
		return nil, -1, model.ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, -1, model.ErrRoomNotFound
	}
	if len(e.room.Players) >= model.MaxRoomPlayers {
		return nil, -1, model.ErrRoomFull
	}
	if e.room.State != model.RoomStateWaiting {
		return nil, -1, fmt.Errorf("%w: room is %s", model.ErrInvalidState, e.room.State)
	}
	if len(e.room.Players) > 0 && !e.room.Players[0].Connected {
		return nil, -1, fmt.Errorf("%w: room host is disconnected", model.ErrInvalidState)
	}

	now := m.clock.Now()
	e.room.Players = append(e.room.Players, model.RoomMember{Player: player, Connected: true})
	e.room.State = model.RoomStatePlaying
	e.room.StartTime = now
	e.room.UpdatedAt = now
	m.byConn[player.ConnectionID] = code

	m.logger.Info("player joined room",
		slog.String("room_code", string(code)),
		slog.String("username", player.Username))
	return e.room.Clone(), len(e.room.Players) - 1, nil
}

// Get returns a snapshot of a room
func (m *Manager) Get(code model.RoomCode) (*model.Room, error) {
	m.mu.Lock()
	e, ok := m.rooms[code]
	m.mu.Unlock()
	if !ok {
		return nil, model.ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, model.ErrRoomNotFound
	}
	return e.room.Clone(), nil
}

// Locate returns a snapshot of the connection's room and its player index
func (m *Manager) Locate(connID model.ConnectionID) (*model.Room, int, error) {
	e, err := m.entryFor(connID)
	if err != nil {
		return nil, -1, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.room.IndexOf(connID)
	if e.deleted || idx < 0 {
		return nil, -1, model.ErrNotInRoom
	}
	return e.room.Clone(), idx, nil
}

// InRoom reports whether the connection is seated in a room
func (m *Manager) InRoom(connID model.ConnectionID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byConn[connID]
	return ok
}

// Mutate applies fn to a copy of the connection's room under the room lock.
// The copy replaces the stored room only if fn succeeds; the committed
// snapshot and the caller's index are returned.
func (m *Manager) Mutate(connID model.ConnectionID, fn func(room *model.Room, index int) error) (*model.Room, int, error) {
	e, err := m.entryFor(connID)
	if err != nil {
		return nil, -1, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.room.IndexOf(connID)
	if e.deleted || idx < 0 {
		return nil, -1, model.ErrNotInRoom
	}

	next := e.room.Clone()
	if err := fn(next, idx); err != nil {
		return nil, idx, err
	}
	next.UpdatedAt = m.clock.Now()
	e.room = next
	return next.Clone(), idx, nil
}

// LeaveResult describes the room after a player left it
type LeaveResult struct {
	Code model.RoomCode
	// Index is the seat the leaving player held
	Index int
	// Room is the remaining room, nil when it was deleted
	Room    *model.Room
	Deleted bool
}

// Leave removes the connection from its room. A room left empty, or left with
// only a disconnected player, is deleted. Otherwise the remaining player moves
// to index 0 and the room goes back to waiting.
func (m *Manager) Leave(connID model.ConnectionID) (LeaveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	code, ok := m.byConn[connID]
	if !ok {
		return LeaveResult{}, model.ErrNotInRoom
	}
	e := m.rooms[code]

	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.room.IndexOf(connID)
	if e.deleted || idx < 0 {
		delete(m.byConn, connID)
		return LeaveResult{}, model.ErrNotInRoom
	}

	delete(m.byConn, connID)
	e.stopTimers()

	remaining := e.room.Opponent(idx)
	if remaining == nil || !remaining.Connected {
		m.deleteLocked(code, e)
		m.logger.Info("room closed after leave", slog.String("room_code", string(code)))
		return LeaveResult{Code: code, Index: idx, Deleted: true}, nil
	}

	now := m.clock.Now()
	next := e.room.Clone()
	next.Players = []model.RoomMember{*remaining}
	next.State = model.RoomStateWaiting
	next.Scores = [2]int{}
	next.LongestRally = 0
	next.RematchRequestedBy = nil
	next.StartTime = time.Time{}
	next.UpdatedAt = now
	e.room = next

	m.logger.Info("player left room",
		slog.String("room_code", string(code)),
		slog.Int("player_index", idx))
	return LeaveResult{Code: code, Index: idx, Room: next.Clone()}, nil
}

// MarkDisconnected flags the connection's seat as disconnected and starts a
// grace timer for it. If the seat is still disconnected when the timer fires
// the room is deleted and onExpire receives its final snapshot.
func (m *Manager) MarkDisconnected(connID model.ConnectionID, grace time.Duration, onExpire func(*model.Room)) (*model.Room, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	code, ok := m.byConn[connID]
	if !ok {
		return nil, -1, model.ErrNotInRoom
	}
	delete(m.byConn, connID)
	e := m.rooms[code]

	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.room.IndexOf(connID)
	if e.deleted || idx < 0 {
		return nil, -1, model.ErrNotInRoom
	}

	now := m.clock.Now()
	next := e.room.Clone()
	next.Players[idx].Connected = false
	next.Players[idx].DisconnectedAt = now
	next.UpdatedAt = now
	e.room = next

	if e.timers[idx] != nil {
		e.timers[idx].Stop()
	}
	e.gen[idx]++
	gen := e.gen[idx]
	e.timers[idx] = m.clock.AfterFunc(grace, func() {
		if expired := m.expire(code, idx, gen); expired != nil && onExpire != nil {
			onExpire(expired)
		}
	})

	m.logger.Info("player disconnected from room",
		slog.String("room_code", string(code)),
		slog.Int("player_index", idx),
		slog.Duration("grace", grace))
	return next.Clone(), idx, nil
}

func (m *Manager) expire(code model.RoomCode, idx int, gen uint64) *model.Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.rooms[code]
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted || e.gen[idx] != gen || idx >= len(e.room.Players) || e.room.Players[idx].Connected {
		return nil
	}

	snapshot := e.room.Clone()
	e.timers[idx] = nil
	m.deleteLocked(code, e)
	m.metrics.RoomExpired()
	m.logger.Info("room expired after grace period",
		slog.String("room_code", string(code)),
		slog.Int("player_index", idx))
	return snapshot
}

// Rejoin lets a player reclaim a disconnected seat held under the same username
func (m *Manager) Rejoin(player model.Player, rawCode string) (*model.Room, int, error) {
	code := NormalizeCode(rawCode)
	if err := ValidateCode(code); err != nil {
		return nil, -1, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byConn[player.ConnectionID]; ok {
		return nil, -1, model.ErrAlreadyInRoom
	}
	e, ok := m.rooms[code]
	if !ok {
		return nil, -1, model.ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, -1, model.ErrRoomNotFound
	}

	idx := -1
	for i, member := range e.room.Players {
		if !member.Connected && member.Player.Username == player.Username {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, -1, fmt.Errorf("%w: no disconnected seat for %s", model.ErrNotInRoom, player.Username)
	}

	if e.timers[idx] != nil {
		e.timers[idx].Stop()
		e.timers[idx] = nil
	}
	e.gen[idx]++

	next := e.room.Clone()
	next.Players[idx] = model.RoomMember{Player: player, Connected: true}
	next.UpdatedAt = m.clock.Now()
	e.room = next
	m.byConn[player.ConnectionID] = code

	m.logger.Info("player rejoined room",
		slog.String("room_code", string(code)),
		slog.Int("player_index", idx),
		slog.String("username", player.Username))
	return next.Clone(), idx, nil
}

// Len returns the number of active rooms
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// CountByState returns the number of active rooms in each state
func (m *Manager) CountByState() map[model.RoomState]int {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.rooms))
	for _, e := range m.rooms {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	counts := map[model.RoomState]int{
		model.RoomStateWaiting:  0,
		model.RoomStatePlaying:  0,
		model.RoomStateFinished: 0,
	}
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted {
			counts[e.room.State]++
		}
		e.mu.Unlock()
	}
	return counts
}

func (m *Manager) entryFor(connID model.ConnectionID) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.byConn[connID]
	if !ok {
		return nil, model.ErrNotInRoom
	}
	e, ok := m.rooms[code]
	if !ok {
		return nil, model.ErrNotInRoom
	}
	return e, nil
}

// deleteLocked removes a room. Both the table and room locks must be held.
func (m *Manager) deleteLocked(code model.RoomCode, e *entry) {
	e.deleted = true
	e.stopTimers()
	for _, member := range e.room.Players {
		if m.byConn[member.Player.ConnectionID] == code {
			delete(m.byConn, member.Player.ConnectionID)
		}
	}
	delete(m.rooms, code)
}

func (e *entry) stopTimers() {
	for i, t := range e.timers {
		if t != nil {
			t.Stop()
			e.timers[i] = nil
		}
		e.gen[i]++
	}
}
