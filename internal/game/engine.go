package game

import (
	"time"
)

// Broadcaster delivers events to clients. Engines publish through it
// and never talk to sockets directly.
type Broadcaster interface {
	ToRoom(roomId, event string, data any) error
	ToPlayer(playerId, event string, data any) error
}

const (
	ActionRollDice     = "roll_dice"
	ActionCompleteTask = "complete_task"
)

// Event names engines publish through the Broadcaster.
const (
	EventRoomUpdate  = "room:update"
	EventGameStarted = "game:started"
	EventGameEnded   = "game:ended"
	EventGameTask    = "game:task"
)

// Action is a player move inside a running game.
type Action struct {
	Type       string `json:"type"`
	RoomId     string `json:"roomId"`
	PlayerId   string `json:"playerId"`
	TaskId     string `json:"taskId,omitempty"`
	ExecutorId string `json:"executorId,omitempty"`
	Delta      int    `json:"delta,omitempty"`
}

type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// AckFunc reports the outcome of an action back to its sender. An
// engine calls it exactly once per handled action.
type AckFunc func(ActionResult)

// Engine runs one game inside one room. Implementations are not safe
// for concurrent use; the session layer serializes calls per room.
type Engine interface {
	Start() error
	Resume() error
	HandleAction(playerId string, action Action, ack AckFunc) error
	HandlePlayerLeave(playerId string) error
	End() error
	Serialize() *GameState
}

// engineCore carries the state every engine shares: the room record,
// the directory used to persist it, and the broadcast transport.
type engineCore struct {
	room  *Room
	rooms *Rooms
	tx    Broadcaster
}

func newEngineCore(room *Room, rooms *Rooms, tx Broadcaster) engineCore {
	c := engineCore{
		room:  room,
		rooms: rooms,
		tx:    tx,
	}

	if room.GameState == nil {
		room.GameState = &GameState{
			PlayerPositions: map[string]int{},
			GamePhase:       PhaseWaiting,
			BoardSize:       len(room.BoardPath),
		}
	}
	if room.GameState.PlayerPositions == nil {
		room.GameState.PlayerPositions = map[string]int{}
	}
	c.syncPositions()

	return c
}

// setPosition is the only place a position changes. It writes the
// roster entry and the position map together so they cannot drift.
func (c *engineCore) setPosition(playerId string, pos int) {
	c.room.GameState.PlayerPositions[playerId] = pos
	if p := c.room.Player(playerId); p != nil {
		p.Position = pos
	}
}

func (c *engineCore) position(playerId string) int {
	return c.room.GameState.PlayerPositions[playerId]
}

// syncPositions reconciles the position map with the roster: roster
// entries missing from the map get their recorded position, map keys
// without a roster entry are dropped.
func (c *engineCore) syncPositions() {
	positions := c.room.GameState.PlayerPositions

	live := make(map[string]bool, len(c.room.Players))
	for _, p := range c.room.Players {
		live[p.Id] = true
		if pos, ok := positions[p.Id]; ok {
			p.Position = pos
		} else {
			positions[p.Id] = p.Position
		}
	}

	for id := range positions {
		if !live[id] {
			delete(positions, id)
		}
	}
}

// persistAndNotify saves the room and pushes the updated snapshot to
// everyone in it.
func (c *engineCore) persistAndNotify() error {
	if err := c.rooms.Update(c.room); err != nil {
		return err
	}
	return c.tx.ToRoom(c.room.Id, EventRoomUpdate, c.room)
}

func (c *engineCore) phase() GamePhase {
	return c.room.GameState.GamePhase
}

func (c *engineCore) setPhase(p GamePhase) {
	c.room.GameState.GamePhase = p
}

func (c *engineCore) elapsed() time.Duration {
	if c.room.GameState.StartTime.IsZero() {
		return 0
	}
	return time.Since(c.room.GameState.StartTime)
}

func (c *engineCore) serialize() *GameState {
	return c.room.GameState
}
