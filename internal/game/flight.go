package game

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// GameTypeFlight is the tag for the dice driven board race.
const GameTypeFlight = "fly"

// FlightGame races players along the board path. Each turn the holder
// rolls a d6 and advances; stars and traps raise tasks whose completion
// moves the executor, and the first player to reach the final cell wins.
type FlightGame struct {
	engineCore

	dice func() int
}

func NewFlightGame(room *Room, rooms *Rooms, tx Broadcaster) Engine {
	return &FlightGame{
		engineCore: newEngineCore(room, rooms, tx),
		dice:       rollD6,
	}
}

func rollD6() int {
	return rand.IntN(6) + 1
}

// FlightFactory builds flight engines with a custom dice source. A nil
// dice falls back to the standard d6.
func FlightFactory(dice func() int) Factory {
	return func(room *Room, rooms *Rooms, tx Broadcaster) Engine {
		g := NewFlightGame(room, rooms, tx).(*FlightGame)
		if dice != nil {
			g.dice = dice
		}
		return g
	}
}

func (g *FlightGame) Start() error {
	if len(g.room.Players) < 2 {
		return ErrNotEnoughPlayers
	}

	if len(g.room.BoardPath) == 0 {
		g.room.BoardPath = NewBoardPath(DefaultBoardConfig())
	}

	state := g.room.GameState
	state.BoardSize = len(g.room.BoardPath)
	state.StartTime = time.Now()
	state.TurnCount = 1
	state.LastDiceRoll = nil
	state.CurrentTask = nil

	g.setPhase(PhaseRolling)
	g.room.GameStatus = StatusPlaying
	g.room.CurrentTurn = g.room.Players[0].Id

	for _, p := range g.room.Players {
		g.setPosition(p.Id, 0)
	}

	if err := g.tx.ToRoom(g.room.Id, EventGameStarted, g.room); err != nil {
		return err
	}
	return g.persistAndNotify()
}

// Resume re-sends the current snapshot after a reconnect or rebuild.
// It never advances the turn.
func (g *FlightGame) Resume() error {
	return g.persistAndNotify()
}

func (g *FlightGame) HandleAction(playerId string, action Action, ack AckFunc) error {
	// Engines own the ack and fire it exactly once.
	acked := false
	once := func(res ActionResult) {
		if acked || ack == nil {
			return
		}
		acked = true
		ack(res)
	}

	var err error
	switch action.Type {
	case ActionRollDice:
		err = g.handleDiceRoll(playerId, once)
	case ActionCompleteTask:
		err = g.handleTaskComplete(playerId, action, once)
	default:
		err = fmt.Errorf("%w: unknown action %q", ErrStaleAction, action.Type)
	}

	if err != nil {
		once(ActionResult{Success: false, Message: err.Error()})
	}
	return err
}

func (g *FlightGame) handleDiceRoll(playerId string, ack AckFunc) error {
	state := g.room.GameState

	if g.room.GameStatus == StatusEnded || g.phase() == PhaseEnded {
		return fmt.Errorf("%w: game is over", ErrTurnViolation)
	}
	if state.CurrentTask != nil {
		return fmt.Errorf("%w: a task is pending", ErrTurnViolation)
	}
	if g.room.CurrentTurn != playerId {
		return fmt.Errorf("%w: not your turn", ErrTurnViolation)
	}

	roller := g.room.Player(playerId)
	if roller == nil {
		return ErrPlayerNotFound
	}

	value := g.dice()
	state.LastDiceRoll = &DiceRoll{
		PlayerId:   playerId,
		PlayerName: roller.Name,
		Value:      value,
		Timestamp:  time.Now(),
	}
	g.setPhase(PhaseMoving)

	dest := g.position(playerId) + value
	if last := state.BoardSize - 1; dest > last {
		dest = last
	}
	g.setPosition(playerId, dest)

	ack(ActionResult{Success: true})

	if dest == state.BoardSize-1 {
		return g.endGame(playerId)
	}

	// Landing on an occupied cell overrides the cell's own effect. The
	// start cell is exempt; everyone stands there before moving.
	if dest != 0 && g.occupiedByOther(playerId, dest) {
		return g.triggerTask(TaskCollision, playerId)
	}

	switch g.cellType(dest) {
	case CellStar:
		return g.triggerTask(TaskStar, playerId)
	case CellTrap:
		return g.triggerTask(TaskTrap, playerId)
	}

	g.nextPlayer()
	return g.persistAndNotify()
}

func (g *FlightGame) handleTaskComplete(playerId string, action Action, ack AckFunc) error {
	state := g.room.GameState

	task := state.CurrentTask
	if task == nil || task.Id != action.TaskId {
		return fmt.Errorf("%w: no matching pending task", ErrStaleAction)
	}

	executor := action.ExecutorId
	if executor == "" {
		executor = task.PlayerId
	}
	if g.room.Player(executor) == nil {
		return fmt.Errorf("%w: executor left the room", ErrStaleAction)
	}

	// Delta zero is a reset to the start cell, not a no-op.
	dest := 0
	if action.Delta != 0 {
		dest = g.position(executor) + action.Delta
		if dest < 0 {
			dest = 0
		}
		if last := state.BoardSize - 1; dest > last {
			dest = last
		}
	}
	g.setPosition(executor, dest)
	state.CurrentTask = nil

	ack(ActionResult{Success: true})

	if dest == state.BoardSize-1 {
		return g.endGame(executor)
	}

	g.nextPlayer()
	return g.persistAndNotify()
}

func (g *FlightGame) triggerTask(tt TaskType, playerId string) error {
	state := g.room.GameState

	task := &Task{
		Id:        uuid.NewString(),
		Type:      tt,
		PlayerId:  playerId,
		Title:     g.taskTitle(tt),
		CreatedAt: time.Now(),
	}
	state.CurrentTask = task
	g.setPhase(PhaseTaskPending)

	if err := g.tx.ToRoom(g.room.Id, EventGameTask, task); err != nil {
		return err
	}
	return g.persistAndNotify()
}

// taskTitle prefers a title from the room's task set, falling back to
// the built-in names.
func (g *FlightGame) taskTitle(tt TaskType) string {
	var titles map[string]string
	if found, err := g.room.TaskSet.Get("titles", &titles); err == nil && found {
		if title, ok := titles[string(tt)]; ok {
			return title
		}
	}

	switch tt {
	case TaskStar:
		return "Lucky star"
	case TaskTrap:
		return "Trap"
	case TaskCollision:
		return "Collision"
	default:
		return string(tt)
	}
}

// nextPlayer hands the turn to the next roster entry, wrapping around.
func (g *FlightGame) nextPlayer() {
	players := g.room.Players
	if len(players) == 0 {
		return
	}

	idx := 0
	for i, p := range players {
		if p.Id == g.room.CurrentTurn {
			idx = (i + 1) % len(players)
			break
		}
	}

	g.room.CurrentTurn = players[idx].Id
	g.room.GameState.TurnCount++
	g.setPhase(PhaseRolling)
}

func (g *FlightGame) endGame(winnerId string) error {
	g.room.GameStatus = StatusEnded
	g.setPhase(PhaseEnded)

	winnerName := ""
	if p := g.room.Player(winnerId); p != nil {
		winnerName = p.Name
	}

	err := g.tx.ToRoom(g.room.Id, EventGameEnded, map[string]any{
		"winnerId":   winnerId,
		"winnerName": winnerName,
		"duration":   g.elapsed().Round(time.Second).String(),
	})
	if err != nil {
		return err
	}
	return g.persistAndNotify()
}

func (g *FlightGame) End() error {
	if g.room.GameStatus == StatusEnded {
		return nil
	}
	g.room.GameStatus = StatusEnded
	g.setPhase(PhaseEnded)
	return g.persistAndNotify()
}

// HandlePlayerLeave reconciles state after the roster shrank. The
// directory has already removed the player from the room.
func (g *FlightGame) HandlePlayerLeave(playerId string) error {
	state := g.room.GameState

	g.syncPositions()

	if state.CurrentTask != nil && state.CurrentTask.PlayerId == playerId {
		state.CurrentTask = nil
		g.setPhase(PhaseRolling)
	}

	if g.room.CurrentTurn == playerId && len(g.room.Players) > 0 {
		g.room.CurrentTurn = g.room.Players[0].Id
		g.setPhase(PhaseRolling)
	}

	return g.persistAndNotify()
}

func (g *FlightGame) Serialize() *GameState {
	return g.serialize()
}

func (g *FlightGame) cellType(idx int) CellType {
	if idx < 0 || idx >= len(g.room.BoardPath) {
		return CellPath
	}
	return g.room.BoardPath[idx].Type
}

func (g *FlightGame) occupiedByOther(playerId string, cell int) bool {
	for id, pos := range g.room.GameState.PlayerPositions {
		if id != playerId && pos == cell {
			return true
		}
	}
	return false
}
