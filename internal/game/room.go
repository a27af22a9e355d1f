package game

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pixil98/go-errors"

	"github.com/JYuYuan/coupon-game-server/internal/storage"
)

type GameStatus string

const (
	StatusWaiting GameStatus = "waiting"
	StatusPlaying GameStatus = "playing"
	StatusEnded   GameStatus = "ended"
)

type GamePhase string

const (
	PhaseIdle        GamePhase = "idle"
	PhaseWaiting     GamePhase = "waiting"
	PhaseRolling     GamePhase = "rolling"
	PhaseMoving      GamePhase = "moving"
	PhaseTaskPending GamePhase = "task_pending"
	PhaseEnded       GamePhase = "ended"
)

type TaskType string

const (
	TaskStar      TaskType = "star"
	TaskTrap      TaskType = "trap"
	TaskCollision TaskType = "collision"
)

type DiceRoll struct {
	PlayerId   string    `json:"playerId"`
	PlayerName string    `json:"playerName"`
	Value      int       `json:"diceValue"`
	Timestamp  time.Time `json:"timestamp"`
}

// Task is a pending cell effect. PlayerId is the player whose landing
// triggered it; the executor may differ when the task is completed.
type Task struct {
	Id        string    `json:"id"`
	Type      TaskType  `json:"type"`
	PlayerId  string    `json:"playerId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

type GameState struct {
	PlayerPositions map[string]int `json:"playerPositions"`
	TurnCount       int            `json:"turnCount"`
	GamePhase       GamePhase      `json:"gamePhase"`
	StartTime       time.Time      `json:"startTime"`
	LastDiceRoll    *DiceRoll      `json:"lastDiceRoll,omitempty"`
	CurrentTask     *Task          `json:"currentTask,omitempty"`
	BoardSize       int            `json:"boardSize"`
}

type Room struct {
	Id           string                 `json:"id"`
	Name         string                 `json:"name"`
	HostId       string                 `json:"hostId"`
	Players      []*Player              `json:"players"`
	MaxPlayers   int                    `json:"maxPlayers"`
	GameStatus   GameStatus             `json:"gameStatus"`
	GameType     string                 `json:"gameType"`
	CreatedAt    time.Time              `json:"createdAt"`
	LastActivity time.Time              `json:"lastActivity"`
	CurrentTurn  string                 `json:"currentTurn"`
	BoardPath    []PathCell             `json:"boardPath,omitempty"`
	GameState    *GameState             `json:"gameState,omitempty"`
	TaskSet      storage.ExtensionState `json:"taskSet,omitempty"`
}

func (r *Room) Validate() error {
	el := errors.NewErrorList()

	if r.Id == "" {
		el.Add(fmt.Errorf("room id must be set"))
	}

	if r.MaxPlayers < 2 {
		el.Add(fmt.Errorf("room must allow at least two players"))
	}

	switch r.GameStatus {
	case StatusWaiting, StatusPlaying, StatusEnded:
	default:
		el.Add(fmt.Errorf("unknown game status %q", r.GameStatus))
	}

	return el.Err()
}

// Player returns the roster entry for id, or nil.
func (r *Room) Player(id string) *Player {
	for _, p := range r.Players {
		if p.Id == id {
			return p
		}
	}
	return nil
}

type CreateParams struct {
	Name       string `json:"name"`
	HostId     string `json:"hostId"`
	MaxPlayers int    `json:"maxPlayers"`
	GameType   string `json:"gameType"`

	// TaskSet is an opaque blob of game specific task configuration,
	// kept as raw JSON so engines can evolve their own schemas.
	TaskSet storage.ExtensionState `json:"taskSet,omitempty"`
}

const DefaultMaxPlayers = 6

// BoardGenerator produces the path a new room plays on.
type BoardGenerator func() []PathCell

// Rooms is the room directory. All mutations go through it so the
// backing store stays the single source of truth.
type Rooms struct {
	store    storage.Storer[*Room]
	newBoard BoardGenerator

	mu sync.Mutex
}

func NewRooms(store storage.Storer[*Room], newBoard BoardGenerator) *Rooms {
	if newBoard == nil {
		newBoard = func() []PathCell { return NewBoardPath(DefaultBoardConfig()) }
	}
	return &Rooms{
		store:    store,
		newBoard: newBoard,
	}
}

// Create makes a room with a fresh join code and board path. The host
// still joins through AddPlayer like everyone else.
func (d *Rooms) Create(params CreateParams) (*Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	maxPlayers := params.MaxPlayers
	if maxPlayers <= 0 {
		maxPlayers = DefaultMaxPlayers
	}

	id, err := d.newCode()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	room := &Room{
		Id:           id,
		Name:         params.Name,
		HostId:       params.HostId,
		Players:      []*Player{},
		MaxPlayers:   maxPlayers,
		GameStatus:   StatusWaiting,
		GameType:     params.GameType,
		CreatedAt:    now,
		LastActivity: now,
		BoardPath:    d.newBoard(),
		TaskSet:      params.TaskSet,
	}

	if err := room.Validate(); err != nil {
		return nil, &ValidationError{Field: "room", Reason: err.Error()}
	}

	if err := d.store.Save(room.Id, room); err != nil {
		return nil, &PersistenceError{Op: "saving room", Err: err}
	}

	return room, nil
}

// newCode mints a 6 character join code, retrying on collision.
func (d *Rooms) newCode() (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		code := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
		if d.store.Get(code) == nil {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not allocate an unused room code")
}

func (d *Rooms) Get(id string) *Room {
	return d.store.Get(id)
}

// Update persists a modified room and refreshes its activity stamp.
func (d *Rooms) Update(room *Room) error {
	if room == nil || room.Id == "" {
		return &ValidationError{Field: "room", Reason: "id must be set"}
	}

	room.LastActivity = time.Now()
	if err := d.store.Save(room.Id, room); err != nil {
		return &PersistenceError{Op: "saving room", Err: err}
	}
	return nil
}

func (d *Rooms) Delete(id string) error {
	if err := d.store.Delete(id); err != nil {
		return &PersistenceError{Op: "deleting room", Err: err}
	}
	return nil
}

// AddPlayer joins p to the room. Rejoining with the same id just
// refreshes the roster entry. First join seeds the game state with the
// board size so position clamping works before the game starts.
func (d *Rooms) AddPlayer(roomId string, p *Player) (*Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room := d.store.Get(roomId)
	if room == nil {
		return nil, ErrRoomNotFound
	}

	if existing := room.Player(p.Id); existing != nil {
		existing.SocketId = p.SocketId
		existing.IsConnected = true
		existing.LastSeen = time.Now()
		return room, d.Update(room)
	}

	if len(room.Players) >= room.MaxPlayers {
		return nil, ErrRoomFull
	}

	p.RoomId = room.Id
	p.Color = colorPalette[len(room.Players)%len(colorPalette)]
	p.IsHost = p.Id == room.HostId
	p.Position = 0
	room.Players = append(room.Players, p)

	if room.GameState == nil {
		room.GameState = &GameState{
			PlayerPositions: map[string]int{},
			GamePhase:       PhaseWaiting,
			BoardSize:       len(room.BoardPath),
		}
	}
	room.GameState.PlayerPositions[p.Id] = 0

	return room, d.Update(room)
}

// RemovePlayer drops playerId from the roster. The host role transfers
// to the earliest remaining player; an emptied room is deleted and nil
// is returned.
func (d *Rooms) RemovePlayer(roomId, playerId string) (*Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.removePlayerLocked(roomId, playerId)
}

func (d *Rooms) removePlayerLocked(roomId, playerId string) (*Room, error) {
	room := d.store.Get(roomId)
	if room == nil {
		return nil, ErrRoomNotFound
	}

	found := false
	players := room.Players[:0]
	for _, p := range room.Players {
		if p.Id == playerId {
			found = true
			continue
		}
		players = append(players, p)
	}
	if !found {
		return nil, ErrPlayerNotFound
	}
	room.Players = players

	if room.GameState != nil {
		delete(room.GameState.PlayerPositions, playerId)
	}

	if len(room.Players) == 0 {
		if err := d.Delete(room.Id); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if room.HostId == playerId {
		room.HostId = room.Players[0].Id
	}
	for _, p := range room.Players {
		p.IsHost = p.Id == room.HostId
	}

	return room, d.Update(room)
}

// RemovePlayerFromAll scrubs a player out of every room that still
// lists them. Used when a stale identity rejoins.
func (d *Rooms) RemovePlayerFromAll(playerId string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, room := range d.store.GetAll() {
		if room.Player(playerId) == nil {
			continue
		}
		if _, err := d.removePlayerLocked(id, playerId); err != nil {
			return err
		}
	}
	return nil
}

// Touch refreshes the room's activity stamp without other changes.
func (d *Rooms) Touch(roomId string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	room := d.store.Get(roomId)
	if room == nil {
		return ErrRoomNotFound
	}
	return d.Update(room)
}

// All returns every room ordered by creation time.
func (d *Rooms) All() []*Room {
	all := d.store.GetAll()

	rooms := make([]*Room, 0, len(all))
	for _, r := range all {
		rooms = append(rooms, r)
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})

	return rooms
}

func (d *Rooms) Count() int {
	return len(d.store.GetAll())
}

// CleanupInactive deletes rooms idle longer than timeout and returns
// how many were dropped.
func (d *Rooms) CleanupInactive(timeout time.Duration) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := time.Now().Add(-timeout)

	removed := 0
	for id, room := range d.store.GetAll() {
		if room.LastActivity.After(cutoff) {
			continue
		}
		if err := d.store.Delete(id); err != nil {
			continue
		}
		removed++
	}

	return removed
}
