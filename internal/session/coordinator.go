package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/JYuYuan/coupon-game-server/internal/game"
)

// Coordinator implements the session protocol on top of the game
// directories. It owns the per-room locks; every room mutation runs
// load, validate, mutate, persist, broadcast under the room's lock.
type Coordinator struct {
	players   *game.Players
	rooms     *game.Rooms
	instances *game.Instances
	tx        game.Broadcaster
	locks     *roomLocks

	started time.Time
}

func NewCoordinator(players *game.Players, rooms *game.Rooms, instances *game.Instances, tx game.Broadcaster) *Coordinator {
	return &Coordinator{
		players:   players,
		rooms:     rooms,
		instances: instances,
		tx:        tx,
		locks:     newRoomLocks(),
		started:   time.Now(),
	}
}

// Connect registers or rebinds a player identity. A returning player
// with a surviving room is re-announced there and gets a fresh
// snapshot; a stale room reference is cleared.
func (c *Coordinator) Connect(connRef string, params game.JoinParams) (*game.Player, error) {
	p, err := c.players.Add(connRef, params)
	if err != nil {
		return nil, err
	}

	if p.RoomId == "" {
		return p, nil
	}

	room := c.rooms.Get(p.RoomId)
	if room == nil {
		p.RoomId = ""
		if err := c.players.Update(p); err != nil {
			return nil, err
		}
		return p, nil
	}

	unlock := c.locks.lock(room.Id)
	defer unlock()

	// Rebind the roster entry to the new connection.
	room, err = c.rooms.AddPlayer(room.Id, p)
	if err != nil {
		return nil, err
	}

	if err := c.tx.ToRoom(room.Id, EventPlayerReconnected, ReconnectedData{
		PlayerId:   p.Id,
		PlayerName: p.Name,
	}); err != nil {
		return nil, err
	}
	if err := c.tx.ToPlayer(p.Id, EventRoomUpdate, room); err != nil {
		return nil, err
	}

	if engine := c.instances.Get(room.Id, c.tx); engine != nil {
		if err := engine.Resume(); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// CreateRoom opens a room hosted by playerId and joins them to it.
func (c *Coordinator) CreateRoom(playerId string, params game.CreateParams) (*game.Room, error) {
	p := c.players.Get(playerId)
	if p == nil {
		return nil, game.ErrPlayerNotFound
	}

	if p.RoomId != "" {
		if err := c.LeaveRoom(playerId); err != nil {
			return nil, err
		}
	}

	params.HostId = playerId
	created, err := c.rooms.Create(params)
	if err != nil {
		return nil, err
	}

	unlock := c.locks.lock(created.Id)
	defer unlock()

	room, err := c.rooms.AddPlayer(created.Id, p)
	if err != nil {
		c.dropUnjoinedRoom(created.Id, p)
		return nil, err
	}

	p.RoomId = room.Id
	if err := c.players.Update(p); err != nil {
		c.dropUnjoinedRoom(created.Id, p)
		return nil, err
	}

	if err := c.tx.ToRoom(room.Id, EventRoomUpdate, room); err != nil {
		return nil, err
	}

	return room, nil
}

// dropUnjoinedRoom rolls back a room whose host never finished joining
// so it cannot linger with an empty roster. Callers hold the room lock.
func (c *Coordinator) dropUnjoinedRoom(roomId string, host *game.Player) {
	host.RoomId = ""
	if err := c.players.Update(host); err != nil {
		slog.Warn("failed to unseat host of dropped room", "player", host.Id, "error", err)
	}
	if err := c.rooms.Delete(roomId); err != nil {
		slog.Warn("failed to drop unjoined room", "room", roomId, "error", err)
	}
	c.locks.forget(roomId)
}

// JoinRoom adds playerId to the room behind the join code.
func (c *Coordinator) JoinRoom(playerId, roomId string) (*game.Room, error) {
	p := c.players.Get(playerId)
	if p == nil {
		return nil, game.ErrPlayerNotFound
	}

	if p.RoomId != "" && p.RoomId != roomId {
		if err := c.LeaveRoom(playerId); err != nil {
			return nil, err
		}
	}

	unlock := c.locks.lock(roomId)
	defer unlock()

	room, err := c.rooms.AddPlayer(roomId, p)
	if err != nil {
		return nil, err
	}

	p.RoomId = room.Id
	if err := c.players.Update(p); err != nil {
		return nil, err
	}

	if err := c.tx.ToRoom(room.Id, EventRoomUpdate, room); err != nil {
		return nil, err
	}

	return room, nil
}

// LeaveRoom removes playerId from their room. The host leaving
// destroys the room for everyone; otherwise the roster shrinks and a
// running game reconciles. A running game left with one player reverts
// to waiting.
func (c *Coordinator) LeaveRoom(playerId string) error {
	p := c.players.Get(playerId)
	if p == nil {
		return game.ErrPlayerNotFound
	}
	if p.RoomId == "" {
		return game.ErrNotInRoom
	}

	roomId := p.RoomId
	unlock := c.locks.lock(roomId)
	defer unlock()

	room := c.rooms.Get(roomId)
	if room == nil {
		p.RoomId = ""
		return c.players.Update(p)
	}

	if room.HostId == playerId {
		return c.destroyRoom(room, "host_left")
	}

	updated, err := c.rooms.RemovePlayer(roomId, playerId)
	if err != nil {
		return err
	}

	p.RoomId = ""
	if err := c.players.Update(p); err != nil {
		return err
	}

	if updated == nil {
		// Roster emptied; the directory already deleted the room.
		c.instances.Remove(roomId)
		c.locks.forget(roomId)
		return nil
	}

	if engine := c.instances.Get(roomId, c.tx); engine != nil {
		if err := engine.HandlePlayerLeave(playerId); err != nil {
			return err
		}
	}

	if updated.GameStatus == game.StatusPlaying && len(updated.Players) < 2 {
		updated.GameStatus = game.StatusWaiting
		if updated.GameState != nil {
			updated.GameState.GamePhase = game.PhaseWaiting
			updated.GameState.CurrentTask = nil
		}
		c.instances.Remove(roomId)
		if err := c.rooms.Update(updated); err != nil {
			return err
		}
	}

	return c.tx.ToRoom(roomId, EventRoomUpdate, updated)
}

// destroyRoom tears a room down for everyone in it. Callers hold the
// room lock.
func (c *Coordinator) destroyRoom(room *game.Room, reason string) error {
	if err := c.tx.ToRoom(room.Id, EventRoomDestroyed, RoomDestroyedData{
		RoomId: room.Id,
		Reason: reason,
	}); err != nil {
		return err
	}

	for _, member := range room.Players {
		rec := c.players.Get(member.Id)
		if rec == nil || rec.RoomId != room.Id {
			continue
		}
		rec.RoomId = ""
		if err := c.players.Update(rec); err != nil {
			slog.Warn("failed to clear room reference", "player", member.Id, "error", err)
		}
	}

	c.instances.Remove(room.Id)
	if err := c.rooms.Delete(room.Id); err != nil {
		return err
	}
	c.locks.forget(room.Id)

	return nil
}

// StartGame launches the room's game. Host only, two players minimum.
func (c *Coordinator) StartGame(playerId string) error {
	p := c.players.Get(playerId)
	if p == nil {
		return game.ErrPlayerNotFound
	}
	if p.RoomId == "" {
		return game.ErrNotInRoom
	}

	unlock := c.locks.lock(p.RoomId)
	defer unlock()

	room := c.rooms.Get(p.RoomId)
	if room == nil {
		return game.ErrRoomNotFound
	}
	if room.HostId != playerId {
		return game.ErrNotHost
	}
	if len(room.Players) < 2 {
		return game.ErrNotEnoughPlayers
	}

	engine, err := c.instances.Create(room, c.tx)
	if err != nil {
		return err
	}

	return engine.Start()
}

// Action routes a game action to the room's engine under the room
// lock. The engine acks; a missing engine is acked here.
func (c *Coordinator) Action(playerId string, action game.Action, ack game.AckFunc) error {
	p := c.players.Get(playerId)
	if p == nil {
		err := game.ErrPlayerNotFound
		ackFailure(ack, err)
		return err
	}

	roomId := action.RoomId
	if roomId == "" {
		roomId = p.RoomId
	}
	if roomId == "" {
		err := game.ErrNotInRoom
		ackFailure(ack, err)
		return err
	}

	unlock := c.locks.lock(roomId)
	defer unlock()

	room := c.rooms.Get(roomId)
	if room == nil {
		err := game.ErrRoomNotFound
		ackFailure(ack, err)
		return err
	}
	if room.Player(playerId) == nil {
		err := game.ErrNotInRoom
		ackFailure(ack, err)
		return err
	}

	engine := c.instances.Get(roomId, c.tx)
	if engine == nil {
		err := fmt.Errorf("%w: %s", game.ErrGameNotFound, roomId)
		ackFailure(ack, err)
		return err
	}

	action.RoomId = roomId
	action.PlayerId = playerId

	err := engine.HandleAction(playerId, action, ack)

	c.instances.Touch(roomId)
	if uerr := c.players.Update(p); uerr != nil {
		slog.Warn("failed to stamp player activity", "player", playerId, "error", uerr)
	}

	return err
}

func ackFailure(ack game.AckFunc, err error) {
	if ack == nil {
		return
	}
	ack(game.ActionResult{Success: false, Message: err.Error()})
}

// Disconnect marks a player offline. Their room keeps the seat so a
// reconnect can reclaim it.
func (c *Coordinator) Disconnect(playerId string) {
	p := c.players.Get(playerId)
	if p == nil {
		return
	}

	p.IsConnected = false
	if err := c.players.Update(p); err != nil {
		slog.Warn("failed to mark player offline", "player", playerId, "error", err)
	}

	if p.RoomId == "" {
		return
	}

	unlock := c.locks.lock(p.RoomId)
	defer unlock()

	room := c.rooms.Get(p.RoomId)
	if room == nil {
		return
	}

	if member := room.Player(playerId); member != nil {
		member.IsConnected = false
		member.LastSeen = time.Now()
		if err := c.rooms.Update(room); err != nil {
			slog.Warn("failed to persist disconnect", "room", room.Id, "error", err)
			return
		}
		if err := c.tx.ToRoom(room.Id, EventRoomUpdate, room); err != nil {
			slog.Warn("failed to broadcast disconnect", "room", room.Id, "error", err)
		}
	}
}

// Player looks a player up by id.
func (c *Coordinator) Player(id string) *game.Player {
	return c.players.Get(id)
}

// RoomList answers room:list.
func (c *Coordinator) RoomList() RoomListData {
	return RoomListData{Rooms: c.rooms.All()}
}

// PlayerList answers player:list.
func (c *Coordinator) PlayerList() PlayerListData {
	return PlayerListData{Players: c.players.All()}
}

// Stats reports directory and cache occupancy for the status listener.
func (c *Coordinator) Stats() map[string]any {
	return map[string]any{
		"rooms":     c.rooms.Count(),
		"players":   c.players.Count(),
		"instances": c.instances.Stats(),
		"uptime":    time.Since(c.started).Round(time.Second).String(),
	}
}
