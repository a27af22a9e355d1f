package session

import (
	"github.com/JYuYuan/coupon-game-server/internal/game"
)

// Inbound event names. Clients send these over the websocket.
const (
	EventPlayerJoin = "player:join"
	EventRoomCreate = "room:create"
	EventRoomJoin   = "room:join"
	EventRoomLeave  = "room:leave"
	EventRoomList   = "room:list"
	EventPlayerList = "player:list"
	EventGameStart  = "game:start"
	EventGameAction = "game:action"
)

// Outbound event names. The server pushes these to clients. The game
// level events are defined next to the engines that emit them.
const (
	EventError             = "error"
	EventRoomDestroyed     = "room:destroyed"
	EventPlayerReconnected = "player:reconnected"

	EventRoomUpdate  = game.EventRoomUpdate
	EventGameStarted = game.EventGameStarted
	EventGameEnded   = game.EventGameEnded
	EventGameTask    = game.EventGameTask
)

// JoinRoomData is the payload of a room:join event.
type JoinRoomData struct {
	RoomId string `json:"roomId"`
}

// RoomDestroyedData explains why a room went away.
type RoomDestroyedData struct {
	RoomId string `json:"roomId"`
	Reason string `json:"reason"`
}

// ReconnectedData announces a returning player to their room.
type ReconnectedData struct {
	PlayerId   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// ErrorData is the payload of an error event.
type ErrorData struct {
	Message string `json:"message"`
}

// RoomListData is the payload answering room:list.
type RoomListData struct {
	Rooms []*game.Room `json:"rooms"`
}

// PlayerListData is the payload answering player:list.
type PlayerListData struct {
	Players []*game.Player `json:"players"`
}
