package messaging

import (
	"encoding/json"
	"fmt"
)

// Envelope is the wire frame for every event pushed to clients.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// RoomSubject is the NATS subject carrying a room's broadcasts.
func RoomSubject(roomId string) string {
	return fmt.Sprintf("room.%s", roomId)
}

// PlayerSubject is the NATS subject carrying one player's direct events.
func PlayerSubject(playerId string) string {
	return fmt.Sprintf("player.%s", playerId)
}

// Publisher fans session events out over NATS subjects. It satisfies
// game.Broadcaster.
type Publisher struct {
	server *Server
}

func NewPublisher(server *Server) *Publisher {
	return &Publisher{server: server}
}

func (p *Publisher) ToRoom(roomId, event string, data any) error {
	return p.publish(RoomSubject(roomId), event, data)
}

func (p *Publisher) ToPlayer(playerId, event string, data any) error {
	return p.publish(PlayerSubject(playerId), event, data)
}

func (p *Publisher) publish(subject, event string, data any) error {
	b, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("marshalling %s event: %w", event, err)
	}
	return p.server.Publish(subject, b)
}
