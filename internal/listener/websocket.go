package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/JYuYuan/coupon-game-server/internal/game"
	"github.com/JYuYuan/coupon-game-server/internal/messaging"
	"github.com/JYuYuan/coupon-game-server/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer is the per-connection outbound queue. A client that
	// cannot drain it gets dropped rather than stalling the room.
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Game clients connect from arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebsocketListener serves the session protocol over websockets. Each
// connection reads sequentially so a client's events apply in the order
// it sent them.
type WebsocketListener struct {
	addr      string
	coord     *session.Coordinator
	bus       *messaging.Server
	rateLimit rate.Limit
	rateBurst int
}

func NewWebsocketListener(addr string, coord *session.Coordinator, bus *messaging.Server, perSecond float64, burst int) *WebsocketListener {
	if perSecond <= 0 {
		perSecond = 20
	}
	if burst <= 0 {
		burst = 40
	}
	return &WebsocketListener{
		addr:      addr,
		coord:     coord,
		bus:       bus,
		rateLimit: rate.Limit(perSecond),
		rateBurst: burst,
	}
}

func (l *WebsocketListener) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", l.handleWS)

	svr := &http.Server{
		Addr:    l.addr,
		Handler: mux,
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := svr.Shutdown(shutdownCtx); err != nil {
				slog.Warn("websocket listener shutdown", "error", err)
			}
		case <-done:
		}
	}()

	slog.InfoContext(ctx, "websocket listener starting", "addr", l.addr)

	err := svr.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving websocket on %s: %w", l.addr, err)
	}

	return nil
}

func (l *WebsocketListener) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &wsClient{
		listener: l,
		conn:     conn,
		connRef:  uuid.NewString(),
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		limiter:  rate.NewLimiter(l.rateLimit, l.rateBurst),
		subs:     map[string]func(){},
	}

	go c.writePump()
	c.readLoop()
}

// clientEnvelope is an inbound frame. AckId, when set, asks for an ack
// frame echoing it back.
type clientEnvelope struct {
	Event string          `json:"event"`
	AckId string          `json:"ackId,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type ackFrame struct {
	Event   string `json:"event"`
	AckId   string `json:"ackId"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type wsClient struct {
	listener *WebsocketListener
	conn     *websocket.Conn
	connRef  string
	send     chan []byte
	done     chan struct{}
	limiter  *rate.Limiter

	playerId string

	// mu guards subs and closed. send is never closed; a bus handler
	// may still be delivering when the connection tears down, so
	// enqueue checks closed instead and writePump exits on done.
	mu     sync.Mutex
	subs   map[string]func()
	closed bool
}

func (c *wsClient) readLoop() {
	defer c.teardown()

	c.conn.SetReadLimit(64 * 1024)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read", "error", err)
			}
			return
		}

		if !c.limiter.Allow() {
			c.pushEvent(session.EventError, session.ErrorData{Message: "too many requests"})
			continue
		}

		var env clientEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.pushEvent(session.EventError, session.ErrorData{Message: "malformed frame"})
			continue
		}

		c.dispatch(env)
	}
}

func (c *wsClient) dispatch(env clientEnvelope) {
	if c.playerId == "" && env.Event != session.EventPlayerJoin {
		c.ack(env.AckId, false, "join first", nil)
		return
	}

	var err error
	switch env.Event {
	case session.EventPlayerJoin:
		err = c.handleJoin(env)
	case session.EventRoomCreate:
		err = c.handleRoomCreate(env)
	case session.EventRoomJoin:
		err = c.handleRoomJoin(env)
	case session.EventRoomLeave:
		err = c.handleRoomLeave(env)
	case session.EventGameStart:
		err = c.handleGameStart(env)
	case session.EventGameAction:
		err = c.handleGameAction(env)
	case session.EventRoomList:
		c.ack(env.AckId, true, "", c.listener.coord.RoomList())
	case session.EventPlayerList:
		c.ack(env.AckId, true, "", c.listener.coord.PlayerList())
	default:
		err = fmt.Errorf("unknown event %q", env.Event)
	}

	if err != nil {
		c.ack(env.AckId, false, err.Error(), nil)
		if env.AckId == "" {
			c.pushEvent(session.EventError, session.ErrorData{Message: err.Error()})
		}
	}
}

func (c *wsClient) handleJoin(env clientEnvelope) error {
	var params game.JoinParams
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &params); err != nil {
			return fmt.Errorf("malformed join payload: %w", err)
		}
	}

	p, err := c.listener.coord.Connect(c.connRef, params)
	if err != nil {
		return err
	}

	c.playerId = p.Id
	if err := c.subscribe(messaging.PlayerSubject(p.Id)); err != nil {
		return err
	}
	if p.RoomId != "" {
		if err := c.subscribe(messaging.RoomSubject(p.RoomId)); err != nil {
			return err
		}
	}

	c.ack(env.AckId, true, "", p)
	return nil
}

func (c *wsClient) handleRoomCreate(env clientEnvelope) error {
	var params game.CreateParams
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &params); err != nil {
			return fmt.Errorf("malformed room payload: %w", err)
		}
	}

	prev := c.roomOf()
	room, err := c.listener.coord.CreateRoom(c.playerId, params)
	if err != nil {
		return err
	}

	if prev != "" && prev != room.Id {
		c.unsubscribe(messaging.RoomSubject(prev))
	}
	if err := c.subscribe(messaging.RoomSubject(room.Id)); err != nil {
		return err
	}

	c.ack(env.AckId, true, "", room)
	return nil
}

func (c *wsClient) handleRoomJoin(env clientEnvelope) error {
	var data session.JoinRoomData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return fmt.Errorf("malformed join payload: %w", err)
	}

	prev := c.roomOf()
	room, err := c.listener.coord.JoinRoom(c.playerId, data.RoomId)
	if err != nil {
		return err
	}

	if prev != "" && prev != room.Id {
		c.unsubscribe(messaging.RoomSubject(prev))
	}
	if err := c.subscribe(messaging.RoomSubject(room.Id)); err != nil {
		return err
	}

	c.ack(env.AckId, true, "", room)
	return nil
}

func (c *wsClient) handleRoomLeave(env clientEnvelope) error {
	roomId := c.roomOf()

	if err := c.listener.coord.LeaveRoom(c.playerId); err != nil {
		return err
	}

	if roomId != "" {
		c.unsubscribe(messaging.RoomSubject(roomId))
	}

	c.ack(env.AckId, true, "", nil)
	return nil
}

func (c *wsClient) handleGameStart(env clientEnvelope) error {
	if err := c.listener.coord.StartGame(c.playerId); err != nil {
		return err
	}
	c.ack(env.AckId, true, "", nil)
	return nil
}

func (c *wsClient) handleGameAction(env clientEnvelope) error {
	var action game.Action
	if err := json.Unmarshal(env.Data, &action); err != nil {
		return fmt.Errorf("malformed action payload: %w", err)
	}

	// The action path acks exactly once through the callback, so the
	// error is not resurfaced to dispatch.
	err := c.listener.coord.Action(c.playerId, action, func(res game.ActionResult) {
		c.ack(env.AckId, res.Success, res.Message, nil)
	})
	if err != nil {
		slog.Debug("game action rejected", "player", c.playerId, "error", err)
	}
	return nil
}

// roomOf reports the client's current room id from the directory.
func (c *wsClient) roomOf() string {
	if p := c.listener.coord.Player(c.playerId); p != nil {
		return p.RoomId
	}
	return ""
}

func (c *wsClient) subscribe(subject string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.subs[subject]; ok {
		return nil
	}

	unsub, err := c.listener.bus.Subscribe(subject, func(data []byte) {
		c.enqueue(data)
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", subject, err)
	}

	c.subs[subject] = unsub
	return nil
}

func (c *wsClient) unsubscribe(subject string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if unsub, ok := c.subs[subject]; ok {
		unsub()
		delete(c.subs, subject)
	}
}

func (c *wsClient) ack(ackId string, success bool, message string, data any) {
	if ackId == "" {
		return
	}
	c.push(ackFrame{
		Event:   "ack",
		AckId:   ackId,
		Success: success,
		Message: message,
		Data:    data,
	})
}

func (c *wsClient) pushEvent(event string, data any) {
	c.push(messaging.Envelope{Event: event, Data: data})
}

func (c *wsClient) push(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		slog.Warn("marshalling outbound frame", "error", err)
		return
	}
	c.enqueue(b)
}

// enqueue hands a frame to the write pump. Frames for a torn-down or
// backlogged client are dropped.
func (c *wsClient) enqueue(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- b:
	default:
		slog.Warn("dropping frame for slow client", "player", c.playerId)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer func() { _ = c.conn.Close() }()

	for {
		select {
		case msg := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) teardown() {
	c.mu.Lock()
	c.closed = true
	for subject, unsub := range c.subs {
		unsub()
		delete(c.subs, subject)
	}
	c.mu.Unlock()

	if c.playerId != "" {
		c.listener.coord.Disconnect(c.playerId)
	}

	close(c.done)
}
