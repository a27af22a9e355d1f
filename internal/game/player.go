package game

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pixil98/go-errors"

	"github.com/JYuYuan/coupon-game-server/internal/storage"
)

// colorPalette is assigned round-robin by join order within a room.
var colorPalette = []string{
	"#FF6B6B",
	"#4ECDC4",
	"#45B7D1",
	"#FFA07A",
	"#98D8C8",
	"#F7DC6F",
}

type Player struct {
	Id          string    `json:"id"`
	SocketId    string    `json:"socketId"`
	Name        string    `json:"name"`
	RoomId      string    `json:"roomId"`
	Color       string    `json:"color"`
	AvatarId    string    `json:"avatarId"`
	Gender      string    `json:"gender"`
	IsHost      bool      `json:"isHost"`
	IsConnected bool      `json:"isConnected"`
	JoinedAt    time.Time `json:"joinedAt"`
	LastSeen    time.Time `json:"lastSeen"`
	Position    int       `json:"position"`
	Score       int       `json:"score"`
}

func (p *Player) Validate() error {
	el := errors.NewErrorList()

	if p.Id == "" {
		el.Add(fmt.Errorf("player id must be set"))
	}

	if p.Name == "" {
		el.Add(fmt.Errorf("player name must be set"))
	}

	if p.Position < 0 {
		el.Add(fmt.Errorf("player position must not be negative"))
	}

	return el.Err()
}

// JoinParams is the identity a client presents when it connects. Id is
// optional; a missing one is minted server-side so the client can store
// it for reconnects.
type JoinParams struct {
	Id       string `json:"id"`
	Name     string `json:"name"`
	AvatarId string `json:"avatarId"`
	Gender   string `json:"gender"`
}

// Players is the directory of every known player, connected or not.
type Players struct {
	store storage.Storer[*Player]

	mu sync.Mutex
}

func NewPlayers(store storage.Storer[*Player]) *Players {
	return &Players{store: store}
}

// Add registers or rebinds a player. A returning id keeps its record and
// gets its connection ref and liveness refreshed; anything else becomes
// a fresh record.
func (d *Players) Add(connRef string, params JoinParams) (*Player, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()

	if params.Id != "" {
		if existing := d.store.Get(params.Id); existing != nil {
			existing.SocketId = connRef
			existing.IsConnected = true
			existing.LastSeen = now
			if params.Name != "" {
				existing.Name = params.Name
			}
			if err := d.store.Save(existing.Id, existing); err != nil {
				return nil, &PersistenceError{Op: "saving player", Err: err}
			}
			return existing, nil
		}
	}

	id := params.Id
	if id == "" {
		id = uuid.NewString()
	}

	p := &Player{
		Id:          id,
		SocketId:    connRef,
		Name:        params.Name,
		AvatarId:    params.AvatarId,
		Gender:      params.Gender,
		IsConnected: true,
		JoinedAt:    now,
		LastSeen:    now,
	}

	if err := p.Validate(); err != nil {
		return nil, &ValidationError{Field: "player", Reason: err.Error()}
	}

	if err := d.store.Save(p.Id, p); err != nil {
		return nil, &PersistenceError{Op: "saving player", Err: err}
	}

	return p, nil
}

// Update persists a modified player record and stamps its liveness.
func (d *Players) Update(p *Player) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p == nil || p.Id == "" {
		return &ValidationError{Field: "player", Reason: "id must be set"}
	}

	if existing := d.store.Get(p.Id); existing == nil {
		return ErrPlayerNotFound
	}

	p.LastSeen = time.Now()
	if err := d.store.Save(p.Id, p); err != nil {
		return &PersistenceError{Op: "saving player", Err: err}
	}
	return nil
}

func (d *Players) Get(id string) *Player {
	return d.store.Get(id)
}

// All returns every player ordered by join time.
func (d *Players) All() []*Player {
	all := d.store.GetAll()

	players := make([]*Player, 0, len(all))
	for _, p := range all {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].JoinedAt.Before(players[j].JoinedAt)
	})

	return players
}

func (d *Players) Remove(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.store.Delete(id); err != nil {
		return &PersistenceError{Op: "deleting player", Err: err}
	}
	return nil
}

func (d *Players) Count() int {
	return len(d.store.GetAll())
}

// CleanupInactive drops players that have been offline longer than
// timeout. Connected players are never dropped no matter how old their
// lastSeen stamp is.
func (d *Players) CleanupInactive(timeout time.Duration) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := time.Now().Add(-timeout)

	removed := 0
	for id, p := range d.store.GetAll() {
		if p.IsConnected || p.LastSeen.After(cutoff) {
			continue
		}
		if err := d.store.Delete(id); err != nil {
			continue
		}
		removed++
	}

	return removed
}
