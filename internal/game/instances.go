package game

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pixil98/go-errors"

	"github.com/JYuYuan/coupon-game-server/internal/storage"
)

// DefaultInstanceTTL is how long an instance may sit untouched before
// the sweeper evicts it.
const DefaultInstanceTTL = 2 * time.Hour

// InstanceRecord is the persisted shadow of a live engine. It carries
// enough to rebuild the engine from the room record after a restart.
type InstanceRecord struct {
	RoomId       string    `json:"roomId"`
	GameType     string    `json:"gameType"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

func (r *InstanceRecord) Validate() error {
	el := errors.NewErrorList()

	if r.RoomId == "" {
		el.Add(fmt.Errorf("instance room id must be set"))
	}

	if r.GameType == "" {
		el.Add(fmt.Errorf("instance game type must be set"))
	}

	return el.Err()
}

// Instances caches live engines keyed by room id. Engines themselves
// are process-local; the records let a restarted process rebuild them
// lazily from the room snapshots.
type Instances struct {
	records  storage.Storer[*InstanceRecord]
	registry *Registry
	rooms    *Rooms

	cache map[string]Engine
	mu    sync.Mutex
}

func NewInstances(records storage.Storer[*InstanceRecord], registry *Registry, rooms *Rooms) *Instances {
	return &Instances{
		records:  records,
		registry: registry,
		rooms:    rooms,
		cache:    map[string]Engine{},
	}
}

// Create builds and caches an engine for the room.
func (c *Instances) Create(room *Room, tx Broadcaster) (Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	engine := c.registry.Create(room.GameType, room, c.rooms, tx)
	if engine == nil {
		return nil, ErrUnsupportedGameType
	}

	now := time.Now()
	record := &InstanceRecord{
		RoomId:       room.Id,
		GameType:     room.GameType,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := c.records.Save(room.Id, record); err != nil {
		return nil, &PersistenceError{Op: "saving instance record", Err: err}
	}

	c.cache[room.Id] = engine
	return engine, nil
}

// Get returns the cached engine for roomId, rebuilding it from the
// instance record when the cache is cold. A record whose room has
// vanished is deleted on sight. Returns nil when there is no live
// game for the room.
func (c *Instances) Get(roomId string, tx Broadcaster) Engine {
	c.mu.Lock()
	defer c.mu.Unlock()

	if engine, ok := c.cache[roomId]; ok {
		return engine
	}

	record := c.records.Get(roomId)
	if record == nil {
		return nil
	}

	room := c.rooms.Get(roomId)
	if room == nil {
		// Stale record; the room it shadowed is gone.
		if err := c.records.Delete(roomId); err != nil {
			slog.Warn("failed to delete stale instance record", "room", roomId, "error", err)
		}
		return nil
	}

	if tx == nil {
		slog.Warn("cannot rehydrate engine without a broadcaster", "room", roomId)
		return nil
	}

	engine := c.registry.Create(record.GameType, room, c.rooms, tx)
	if engine == nil {
		return nil
	}

	c.cache[roomId] = engine
	return engine
}

// Touch refreshes an instance's activity stamp.
func (c *Instances) Touch(roomId string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record := c.records.Get(roomId)
	if record == nil {
		return
	}

	record.LastActivity = time.Now()
	if err := c.records.Save(roomId, record); err != nil {
		slog.Warn("failed to touch instance record", "room", roomId, "error", err)
	}
}

// Remove evicts the engine and its record.
func (c *Instances) Remove(roomId string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.cache, roomId)
	if err := c.records.Delete(roomId); err != nil {
		slog.Warn("failed to delete instance record", "room", roomId, "error", err)
	}
}

// ExpireStale evicts instances untouched for longer than ttl and
// returns how many were dropped.
func (c *Instances) ExpireStale(ttl time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-ttl)

	removed := 0
	for id, record := range c.records.GetAll() {
		if record.LastActivity.After(cutoff) {
			continue
		}
		delete(c.cache, id)
		if err := c.records.Delete(id); err != nil {
			slog.Warn("failed to delete expired instance record", "room", id, "error", err)
			continue
		}
		removed++
	}

	return removed
}

// Stats reports cache occupancy for the status endpoint.
func (c *Instances) Stats() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return map[string]int{
		"cached":  len(c.cache),
		"records": len(c.records.GetAll()),
	}
}
