package game

import (
	"log/slog"
	"sort"
	"sync"
)

// Factory builds an engine for a room. The room's game state may be
// mid-flight when the factory runs (rehydration after a restart).
type Factory func(room *Room, rooms *Rooms, tx Broadcaster) Engine

// Registry maps game type tags to engine factories.
type Registry struct {
	factories map[string]Factory

	mu sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		factories: map[string]Factory{},
	}
}

// Register binds a tag to a factory. Re-registering a tag replaces the
// previous factory.
func (r *Registry) Register(tag string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[tag]; ok {
		slog.Warn("replacing game type factory", "tag", tag)
	}
	r.factories[tag] = f
}

// Create builds an engine for the room's game type, or nil when the
// tag is unknown.
func (r *Registry) Create(tag string, room *Room, rooms *Rooms, tx Broadcaster) Engine {
	r.mu.RLock()
	f, ok := r.factories[tag]
	r.mu.RUnlock()

	if !ok {
		slog.Error("unknown game type", "tag", tag, "room", room.Id)
		return nil
	}

	return f(room, rooms, tx)
}

// Tags lists registered game types in sorted order.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]string, 0, len(r.factories))
	for tag := range r.factories {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	return tags
}
