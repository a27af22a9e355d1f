package command

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pixil98/go-errors"

	"github.com/JYuYuan/coupon-game-server/internal/game"
	"github.com/JYuYuan/coupon-game-server/internal/storage"
)

type StorageBackend int

const (
	BackendMemory StorageBackend = iota
	BackendFile
)

func (b *StorageBackend) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "memory":
		*b = BackendMemory
	case "file":
		*b = BackendFile
	default:
		return fmt.Errorf("unknown storage backend: %s", text)
	}
	return nil
}

// StorageConfig selects where game records live. The memory backend is
// the default; the file backend survives restarts and needs a path.
type StorageConfig struct {
	Backend StorageBackend `json:"backend"`
	Path    string         `json:"path,omitempty"`
}

func (c *StorageConfig) Validate() error {
	el := errors.NewErrorList()

	if c.Backend == BackendFile && c.Path == "" {
		el.Add(fmt.Errorf("storage: path is required for the file backend"))
	}

	return el.Err()
}

// Stores bundles one store per record type.
type Stores struct {
	Players   storage.Storer[*game.Player]
	Rooms     storage.Storer[*game.Room]
	Instances storage.Storer[*game.InstanceRecord]
}

func (c *StorageConfig) BuildStores() (*Stores, error) {
	players, err := buildStore[*game.Player](c, "players")
	if err != nil {
		return nil, fmt.Errorf("creating player store: %w", err)
	}
	rooms, err := buildStore[*game.Room](c, "rooms")
	if err != nil {
		return nil, fmt.Errorf("creating room store: %w", err)
	}
	instances, err := buildStore[*game.InstanceRecord](c, "instances")
	if err != nil {
		return nil, fmt.Errorf("creating instance store: %w", err)
	}

	return &Stores{
		Players:   players,
		Rooms:     rooms,
		Instances: instances,
	}, nil
}

func buildStore[T storage.ValidatingSpec](c *StorageConfig, name string) (storage.Storer[T], error) {
	switch c.Backend {
	case BackendMemory:
		return storage.NewMemStore[T](), nil
	case BackendFile:
		dir := filepath.Join(c.Path, name)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
		return storage.NewFileStore[T](dir)
	default:
		return nil, fmt.Errorf("unknown storage backend: %v", c.Backend)
	}
}
