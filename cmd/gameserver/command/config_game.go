package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"

	"github.com/JYuYuan/coupon-game-server/internal/game"
	"github.com/JYuYuan/coupon-game-server/internal/sweeper"
)

const (
	defaultRoomTimeout   = 30 * time.Minute
	defaultPlayerTimeout = 10 * time.Minute
)

type GameConfig struct {
	Board         BoardConfig `json:"board"`
	SweepInterval string      `json:"sweep_interval,omitempty"`
	RoomTimeout   string      `json:"room_timeout,omitempty"`
	PlayerTimeout string      `json:"player_timeout,omitempty"`
	InstanceTTL   string      `json:"instance_ttl,omitempty"`
}

type BoardConfig struct {
	Size  int `json:"size,omitempty"`
	Stars int `json:"stars,omitempty"`
	Traps int `json:"traps,omitempty"`
}

func (c *GameConfig) Validate() error {
	el := errors.NewErrorList()

	for name, v := range map[string]string{
		"sweep_interval": c.SweepInterval,
		"room_timeout":   c.RoomTimeout,
		"player_timeout": c.PlayerTimeout,
		"instance_ttl":   c.InstanceTTL,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			el.Add(fmt.Errorf("parsing %s: %w", name, err))
		}
	}

	if c.Board.Size != 0 && c.Board.Size < 2 {
		el.Add(fmt.Errorf("board size must be at least 2"))
	}

	return el.Err()
}

func (c *GameConfig) boardGenerator() game.BoardGenerator {
	cfg := game.DefaultBoardConfig()
	if c.Board.Size != 0 {
		cfg.Size = c.Board.Size
	}
	if c.Board.Stars != 0 {
		cfg.Stars = c.Board.Stars
	}
	if c.Board.Traps != 0 {
		cfg.Traps = c.Board.Traps
	}

	return func() []game.PathCell {
		return game.NewBoardPath(cfg)
	}
}

func (c *GameConfig) sweepInterval() time.Duration {
	return c.duration(c.SweepInterval, sweeper.DefaultInterval)
}

func (c *GameConfig) roomTimeout() time.Duration {
	return c.duration(c.RoomTimeout, defaultRoomTimeout)
}

func (c *GameConfig) playerTimeout() time.Duration {
	return c.duration(c.PlayerTimeout, defaultPlayerTimeout)
}

func (c *GameConfig) instanceTTL() time.Duration {
	return c.duration(c.InstanceTTL, game.DefaultInstanceTTL)
}

// duration returns the parsed value or the default. Validate has
// already rejected unparseable strings.
func (c *GameConfig) duration(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
