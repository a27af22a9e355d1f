package command

import (
	"github.com/pixil98/go-errors"
)

type Config struct {
	Listeners ListenersConfig `json:"listeners"`
	Storage   StorageConfig   `json:"storage"`
	Nats      NatsConfig      `json:"nats"`
	Game      GameConfig      `json:"game"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	el.Add(c.Listeners.Validate())
	el.Add(c.Storage.Validate())
	el.Add(c.Nats.Validate())
	el.Add(c.Game.Validate())

	return el.Err()
}
