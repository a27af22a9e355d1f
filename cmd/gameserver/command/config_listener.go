package command

import (
	"fmt"

	"github.com/pixil98/go-errors"
)

type ListenersConfig struct {
	Websocket WebsocketConfig `json:"websocket"`
	Status    StatusConfig    `json:"status"`
}

func (c *ListenersConfig) Validate() error {
	el := errors.NewErrorList()

	el.Add(c.Websocket.Validate())

	return el.Err()
}

type WebsocketConfig struct {
	Addr          string  `json:"addr"`
	RatePerSecond float64 `json:"rate_per_second,omitempty"`
	RateBurst     int     `json:"rate_burst,omitempty"`
}

func (c *WebsocketConfig) Validate() error {
	el := errors.NewErrorList()

	if c.RatePerSecond < 0 {
		el.Add(fmt.Errorf("rate_per_second must not be negative"))
	}
	if c.RateBurst < 0 {
		el.Add(fmt.Errorf("rate_burst must not be negative"))
	}

	return el.Err()
}

func (c *WebsocketConfig) addr() string {
	if c.Addr == "" {
		return ":8080"
	}
	return c.Addr
}

// StatusConfig enables the liveness endpoints. An empty addr leaves
// the listener off.
type StatusConfig struct {
	Addr string `json:"addr,omitempty"`
}
