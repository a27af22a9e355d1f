package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pixil98/go-service"

	"github.com/JYuYuan/coupon-game-server/internal/game"
	"github.com/JYuYuan/coupon-game-server/internal/listener"
	"github.com/JYuYuan/coupon-game-server/internal/messaging"
	"github.com/JYuYuan/coupon-game-server/internal/session"
	"github.com/JYuYuan/coupon-game-server/internal/sweeper"
)

func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	// Message bus
	bus, err := cfg.Nats.BuildServer()
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}

	// Record stores
	stores, err := cfg.Storage.BuildStores()
	if err != nil {
		return nil, fmt.Errorf("creating stores: %w", err)
	}

	// Directories and game plumbing
	players := game.NewPlayers(stores.Players)
	rooms := game.NewRooms(stores.Rooms, cfg.Game.boardGenerator())

	registry := game.NewRegistry()
	registry.Register(game.GameTypeFlight, game.NewFlightGame)

	instances := game.NewInstances(stores.Instances, registry, rooms)
	publisher := messaging.NewPublisher(bus)
	coord := session.NewCoordinator(players, rooms, instances, publisher)

	// Listeners
	listeners := make(service.WorkerList)
	listeners["websocket"] = listener.NewWebsocketListener(
		cfg.Listeners.Websocket.addr(),
		coord,
		bus,
		cfg.Listeners.Websocket.RatePerSecond,
		cfg.Listeners.Websocket.RateBurst,
	)
	if cfg.Listeners.Status.Addr != "" {
		listeners["status"] = listener.NewStatusListener(cfg.Listeners.Status.Addr, coord)
	}

	// Periodic cleanup
	roomTimeout := cfg.Game.roomTimeout()
	playerTimeout := cfg.Game.playerTimeout()
	instanceTTL := cfg.Game.instanceTTL()

	sw := sweeper.NewSweeper([]sweeper.Sweep{
		sweeper.SweepFunc(func(ctx context.Context) error {
			if n := rooms.CleanupInactive(roomTimeout); n > 0 {
				slog.InfoContext(ctx, "swept inactive rooms", "count", n)
			}
			return nil
		}),
		sweeper.SweepFunc(func(ctx context.Context) error {
			if n := players.CleanupInactive(playerTimeout); n > 0 {
				slog.InfoContext(ctx, "swept inactive players", "count", n)
			}
			return nil
		}),
		sweeper.SweepFunc(func(ctx context.Context) error {
			if n := instances.ExpireStale(instanceTTL); n > 0 {
				slog.InfoContext(ctx, "expired stale game instances", "count", n)
			}
			return nil
		}),
	}, sweeper.WithInterval(cfg.Game.sweepInterval()))

	return service.WorkerList{
		"nats":      bus,
		"sweeper":   sw,
		"listeners": &listeners,
	}, nil
}
