package sweeper

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultInterval = 5 * time.Minute
)

// Sweep is one cleanup pass. Sweeps run on every tick; a failing sweep
// is logged and retried next interval rather than stopping the worker.
type Sweep interface {
	Sweep(context.Context) error
}

// SweepFunc adapts a plain function to the Sweep interface.
type SweepFunc func(context.Context) error

func (f SweepFunc) Sweep(ctx context.Context) error {
	return f(ctx)
}

type Sweeper struct {
	interval time.Duration
	sweeps   []Sweep
}

func NewSweeper(sweeps []Sweep, opts ...SweeperOpt) *Sweeper {
	s := &Sweeper{
		interval: DefaultInterval,
		sweeps:   sweeps,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

func (s *Sweeper) Tick(ctx context.Context) {
	for _, sweep := range s.sweeps {
		if err := sweep.Sweep(ctx); err != nil {
			slog.WarnContext(ctx, "sweep failed", "error", err)
		}
	}
}
