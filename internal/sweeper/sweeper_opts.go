package sweeper

import "time"

type SweeperOpt func(*Sweeper)

func WithInterval(interval time.Duration) SweeperOpt {
	return func(s *Sweeper) {
		s.interval = interval
	}
}
