package daemon

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweepable deletes expired link states.
type Sweepable interface {
	Sweep(ctx context.Context) (int64, error)
}

// Sweeper removes abandoned link states at regular intervals.
type Sweeper struct {
	target   Sweepable
	interval time.Duration
	logger   zerolog.Logger
}

// NewSweeper creates a new Sweeper instance
func NewSweeper(target Sweepable, interval time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		target:   target,
		interval: interval,
		logger:   logger.With().Str("component", "sweeper").Logger(),
	}
}

// Run starts the sweep loop. Blocks until context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.interval).
		Msg("Starting sweeper")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Sweep immediately on start
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.target.Sweep(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn().Err(err).Msg("Failed to sweep link states")
		}
		return
	}
	if n > 0 {
		s.logger.Debug().Int64("removed", n).Msg("Swept expired link states")
	}
}
