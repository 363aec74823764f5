// Package sweeper periodically deactivates bonus codes whose expiry passed.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"bonus-drops/internal/config"
	"bonus-drops/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

var deactivatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "bonus_codes_deactivated_total",
	Help: "Bonus codes deactivated by the expiry sweeper.",
})

func init() {
	prometheus.MustRegister(deactivatedTotal)
}

type Deactivator interface {
	DeactivateExpired(ctx context.Context, now time.Time) (int, error)
}

type Sweeper struct {
	cfg   config.SweeperConfig
	store Deactivator
	now   func() time.Time
}

func New(cfg config.SweeperConfig, store Deactivator) *Sweeper {
	return &Sweeper{cfg: cfg, store: store, now: time.Now}
}

// Start sweeps once immediately and then every configured interval until
// ctx is cancelled. A failed sweep is logged and retried on the next tick.
func (s *Sweeper) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	if s.cfg.Interval <= 0 {
		return fmt.Errorf("sweeper interval must be positive, got %s", s.cfg.Interval)
	}

	s.sweepLogged(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweepLogged(ctx)
		}
	}
}

func (s *Sweeper) sweepLogged(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
		logger.Error("Expiry sweep failed", logger.Err(err))
	}
}

// Sweep runs a single pass and returns how many codes were deactivated.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	n, err := s.store.DeactivateExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}

	deactivatedTotal.Add(float64(n))
	if n > 0 {
		logger.Info("Deactivated expired bonus codes", logger.Int("count", n))
	}
	return n, nil
}
