package syncer

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// PollerConfig holds the polling fallback cadences.
type PollerConfig struct {
	// NumbersInterval is how often the fallback considers fetching the
	// authoritative number state.
	NumbersInterval time.Duration
	// FreshnessWindow skips a tick when the push channel delivered
	// anything this recently.
	FreshnessWindow time.Duration
	// LifecycleInterval is the slower cadence for round lifecycle and
	// enrolled-player counts.
	LifecycleInterval time.Duration
}

// DefaultPollerConfig returns the default polling cadences.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		NumbersInterval:   5 * time.Second,
		FreshnessWindow:   4 * time.Second,
		LifecycleInterval: 15 * time.Second,
	}
}

// Poller is the time-boxed secondary sync path. While the push channel is
// healthy every tick is a no-op; when the channel goes quiet the poller runs
// the identical fetch-and-merge the coordinator uses, so it can never
// override fresher push data.
type Poller struct {
	target Target
	coord  *Coordinator
	clock  clockwork.Clock
	cfg    PollerConfig
}

// NewPoller creates a poller sharing the coordinator's in-flight gate.
func NewPoller(target Target, coord *Coordinator, clock clockwork.Clock, cfg PollerConfig) *Poller {
	return &Poller{
		target: target,
		coord:  coord,
		clock:  clock,
		cfg:    cfg,
	}
}

// Run ticks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	numbers := p.clock.NewTicker(p.cfg.NumbersInterval)
	defer numbers.Stop()
	lifecycle := p.clock.NewTicker(p.cfg.LifecycleInterval)
	defer lifecycle.Stop()

	log.Info().
		Dur("numbers_interval", p.cfg.NumbersInterval).
		Dur("lifecycle_interval", p.cfg.LifecycleInterval).
		Msg("polling fallback started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("polling fallback stopped")
			return nil

		case <-numbers.Chan():
			if p.clock.Now().Sub(p.target.LastPushAt()) < p.cfg.FreshnessWindow {
				log.Debug().Msg("push channel fresh, skipping poll tick")
				continue
			}
			p.coord.TriggerSync(ctx)

		case <-lifecycle.Chan():
			if err := p.target.SyncLifecycle(ctx); err != nil {
				log.Warn().Err(err).Msg("lifecycle poll failed, keeping current state")
			}
		}
	}
}
