package syncer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/rbastidas/bingolive/internal/transport/push"
	"github.com/rbastidas/bingolive/internal/visibility"
)

// Target is the session surface the syncer drives. Both sync paths merge
// through the session's single reconciliation algorithm.
type Target interface {
	SyncAuthoritative(ctx context.Context) error
	SyncLifecycle(ctx context.Context) error
	LastPushAt() time.Time
}

// Coordinator turns connectivity and visibility transitions into
// authoritative resyncs. One in-flight fetch at a time: a trigger that
// arrives while a fetch is running is dropped, not queued, since the running
// fetch will return an equally current result.
type Coordinator struct {
	target      Target
	clock       clockwork.Clock
	settleDelay time.Duration

	inFlight atomic.Bool
}

// NewCoordinator creates a coordinator. settleDelay is how long to wait after
// a reconnect before fetching, giving the transport a moment to stabilize.
func NewCoordinator(target Target, clock clockwork.Clock, settleDelay time.Duration) *Coordinator {
	return &Coordinator{
		target:      target,
		clock:       clock,
		settleDelay: settleDelay,
	}
}

// Attach subscribes the coordinator to a push source's connectivity and a
// visibility source. Any transition into connected schedules a settle-delayed
// resync; any return to visible resyncs immediately, however short the
// absence, because a backgrounded client may have dropped push events
// silently.
func (c *Coordinator) Attach(ctx context.Context, source push.Source, vis visibility.Source) {
	source.OnStateChange(func(prev, current push.ConnState) {
		if current == push.StateConnected && prev != push.StateConnected {
			go c.resyncAfterSettle(ctx)
		}
	})
	if vis != nil {
		vis.Subscribe(func(visible bool) {
			if visible {
				go c.TriggerSync(ctx)
			}
		})
	}
}

func (c *Coordinator) resyncAfterSettle(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-c.clock.After(c.settleDelay):
	}
	log.Info().Msg("push channel reconnected, running authoritative resync")
	c.TriggerSync(ctx)
}

// TriggerSync runs one authoritative fetch-and-merge. Fetch failures are
// logged and leave existing state untouched; the next trigger corrects.
func (c *Coordinator) TriggerSync(ctx context.Context) {
	if !c.inFlight.CompareAndSwap(false, true) {
		log.Debug().Msg("authoritative sync already in flight, dropping trigger")
		return
	}
	defer c.inFlight.Store(false)

	if err := c.target.SyncAuthoritative(ctx); err != nil {
		log.Warn().Err(err).Msg("authoritative sync failed, keeping current state")
	}
}
