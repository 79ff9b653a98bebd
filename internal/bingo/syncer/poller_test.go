package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestPollSkipsWhilePushIsFresh(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fc := clockwork.NewFakeClock()
	target := newFakeTarget()
	target.lastPush = fc.Now()
	coord := NewCoordinator(target, fc, time.Second)
	poller := NewPoller(target, coord, fc, PollerConfig{
		NumbersInterval:   5 * time.Second,
		FreshnessWindow:   time.Hour,
		LifecycleInterval: time.Hour,
	})

	go poller.Run(ctx)
	if err := fc.BlockUntilContext(ctx, 2); err != nil {
		t.Fatalf("BlockUntilContext: %v", err)
	}

	fc.Advance(5 * time.Second)
	assertNoSignal(t, target.entered, "poll while push channel is fresh")
}

func TestPollActsWhenPushIsStale(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fc := clockwork.NewFakeClock()
	target := newFakeTarget() // zero lastPush: the channel has never delivered
	coord := NewCoordinator(target, fc, time.Second)
	poller := NewPoller(target, coord, fc, PollerConfig{
		NumbersInterval:   5 * time.Second,
		FreshnessWindow:   4 * time.Second,
		LifecycleInterval: time.Hour,
	})

	go poller.Run(ctx)
	if err := fc.BlockUntilContext(ctx, 2); err != nil {
		t.Fatalf("BlockUntilContext: %v", err)
	}

	fc.Advance(5 * time.Second)
	waitSignal(t, target.entered, "poll on stale push channel")
}

func TestLifecyclePollRunsOnItsOwnCadence(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fc := clockwork.NewFakeClock()
	target := newFakeTarget()
	target.lastPush = fc.Now()
	coord := NewCoordinator(target, fc, time.Second)
	poller := NewPoller(target, coord, fc, PollerConfig{
		NumbersInterval:   time.Hour,
		FreshnessWindow:   time.Hour,
		LifecycleInterval: 15 * time.Second,
	})

	go poller.Run(ctx)
	if err := fc.BlockUntilContext(ctx, 2); err != nil {
		t.Fatalf("BlockUntilContext: %v", err)
	}

	fc.Advance(15 * time.Second)
	waitSignal(t, target.life, "lifecycle poll tick")
	assertNoSignal(t, target.entered, "number poll on lifecycle cadence")
}
