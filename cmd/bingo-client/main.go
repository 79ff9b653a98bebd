package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/rbastidas/bingolive/internal/bingo/session"
	"github.com/rbastidas/bingolive/internal/bingo/syncer"
	"github.com/rbastidas/bingolive/internal/clients/roomapi"
	"github.com/rbastidas/bingolive/internal/config"
	"github.com/rbastidas/bingolive/internal/transport/natspush"
	"github.com/rbastidas/bingolive/internal/transport/push"
	"github.com/rbastidas/bingolive/internal/transport/ws"
	"github.com/rbastidas/bingolive/internal/visibility"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file loaded")
	}

	configPath := flag.String("config", os.Getenv("BINGO_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg)

	clock := clockwork.NewRealClock()
	api := roomapi.New(cfg.API.BaseURL, cfg.API.AuthToken)
	sess := session.New(cfg.Room.ID, api, clock)

	source, err := buildPushSource(cfg, clock)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build push source")
	}
	source.OnEvent(sess.HandlePushEvent)
	source.OnStateChange(sess.OnConnStateChange)

	coord := syncer.NewCoordinator(sess, clock, cfg.Sync.SettleDelay)
	poller := syncer.NewPoller(sess, coord, clock, syncer.PollerConfig{
		NumbersInterval:   cfg.Sync.NumbersPollInterval,
		FreshnessWindow:   cfg.Sync.FreshnessWindow,
		LifecycleInterval: cfg.Sync.LifecyclePollInterval,
	})
	vis := visibility.NewNotifier()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	coord.Attach(ctx, source, vis)

	log.Info().
		Str("room_id", cfg.Room.ID).
		Str("transport", cfg.Push.Transport).
		Msg("bingo client starting")

	sess.Start(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return source.Run(ctx) })
	g.Go(func() error { return poller.Run(ctx) })
	g.Go(func() error { return reportLoop(ctx, sess, clock) })

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("client exited with error")
	}
	log.Info().Msg("bingo client stopped")
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
}

func buildPushSource(cfg *config.Config, clock clockwork.Clock) (push.Source, error) {
	switch cfg.Push.Transport {
	case "ws":
		if cfg.Push.WSURL == "" {
			return nil, fmt.Errorf("ws transport selected but push.ws_url is empty")
		}
		wsCfg := ws.DefaultConfig(cfg.Push.WSURL, cfg.Room.ID)
		wsCfg.AuthToken = cfg.API.AuthToken
		return ws.NewClient(wsCfg, clock), nil
	case "nats":
		if cfg.Push.NATSURL == "" {
			return nil, fmt.Errorf("nats transport selected but push.nats_url is empty")
		}
		natsCfg := natspush.DefaultConfig(cfg.Push.NATSURL, cfg.Room.ID)
		natsCfg.MaxReconnects = cfg.Push.NATSMaxReconnects
		return natspush.NewSource(natsCfg), nil
	default:
		return nil, fmt.Errorf("unknown push transport %q", cfg.Push.Transport)
	}
}

// reportLoop logs the view model whenever the game state moves.
func reportLoop(ctx context.Context, sess *session.Session, clock clockwork.Clock) error {
	ticker := clock.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var lastRound, lastCalled int
	var lastNumber string
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			v := sess.Snapshot()
			if v.CurrentRound == lastRound && len(v.CalledSet) == lastCalled && v.CurrentNumber == lastNumber {
				continue
			}
			lastRound, lastCalled, lastNumber = v.CurrentRound, len(v.CalledSet), v.CurrentNumber

			log.Info().
				Int("round", v.CurrentRound).
				Str("status", string(v.RoundStatus)).
				Bool("transitioning", v.IsTransitioning).
				Int("called", len(v.CalledSet)).
				Str("current_number", v.CurrentNumber).
				Strs("last_n", v.LastN).
				Int("claim_countdown_sec", v.ClaimCountdownSec).
				Int("enrolled", v.EnrolledPlayers).
				Str("connection", string(v.Connection)).
				Msg("room state")
		}
	}
}
