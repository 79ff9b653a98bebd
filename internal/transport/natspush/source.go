package natspush

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/rbastidas/bingolive/internal/bingo/events"
	"github.com/rbastidas/bingolive/internal/transport/push"
)

// Config holds configuration for the NATS push source.
type Config struct {
	URL           string
	RoomID        string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConfig returns default NATS push source configuration.
func DefaultConfig(url, roomID string) Config {
	return Config{
		URL:           url,
		RoomID:        roomID,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Source delivers room events over NATS. Venue and kiosk deployments run the
// same client against an in-house NATS relay instead of the public WebSocket
// edge; the event envelopes on the subject are identical.
type Source struct {
	cfg Config

	mu        sync.RWMutex
	state     push.ConnState
	handler   push.Handler
	listeners []push.StateListener
}

// NewSource creates a NATS-backed push source.
func NewSource(cfg Config) *Source {
	return &Source{
		cfg:   cfg,
		state: push.StateDisconnected,
	}
}

// OnEvent registers the event handler. Must be called before Run.
func (s *Source) OnEvent(h push.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// OnStateChange registers a connectivity listener. Must be called before Run.
func (s *Source) OnStateChange(l push.StateListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// State returns the current connectivity.
func (s *Source) State() push.ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Run connects, subscribes to the room subject, and blocks until ctx is
// cancelled. The NATS client owns reconnection; its callbacks feed the same
// connection-state machine the WebSocket transport uses.
func (s *Source) Run(ctx context.Context) error {
	opts := []nats.Option{
		nats.MaxReconnects(s.cfg.MaxReconnects),
		nats.ReconnectWait(s.cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Str("room_id", s.cfg.RoomID).Msg("NATS disconnected")
			s.setState(push.StateReconnecting)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Str("room_id", s.cfg.RoomID).Msg("NATS reconnected")
			s.setState(push.StateConnected)
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			s.setState(push.StateDisconnected)
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(s.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	subject := fmt.Sprintf("bingo.rooms.%s.events", s.cfg.RoomID)
	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		ev, err := events.Parse(msg.Data)
		if err != nil {
			log.Debug().
				Err(err).
				Str("subject", msg.Subject).
				Msg("dropping undecodable push frame")
			return
		}

		s.mu.RLock()
		handler := s.handler
		s.mu.RUnlock()
		if handler != nil {
			handler(ev)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	defer sub.Unsubscribe()

	s.setState(push.StateConnected)
	log.Info().Str("subject", subject).Msg("NATS push source subscribed")

	<-ctx.Done()
	s.setState(push.StateDisconnected)
	return nil
}

func (s *Source) setState(next push.ConnState) {
	s.mu.Lock()
	prev := s.state
	if prev == next {
		s.mu.Unlock()
		return
	}
	s.state = next
	listeners := make([]push.StateListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l(prev, next)
	}
}
