package ws

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/rbastidas/bingolive/internal/bingo/events"
	"github.com/rbastidas/bingolive/internal/transport/push"
)

// Config holds configuration for the WebSocket push client.
type Config struct {
	URL            string // ws(s) endpoint for the room event channel
	RoomID         string
	AuthToken      string
	WriteTimeout   time.Duration
	PongWait       time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	ReconnectMin   time.Duration
	ReconnectMax   time.Duration
}

// DefaultConfig returns default WebSocket client configuration.
func DefaultConfig(url, roomID string) Config {
	return Config{
		URL:            url,
		RoomID:         roomID,
		WriteTimeout:   10 * time.Second,
		PongWait:       60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 4096,
		ReconnectMin:   time.Second,
		ReconnectMax:   30 * time.Second,
	}
}

// Client is the room's push channel over WebSocket. It owns the dial and
// reconnect loop, decodes incoming frames into events, and reports
// connectivity transitions to registered listeners.
type Client struct {
	cfg   Config
	clock clockwork.Clock

	mu        sync.RWMutex
	state     push.ConnState
	handler   push.Handler
	listeners []push.StateListener

	writeMu sync.Mutex
}

// NewClient creates a WebSocket push client. The clock drives ping and
// backoff timing so tests can use a fake.
func NewClient(cfg Config, clock clockwork.Clock) *Client {
	return &Client{
		cfg:   cfg,
		clock: clock,
		state: push.StateDisconnected,
	}
}

// OnEvent registers the event handler. Must be called before Run.
func (c *Client) OnEvent(h push.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// OnStateChange registers a connectivity listener. Must be called before Run.
func (c *Client) OnStateChange(l push.StateListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// State returns the current connectivity.
func (c *Client) State() push.ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Run dials the room channel and serves it until ctx is cancelled,
// reconnecting with capped exponential backoff after any failure.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.cfg.ReconnectMin

	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.setState(push.StateDisconnected)
				return nil
			}
			c.setState(push.StateReconnecting)
			log.Warn().
				Err(err).
				Str("room_id", c.cfg.RoomID).
				Dur("backoff", backoff).
				Msg("push channel dial failed, backing off")

			select {
			case <-ctx.Done():
				c.setState(push.StateDisconnected)
				return nil
			case <-c.clock.After(backoff):
			}
			backoff *= 2
			if backoff > c.cfg.ReconnectMax {
				backoff = c.cfg.ReconnectMax
			}
			continue
		}

		backoff = c.cfg.ReconnectMin
		c.setState(push.StateConnected)
		log.Info().Str("room_id", c.cfg.RoomID).Msg("push channel connected")

		c.serve(ctx, conn)

		if ctx.Err() != nil {
			c.setState(push.StateDisconnected)
			return nil
		}
		c.setState(push.StateReconnecting)
		log.Warn().Str("room_id", c.cfg.RoomID).Msg("push channel lost, reconnecting")
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.cfg.AuthToken != "" {
		header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}

	url := fmt.Sprintf("%s/rooms/%s/events", c.cfg.URL, c.cfg.RoomID)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

// serve reads frames until the connection dies or ctx is cancelled.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadLimit(c.cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Closing the conn is the only way to unblock ReadMessage on cancel.
	go func() {
		<-serveCtx.Done()
		conn.Close()
	}()
	go c.pingLoop(serveCtx, conn)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("room_id", c.cfg.RoomID).
					Msg("unexpected WebSocket close error")
			}
			return
		}

		ev, err := events.Parse(message)
		if err != nil {
			log.Debug().
				Err(err).
				Str("room_id", c.cfg.RoomID).
				Msg("dropping undecodable push frame")
			continue
		}

		c.mu.RLock()
		handler := c.handler
		c.mu.RUnlock()
		if handler != nil {
			handler(ev)
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := c.clock.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				log.Error().
					Err(err).
					Str("room_id", c.cfg.RoomID).
					Msg("failed to send ping")
				conn.Close()
				return
			}
		}
	}
}

func (c *Client) setState(next push.ConnState) {
	c.mu.Lock()
	prev := c.state
	if prev == next {
		c.mu.Unlock()
		return
	}
	c.state = next
	listeners := make([]push.StateListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		l(prev, next)
	}
}
