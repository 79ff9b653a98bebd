package push

import (
	"context"

	"github.com/rbastidas/bingolive/internal/bingo/events"
)

// ConnState is the push channel's connectivity, tracked per room
// subscription. Listeners are notified on every transition.
type ConnState string

const (
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
	StateDisconnected ConnState = "disconnected"
)

// Handler receives every decoded push event in server-send order.
type Handler func(ev *events.Event)

// StateListener observes connectivity transitions.
type StateListener func(previous, current ConnState)

// Source is a push event feed for one room. WebSocket and NATS transports
// both satisfy it, so the session and syncer never know which one is wired.
type Source interface {
	// Run blocks, delivering events to the registered handler and
	// reconnecting as needed, until ctx is cancelled.
	Run(ctx context.Context) error
	// OnEvent registers the event handler. Must be called before Run.
	OnEvent(h Handler)
	// OnStateChange registers a connectivity listener. Must be called
	// before Run.
	OnStateChange(l StateListener)
	// State returns the current connectivity.
	State() ConnState
}
