package visibility

import "sync"

// Source reports whether the hosting surface (browser tab, kiosk screen) is
// visible. The real signal belongs to whatever embeds this client; the sync
// coordinator only cares about hidden-to-visible edges.
type Source interface {
	// Subscribe registers a listener invoked on every visibility change.
	Subscribe(func(visible bool))
	// Visible returns the current visibility.
	Visible() bool
}

// Notifier is the concrete Source the embedding layer drives.
type Notifier struct {
	mu        sync.Mutex
	visible   bool
	listeners []func(visible bool)
}

// NewNotifier returns a Notifier that starts visible.
func NewNotifier() *Notifier {
	return &Notifier{visible: true}
}

// Subscribe registers a listener invoked on every visibility change.
func (n *Notifier) Subscribe(l func(visible bool)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, l)
}

// Visible returns the current visibility.
func (n *Notifier) Visible() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.visible
}

// Set records a visibility change and notifies listeners. Setting the same
// value twice is a no-op.
func (n *Notifier) Set(visible bool) {
	n.mu.Lock()
	if n.visible == visible {
		n.mu.Unlock()
		return
	}
	n.visible = visible
	listeners := make([]func(bool), len(n.listeners))
	copy(listeners, n.listeners)
	n.mu.Unlock()

	for _, l := range listeners {
		l(visible)
	}
}
