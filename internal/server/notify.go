package server

import "sync"

// Notifier fans changed event IDs out to connected change-feed watchers.
// Slow watchers drop notifications instead of blocking writers; the feed is
// advisory and a missed ID only delays a reload until the next change.
type Notifier struct {
	mu      sync.Mutex
	clients map[chan string]struct{}
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{clients: make(map[chan string]struct{})}
}

// Subscribe registers a watcher. The returned cancel func must be called
// when the watcher disconnects.
func (n *Notifier) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 16)
	n.mu.Lock()
	n.clients[ch] = struct{}{}
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		delete(n.clients, ch)
		n.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast sends an event ID to every watcher.
func (n *Notifier) Broadcast(eventID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.clients {
		select {
		case ch <- eventID:
		default:
		}
	}
}
