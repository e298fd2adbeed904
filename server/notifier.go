package server

import "sync"

// commitNotifier pings every connected event stream when a snapshot is
// committed. A ping carries no data; receivers read the committed snapshot
// themselves, so a slow receiver only ever sees the latest one.
type commitNotifier struct {
	mu        sync.RWMutex
	listeners map[chan struct{}]struct{}
}

func newCommitNotifier() *commitNotifier {
	return &commitNotifier{listeners: make(map[chan struct{}]struct{})}
}

func (n *commitNotifier) subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

func (n *commitNotifier) unsubscribe(ch chan struct{}) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
}

// broadcast never blocks; a full channel already has a ping pending.
func (n *commitNotifier) broadcast() {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
