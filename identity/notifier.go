package identity

import (
	"sync"

	"github.com/giygas/medisearch/entities"
)

// notifier keeps the current identity and delivers it to listeners.
// Deliveries are serialised and always carry the latest identity, so a
// listener never sees an older state after a newer one. Listeners must not
// call back into the provider synchronously.
type notifier struct {
	mu        sync.Mutex
	current   *entities.Identity
	isKnown   bool
	known     chan struct{}
	knownOnce sync.Once
	listeners map[int]*listener
	nextID    int

	emitMu sync.Mutex
}

type listener struct {
	fn        func(*entities.Identity)
	delivered bool // guarded by emitMu
}

func newNotifier() *notifier {
	return &notifier{
		known:     make(chan struct{}),
		listeners: make(map[int]*listener),
	}
}

// subscribe registers fn. The first delivery happens asynchronously once the
// current identity is known.
func (n *notifier) subscribe(fn func(*entities.Identity)) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = &listener{fn: fn}
	n.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.listeners, id)
			n.mu.Unlock()
			close(done)
		})
	}

	go func() {
		select {
		case <-n.known:
		case <-done:
			return
		}

		n.emitMu.Lock()
		defer n.emitMu.Unlock()

		n.mu.Lock()
		l, ok := n.listeners[id]
		current := n.current
		n.mu.Unlock()

		// An emit after known may already have served as the first delivery
		if ok && !l.delivered {
			l.delivered = true
			l.fn(current)
		}
	}()

	return unsubscribe
}

// set records the identity and notifies every listener
func (n *notifier) set(identity *entities.Identity) {
	n.mu.Lock()
	n.current = identity
	n.isKnown = true
	n.mu.Unlock()
	n.knownOnce.Do(func() { close(n.known) })

	n.emit()
}

// setInitial is set for the restored session. It does nothing when a sign-in
// or sign-out already decided the identity.
func (n *notifier) setInitial(identity *entities.Identity) {
	n.mu.Lock()
	if n.isKnown {
		n.mu.Unlock()
		return
	}
	n.current = identity
	n.isKnown = true
	n.mu.Unlock()
	n.knownOnce.Do(func() { close(n.known) })

	n.emit()
}

func (n *notifier) emit() {
	n.emitMu.Lock()
	defer n.emitMu.Unlock()

	n.mu.Lock()
	current := n.current
	listeners := make([]*listener, 0, len(n.listeners))
	for _, l := range n.listeners {
		listeners = append(listeners, l)
	}
	n.mu.Unlock()

	for _, l := range listeners {
		l.delivered = true
		l.fn(current)
	}
}

// Current returns the signed-in identity, nil when nobody is signed in or
// the session has not been restored yet.
func (n *notifier) Current() *entities.Identity {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}
