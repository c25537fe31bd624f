// Package session owns the authentication state of the service: the Gate
// state machine that decides which route region is reachable, and the Form
// that validates and submits credentials.
package session

import (
	"context"
	"path"
	"strings"
	"sync"

	"github.com/giygas/medisearch/entities"
	"github.com/giygas/medisearch/interfaces"
	"github.com/giygas/medisearch/logging"
	"github.com/giygas/medisearch/metrics"
)

// Route regions
const (
	LoginPath = "/login"
	RootPath  = "/admin"
)

// Phase is the authentication phase of the session
type Phase int

const (
	PhaseUnknown Phase = iota
	PhaseAnonymous
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseUnknown:
		return "unknown"
	case PhaseAnonymous:
		return "anonymous"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "invalid"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// State is the process-wide session state. Identity is set only when
// Phase is PhaseAuthenticated.
type State struct {
	Phase    Phase              `json:"phase"`
	Identity *entities.Identity `json:"identity,omitempty"`
}

func stateFor(identity *entities.Identity) State {
	if identity == nil {
		return State{Phase: PhaseAnonymous}
	}
	return State{Phase: PhaseAuthenticated, Identity: identity}
}

func (s State) same(other State) bool {
	return s.Phase == other.Phase && s.Identity.SameAs(other.Identity)
}

// DecisionKind is the outcome of resolving a location against the gate
type DecisionKind int

const (
	// DecisionLoading means the phase is not known yet; show a loading indicator
	DecisionLoading DecisionKind = iota
	DecisionAllow
	DecisionRedirect
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionLoading:
		return "loading"
	case DecisionAllow:
		return "allow"
	case DecisionRedirect:
		return "redirect"
	default:
		return "invalid"
	}
}

// Decision tells the router what to do with a requested location
type Decision struct {
	Kind     DecisionKind
	Location string // set for DecisionRedirect
}

// Gate is the session state machine. It holds one long-lived subscription to
// the identity service and serialises every transition.
type Gate struct {
	svc interfaces.IdentityService

	// transitionMu orders transitions and observer calls and guards notified;
	// mu guards state
	transitionMu sync.Mutex
	notified     uint64
	mu           sync.RWMutex
	state        State
	observers    []func(State)

	ready     chan struct{}
	readyOnce sync.Once

	startOnce   sync.Once
	unsubscribe func()
}

// NewGate creates a gate in PhaseUnknown. Call Start to subscribe.
func NewGate(svc interfaces.IdentityService) *Gate {
	metrics.SessionPhase.Set(float64(PhaseUnknown))
	return &Gate{
		svc:   svc,
		ready: make(chan struct{}),
	}
}

// Start installs the subscription. Calling it more than once has no effect.
func (g *Gate) Start() {
	g.startOnce.Do(func() {
		unsubscribe := g.svc.Subscribe(g.notify)

		g.mu.Lock()
		g.unsubscribe = unsubscribe
		g.mu.Unlock()
	})
}

// Stop drops the subscription. The state is kept.
func (g *Gate) Stop() {
	g.mu.Lock()
	unsubscribe := g.unsubscribe
	g.unsubscribe = nil
	g.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// State returns the current session state
func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Ready is closed once the phase has left PhaseUnknown
func (g *Gate) Ready() <-chan struct{} {
	return g.ready
}

// OnChange registers an observer called after every effective transition.
// Observers run outside the state lock but must not trigger a transition
// synchronously.
func (g *Gate) OnChange(fn func(State)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observers = append(g.observers, fn)
}

// SignIn signs in through the identity service. The returned identity is
// applied only when no notification arrived while the call was running.
func (g *Gate) SignIn(ctx context.Context, email, password string) (*entities.Identity, error) {
	seen := g.notifications()
	identity, err := g.svc.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	g.settle(seen, identity)
	return identity, nil
}

// SignUp creates an account through the identity service, settling the
// gate like SignIn
func (g *Gate) SignUp(ctx context.Context, email, password string) (*entities.Identity, error) {
	seen := g.notifications()
	identity, err := g.svc.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	g.settle(seen, identity)
	return identity, nil
}

// SignOut signs out and moves to PhaseAnonymous unless a notification
// arrived meanwhile
func (g *Gate) SignOut(ctx context.Context) error {
	seen := g.notifications()
	if err := g.svc.SignOut(ctx); err != nil {
		return err
	}
	g.settle(seen, nil)
	return nil
}

func (g *Gate) notifications() uint64 {
	g.transitionMu.Lock()
	defer g.transitionMu.Unlock()
	return g.notified
}

// notify is the subscription callback. Notifications always win over call
// results.
func (g *Gate) notify(identity *entities.Identity) {
	g.transitionMu.Lock()
	defer g.transitionMu.Unlock()
	g.notified++
	g.apply(identity)
}

// settle applies the result of a call that started after seen notifications.
// A newer notification already describes the provider state, so the result
// is dropped.
func (g *Gate) settle(seen uint64, identity *entities.Identity) {
	g.transitionMu.Lock()
	defer g.transitionMu.Unlock()
	if g.notified != seen {
		return
	}
	g.apply(identity)
}

// apply moves to the state for identity. Identical states are no-ops.
// Caller holds transitionMu.
func (g *Gate) apply(identity *entities.Identity) {
	next := stateFor(identity)

	g.mu.Lock()
	previous := g.state
	if previous.same(next) {
		g.mu.Unlock()
		return
	}
	g.state = next
	observers := append([]func(State){}, g.observers...)
	g.mu.Unlock()

	g.readyOnce.Do(func() { close(g.ready) })
	metrics.SessionPhase.Set(float64(next.Phase))

	if next.Identity != nil {
		logging.Info("Session changed", "from", previous.Phase.String(), "to", next.Phase.String(), "uid", next.Identity.UID)
	} else {
		logging.Info("Session changed", "from", previous.Phase.String(), "to", next.Phase.String())
	}

	for _, fn := range observers {
		fn(next)
	}
}

// Resolve decides whether location is reachable in the current phase
func (g *Gate) Resolve(location string) Decision {
	return resolve(g.State().Phase, location)
}

func resolve(phase Phase, location string) Decision {
	location = cleanPath(location)

	switch phase {
	case PhaseAnonymous:
		if location == LoginPath {
			return Decision{Kind: DecisionAllow}
		}
		return Decision{Kind: DecisionRedirect, Location: LoginPath}
	case PhaseAuthenticated:
		if location == RootPath || strings.HasPrefix(location, RootPath+"/") {
			return Decision{Kind: DecisionAllow}
		}
		return Decision{Kind: DecisionRedirect, Location: RootPath}
	default:
		return Decision{Kind: DecisionLoading}
	}
}

func cleanPath(location string) string {
	if location == "" {
		return "/"
	}
	if !strings.HasPrefix(location, "/") {
		location = "/" + location
	}
	return path.Clean(location)
}
