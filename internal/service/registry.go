package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chatvault/server-go/internal/chat"
	"github.com/chatvault/server-go/internal/model"
)

// initFlight is a one-shot future for an in-flight initialize attempt.
// The first settle wins; later settles are no-ops.
type initFlight struct {
	done   chan struct{}
	once   sync.Once
	result InitializeResult
}

func newInitFlight() *initFlight {
	return &initFlight{done: make(chan struct{})}
}

func (f *initFlight) settle(result InitializeResult) {
	f.once.Do(func() {
		f.result = result
		close(f.done)
	})
}

// wait blocks until the flight settles or ctx expires. A waiter giving up
// does not abort the attempt; it keeps running for the other waiters.
func (f *initFlight) wait(ctx context.Context) InitializeResult {
	select {
	case <-f.done:
		return f.result
	case <-ctx.Done():
		return InitializeResult{Error: "wait cancelled: " + ctx.Err().Error()}
	}
}

// clientHandle owns exactly one chat client. Nothing else in the process
// may call the client's commands; access from other components is mediated
// by the orchestrator.
type clientHandle struct {
	id        string
	userID    string
	client    chat.Client
	createdAt time.Time

	mu    sync.RWMutex
	state model.SessionState
}

func newClientHandle(userID string, client chat.Client) *clientHandle {
	return &clientHandle{
		id:        uuid.NewString(),
		userID:    userID,
		client:    client,
		createdAt: time.Now(),
		state:     model.StateInitializing,
	}
}

func (h *clientHandle) State() model.SessionState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// setState applies next if the transition is legal and reports whether the
// handle moved.
func (h *clientHandle) setState(next model.SessionState) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !transitionAllowed(h.state, next) {
		return false
	}
	h.state = next
	return true
}

// transitionAllowed encodes the handle state machine: forward-only, except
// that awaiting_pairing may bounce back to initializing while credentials
// settle, and teardown states are reachable from any live state.
func transitionAllowed(from, to model.SessionState) bool {
	if from == to {
		return false
	}
	if from == model.StateDisconnected || from == model.StateFailed {
		return false
	}
	if to == model.StateDisconnected || to == model.StateFailed {
		return true
	}
	if from == model.StateAwaitingPairing && to == model.StateInitializing {
		return true
	}
	return stateRank(to) > stateRank(from)
}

func stateRank(s model.SessionState) int {
	switch s {
	case model.StateInitializing:
		return 0
	case model.StateAwaitingPairing:
		return 1
	case model.StateAuthenticated:
		return 2
	case model.StateReady:
		return 3
	default:
		return 4
	}
}

// registry is the single lock-guarded home for all live per-user session
// state: client handles, in-flight initialize futures and cached pairing
// codes. One mutex over all three maps keeps the cross-checks in
// Initialize atomic.
type registry struct {
	mu           sync.Mutex
	handles      map[string]*clientHandle
	flights      map[string]*initFlight
	pairingCodes map[string]string
}

func newRegistry() *registry {
	return &registry{
		handles:      make(map[string]*clientHandle),
		flights:      make(map[string]*initFlight),
		pairingCodes: make(map[string]string),
	}
}

// beginFlight is the dedup gate. It returns the user's in-flight future and
// whether this call created it; callers that did not create the flight must
// join it instead of running their own attempt. ready short-circuits both
// when a live ready handle already exists.
func (r *registry) beginFlight(userID string) (flight *initFlight, created bool, ready bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.flights[userID]; ok {
		return f, false, false
	}
	if h, ok := r.handles[userID]; ok && h.State() == model.StateReady && h.client.Identity() != nil {
		return nil, false, true
	}

	f := newInitFlight()
	r.flights[userID] = f
	return f, true, false
}

func (r *registry) flight(userID string) *initFlight {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flights[userID]
}

// takeFlight removes f if it is still the registered flight for the user,
// so a finished attempt cannot evict its successor.
func (r *registry) takeFlight(userID string, f *initFlight) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.flights[userID] == f {
		delete(r.flights, userID)
	}
}

func (r *registry) handle(userID string) *clientHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[userID]
}

// setHandle installs h and returns the handle it displaced, if any.
func (r *registry) setHandle(h *clientHandle) *clientHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.handles[h.userID]
	r.handles[h.userID] = h
	return old
}

// removeHandle drops h only while it is still current, so a stale teardown
// cannot evict a newer connection. Reports whether h was current.
func (r *registry) removeHandle(h *clientHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handles[h.userID] != h {
		return false
	}
	delete(r.handles, h.userID)
	return true
}

// takeHandle removes and returns the user's current handle.
func (r *registry) takeHandle(userID string) *clientHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.handles[userID]
	delete(r.handles, userID)
	return h
}

func (r *registry) handleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

func (r *registry) setPairingCode(userID, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pairingCodes[userID] = code
}

func (r *registry) pairingCode(userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.pairingCodes[userID]
	return code, ok
}

func (r *registry) clearPairingCode(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pairingCodes, userID)
}
