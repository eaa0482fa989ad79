package room

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// idleTimeout is how long a room may go without any socket activity before
// the reaper stops it.
const idleTimeout = 15 * time.Minute

// Room is the generic per-session container: a named set of Endpoints
// multiplexed over one engine-specific state blob. Room owns a single mutex
// that serialises every state mutation and the fan-out that follows it --
// per the wire protocol's ordering guarantee, a command handler runs to
// completion, then its fan-out runs to completion, before the next command
// for this room begins.
type Room struct {
	Code string

	// mu serialises game-state mutation, the fan-out that follows it, and
	// the room lifecycle fields below. socketsMu separately guards each
	// endpoint's live socket set: a socket can drop out (a full send buffer
	// closes it) from inside a fan-out goroutine running under mu, so socket
	// membership must never share a lock with fan-out itself.
	mu        sync.Mutex
	socketsMu sync.Mutex

	logger    *zap.Logger
	endpoints map[string]*Endpoint

	defaultEndpoint  string
	startingEndpoint string

	deadline time.Time
	stopped  bool
	onStop   func()

	// State is the opaque engine-specific payload, e.g. an
	// *onlyconnect.Controller. Room never interprets it; command handlers,
	// built by the engine facade that constructs the room, close over it
	// directly.
	State any
}

// NewRoom builds an empty room with a fresh idle deadline. onStop, if
// non-nil, runs once Stop has closed every socket -- the registry uses it to
// release the room's short codes.
func NewRoom(code string, logger *zap.Logger, onStop func()) *Room {
	return &Room{
		Code:      code,
		logger:    logger,
		endpoints: make(map[string]*Endpoint),
		deadline:  time.Now().Add(idleTimeout),
		onStop:    onStop,
	}
}

// AddEndpoint registers a new named endpoint with its own short code. The
// first endpoint added becomes the default endpoint, whose code is the
// room's own code.
func (r *Room) AddEndpoint(name, code string, admin bool) *Endpoint {
	ep := newEndpoint(name, code, admin, r, r.logger)
	r.mu.Lock()
	r.endpoints[name] = ep
	if r.defaultEndpoint == "" {
		r.defaultEndpoint = name
	}
	r.mu.Unlock()
	return ep
}

// SetStartingEndpoint records which endpoint a visitor to the room's own
// short code should land on.
func (r *Room) SetStartingEndpoint(name string) { r.startingEndpoint = name }

// DefaultEndpoint returns the endpoint whose code is the room's own code.
func (r *Room) DefaultEndpoint() *Endpoint { return r.Endpoint(r.defaultEndpoint) }

// StartingEndpointName returns the name of the endpoint new visitors land on.
func (r *Room) StartingEndpointName() string { return r.startingEndpoint }

// Endpoint looks up a named endpoint, or nil if there is none by that name.
func (r *Room) Endpoint(name string) *Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endpoints[name]
}

// Endpoints returns every endpoint's (name, code) pair, for the host-only
// `endpoints` frame.
func (r *Room) Endpoints() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.endpoints))
	for name, ep := range r.endpoints {
		out[name] = ep.Code
	}
	return out
}

// Ping resets the idle deadline. Called whenever any socket in the room does
// anything.
func (r *Room) Ping() {
	r.mu.Lock()
	r.deadline = time.Now().Add(idleTimeout)
	r.mu.Unlock()
}

// Reap reports whether the idle deadline has passed, stopping the room as a
// side effect if so.
func (r *Room) Reap() bool {
	r.mu.Lock()
	expired := time.Now().After(r.deadline)
	r.mu.Unlock()
	if expired {
		r.Stop("idle timeout")
	}
	return expired
}

// Stop is idempotent: the first call sends a close frame to every socket on
// every endpoint, disconnects them, and invokes onStop. Later calls are
// no-ops.
func (r *Room) Stop(reason string) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	eps := r.endpointList()
	r.mu.Unlock()

	r.logger.Info("stopping room", zap.String("room", r.Code), zap.String("reason", reason))
	for _, ep := range eps {
		ep.closeAll()
	}
	if r.onStop != nil {
		r.onStop()
	}
}

// Stopped reports whether Stop has already run.
func (r *Room) Stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

func (r *Room) endpointList() []*Endpoint {
	out := make([]*Endpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		out = append(out, ep)
	}
	return out
}

func (r *Room) addSocket(ep *Endpoint, s *Socket) {
	r.socketsMu.Lock()
	ep.sockets[s.ID] = s
	r.socketsMu.Unlock()
	r.Ping()
}

func (r *Room) removeSocket(ep *Endpoint, s *Socket) {
	r.socketsMu.Lock()
	delete(ep.sockets, s.ID)
	r.socketsMu.Unlock()
}

// socketsFor is safe to call from inside a fan-out goroutine running under
// mu: it only ever takes socketsMu.
func (r *Room) socketsFor(ep *Endpoint) []*Socket {
	r.socketsMu.Lock()
	defer r.socketsMu.Unlock()
	out := make([]*Socket, 0, len(ep.sockets))
	for _, s := range ep.sockets {
		out = append(out, s)
	}
	return out
}

// Mutate runs fn with the room's serialisation lock held. If fn reports the
// state changed, Fanout runs before the lock is released, so no other
// command for this room can interleave between a mutation and the fan-out it
// triggers. Command handlers are expected to call this rather than touch
// Room.State directly.
func (r *Room) Mutate(fn func() bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fn() {
		r.fanoutLocked()
	}
}

// Fanout re-renders and re-sends every endpoint's view without an
// accompanying mutation, e.g. on socket join.
func (r *Room) Fanout() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fanoutLocked()
}

// fanoutLocked must run with mu held. It snapshots each endpoint's socket
// set up front and hands it to a goroutine per endpoint, so a slow render or
// a broken socket on one endpoint can never starve another -- and so the
// per-endpoint goroutines never need to touch mu themselves.
func (r *Room) fanoutLocked() {
	type job struct {
		ep      *Endpoint
		sockets []*Socket
	}
	jobs := make([]job, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		jobs = append(jobs, job{ep: ep, sockets: r.socketsFor(ep)})
	}

	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			j.ep.fanoutOnce(j.sockets, r.logger)
		}(j)
	}
	wg.Wait()
}
