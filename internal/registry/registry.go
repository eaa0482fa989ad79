// Package registry holds every live room in the process, the short codes
// dispatch uses to find them, and the browser sessions handed to new
// sockets. It also runs the reaper that sweeps idle rooms.
package registry

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benharcourt/catbox-quiz/internal/room"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeLength   = 4
	reapInterval = 2 * time.Second
)

// Registry indexes rooms and endpoints by short code and holds the session
// table. A short code is 4 uppercase ASCII letters drawn uniformly at
// random, retried on collision; a room's default endpoint reuses the room's
// own code, every other endpoint gets a fresh one.
type Registry struct {
	mu        sync.RWMutex
	logger    *zap.Logger
	rooms     map[string]*room.Room
	endpoints map[string]*room.Endpoint
	sessions  map[string]*room.Session
}

// New builds an empty registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		logger:    logger,
		rooms:     make(map[string]*room.Room),
		endpoints: make(map[string]*room.Endpoint),
		sessions:  make(map[string]*room.Session),
	}
}

// Run sweeps for idle rooms every reapInterval until ctx is cancelled.
func (reg *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reg.sweep()
		}
	}
}

func (reg *Registry) sweep() {
	reg.mu.RLock()
	codes := make([]string, 0, len(reg.rooms))
	for code := range reg.rooms {
		codes = append(codes, code)
	}
	reg.mu.RUnlock()

	for _, code := range codes {
		reg.mu.RLock()
		r, ok := reg.rooms[code]
		reg.mu.RUnlock()
		if ok && r.Reap() {
			reg.logger.Info("reaped idle room", zap.String("room", code))
		}
	}
}

// newCode draws a fresh short code guaranteed not to collide with any room
// or endpoint code currently registered.
func (reg *Registry) newCode() string {
	for {
		b := make([]byte, codeLength)
		for i := range b {
			b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
		}
		code := string(b)

		reg.mu.RLock()
		_, roomTaken := reg.rooms[code]
		_, epTaken := reg.endpoints[code]
		reg.mu.RUnlock()
		if !roomTaken && !epTaken {
			return code
		}
	}
}

// CreateRoom allocates a fresh room code and registers an empty room under
// it. The room stops itself (idle timeout, or an explicit caller-driven
// Stop) and the registry is notified via onRoomStopped to release its codes.
func (reg *Registry) CreateRoom() *room.Room {
	code := reg.newCode()
	r := room.NewRoom(code, reg.logger, func() { reg.onRoomStopped(code) })
	reg.mu.Lock()
	reg.rooms[code] = r
	reg.mu.Unlock()
	return r
}

// AddDefaultEndpoint adds the room's primary endpoint, reusing the room's
// own short code rather than allocating a new one.
func (reg *Registry) AddDefaultEndpoint(r *room.Room, name string, admin bool) *room.Endpoint {
	ep := r.AddEndpoint(name, r.Code, admin)
	reg.mu.Lock()
	reg.endpoints[r.Code] = ep
	reg.mu.Unlock()
	r.SetStartingEndpoint(name)
	return ep
}

// AddEndpoint adds a secondary endpoint to r under a freshly allocated code.
func (reg *Registry) AddEndpoint(r *room.Room, name string, admin bool) *room.Endpoint {
	code := reg.newCode()
	ep := r.AddEndpoint(name, code, admin)
	reg.mu.Lock()
	reg.endpoints[code] = ep
	reg.mu.Unlock()
	return ep
}

func (reg *Registry) onRoomStopped(code string) {
	reg.mu.Lock()
	r, ok := reg.rooms[code]
	if !ok {
		reg.mu.Unlock()
		return
	}
	delete(reg.rooms, code)
	for _, epCode := range r.Endpoints() {
		delete(reg.endpoints, epCode)
	}
	reg.mu.Unlock()
}

// Room looks up a room by its own short code (case-insensitive).
func (reg *Registry) Room(code string) (*room.Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[strings.ToUpper(code)]
	return r, ok
}

// Endpoint looks up an endpoint by its short code (case-insensitive) -- this
// is the lookup the `/ws/{code}` route and `/room/{code}` route both use to
// find what a socket or browser should be dispatched to.
func (reg *Registry) Endpoint(code string) (*room.Endpoint, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	ep, ok := reg.endpoints[strings.ToUpper(code)]
	return ep, ok
}

// Stop stops the room with the given code, if it is still live.
func (reg *Registry) Stop(code, reason string) {
	r, ok := reg.Room(code)
	if !ok {
		return
	}
	r.Stop(reason)
}

// Shutdown stops every live room, for process shutdown.
func (reg *Registry) Shutdown(reason string) {
	reg.mu.RLock()
	rooms := make([]*room.Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.mu.RUnlock()

	for _, r := range rooms {
		r.Stop(reason)
	}
}

// Session looks up a session by its cookie value.
func (reg *Registry) Session(cookie string) *room.Session {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.sessions[cookie]
}

// NewSession mints a fresh, unauthenticated session with a new cookie value.
func (reg *Registry) NewSession() *room.Session {
	s := &room.Session{Cookie: uuid.NewString()}
	reg.mu.Lock()
	reg.sessions[s.Cookie] = s
	reg.mu.Unlock()
	return s
}

// SessionOrNew returns the session for cookie if one is registered,
// otherwise mints and registers a new one. Every new socket is handed the
// result of this call.
func (reg *Registry) SessionOrNew(cookie string) *room.Session {
	if cookie != "" {
		if s := reg.Session(cookie); s != nil {
			return s
		}
	}
	return reg.NewSession()
}
