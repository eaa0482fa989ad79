package room

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// CommandHandler handles one decoded inbound frame. Its return value, if
// non-nil, is sent back to the originating socket only; any broader side
// effect on room state is expected to run through Room.Mutate, which fans
// out to every socket on every endpoint on its own.
type CommandHandler func(ctx context.Context, s *Socket, args map[string]any) (any, error)

// authLevel is the minimum session privilege dispatch requires before it
// will run a command's handler at all.
type authLevel int

const (
	authNone authLevel = iota
	authHost
	authModerator
)

type commandEntry struct {
	handler CommandHandler
	noLog   bool
	auth    authLevel
}

// ViewFunc renders one endpoint's current view of the room -- public or
// admin -- for both the initial snapshot and every subsequent fan-out.
type ViewFunc func(admin bool) any

// Endpoint is one named, independently addressable view onto a Room: its own
// short code, its own socket set, its own command table. A room with two
// teams and a host typically has a gm endpoint, an overlay endpoint, and one
// endpoint per team, each with a different command table and view.
type Endpoint struct {
	Name  string
	Code  string
	Admin bool // host-only endpoints get the admin view and admin-gated commands

	room     *Room
	logger   *zap.Logger
	sockets  map[string]*Socket
	commands map[string]commandEntry
	onJoin   func(ctx context.Context, s *Socket) any
	onLeave  func(s *Socket)
	view     ViewFunc
}

func newEndpoint(name, code string, admin bool, room *Room, logger *zap.Logger) *Endpoint {
	return &Endpoint{
		Name:     name,
		Code:     code,
		Admin:    admin,
		room:     room,
		logger:   logger,
		sockets:  make(map[string]*Socket),
		commands: make(map[string]commandEntry),
	}
}

// Handle registers a command handler, looked up by the wire frame's cmd
// field and logged once per call. Any session, authenticated or not, may
// invoke it.
func (e *Endpoint) Handle(cmd string, fn CommandHandler) {
	e.commands[cmd] = commandEntry{handler: fn}
}

// HandleQuiet registers a command handler that is exempt from per-call
// logging: high-frequency, routine commands like presence pings or clue
// toggles would otherwise drown the log.
func (e *Endpoint) HandleQuiet(cmd string, fn CommandHandler) {
	e.commands[cmd] = commandEntry{handler: fn, noLog: true}
}

// HandleHost registers a command handler that dispatch refuses to run
// unless the calling socket's session is authenticated, per spec.md §4.D's
// host-only command gate.
func (e *Endpoint) HandleHost(cmd string, fn CommandHandler) {
	e.commands[cmd] = commandEntry{handler: fn, auth: authHost}
}

// HandleQuietHost is HandleHost without per-call logging.
func (e *Endpoint) HandleQuietHost(cmd string, fn CommandHandler) {
	e.commands[cmd] = commandEntry{handler: fn, noLog: true, auth: authHost}
}

// HandleModerator registers a command handler that dispatch refuses to run
// unless the calling socket's session is an authenticated moderator, per
// spec.md §4.D's moderator-only command gate.
func (e *Endpoint) HandleModerator(cmd string, fn CommandHandler) {
	e.commands[cmd] = commandEntry{handler: fn, auth: authModerator}
}

// OnJoin sets the handler that builds a newly connected socket's synchronous
// initial payload.
func (e *Endpoint) OnJoin(fn func(ctx context.Context, s *Socket) any) { e.onJoin = fn }

// OnLeave sets the handler run once a socket disconnects, after it has
// already been removed from this endpoint's socket set.
func (e *Endpoint) OnLeave(fn func(s *Socket)) { e.onLeave = fn }

// SetView sets the function used to render this endpoint's state, both for
// the initial snapshot and for fan-out.
func (e *Endpoint) SetView(fn ViewFunc) { e.view = fn }

// Join attaches a new socket: it joins the endpoint's socket set, receives
// its initial payload, then runs its write pump and blocks in its read pump
// until the connection ends.
func (e *Endpoint) Join(ctx context.Context, s *Socket) {
	e.room.addSocket(e, s)

	if e.onJoin != nil {
		s.Send(e.onJoin(ctx, s))
	}

	go s.writePump()
	s.readPump(ctx)
}

// Accept wraps an upgraded websocket connection in a Socket and joins it to
// this endpoint, blocking until the connection closes. The caller -- the
// `/ws/:code` HTTP handler -- owns upgrading the HTTP connection; everything
// after that is this package's concern.
func (e *Endpoint) Accept(ctx context.Context, conn *websocket.Conn, session *Session) {
	s := newSocket(conn, session, e, e.logger)
	e.Join(ctx, s)
}

func (e *Endpoint) removeSocket(s *Socket) {
	e.room.removeSocket(e, s)
	if e.onLeave != nil {
		e.onLeave(s)
	}
}

// dispatch decodes one inbound frame and runs its handler. Decode and
// dispatch errors are reported back to the originating socket only; the
// socket stays connected.
func (e *Endpoint) dispatch(ctx context.Context, s *Socket, raw []byte) {
	var frame map[string]any
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.Send(errorFrame(fmt.Sprintf("malformed frame: %v", err)))
		return
	}

	cmdName, _ := frame["cmd"].(string)
	entry, ok := e.commands[cmdName]
	if !ok {
		s.Send(errorFrame(fmt.Sprintf("unknown command %q", cmdName)))
		return
	}
	delete(frame, "cmd")

	if !authorized(entry.auth, s.Session) {
		e.logger.Warn("command refused: insufficient privilege",
			zap.String("endpoint", e.Name),
			zap.String("cmd", cmdName),
			zap.String("socket", s.ID),
		)
		s.Send(errorFrame(fmt.Sprintf("not authorized for command %q", cmdName)))
		return
	}

	if !entry.noLog {
		e.logger.Info("command",
			zap.String("endpoint", e.Name),
			zap.String("cmd", cmdName),
			zap.String("socket", s.ID),
		)
	}

	reply, err := entry.handler(ctx, s, frame)
	if err != nil {
		e.logger.Warn("command failed", zap.String("cmd", cmdName), zap.Error(err))
		s.Send(errorFrame(err.Error()))
		return
	}
	if reply != nil {
		s.Send(reply)
	}
}

// authorized reports whether sess meets the privilege level required. A nil
// session satisfies only authNone.
func authorized(level authLevel, sess *Session) bool {
	switch level {
	case authHost:
		return sess.IsHost()
	case authModerator:
		return sess.IsModerator()
	default:
		return true
	}
}

func errorFrame(message string) map[string]any {
	return map[string]any{"cmd": "error", "message": message}
}

// Broadcast sends a pre-rendered frame to every socket currently on this
// endpoint. It walks the live socket set under the room's socket-set lock
// only, never the mutation lock, so it may be called from inside a
// Room.Mutate callback.
func (e *Endpoint) Broadcast(frame any) {
	for _, s := range e.room.socketsFor(e) {
		s.Send(frame)
	}
}

// fanoutOnce renders this endpoint's current view and writes it to every
// socket on it. Called with the room's socket snapshot already taken, so it
// never itself touches the room lock.
func (e *Endpoint) fanoutOnce(sockets []*Socket, logger *zap.Logger) {
	if e.view == nil {
		return
	}
	frame := e.view(e.Admin)
	data, err := json.Marshal(frame)
	if err != nil {
		logger.Error("marshal fanout frame", zap.String("endpoint", e.Name), zap.Error(err))
		return
	}
	for _, s := range sockets {
		s.SendRaw(data)
	}
}

// closeAll sends a close frame to every socket on this endpoint and
// disconnects them.
func (e *Endpoint) closeAll() {
	for _, s := range e.room.socketsFor(e) {
		s.Send(map[string]any{"cmd": "close"})
		s.Close()
	}
}
