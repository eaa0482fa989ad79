package room

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	socketReceiveTimeout = 2500 * time.Millisecond
	socketHeartbeat       = 1 * time.Second
	sendBufferSize        = 32
)

// Socket is one live duplex connection attached to an Endpoint.
type Socket struct {
	ID         string
	Session    *Session
	RemoteAddr string

	conn   *websocket.Conn
	send   chan []byte
	logger *zap.Logger

	endpoint  *Endpoint
	closeOnce sync.Once
	done      chan struct{}
}

func newSocket(conn *websocket.Conn, session *Session, ep *Endpoint, logger *zap.Logger) *Socket {
	return &Socket{
		ID:         uuid.NewString(),
		Session:    session,
		RemoteAddr: conn.RemoteAddr().String(),
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		logger:     logger,
		endpoint:   ep,
		done:       make(chan struct{}),
	}
}

// Send marshals frame to JSON and enqueues it for delivery.
func (s *Socket) Send(frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		s.logger.Error("marshal outbound frame", zap.Error(err))
		return
	}
	s.SendRaw(data)
}

// SendRaw enqueues an already-encoded frame. It never blocks the caller on a
// slow reader: a full send buffer drops the socket instead of stalling
// fan-out for every other socket in the room.
func (s *Socket) SendRaw(data []byte) {
	select {
	case s.send <- data:
	default:
		s.logger.Warn("socket send buffer full, dropping socket", zap.String("socket", s.ID))
		s.Close()
	}
}

// Close disconnects the socket and removes it from its endpoint. Safe to
// call more than once or concurrently.
func (s *Socket) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			s.conn.Close()
		}
		s.endpoint.removeSocket(s)
	})
}

// writePump drains the send channel onto the wire and emits heartbeats.
func (s *Socket) writePump() {
	ticker := time.NewTicker(socketHeartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.Close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		}
	}
}

// readPump decodes inbound frames and dispatches them through the endpoint's
// command table, strictly in receive order for this socket. Exceeding the
// receive timeout kills the socket, not the room.
func (s *Socket) readPump(ctx context.Context) {
	defer s.Close()
	s.conn.SetReadDeadline(time.Now().Add(socketReceiveTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(socketReceiveTimeout))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(socketReceiveTimeout))
		s.endpoint.dispatch(ctx, s, data)
	}
}
