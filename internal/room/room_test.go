package room

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

// TestMain fails the whole package if a room's goroutines (fan-out workers,
// write pumps) outlive the test that started them.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testSocket(ep *Endpoint) *Socket {
	return &Socket{
		ID:       "sock-1",
		logger:   zap.NewNop(),
		endpoint: ep,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
	}
}

func TestRoomPingResetsDeadline(t *testing.T) {
	r := NewRoom("ABCD", zap.NewNop(), nil)
	r.deadline = time.Now().Add(-time.Minute)
	r.Ping()
	assert.True(t, r.deadline.After(time.Now()))
}

func TestRoomReapStopsExpiredRoom(t *testing.T) {
	var stopped atomic.Bool
	r := NewRoom("ABCD", zap.NewNop(), func() { stopped.Store(true) })
	r.deadline = time.Now().Add(-time.Second)

	assert.True(t, r.Reap())
	assert.True(t, r.Stopped())
	assert.True(t, stopped.Load())
}

func TestRoomReapLeavesLiveRoomRunning(t *testing.T) {
	r := NewRoom("ABCD", zap.NewNop(), nil)
	assert.False(t, r.Reap())
	assert.False(t, r.Stopped())
}

func TestRoomStopIsIdempotent(t *testing.T) {
	var stopCalls atomic.Int32
	r := NewRoom("ABCD", zap.NewNop(), func() { stopCalls.Add(1) })

	r.Stop("first")
	r.Stop("second")

	assert.Equal(t, int32(1), stopCalls.Load())
}

func TestRoomMutateFansOutOnlyWhenChanged(t *testing.T) {
	r := NewRoom("ABCD", zap.NewNop(), nil)
	var renders atomic.Int32
	ep := r.AddEndpoint("gm", "WXYZ", true)
	ep.SetView(func(admin bool) any {
		renders.Add(1)
		return map[string]any{"cmd": "update"}
	})

	r.Mutate(func() bool { return false })
	assert.Equal(t, int32(0), renders.Load())

	r.Mutate(func() bool { return true })
	assert.Equal(t, int32(1), renders.Load())
}

func TestFanoutIsolatesSlowOrBrokenSocket(t *testing.T) {
	r := NewRoom("ABCD", zap.NewNop(), nil)
	ep := r.AddEndpoint("gm", "WXYZ", true)
	ep.SetView(func(admin bool) any { return map[string]any{"cmd": "update"} })

	healthy := testSocket(ep)
	ep.sockets[healthy.ID] = healthy

	broken := testSocket(ep)
	broken.ID = "sock-broken"
	for i := 0; i < sendBufferSize; i++ {
		broken.send <- []byte("stale") // fill the buffer so the next send drops the socket
	}
	ep.sockets[broken.ID] = broken

	require.NotPanics(t, func() { r.Fanout() })

	select {
	case data := <-healthy.send:
		var frame map[string]any
		require.NoError(t, json.Unmarshal(data, &frame))
		assert.Equal(t, "update", frame["cmd"])
	default:
		t.Fatal("expected healthy socket to receive a fan-out frame")
	}
}

func TestEndpointDispatchUnknownCommandSendsErrorFrameSocketStaysOpen(t *testing.T) {
	r := NewRoom("ABCD", zap.NewNop(), nil)
	ep := r.AddEndpoint("gm", "WXYZ", true)
	s := testSocket(ep)

	ep.dispatch(context.Background(), s, []byte(`{"cmd":"nonexistent"}`))

	data := <-s.send
	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, "error", frame["cmd"])
}

func TestEndpointDispatchMalformedFrameSendsErrorFrame(t *testing.T) {
	r := NewRoom("ABCD", zap.NewNop(), nil)
	ep := r.AddEndpoint("gm", "WXYZ", true)
	s := testSocket(ep)

	ep.dispatch(context.Background(), s, []byte(`not json`))

	data := <-s.send
	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, "error", frame["cmd"])
}

func TestEndpointDispatchRoutesRegisteredCommand(t *testing.T) {
	r := NewRoom("ABCD", zap.NewNop(), nil)
	ep := r.AddEndpoint("gm", "WXYZ", true)
	s := testSocket(ep)

	var gotArgs map[string]any
	ep.Handle("set_meta", func(ctx context.Context, s *Socket, args map[string]any) (any, error) {
		gotArgs = args
		return map[string]any{"cmd": "ack"}, nil
	})

	ep.dispatch(context.Background(), s, []byte(`{"cmd":"set_meta","title":"Round One"}`))

	assert.Equal(t, "Round One", gotArgs["title"])
	data := <-s.send
	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, "ack", frame["cmd"])
}

func TestEndpointDispatchHandlerErrorSendsErrorFrame(t *testing.T) {
	r := NewRoom("ABCD", zap.NewNop(), nil)
	ep := r.AddEndpoint("gm", "WXYZ", true)
	s := testSocket(ep)

	ep.Handle("boom", func(ctx context.Context, s *Socket, args map[string]any) (any, error) {
		return nil, assertError{"no good"}
	})

	ep.dispatch(context.Background(), s, []byte(`{"cmd":"boom"}`))

	data := <-s.send
	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, "error", frame["cmd"])
	assert.Equal(t, "no good", frame["message"])
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }
