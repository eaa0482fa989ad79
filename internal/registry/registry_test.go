package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCreateRoomAllocatesUppercaseFourLetterCode(t *testing.T) {
	reg := New(zap.NewNop())
	r := reg.CreateRoom()

	require.Len(t, r.Code, 4)
	for _, c := range r.Code {
		assert.True(t, c >= 'A' && c <= 'Z')
	}

	found, ok := reg.Room(r.Code)
	assert.True(t, ok)
	assert.Same(t, r, found)
}

func TestDefaultEndpointReusesRoomCode(t *testing.T) {
	reg := New(zap.NewNop())
	r := reg.CreateRoom()
	ep := reg.AddDefaultEndpoint(r, "gm", true)

	assert.Equal(t, r.Code, ep.Code)
	found, ok := reg.Endpoint(r.Code)
	assert.True(t, ok)
	assert.Same(t, ep, found)
	assert.Equal(t, "gm", r.StartingEndpointName())
}

func TestSecondaryEndpointGetsItsOwnCode(t *testing.T) {
	reg := New(zap.NewNop())
	r := reg.CreateRoom()
	reg.AddDefaultEndpoint(r, "gm", true)
	overlay := reg.AddEndpoint(r, "overlay", false)

	assert.NotEqual(t, r.Code, overlay.Code)
	found, ok := reg.Endpoint(overlay.Code)
	assert.True(t, ok)
	assert.Same(t, overlay, found)
}

func TestEndpointLookupIsCaseInsensitive(t *testing.T) {
	reg := New(zap.NewNop())
	r := reg.CreateRoom()
	reg.AddDefaultEndpoint(r, "gm", true)

	_, ok := reg.Endpoint(toLower(r.Code))
	assert.True(t, ok)
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func TestStoppingRoomReleasesItsOwnAndEveryEndpointCode(t *testing.T) {
	reg := New(zap.NewNop())
	r := reg.CreateRoom()
	reg.AddDefaultEndpoint(r, "gm", true)
	overlay := reg.AddEndpoint(r, "overlay", false)

	reg.Stop(r.Code, "test")

	_, roomOk := reg.Room(r.Code)
	_, defaultEpOk := reg.Endpoint(r.Code)
	_, overlayOk := reg.Endpoint(overlay.Code)
	assert.False(t, roomOk)
	assert.False(t, defaultEpOk)
	assert.False(t, overlayOk)
}

// Idle-deadline arithmetic itself is exercised in internal/room, which can
// reach into Room's unexported deadline field; here we only check that a
// sweep over a freshly created, non-idle room is a no-op.
func TestSweepLeavesLiveRoomRegistered(t *testing.T) {
	reg := New(zap.NewNop())
	r := reg.CreateRoom()

	reg.sweep()

	_, ok := reg.Room(r.Code)
	assert.True(t, ok)
}

func TestSessionOrNewIsStableAcrossCalls(t *testing.T) {
	reg := New(zap.NewNop())
	s := reg.NewSession()

	again := reg.SessionOrNew(s.Cookie)
	assert.Same(t, s, again)

	fresh := reg.SessionOrNew("")
	assert.NotSame(t, s, fresh)
}

func TestNewCodeNeverCollidesWithAnExistingRoomOrEndpoint(t *testing.T) {
	reg := New(zap.NewNop())
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		r := reg.CreateRoom()
		require.False(t, seen[r.Code], "duplicate room code %s", r.Code)
		seen[r.Code] = true
	}
}

