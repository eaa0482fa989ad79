package edit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/benharcourt/catbox-quiz/internal/content"
	"github.com/benharcourt/catbox-quiz/internal/room"
)

type fakePersister struct {
	mu        sync.Mutex
	saves     int
	submitted bool
	lastDraft content.Content
}

func (f *fakePersister) SaveDraft(ctx context.Context, c content.Content, title, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.lastDraft = c
	return nil
}

func (f *fakePersister) Submit(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = true
	return nil
}

func (f *fakePersister) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func testSocket(id string) *room.Socket {
	return &room.Socket{ID: id, Session: &room.Session{Username: "tester"}}
}

func newTestSession(t *testing.T) (*room.Room, *Room, *room.Endpoint, *fakePersister) {
	t.Helper()
	r := room.NewRoom("ABCD", zap.NewNop(), nil)
	persist := &fakePersister{}
	ep := NewRoom(r, zap.NewNop(), content.Content{}, "Title", "Desc", persist)
	er, ok := r.State.(*Room)
	require.True(t, ok)
	return r, er, ep, persist
}

func TestEnableSectionCopiesShadowDefaults(t *testing.T) {
	_, er, _, _ := newTestSession(t)

	assert.Nil(t, er.Episode.ConnectionsRound)
	changed := er.setSectionEnabled(sectionConnections, true)
	assert.True(t, changed)
	require.NotNil(t, er.Episode.ConnectionsRound)

	changed = er.setSectionEnabled(sectionConnections, false)
	assert.True(t, changed)
	assert.Nil(t, er.Episode.ConnectionsRound)
}

func TestEnableSectionRejectsUnknownName(t *testing.T) {
	_, er, _, _ := newTestSession(t)
	assert.False(t, er.setSectionEnabled(section("nonsense"), true))
}

func TestApplyUpdateSetsConnectionText(t *testing.T) {
	_, er, _, _ := newTestSession(t)
	require.True(t, er.setSectionEnabled(sectionConnections, true))

	err := er.applyUpdate(sectionConnections, "0", "connection", "new connection")
	require.NoError(t, err)
	assert.Equal(t, "new connection", er.Episode.ConnectionsRound[0].Connection)
}

func TestApplyUpdateRejectsOutOfRangeIndex(t *testing.T) {
	_, er, _, _ := newTestSession(t)
	require.True(t, er.setSectionEnabled(sectionConnections, true))

	err := er.applyUpdate(sectionConnections, "99", "connection", "x")
	assert.Error(t, err)
}

func TestApplyUpdateOnDisabledSectionErrors(t *testing.T) {
	_, er, _, _ := newTestSession(t)
	err := er.applyUpdate(sectionConnections, "0", "connection", "x")
	assert.Error(t, err)
}

func TestElementFromValueDetectsBlobPrefix(t *testing.T) {
	el := elementFromValue("blob::abc123")
	assert.Equal(t, content.ElementMedia, el.Kind)
	assert.Equal(t, "abc123", el.BlobID)

	el = elementFromValue("plain text")
	assert.Equal(t, content.ElementText, el.Kind)
	assert.Equal(t, "plain text", el.Text)
}

func TestAnnounceEditingTracksPosition(t *testing.T) {
	r, er, _, _ := newTestSession(t)
	s := testSocket("sock-1")

	_, err := er.handleAnnounceEditing(r, context.Background(), s, map[string]any{"position": "connections.0.connection"})
	require.NoError(t, err)
	assert.Len(t, er.editingJSON(), 1)

	_, err = er.handleAnnounceEditing(r, context.Background(), s, map[string]any{"position": ""})
	require.NoError(t, err)
	assert.Len(t, er.editingJSON(), 0)
}

func TestHandleDisconnectClearsEditingEntry(t *testing.T) {
	r, er, _, _ := newTestSession(t)
	s := testSocket("sock-1")

	_, err := er.handleAnnounceEditing(r, context.Background(), s, map[string]any{"position": "x"})
	require.NoError(t, err)
	require.Len(t, er.editingJSON(), 1)

	er.handleDisconnect(r, s.ID)
	assert.Len(t, er.editingJSON(), 0)
}

func TestQueueSaveDebouncesMultipleEdits(t *testing.T) {
	r, er, _, persist := newTestSession(t)
	s := testSocket("sock-1")
	ctx := context.Background()

	_, err := er.handleSetMeta(r, ctx, s, map[string]any{"title": "A"})
	require.NoError(t, err)
	_, err = er.handleSetMeta(r, ctx, s, map[string]any{"title": "B"})
	require.NoError(t, err)

	assert.Equal(t, 0, persist.saveCount())
	assert.Eventually(t, func() bool { return persist.saveCount() == 1 }, 2*saveDebounce, 10*time.Millisecond)
}

func TestSubmitFlushesPendingSaveAndTransitions(t *testing.T) {
	_, er, _, persist := newTestSession(t)
	s := testSocket("sock-1")
	ctx := context.Background()

	require.True(t, er.setSectionEnabled(sectionConnections, true))
	er.queueSave(ctx)

	reply, err := er.handleSubmit(ctx, s, nil)
	require.NoError(t, err)
	assert.NotNil(t, reply)

	assert.True(t, persist.submitted)
	assert.Equal(t, 1, persist.saveCount())
}
