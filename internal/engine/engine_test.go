package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/benharcourt/catbox-quiz/internal/content"
	"github.com/benharcourt/catbox-quiz/internal/registry"
	"github.com/benharcourt/catbox-quiz/internal/store"
)

func testDB(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	require.NoError(t, db.UpsertUser(store.User{UserID: "user-1", UserName: "User One"}))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCreateEpisodeStartsAsSingleDraft(t *testing.T) {
	db := testDB(t)
	e := NewOnlyConnectEngine(db)
	ctx := context.Background()

	meta, err := e.CreateEpisode(ctx, "user-1", "My Episode")
	require.NoError(t, err)
	assert.Equal(t, "My Episode", meta.Title)
	assert.Equal(t, content.StateDraft, meta.Versions[1].State)

	ep, err := e.LoadEpisode(ctx, meta.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, ep.Version)
	assert.Equal(t, content.StateDraft, ep.State)
	_, ok := ep.Content.(content.Content)
	assert.True(t, ok)
}

func TestSaveDraftIsNoOpOffDraft(t *testing.T) {
	db := testDB(t)
	e := NewOnlyConnectEngine(db)
	ctx := context.Background()

	meta, err := e.CreateEpisode(ctx, "user-1", "Ep")
	require.NoError(t, err)
	ep, err := e.LoadEpisode(ctx, meta.ID, 1)
	require.NoError(t, err)

	require.NoError(t, e.SaveState(ctx, ep, content.StatePendingReview))
	require.NoError(t, e.SaveState(ctx, ep, content.StatePublished))

	ep.Title = "Changed after publish"
	require.NoError(t, e.SaveDraft(ctx, ep))

	row, err := db.GetEpisode(meta.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ep", row.Title)
}

// TestPublishDemotesPreviouslyPublishedSibling exercises the dual-use
// save_state predicate: publishing a new draft demotes the sibling that was
// PUBLISHED, not every sibling regardless of its state.
func TestPublishDemotesPreviouslyPublishedSibling(t *testing.T) {
	db := testDB(t)
	e := NewOnlyConnectEngine(db)
	ctx := context.Background()

	meta, err := e.CreateEpisode(ctx, "user-1", "Ep")
	require.NoError(t, err)

	v1, err := e.LoadEpisode(ctx, meta.ID, 1)
	require.NoError(t, err)
	require.NoError(t, e.SaveState(ctx, v1, content.StatePendingReview))
	require.NoError(t, e.SaveState(ctx, v1, content.StatePublished))

	v2, err := e.LoadEpisode(ctx, meta.ID, 0) // creates a fresh draft
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)
	require.NoError(t, e.SaveState(ctx, v2, content.StatePendingReview))
	require.NoError(t, e.SaveState(ctx, v2, content.StatePublished))

	row1, err := db.GetVersion(meta.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, content.StateSuperseded, row1.State)

	row2, err := db.GetVersion(meta.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, content.StatePublished, row2.State)
}

func TestLoadEpisodeReusesExistingDraft(t *testing.T) {
	db := testDB(t)
	e := NewOnlyConnectEngine(db)
	ctx := context.Background()

	meta, err := e.CreateEpisode(ctx, "user-1", "Ep")
	require.NoError(t, err)

	a, err := e.LoadEpisode(ctx, meta.ID, 0)
	require.NoError(t, err)
	b, err := e.LoadEpisode(ctx, meta.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, a.Version, b.Version)
}

func TestPlayRoomBuildsGmAndSpectatorEndpoints(t *testing.T) {
	db := testDB(t)
	e := NewOnlyConnectEngine(db)
	ctx := context.Background()
	reg := registry.New(zap.NewNop())

	meta, err := e.CreateEpisode(ctx, "user-1", "Ep")
	require.NoError(t, err)
	ep, err := e.LoadEpisode(ctx, meta.ID, 0)
	require.NoError(t, err)

	r, err := e.PlayRoom(zap.NewNop(), reg, ep, RoomOptions{Teams: []string{"Red", "Blue"}})
	require.NoError(t, err)

	_, ok := reg.Endpoint(r.Code)
	assert.True(t, ok)
}

func TestEditRoomRejectsNonDraft(t *testing.T) {
	db := testDB(t)
	e := NewOnlyConnectEngine(db)
	ctx := context.Background()
	reg := registry.New(zap.NewNop())

	meta, err := e.CreateEpisode(ctx, "user-1", "Ep")
	require.NoError(t, err)
	ep, err := e.LoadEpisode(ctx, meta.ID, 1)
	require.NoError(t, err)
	require.NoError(t, e.SaveState(ctx, ep, content.StatePendingReview))

	_, err = e.EditRoom(zap.NewNop(), reg, ep)
	assert.Error(t, err)
}

func TestEditRoomSubmitTransitionsDraftToPendingReview(t *testing.T) {
	db := testDB(t)
	e := NewOnlyConnectEngine(db)
	ctx := context.Background()
	reg := registry.New(zap.NewNop())

	meta, err := e.CreateEpisode(ctx, "user-1", "Ep")
	require.NoError(t, err)
	ep, err := e.LoadEpisode(ctx, meta.ID, 1)
	require.NoError(t, err)

	r, err := e.EditRoom(zap.NewNop(), reg, ep)
	require.NoError(t, err)
	require.NotNil(t, r)

	persister := &editPersister{engine: e, ep: ep}
	require.NoError(t, persister.Submit(ctx))

	row, err := db.GetVersion(meta.ID, ep.Version)
	require.NoError(t, err)
	assert.Equal(t, content.StatePendingReview, row.State)
}

// TestThisOrThatEngineIsPolymorphicWithOnlyConnect checks that the facade
// genuinely dispatches to different capability declarations and content
// types per engine, not just a single hard-coded implementation.
func TestThisOrThatEngineIsPolymorphicWithOnlyConnect(t *testing.T) {
	db := testDB(t)
	oc := NewOnlyConnectEngine(db)
	tot := NewThisOrThatEngine(db)

	assert.NotEqual(t, oc.Ident(), tot.Ident())
	assert.NotEqual(t, oc.MaxTeams(), tot.MaxTeams())
	assert.Equal(t, ScoringRequired, oc.ScoringMode())
	assert.Equal(t, ScoringOptional, tot.ScoringMode())
	assert.Equal(t, AudienceNotSupported, oc.SupportsAudience())
	assert.Equal(t, AudienceOptional, tot.SupportsAudience())

	ctx := context.Background()
	meta, err := tot.CreateEpisode(ctx, "user-1", "ToT Ep")
	require.NoError(t, err)
	ep, err := tot.LoadEpisode(ctx, meta.ID, 0)
	require.NoError(t, err)
	_, ok := ep.Content.(ThisOrThatContent)
	assert.True(t, ok)
}

func TestThisOrThatPlayRoomVotingAndScoring(t *testing.T) {
	db := testDB(t)
	e := NewThisOrThatEngine(db)
	ctx := context.Background()
	reg := registry.New(zap.NewNop())

	meta, err := e.CreateEpisode(ctx, "user-1", "Ep")
	require.NoError(t, err)
	ep, err := e.LoadEpisode(ctx, meta.ID, 0)
	require.NoError(t, err)

	r, err := e.PlayRoom(zap.NewNop(), reg, ep, RoomOptions{Scoring: true, Teams: []string{"Red"}})
	require.NoError(t, err)

	st, ok := r.State.(*thisOrThatState)
	require.True(t, ok)
	require.Len(t, st.teams, 1)

	r.Mutate(st.nextQuestion)
	assert.Equal(t, "question", st.state)

	assert.True(t, st.vote(st.teams[0].ID, st.question().answer()))
	r.Mutate(st.revealAnswer)
	assert.Equal(t, 1, st.teams[0].Score)
}
