// Package engine is the engine facade: it loads and persists episodes,
// enforces the lifecycle-transition invariants of spec.md §3/§4.F, and
// constructs the play/edit/view rooms for a given episode. Grounded on
// `original_source/src/catbox/engine/engine.py`'s GameEngine, translated
// from a Python ABC generic over an Episode subtype into a Go interface
// plus one concrete implementation per game.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/benharcourt/catbox-quiz/internal/content"
	"github.com/benharcourt/catbox-quiz/internal/registry"
	"github.com/benharcourt/catbox-quiz/internal/room"
	"github.com/benharcourt/catbox-quiz/internal/store"
)

// ScoringMode mirrors the original's OptionSupport enum, naming whether an
// engine's rooms require, allow, or never offer team scoring.
type ScoringMode string

const (
	ScoringNotSupported ScoringMode = "not-supported"
	ScoringOptional     ScoringMode = "optional"
	ScoringRequired     ScoringMode = "required"
)

// AudienceSupport mirrors the same enum, for whether audience voting is
// offered.
type AudienceSupport string

const (
	AudienceNotSupported AudienceSupport = "not-supported"
	AudienceOptional      AudienceSupport = "optional"
	AudienceRequired       AudienceSupport = "required"
)

// Episode is a loaded episode: its ownership/identity row plus one version's
// content and lifecycle state. Content's concrete type depends on the
// engine that owns it (content.Content for Only-Connect, ThisOrThatContent
// for This or That); callers that already know which engine they are
// talking to cast it directly.
type Episode struct {
	ID          int64
	EngineIdent string
	UserID      string
	Title       string
	Description string
	Version     int
	State       content.EpisodeState
	Content     any
}

// RoomOptions configures how a play room is constructed, grounded on the
// original's RoomOptions dataclass (scoring, team names, audience).
type RoomOptions struct {
	Scoring  bool
	Teams    []string
	Audience bool
}

// Engine is the facade every game exposes to the CMS and room construction
// code. Grounded on GameEngine's abstract surface; each engine owns its
// ident (used as the `game_engine` column value) and its capability
// declarations.
type Engine interface {
	Ident() string
	Name() string
	Description() string
	CMSEnabled() bool
	MaxTeams() int
	ScoringMode() ScoringMode
	SupportsAudience() AudienceSupport

	// LoadEpisode loads one version of an episode. version == 0 means "the
	// current draft", creating one from the latest existing version if
	// none is in DRAFT state yet.
	LoadEpisode(ctx context.Context, episodeID int64, version int) (*Episode, error)
	ListEpisodes(ctx context.Context, state content.EpisodeState) ([]content.EpisodeMeta, error)
	ListUserEpisodes(ctx context.Context, userID string) ([]content.EpisodeMeta, error)
	CreateEpisode(ctx context.Context, userID, title string) (*content.EpisodeMeta, error)

	// SaveDraft persists an episode's content and metadata. The episode
	// must be in DRAFT state; saving a non-draft version is a no-op, per
	// engine.py's `WHERE state = 'DRAFT'` predicate.
	SaveDraft(ctx context.Context, ep *Episode) error
	// SaveState transitions ep to newState and demotes sibling versions per
	// the invariants in spec.md §3.
	SaveState(ctx context.Context, ep *Episode, newState content.EpisodeState) error

	PlayRoom(logger *zap.Logger, reg *registry.Registry, ep *Episode, opts RoomOptions) (*room.Room, error)
	EditRoom(logger *zap.Logger, reg *registry.Registry, ep *Episode) (*room.Room, error)
	ViewRoom(logger *zap.Logger, reg *registry.Registry, ep *Episode) (*room.Room, error)
}

// base implements the parts of Engine that are identical across every game:
// load/list/create/save against the durable store, and the lifecycle
// transition logic. Concrete engines embed it and supply the bits that
// differ (round construction, capabilities).
type base struct {
	ident string
	db    *store.Store

	blank     func() any
	parse     func(data string) (any, error)
	serialise func(c any) (string, error)
}

func (b *base) Ident() string { return b.ident }

func (b *base) LoadEpisode(ctx context.Context, episodeID int64, version int) (*Episode, error) {
	ownerRow, err := b.db.GetEpisode(episodeID)
	if err != nil {
		return nil, fmt.Errorf("load episode %d: %w", episodeID, err)
	}
	if ownerRow == nil {
		return nil, fmt.Errorf("episode %d not found", episodeID)
	}

	if version == 0 {
		version, err = b.getOrCreateDraftVersion(ctx, episodeID)
		if err != nil {
			return nil, err
		}
	}

	v, err := b.db.GetVersion(episodeID, version)
	if err != nil {
		return nil, fmt.Errorf("load episode %d version %d: %w", episodeID, version, err)
	}
	if v == nil {
		return nil, fmt.Errorf("episode %d has no version %d", episodeID, version)
	}

	parsed, err := b.parse(v.Data)
	if err != nil {
		return nil, fmt.Errorf("parse episode %d version %d content: %w", episodeID, version, err)
	}

	return &Episode{
		ID:          ownerRow.EpisodeID,
		EngineIdent: ownerRow.GameEngine,
		UserID:      ownerRow.UserID,
		Title:       ownerRow.Title,
		Description: ownerRow.Description,
		Version:     v.Version,
		State:       v.State,
		Content:     parsed,
	}, nil
}

// getOrCreateDraftVersion mirrors `_get_or_create_draft_version`: if a
// DRAFT version already exists it is reused; otherwise a fresh version is
// created by copying the latest version's content and incrementing.
func (b *base) getOrCreateDraftVersion(ctx context.Context, episodeID int64) (int, error) {
	drafts, err := b.db.VersionsInState(episodeID, content.StateDraft)
	if err != nil {
		return 0, fmt.Errorf("look up draft version: %w", err)
	}
	if len(drafts) > 0 {
		return drafts[0], nil
	}

	latest, err := b.db.LatestVersion(episodeID)
	if err != nil {
		return 0, fmt.Errorf("look up latest version: %w", err)
	}

	data := ""
	if latest > 0 {
		v, err := b.db.GetVersion(episodeID, latest)
		if err != nil {
			return 0, fmt.Errorf("load latest version for copy: %w", err)
		}
		if v != nil {
			data = v.Data
		}
	}

	next := latest + 1
	if err := b.db.InsertVersion(store.EpisodeVersion{
		EpisodeID: episodeID,
		Version:   next,
		State:     content.StateDraft,
		Data:      data,
	}); err != nil {
		return 0, fmt.Errorf("create draft version %d: %w", next, err)
	}
	return next, nil
}

func (b *base) ListEpisodes(ctx context.Context, state content.EpisodeState) ([]content.EpisodeMeta, error) {
	return b.db.ListEpisodesByState(state)
}

func (b *base) ListUserEpisodes(ctx context.Context, userID string) ([]content.EpisodeMeta, error) {
	return b.db.ListUserEpisodes(userID)
}

func (b *base) createEpisode(ctx context.Context, userID, title string) (*content.EpisodeMeta, error) {
	id, err := b.db.InsertEpisode(store.Episode{
		GameEngine:  b.ident,
		UserID:      userID,
		Title:       title,
		Description: "",
	})
	if err != nil {
		return nil, fmt.Errorf("create episode: %w", err)
	}
	data, err := b.serialise(b.blank())
	if err != nil {
		return nil, fmt.Errorf("serialise blank episode: %w", err)
	}
	if err := b.db.InsertVersion(store.EpisodeVersion{
		EpisodeID: id,
		Version:   1,
		State:     content.StateDraft,
		Data:      data,
	}); err != nil {
		return nil, fmt.Errorf("create initial draft version: %w", err)
	}
	return &content.EpisodeMeta{
		ID:          id,
		EngineIdent: b.ident,
		Title:       title,
		Versions: map[int]content.VersionInfo{
			1: {State: content.StateDraft},
		},
	}, nil
}

// SaveDraft persists an episode's content; it is a no-op if ep is not
// currently DRAFT, mirroring engine.py's save()'s `WHERE state = 'DRAFT'`.
func (b *base) SaveDraft(ctx context.Context, ep *Episode) error {
	if ep.State != content.StateDraft {
		return nil
	}
	if err := b.db.UpdateEpisodeMeta(ep.ID, ep.Title, ep.Description); err != nil {
		return fmt.Errorf("save episode %d meta: %w", ep.ID, err)
	}
	data, err := b.serialise(ep.Content)
	if err != nil {
		return fmt.Errorf("serialise episode %d: %w", ep.ID, err)
	}
	row, err := b.db.GetVersion(ep.ID, ep.Version)
	if err != nil {
		return fmt.Errorf("reload episode %d version %d: %w", ep.ID, ep.Version, err)
	}
	if row == nil || row.State != content.StateDraft {
		return nil
	}
	if err := b.db.InsertVersion(store.EpisodeVersion{
		EpisodeID: ep.ID,
		Version:   ep.Version,
		State:     content.StateDraft,
		Data:      data,
	}); err != nil {
		return fmt.Errorf("save episode %d draft: %w", ep.ID, err)
	}
	return nil
}

// SaveState is the dual-use `save_state`: newState is both the value written
// to ep's version and the predicate selecting which sibling versions to
// demote -- every other version already in newState becomes SUPERSEDED when
// publishing and DISCARDED otherwise (see DESIGN.md's Open Question
// resolution #2). Terminal states demote nothing.
func (b *base) SaveState(ctx context.Context, ep *Episode, newState content.EpisodeState) error {
	if err := b.db.SetVersionState(ep.ID, ep.Version, newState); err != nil {
		return fmt.Errorf("set episode %d version %d state: %w", ep.ID, ep.Version, err)
	}
	ep.State = newState

	if newState.Terminal() {
		return nil
	}

	demoteTo := content.StateDiscarded
	if newState == content.StatePublished {
		demoteTo = content.StateSuperseded
	}

	siblings, err := b.db.VersionsInState(ep.ID, newState)
	if err != nil {
		return fmt.Errorf("list episode %d versions in state %s: %w", ep.ID, newState, err)
	}
	for _, v := range siblings {
		if v == ep.Version {
			continue
		}
		if err := b.db.SetVersionState(ep.ID, v, demoteTo); err != nil {
			return fmt.Errorf("demote episode %d version %d: %w", ep.ID, v, err)
		}
	}
	return nil
}
