package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benharcourt/catbox-quiz/internal/content"
	"github.com/benharcourt/catbox-quiz/internal/edit"
	"github.com/benharcourt/catbox-quiz/internal/onlyconnect"
	"github.com/benharcourt/catbox-quiz/internal/registry"
	"github.com/benharcourt/catbox-quiz/internal/room"
	"github.com/benharcourt/catbox-quiz/internal/store"
)

// OnlyConnectEngine is the Engine implementation for the Only-Connect
// format: four round types played in a fixed order, against one or two
// teams. Grounded on `original_source/src/catbox/games/only_connect/engine.py`'s
// OnlyConnectEngine and play.py's OnlyConnectRoom/endpoint layout.
type OnlyConnectEngine struct {
	base
}

// NewOnlyConnectEngine builds the engine, identified on the wire and in the
// episodes table by ident "only-connect".
func NewOnlyConnectEngine(db *store.Store) *OnlyConnectEngine {
	return &OnlyConnectEngine{base: base{
		ident: "only-connect",
		db:    db,
		blank: func() any { return content.Content{} },
		parse: func(data string) (any, error) { return content.ParseContent(data) },
		serialise: func(c any) (string, error) {
			oc, ok := c.(content.Content)
			if !ok {
				return "", fmt.Errorf("only-connect episode content has wrong type %T", c)
			}
			return oc.Serialise()
		},
	}}
}

func (e *OnlyConnectEngine) Name() string        { return "Only Connect" }
func (e *OnlyConnectEngine) Description() string { return "Four rounds of hidden connections, walls of clues, and missing vowels." }
func (e *OnlyConnectEngine) CMSEnabled() bool     { return true }
func (e *OnlyConnectEngine) MaxTeams() int        { return 2 }
func (e *OnlyConnectEngine) ScoringMode() ScoringMode { return ScoringRequired }
func (e *OnlyConnectEngine) SupportsAudience() AudienceSupport { return AudienceNotSupported }

func (e *OnlyConnectEngine) CreateEpisode(ctx context.Context, userID, title string) (*content.EpisodeMeta, error) {
	return e.createEpisode(ctx, userID, title)
}

// PlayRoom builds a live game room: a host ("gm") endpoint carrying the full
// action set, and two spectator endpoints ("preview", "overlay") that only
// ever receive the public view, per play.py's three-endpoint layout.
func (e *OnlyConnectEngine) PlayRoom(logger *zap.Logger, reg *registry.Registry, ep *Episode, opts RoomOptions) (*room.Room, error) {
	ec, ok := ep.Content.(content.Content)
	if !ok {
		return nil, fmt.Errorf("episode %d content is not only-connect content", ep.ID)
	}

	names := opts.Teams
	if len(names) == 0 {
		names = []string{"Team"}
	}
	if len(names) > e.MaxTeams() {
		names = names[:e.MaxTeams()]
	}
	teams := make([]*onlyconnect.Team, len(names))
	for i, name := range names {
		teams[i] = &onlyconnect.Team{ID: uuid.NewString(), Name: name}
	}

	ctrl := onlyconnect.NewController(ec, teams)

	r := reg.CreateRoom()
	r.State = ctrl

	view := func(admin bool) any {
		frame := map[string]any{
			"cmd":   "update",
			"round": string(ctrl.Round()),
			"teams": teamsJSON(teams),
		}
		if h := ctrl.Handler(); h != nil {
			if admin {
				frame["state"] = h.AdminState()
				frame["actions"] = actionsJSON(h.PossibleActions())
			} else {
				frame["state"] = h.PublicState()
			}
		}
		return frame
	}

	gm := reg.AddDefaultEndpoint(r, "gm", true)
	gm.SetView(view)
	gm.OnJoin(func(ctx context.Context, s *room.Socket) any { return view(true) })
	gm.HandleHost("next_round", func(ctx context.Context, s *room.Socket, args map[string]any) (any, error) {
		var ok bool
		r.Mutate(func() bool { ok = ctrl.NextRound(); return ok })
		return nil, nil
	})
	gm.HandleHost("skip_round", func(ctx context.Context, s *room.Socket, args map[string]any) (any, error) {
		round, _ := args["round"].(string)
		var ok bool
		r.Mutate(func() bool { ok = ctrl.Skip(onlyconnect.Round(round)); return ok })
		return nil, nil
	})
	gm.HandleHost("do", func(ctx context.Context, s *room.Socket, args map[string]any) (any, error) {
		action, _ := args["action"].(string)
		r.Mutate(func() bool {
			h := ctrl.Handler()
			if h == nil {
				return false
			}
			a := onlyconnect.Action(action)
			if a == onlyconnect.ActionStartNextRound && h.PossibleActions().Has(a) {
				ctrl.NextRound()
				return true
			}
			return h.Do(a)
		})
		return nil, nil
	})
	gm.HandleQuietHost("toggle", func(ctx context.Context, s *room.Socket, args map[string]any) (any, error) {
		word, _ := args["word"].(string)
		r.Mutate(func() bool {
			wall, ok := ctrl.Handler().(*onlyconnect.ConnectingWallState)
			if !ok {
				return false
			}
			changed := false
			wall.Toggle(word, func() { changed = true })
			return changed
		})
		return nil, nil
	})

	for _, name := range []string{"preview", "overlay"} {
		spectator := reg.AddEndpoint(r, name, false)
		spectator.SetView(view)
		spectator.OnJoin(func(ctx context.Context, s *room.Socket) any { return view(false) })
	}

	return r, nil
}

func teamsJSON(teams []*onlyconnect.Team) []map[string]any {
	out := make([]map[string]any, len(teams))
	for i, t := range teams {
		out[i] = t.Json()
	}
	return out
}

func actionsJSON(set onlyconnect.ActionSet) []string {
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, string(a))
	}
	return out
}

// editPersister adapts this engine's store-backed SaveDraft/SaveState onto
// the edit package's narrow Persister interface, so internal/edit never
// needs to import internal/engine.
type editPersister struct {
	engine *OnlyConnectEngine
	ep     *Episode
}

func (p *editPersister) SaveDraft(ctx context.Context, c content.Content, title, description string) error {
	p.ep.Content = c
	p.ep.Title = title
	p.ep.Description = description
	return p.engine.SaveDraft(ctx, p.ep)
}

func (p *editPersister) Submit(ctx context.Context) error {
	return p.engine.SaveState(ctx, p.ep, content.StatePendingReview)
}

// EditRoom builds a CMS edit session for a draft episode version.
func (e *OnlyConnectEngine) EditRoom(logger *zap.Logger, reg *registry.Registry, ep *Episode) (*room.Room, error) {
	if ep.State != content.StateDraft {
		return nil, fmt.Errorf("episode %d version %d is not a draft", ep.ID, ep.Version)
	}
	ec, ok := ep.Content.(content.Content)
	if !ok {
		return nil, fmt.Errorf("episode %d content is not only-connect content", ep.ID)
	}
	r := reg.CreateRoom()
	edit.NewRoom(r, logger, ec, ep.Title, ep.Description, &editPersister{engine: e, ep: ep})
	return r, nil
}

// ViewRoom builds a read-only audit view of one episode version: a single
// "view" endpoint that sends the episode's full content tree and has no
// command surface, for moderators and episode audiences to inspect content
// without being able to change it.
func (e *OnlyConnectEngine) ViewRoom(logger *zap.Logger, reg *registry.Registry, ep *Episode) (*room.Room, error) {
	ec, ok := ep.Content.(content.Content)
	if !ok {
		return nil, fmt.Errorf("episode %d content is not only-connect content", ep.ID)
	}
	ctrl := onlyconnect.NewController(ec, nil)

	r := reg.CreateRoom()
	r.State = ctrl

	view := func(admin bool) any {
		return map[string]any{
			"cmd":     "update",
			"episode": ec.Json(),
		}
	}
	gm := reg.AddDefaultEndpoint(r, "view", true)
	gm.SetView(view)
	gm.OnJoin(func(ctx context.Context, s *room.Socket) any { return view(true) })

	return r, nil
}
