package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benharcourt/catbox-quiz/internal/content"
	"github.com/benharcourt/catbox-quiz/internal/registry"
	"github.com/benharcourt/catbox-quiz/internal/room"
	"github.com/benharcourt/catbox-quiz/internal/store"
)

// ThisOrThatQuestion is one item to be sorted into "this", "that", both, or
// neither. Grounded on `original_source/src/catbox/games/this_or_that/question.py`.
type ThisOrThatQuestion struct {
	UUID         string `json:"uuid"`
	QuestionText string `json:"question_text"`
	IsThis       bool   `json:"is_this"`
	IsThat       bool   `json:"is_that"`
	AnswerText   string `json:"answer_text"`
}

func (q ThisOrThatQuestion) answer() string {
	switch {
	case q.IsThis && q.IsThat:
		return "both"
	case q.IsThis:
		return "this"
	case q.IsThat:
		return "that"
	default:
		return "neither"
	}
}

// ThisOrThatContent is the entire episode payload for this engine: two
// category labels and an ordered list of questions, mirroring engine.py's
// ThisOrThatEpisode fields without its EpisodeVersion machinery, which
// Episode/base already supply generically.
type ThisOrThatContent struct {
	ThisCategory string               `json:"this"`
	ThatCategory string               `json:"that"`
	Questions    []ThisOrThatQuestion `json:"questions"`
}

func (c ThisOrThatContent) Serialise() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func parseThisOrThatContent(data string) (any, error) {
	if data == "" {
		return ThisOrThatContent{Questions: []ThisOrThatQuestion{{UUID: uuid.NewString()}}}, nil
	}
	var c ThisOrThatContent
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, err
	}
	if len(c.Questions) == 0 {
		c.Questions = []ThisOrThatQuestion{{UUID: uuid.NewString()}}
	}
	return c, nil
}

// ThisOrThatEngine is a second, deliberately thin Engine implementation:
// one round of binary-choice voting, against up to four teams, with
// optional scoring. It declares audience support as optional, but PlayRoom
// builds no audience endpoint. It exists to prove that
// Engine is a real seam and not a one-implementation abstraction -- compare
// its capability declarations against OnlyConnectEngine's.
type ThisOrThatEngine struct {
	base
}

// NewThisOrThatEngine builds the engine, identified by ident "this-or-that".
func NewThisOrThatEngine(db *store.Store) *ThisOrThatEngine {
	return &ThisOrThatEngine{base: base{
		ident: "this-or-that",
		db:    db,
		blank: func() any { return ThisOrThatContent{Questions: []ThisOrThatQuestion{{UUID: uuid.NewString()}}} },
		parse: parseThisOrThatContent,
		serialise: func(c any) (string, error) {
			toc, ok := c.(ThisOrThatContent)
			if !ok {
				return "", fmt.Errorf("this-or-that episode content has wrong type %T", c)
			}
			return toc.Serialise()
		},
	}}
}

func (e *ThisOrThatEngine) Name() string        { return "This...or That?" }
func (e *ThisOrThatEngine) Description() string { return "Guess which items belong to one of two known categories." }
func (e *ThisOrThatEngine) CMSEnabled() bool     { return true }
func (e *ThisOrThatEngine) MaxTeams() int        { return 4 }
func (e *ThisOrThatEngine) ScoringMode() ScoringMode { return ScoringOptional }
func (e *ThisOrThatEngine) SupportsAudience() AudienceSupport { return AudienceOptional }

func (e *ThisOrThatEngine) CreateEpisode(ctx context.Context, userID, title string) (*content.EpisodeMeta, error) {
	return e.createEpisode(ctx, userID, title)
}

// thisOrThatTeam tracks one team's running score and current vote.
type thisOrThatTeam struct {
	ID    string
	Name  string
	Score int
	Vote  string
}

func (t *thisOrThatTeam) json(full bool) map[string]any {
	out := map[string]any{"id": t.ID, "name": t.Name, "score": t.Score}
	if full {
		out["voted"] = t.Vote
	} else {
		out["voted"] = t.Vote != ""
	}
	return out
}

// thisOrThatState is the room's mutable play state, set as room.Room.State.
type thisOrThatState struct {
	content     ThisOrThatContent
	teams       []*thisOrThatTeam
	questionIdx int // -1 before the first question
	state       string
}

func (s *thisOrThatState) question() *ThisOrThatQuestion {
	if s.questionIdx < 0 || s.questionIdx >= len(s.content.Questions) {
		return nil
	}
	return &s.content.Questions[s.questionIdx]
}

func (s *thisOrThatState) nextQuestion() bool {
	if s.state != "pre-game" && s.state != "answer" {
		return false
	}
	s.questionIdx++
	if s.questionIdx >= len(s.content.Questions) {
		s.state = "post-game"
	} else {
		s.state = "question"
		for _, t := range s.teams {
			t.Vote = ""
		}
	}
	return true
}

func (s *thisOrThatState) revealAnswer() bool {
	if s.state != "question" {
		return false
	}
	q := s.question()
	correct := ""
	if q != nil {
		correct = q.answer()
	}
	for _, t := range s.teams {
		if t.Vote == correct {
			t.Score++
		}
	}
	s.state = "answer"
	return true
}

func (s *thisOrThatState) vote(teamID, v string) bool {
	for _, t := range s.teams {
		if t.ID == teamID {
			t.Vote = v
			return true
		}
	}
	return false
}

// PlayRoom builds a minimal play room: a gm endpoint that drives the round
// and, when scoring is requested, one endpoint per team that can vote.
// Grounded on play.py's ThisOrThatRoom, with the audience/screen/score-
// overlay endpoints left out of this thin implementation.
func (e *ThisOrThatEngine) PlayRoom(logger *zap.Logger, reg *registry.Registry, ep *Episode, opts RoomOptions) (*room.Room, error) {
	toc, ok := ep.Content.(ThisOrThatContent)
	if !ok {
		return nil, fmt.Errorf("episode %d content is not this-or-that content", ep.ID)
	}

	st := &thisOrThatState{content: toc, questionIdx: -1, state: "pre-game"}

	names := opts.Teams
	if opts.Scoring {
		if len(names) == 0 {
			names = []string{"Team"}
		}
		if len(names) > e.MaxTeams() {
			names = names[:e.MaxTeams()]
		}
		for _, name := range names {
			st.teams = append(st.teams, &thisOrThatTeam{ID: uuid.NewString(), Name: name})
		}
	}

	r := reg.CreateRoom()
	r.State = st

	view := func(admin bool) any {
		teams := make([]map[string]any, len(st.teams))
		for i, t := range st.teams {
			teams[i] = t.json(admin || st.state == "answer")
		}
		frame := map[string]any{
			"cmd":   "state_change",
			"state": st.state,
			"teams": teams,
		}
		if q := st.question(); q != nil {
			frame["question"] = q
		}
		return frame
	}

	gm := reg.AddDefaultEndpoint(r, "gm", true)
	gm.SetView(view)
	gm.OnJoin(func(ctx context.Context, s *room.Socket) any { return view(true) })
	gm.HandleHost("next_question", func(ctx context.Context, s *room.Socket, args map[string]any) (any, error) {
		r.Mutate(st.nextQuestion)
		return nil, nil
	})
	gm.HandleHost("reveal_answer", func(ctx context.Context, s *room.Socket, args map[string]any) (any, error) {
		r.Mutate(st.revealAnswer)
		return nil, nil
	})

	for _, t := range st.teams {
		teamID := t.ID
		teamEp := reg.AddEndpoint(r, "team "+t.Name, false)
		teamEp.SetView(view)
		teamEp.OnJoin(func(ctx context.Context, s *room.Socket) any { return view(false) })
		teamEp.Handle("vote", func(ctx context.Context, s *room.Socket, args map[string]any) (any, error) {
			v, _ := args["vote"].(string)
			r.Mutate(func() bool { return st.vote(teamID, v) })
			return nil, nil
		})
	}

	return r, nil
}

// EditRoom always returns an error: this engine builds no edit session,
// although CMSEnabled reports true.
func (e *ThisOrThatEngine) EditRoom(logger *zap.Logger, reg *registry.Registry, ep *Episode) (*room.Room, error) {
	return nil, fmt.Errorf("this-or-that CMS editing is not implemented")
}

// ViewRoom builds a read-only snapshot of the episode content.
func (e *ThisOrThatEngine) ViewRoom(logger *zap.Logger, reg *registry.Registry, ep *Episode) (*room.Room, error) {
	toc, ok := ep.Content.(ThisOrThatContent)
	if !ok {
		return nil, fmt.Errorf("episode %d content is not this-or-that content", ep.ID)
	}
	r := reg.CreateRoom()
	view := func(admin bool) any {
		return map[string]any{"cmd": "update", "episode": toc}
	}
	v := reg.AddDefaultEndpoint(r, "view", true)
	v.SetView(view)
	v.OnJoin(func(ctx context.Context, s *room.Socket) any { return view(true) })
	return r, nil
}
