package onlyconnect

import (
	"github.com/benharcourt/catbox-quiz/internal/content"
)

// scoreLadder gives points by number of clues revealed before a correct
// answer: 0 revealed (impossible in practice, guarded elsewhere) through 4.
var scoreLadder = [5]int{0, 5, 3, 2, 1}

// StandardRoundState drives both the Connections and Completions rounds:
// the two differ only in how many clues a question reveals before it locks
// in, and in whether the active team alternates automatically.
type StandardRoundState struct {
	teams      []*Team
	state      SubState
	activeTeam int

	data      content.SixQuestions
	available [6]Action

	currentQuestion content.Question
	revealedClues   int
	maxRevealed     int
}

// NewStandardRoundState builds the handler for one Connections or
// Completions round. completions selects the Completions variant: one fewer
// clue is ever revealed to players, and the active team does not alternate:
// it stays on the first team for the whole round, and no action reassigns it.
func NewStandardRoundState(teams []*Team, completions bool, data content.SixQuestions) *StandardRoundState {
	s := &StandardRoundState{
		teams:           teams,
		state:           SubPreRound,
		data:            data,
		available:       selectionTokens,
		currentQuestion: data[0],
		maxRevealed:     content.SlotsPerConnection,
	}
	if len(teams) > 1 {
		s.activeTeam = 1
	}
	if completions {
		s.maxRevealed = content.SlotsPerConnection - 1
		s.activeTeam = 0
	}
	return s
}

func (s *StandardRoundState) anySlotAvailable() bool {
	for _, a := range s.available {
		if a != "" {
			return true
		}
	}
	return false
}

func (s *StandardRoundState) availableJSON() []*Action {
	out := make([]*Action, len(s.available))
	for i, a := range s.available {
		if a == "" {
			continue
		}
		v := a
		out[i] = &v
	}
	return out
}

// PublicState implements RoundHandler.
func (s *StandardRoundState) PublicState() map[string]any {
	state := map[string]any{
		"state":       string(s.state),
		"active_team": s.teams[s.activeTeam].Json(),
	}

	switch s.state {
	case SubPreRound, SubPostRound:
		return state
	case SubQuestionSelection:
		state["available"] = s.availableJSON()
		return state
	case SubAnswerRevealed:
		state["current"] = map[string]any{
			"question_type": string(s.currentQuestion.Type),
			"connection":    s.currentQuestion.Connection,
			"details":       s.currentQuestion.Details,
			"elements":      append([]content.Element{}, s.currentQuestion.Elements[:]...),
		}
		return state
	}

	// QUESTION_ACTIVE, LOCKED_IN, STEALING.
	if s.state == SubStealing && s.maxRevealed < content.SlotsPerConnection {
		elements := append(append([]content.Element{}, s.currentQuestion.Elements[:s.revealedClues]...), content.NewTextElement("?"))
		state["current"] = map[string]any{
			"question_type": string(s.currentQuestion.Type),
			"revealed":      content.SlotsPerConnection,
			"elements":      elements,
		}
		return state
	}
	state["current"] = map[string]any{
		"question_type": string(s.currentQuestion.Type),
		"revealed":      s.revealedClues,
		"elements":      append([]content.Element{}, s.currentQuestion.Elements[:s.revealedClues]...),
	}
	return state
}

// AdminState implements RoundHandler: it additionally surfaces the
// connection and host notes, and for Completions the clue players never
// see.
func (s *StandardRoundState) AdminState() map[string]any {
	state := s.PublicState()
	current, ok := state["current"].(map[string]any)
	if !ok {
		return state
	}
	current["connection"] = s.currentQuestion.Connection
	current["details"] = s.currentQuestion.Details
	if s.maxRevealed < content.SlotsPerConnection {
		elements, _ := current["elements"].([]content.Element)
		for len(elements) < content.SlotsPerConnection {
			elements = append(elements, content.Element{})
		}
		elements[s.maxRevealed] = s.currentQuestion.Elements[s.maxRevealed]
		current["elements"] = elements
	}
	return state
}

// PossibleActions implements RoundHandler.
func (s *StandardRoundState) PossibleActions() ActionSet {
	switch s.state {
	case SubPreRound:
		return NewActionSet(ActionNextQuestion)
	case SubQuestionSelection:
		return NewActionSet()
	case SubQuestionActive:
		return NewActionSet(ActionLockIn, ActionNextClue)
	case SubStealing:
		return NewActionSet(ActionScoreSteal, ActionScoreIncorrect)
	case SubAnswerRevealed:
		return NewActionSet(ActionNextQuestion)
	case SubPostRound:
		return NewActionSet(ActionStartNextRound)
	}

	// LOCKED_IN.
	if len(s.teams) == 1 {
		return NewActionSet(ActionScoreTeam1, ActionScoreIncorrect)
	}
	scoreAction := ActionScoreTeam1
	if s.activeTeam != 0 {
		scoreAction = ActionScoreTeam2
	}
	return NewActionSet(scoreAction, ActionRevealForSteal)
}

// Do implements RoundHandler.
func (s *StandardRoundState) Do(action Action) bool {
	switch action {
	case ActionNextQuestion:
		return s.nextQuestion()
	case ActionSelectTwoReeds, ActionSelectLion, ActionSelectTwistedFlax,
		ActionSelectHornedViper, ActionSelectWater, ActionSelectEyeOfHorus:
		return s.selectQuestion(action)
	case ActionNextClue:
		return s.nextClue()
	case ActionLockIn:
		return s.lockIn()
	case ActionRevealForSteal:
		return s.revealForSteal()
	case ActionScoreTeam1:
		return s.score(0)
	case ActionScoreTeam2:
		return s.score(1)
	case ActionScoreSteal:
		return s.scoreSteal()
	case ActionScoreIncorrect:
		return s.scoreIncorrect()
	default:
		return false
	}
}

func (s *StandardRoundState) nextQuestion() bool {
	if s.state != SubPreRound && s.state != SubAnswerRevealed {
		return false
	}
	if !s.anySlotAvailable() {
		s.state = SubPostRound
		return true
	}
	if len(s.teams) > 1 && s.maxRevealed == content.SlotsPerConnection {
		s.activeTeam = 1 - s.activeTeam
	}
	s.state = SubQuestionSelection
	return true
}

func (s *StandardRoundState) selectQuestion(token Action) bool {
	if s.state != SubQuestionSelection {
		return false
	}
	idx := -1
	for i, a := range s.available {
		if a == token {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false
	}
	s.currentQuestion = s.data[idx]
	s.revealedClues = 1
	s.available[idx] = ""
	s.state = SubQuestionActive
	return true
}

func (s *StandardRoundState) nextClue() bool {
	if s.state != SubQuestionActive {
		return false
	}
	if s.revealedClues >= s.maxRevealed {
		return false
	}
	s.revealedClues++
	if s.revealedClues == s.maxRevealed {
		s.state = SubLockedIn
	}
	return true
}

func (s *StandardRoundState) lockIn() bool {
	if s.state != SubQuestionActive {
		return false
	}
	s.state = SubLockedIn
	return true
}

func (s *StandardRoundState) revealForSteal() bool {
	if s.state != SubLockedIn || len(s.teams) == 1 {
		return false
	}
	s.revealedClues = s.maxRevealed
	s.state = SubStealing
	return true
}

func (s *StandardRoundState) score(team int) bool {
	if s.state != SubLockedIn || team >= len(s.teams) {
		return false
	}
	s.teams[team].Score += scoreLadder[s.revealedClues]
	s.revealedClues = content.SlotsPerConnection
	s.state = SubAnswerRevealed
	return true
}

func (s *StandardRoundState) scoreSteal() bool {
	if s.state != SubStealing {
		return false
	}
	s.teams[1-s.activeTeam].Score++
	s.revealedClues = content.SlotsPerConnection
	s.state = SubAnswerRevealed
	return true
}

func (s *StandardRoundState) scoreIncorrect() bool {
	if s.state != SubLockedIn && s.state != SubStealing {
		return false
	}
	s.revealedClues = content.SlotsPerConnection
	s.state = SubAnswerRevealed
	return true
}
