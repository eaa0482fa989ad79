package onlyconnect

import "github.com/benharcourt/catbox-quiz/internal/content"

// MissingVowelsState drives the Missing Vowels round: a flat walk through
// groups of vowel-stripped prompts, one point per correct buzz.
type MissingVowelsState struct {
	teams []*Team
	state SubState

	groups        []content.VowelGroup // pre-filtered: only groups with >=1 valid pair
	groupIndex    int
	currentGroup  []content.VowelPair
	questionIndex int
}

// NewMissingVowelsState builds the handler, discarding groups with no
// genuinely valid pair up front so next_group never has to retry mid-play.
func NewMissingVowelsState(teams []*Team, groups []content.VowelGroup) *MissingVowelsState {
	var filtered []content.VowelGroup
	for _, g := range groups {
		if len(g.ValidPairs()) > 0 {
			filtered = append(filtered, g)
		}
	}
	return &MissingVowelsState{
		teams:         teams,
		state:         SubPreRound,
		groups:        filtered,
		groupIndex:    -1,
		questionIndex: -1,
	}
}

func (s *MissingVowelsState) activeQuestion() map[string]any {
	switch s.state {
	case SubQuestionActive:
		return map[string]any{
			"connection": s.groups[s.groupIndex].Connection,
			"text":       s.currentGroup[s.questionIndex].Prompt,
		}
	case SubAnswerRevealed:
		return map[string]any{
			"connection": s.groups[s.groupIndex].Connection,
			"text":       s.currentGroup[s.questionIndex].Answer,
		}
	}
	return nil
}

// PublicState implements RoundHandler.
func (s *MissingVowelsState) PublicState() map[string]any {
	return map[string]any{
		"round":    string(RoundMissingVowels),
		"state":    string(s.state),
		"question": s.activeQuestion(),
	}
}

// AdminState implements RoundHandler: the connection and full answer are
// always visible to the host, even while the prompt is still active.
func (s *MissingVowelsState) AdminState() map[string]any {
	state := s.PublicState()
	if state["question"] == nil {
		return state
	}
	pair := s.currentGroup[s.questionIndex]
	state["question"] = map[string]any{
		"connection": s.groups[s.groupIndex].Connection,
		"text":       pair.Prompt,
		"answer":     pair.Answer,
	}
	return state
}

// PossibleActions implements RoundHandler.
func (s *MissingVowelsState) PossibleActions() ActionSet {
	switch s.state {
	case SubQuestionActive:
		actions := []Action{ActionScoreTeam1, ActionScoreIncorrect}
		if len(s.teams) > 1 {
			actions = append(actions, ActionScoreTeam2)
		}
		return NewActionSet(actions...)
	case SubPostRound:
		return NewActionSet(ActionStartNextRound)
	default:
		return NewActionSet(ActionNextQuestion)
	}
}

// Do implements RoundHandler.
func (s *MissingVowelsState) Do(action Action) bool {
	switch action {
	case ActionNextQuestion:
		return s.nextQuestion()
	case ActionScoreTeam1:
		return s.scoreTeam(0)
	case ActionScoreTeam2:
		return s.scoreTeam(1)
	case ActionScoreIncorrect:
		return s.scoreIncorrect()
	default:
		return false
	}
}

func (s *MissingVowelsState) nextGroup() {
	s.groupIndex++
	if s.groupIndex >= len(s.groups) {
		s.state = SubPostRound
		return
	}
	s.currentGroup = s.groups[s.groupIndex].ValidPairs()
	if len(s.currentGroup) == 0 {
		s.nextGroup()
		return
	}
	s.questionIndex = 0
	s.state = SubQuestionActive
}

func (s *MissingVowelsState) nextQuestion() bool {
	if s.state == SubPreRound {
		s.nextGroup()
		return true
	}
	if s.state != SubAnswerRevealed {
		return false
	}
	s.questionIndex++
	s.state = SubQuestionActive
	if s.questionIndex >= len(s.currentGroup) {
		s.nextGroup()
	}
	return true
}

func (s *MissingVowelsState) scoreTeam(team int) bool {
	if s.state != SubQuestionActive || team >= len(s.teams) {
		return false
	}
	s.teams[team].Score++
	s.state = SubAnswerRevealed
	return true
}

func (s *MissingVowelsState) scoreIncorrect() bool {
	if s.state != SubQuestionActive {
		return false
	}
	s.state = SubAnswerRevealed
	return true
}
